package config

import "time"

// SessionConfig contains session credential configuration.
type SessionConfig struct {
	// Secret signs session credentials. Required; startup fails without it.
	Secret string `env:"SECRET"`

	// Lifetime is how long an issued credential stays valid.
	Lifetime time.Duration `env:"LIFETIME" envDefault:"30m"`

	// RefreshAfter is the credential age past which a successful
	// verification triggers a silent reissue. Must be shorter than Lifetime
	// for the reissue to ever fire.
	RefreshAfter time.Duration `env:"REFRESH_AFTER" envDefault:"10m"`
}

// LDAPConfig contains directory server configuration.
type LDAPConfig struct {
	// URL is the directory server address, e.g. "ldap://ad.corp.example.com:389".
	URL string `env:"URL"`

	// BaseDN is the directory root search base, e.g. "dc=corp,dc=example,dc=com".
	BaseDN string `env:"BASE_DN"`

	// UserDN is the container for user entries, e.g. "cn=Users,dc=corp,dc=example,dc=com".
	UserDN string `env:"USER_DN"`

	// AltDNs are additional search bases tried after BaseDN and UserDN.
	AltDNs []string `env:"ALT_DNS" envSeparator:";"`

	// Domain is the UPN suffix appended to bare usernames, e.g. "corp.example.com".
	Domain string `env:"DOMAIN"`

	// BindDN and BindPassword optionally authenticate the discovery search.
	// Empty values mean anonymous search.
	BindDN       string `env:"BIND_DN"`
	BindPassword string `env:"BIND_PASSWORD"`

	// ConnectTimeout bounds the connectivity probe handshake.
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

// Enabled reports whether directory authentication is configured.
func (l LDAPConfig) Enabled() bool { return l.URL != "" }

// GoogleConfig contains Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	// RedirectURL is the shared callback for both login and sync flows.
	RedirectURL string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`

	// MailScope is the elevated scope requested by the sync flow.
	MailScope string `env:"MAIL_SCOPE" envDefault:"https://mail.google.com/"`
}

// Enabled reports whether Google authentication is configured.
func (g GoogleConfig) Enabled() bool { return g.ClientID != "" && g.ClientSecret != "" }

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Session SessionConfig `envPrefix:"SESSION_"`
	LDAP    LDAPConfig    `envPrefix:"LDAP_"`
	Google  GoogleConfig  `envPrefix:"GOOGLE_"`
}

// Sanitize applies guardrails to authentication configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Session.Lifetime <= 0 {
		a.Session.Lifetime = 30 * time.Minute
	}
	if a.Session.RefreshAfter <= 0 {
		a.Session.RefreshAfter = a.Session.Lifetime
	}
	if a.LDAP.ConnectTimeout <= 0 {
		a.LDAP.ConnectTimeout = 5 * time.Second
	}
}
