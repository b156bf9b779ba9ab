package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthConfigSanitize_Defaults(t *testing.T) {
	var a AuthConfig
	a.Sanitize()

	assert.Equal(t, 30*time.Minute, a.Session.Lifetime)
	assert.Equal(t, 30*time.Minute, a.Session.RefreshAfter)
	assert.Equal(t, 5*time.Second, a.LDAP.ConnectTimeout)
}

func TestAuthConfigSanitize_RefreshDefaultsToLifetime(t *testing.T) {
	a := AuthConfig{Session: SessionConfig{Lifetime: 10 * time.Minute}}
	a.Sanitize()
	assert.Equal(t, 10*time.Minute, a.Session.RefreshAfter)
}

func TestCacheConfigSanitize(t *testing.T) {
	c := CacheConfig{BoundaryHour: 99, BoundaryMinute: -1, SweepInterval: 0}
	c.Sanitize()

	assert.Equal(t, 7, c.BoundaryHour)
	assert.Equal(t, 0, c.BoundaryMinute)
	assert.Equal(t, time.Minute, c.SweepInterval)
}

func TestProviderEnabled(t *testing.T) {
	assert.False(t, LDAPConfig{}.Enabled())
	assert.True(t, LDAPConfig{URL: "ldap://localhost:389"}.Enabled())

	assert.False(t, GoogleConfig{ClientID: "id"}.Enabled())
	assert.True(t, GoogleConfig{ClientID: "id", ClientSecret: "s"}.Enabled())
}

func TestAppConfigSanitize(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var c AppConfig
	c.Sanitize()
	assert.True(t, c.IsDev)
}
