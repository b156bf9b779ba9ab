package ldap

// Package ldap implements the directory resolver: multi-strategy DN
// discovery followed by a credential bind against an LDAP/Active Directory
// service.

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/oakmont/insights-api/config"
	apperrors "github.com/oakmont/insights-api/internal/errors"
	"github.com/oakmont/insights-api/internal/ports"
)

// Conn is the subset of *ldap.Conn the resolver uses. Tests substitute a
// fake; production uses go-ldap connections from the default dialer.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	Close() error
}

// Dialer opens a short-lived directory connection. Connections are opened
// per attempt and closed regardless of outcome.
type Dialer func(ctx context.Context) (Conn, error)

// Resolver authenticates principals against a directory server.
type Resolver struct {
	cfg    config.LDAPConfig
	dial   Dialer
	logger *slog.Logger
}

// ResolverOptions groups dependencies for NewResolver.
type ResolverOptions struct {
	Config config.LDAPConfig
	// Dial overrides the connection factory (tests). Defaults to dialing
	// Config.URL with Config.ConnectTimeout.
	Dial   Dialer
	Logger *slog.Logger
}

// NewResolver constructs a directory resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{cfg: opts.Config, dial: opts.Dial, logger: opts.Logger}
	if r.dial == nil {
		r.dial = func(ctx context.Context) (Conn, error) {
			d := &net.Dialer{Timeout: r.cfg.ConnectTimeout}
			if deadline, ok := ctx.Deadline(); ok {
				d.Deadline = deadline
			}
			return goldap.DialURL(r.cfg.URL, goldap.DialWithDialer(d))
		}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

var _ ports.DirectoryAuthenticator = (*Resolver)(nil)

// detailAttributes are fetched from the bound entry after any successful bind.
var detailAttributes = []string{"displayName", "mail", "userPrincipalName", "sAMAccountName"}

// Authenticate runs the per-attempt state machine: connectivity probe,
// direct bind, search-based discovery, bind with the discovered DN, and
// conventional DN fallbacks when discovery found nothing. Wrong credentials
// yield Authenticated=false; only connectivity problems are errors.
func (r *Resolver) Authenticate(ctx context.Context, username, password string) (ports.DirectoryResult, error) {
	if username == "" || password == "" {
		// An empty password would turn Bind into an anonymous bind that
		// "succeeds"; reject it before touching the wire.
		return ports.DirectoryResult{}, nil
	}

	if err := r.probe(ctx); err != nil {
		return ports.DirectoryResult{}, err
	}

	upn := r.principalName(username)

	// Direct bind with the qualified principal name.
	if res, err := r.bindAndFetch(ctx, upn, password, ""); err != nil {
		return ports.DirectoryResult{}, err
	} else if res.Authenticated {
		return res, nil
	}

	// Search-based discovery across the ordered bases.
	dn, err := r.discoverDN(ctx, username, upn)
	if err != nil {
		return ports.DirectoryResult{}, err
	}
	if dn != "" {
		return r.bindAndFetch(ctx, dn, password, dn)
	}

	// Discovery found nothing at all: try conventional DN patterns in order.
	for _, guess := range r.FallbackDNs(username) {
		res, err := r.bindAndFetch(ctx, guess, password, guess)
		if err != nil {
			return ports.DirectoryResult{}, err
		}
		if res.Authenticated {
			return res, nil
		}
	}

	return ports.DirectoryResult{}, nil
}

// probe opens and discards a short-lived anonymous connection so callers
// can fail fast with a distinct, actionable error when the directory is
// unreachable.
func (r *Resolver) probe(ctx context.Context) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory server unreachable")
	}
	defer closeConn(conn, r.logger)

	if err := conn.UnauthenticatedBind(""); err != nil && !isCredentialError(err) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory server rejected handshake")
	}
	return nil
}

// principalName qualifies a bare username with the configured UPN suffix.
func (r *Resolver) principalName(username string) string {
	if strings.Contains(username, "@") || r.cfg.Domain == "" {
		return username
	}
	return username + "@" + r.cfg.Domain
}

// localPart strips a UPN suffix from the supplied identifier.
func localPart(username string) string {
	if at := strings.Index(username, "@"); at >= 0 {
		return username[:at]
	}
	return username
}

// searchBases returns the candidate bases in fixed priority order: root,
// user container, then alternates. Bases are tried in order, never merged
// or ranked.
func (r *Resolver) searchBases() []string {
	var bases []string
	seen := map[string]bool{}
	for _, b := range append([]string{r.cfg.BaseDN, r.cfg.UserDN}, r.cfg.AltDNs...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		bases = append(bases, b)
	}
	return bases
}

// discoverDN searches each base for an entry matching the identifier on
// mail, principal name, account name, or common name. The first acceptable
// entry wins; the search stops at the first base that produced one.
func (r *Resolver) discoverDN(ctx context.Context, username, upn string) (string, error) {
	local := localPart(username)
	filter := fmt.Sprintf(
		"(|(mail=%s)(userPrincipalName=%s)(sAMAccountName=%s)(cn=%s))",
		goldap.EscapeFilter(upn),
		goldap.EscapeFilter(upn),
		goldap.EscapeFilter(local),
		goldap.EscapeFilter(local),
	)

	for _, base := range r.searchBases() {
		dn, err := r.searchBase(ctx, base, filter, upn, local)
		if err != nil {
			return "", err
		}
		if dn != "" {
			return dn, nil
		}
	}
	return "", nil
}

func (r *Resolver) searchBase(ctx context.Context, base, filter, upn, local string) (string, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory server unreachable")
	}
	defer closeConn(conn, r.logger)

	if r.cfg.BindDN != "" {
		if err := conn.Bind(r.cfg.BindDN, r.cfg.BindPassword); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory service bind failed")
		}
	} else if err := conn.UnauthenticatedBind(""); err != nil && !isCredentialError(err) {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory anonymous bind failed")
	}

	req := goldap.NewSearchRequest(
		base,
		goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "mail", "userPrincipalName"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if isBenignSearchError(err) {
			return "", nil
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory search failed")
	}

	for _, entry := range res.Entries {
		if acceptableEntry(entry, upn, local) {
			return entry.DN, nil
		}
	}
	return "", nil
}

// acceptableEntry selects an entry whose mail or principal name matches the
// identifier case-insensitively, or whose DN textually contains the local
// part of the username.
func acceptableEntry(entry *goldap.Entry, upn, local string) bool {
	mail := entry.GetAttributeValue("mail")
	pn := entry.GetAttributeValue("userPrincipalName")
	if strings.EqualFold(mail, upn) || strings.EqualFold(pn, upn) {
		return true
	}
	return strings.Contains(strings.ToLower(entry.DN), strings.ToLower(local))
}

// FallbackDNs synthesizes the fixed ordered list of conventional DN
// patterns tried when discovery found nothing. The list is deterministic
// for a given username.
func (r *Resolver) FallbackDNs(username string) []string {
	local := localPart(username)
	upn := r.principalName(username)

	var out []string
	add := func(container string) {
		if container == "" {
			return
		}
		out = append(out,
			fmt.Sprintf("cn=%s,%s", local, container),
			fmt.Sprintf("uid=%s,%s", local, container),
			fmt.Sprintf("mail=%s,%s", upn, container),
		)
	}
	add(r.cfg.UserDN)
	add(r.cfg.BaseDN)
	return out
}

// bindAndFetch attempts a credential bind as bindName and, on success,
// fetches display details. detailDN selects where to read details from: a
// DN runs a base-scope read on that entry, empty falls back to a subtree
// search for the principal name.
func (r *Resolver) bindAndFetch(ctx context.Context, bindName, password, detailDN string) (ports.DirectoryResult, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return ports.DirectoryResult{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory server unreachable")
	}
	defer closeConn(conn, r.logger)

	if err := conn.Bind(bindName, password); err != nil {
		if isCredentialError(err) {
			return ports.DirectoryResult{}, nil
		}
		return ports.DirectoryResult{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "directory bind failed")
	}

	res := ports.DirectoryResult{Authenticated: true, DN: bindName}
	r.fillDetails(conn, &res, detailDN)
	return res, nil
}

// fillDetails reads displayName/mail/userPrincipalName from the bound
// entry. Detail fetch failures are logged, not fatal: the bind already
// proved the credentials.
func (r *Resolver) fillDetails(conn Conn, res *ports.DirectoryResult, detailDN string) {
	var req *goldap.SearchRequest
	if detailDN != "" {
		req = goldap.NewSearchRequest(
			detailDN,
			goldap.ScopeBaseObject, goldap.NeverDerefAliases, 1, 0, false,
			"(objectClass=*)",
			detailAttributes,
			nil,
		)
	} else {
		base := r.cfg.BaseDN
		if base == "" {
			base = r.cfg.UserDN
		}
		if base == "" {
			return
		}
		req = goldap.NewSearchRequest(
			base,
			goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 1, 0, false,
			fmt.Sprintf("(userPrincipalName=%s)", goldap.EscapeFilter(res.DN)),
			detailAttributes,
			nil,
		)
	}

	found, err := conn.Search(req)
	if err != nil || len(found.Entries) == 0 {
		if err != nil {
			r.logger.Warn("directory detail fetch failed", "dn", res.DN, "error", err)
		}
		return
	}

	entry := found.Entries[0]
	res.DN = entry.DN
	res.DisplayName = entry.GetAttributeValue("displayName")
	res.Email = entry.GetAttributeValue("mail")
	res.PrincipalName = entry.GetAttributeValue("userPrincipalName")
}

// isCredentialError reports whether err is a credential rejection rather
// than a connectivity problem.
func isCredentialError(err error) bool {
	return goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials) ||
		goldap.IsErrorWithCode(err, goldap.LDAPResultInappropriateAuthentication) ||
		goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidDNSyntax) ||
		goldap.IsErrorWithCode(err, goldap.LDAPResultUnwillingToPerform)
}

// isBenignSearchError reports whether a search error just means "nothing
// here" for this base (missing base, insufficient rights) rather than an
// unreachable directory.
func isBenignSearchError(err error) bool {
	return goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) ||
		goldap.IsErrorWithCode(err, goldap.LDAPResultInsufficientAccessRights)
}

func closeConn(conn Conn, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Debug("directory connection close failed", "error", err)
	}
}
