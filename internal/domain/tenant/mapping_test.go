package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"WWW.Example.COM", "example.com"},
		{"www.example.com", "example.com"},
		{"  acme.io ", "acme.io"},
		{"www.www.acme.io", "www.acme.io"}, // only one www. prefix stripped
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDomain(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeDomain_Idempotent(t *testing.T) {
	for _, d := range []string{"WWW.Example.COM", "example.com", "sub.domain.net"} {
		once := NormalizeDomain(d)
		assert.Equal(t, once, NormalizeDomain(once))
	}
	assert.Equal(t, NormalizeDomain("example.com"), NormalizeDomain("WWW.Example.COM"))
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "example.com", EmailDomain("Alice@Example.com"))
	assert.Equal(t, "example.com", EmailDomain("bob@WWW.EXAMPLE.COM"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "", EmailDomain("trailing@"))
	// local parts may themselves contain '@' when quoted; the last one wins
	assert.Equal(t, "acme.io", EmailDomain(`"weird@local"@acme.io`))
}
