package tenant

// Package tenant contains domain types for mapping a principal's email
// domain to its tenant data schema.

import (
	"strings"
	"time"
)

// DomainMapping maps a normalized email domain to a tenant schema name.
// Uniqueness is enforced on the normalized domain.
type DomainMapping struct {
	ID           int64     `json:"id"`
	Domain       string    `json:"domain"`
	TenantSchema string    `json:"tenant_schema"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeDomain case-folds a domain and strips a single leading "www."
// prefix. It is idempotent: NormalizeDomain(NormalizeDomain(d)) ==
// NormalizeDomain(d).
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	return d
}

// EmailDomain extracts and normalizes the domain part of an email address.
// Returns empty string when the address has no domain part.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return NormalizeDomain(email[at+1:])
}
