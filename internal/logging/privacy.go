package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// AnonymizeEmail maps an email address to a stable "user:<hex>" identifier.
// The same address always yields the same identifier, so log entries can be
// correlated per user without recording the address itself.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(sum[:8])
}

// UserHash returns the anonymized form of email as a log attribute.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// ExtractDomain returns the domain part of an email address, or "" when the
// input is not a plausible address. Domains are low cardinality and safe to
// log where the full address is not.
func ExtractDomain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// Domain returns the domain part of email as a log attribute.
func Domain(email string) slog.Attr {
	return slog.String(KeyDomain, ExtractDomain(email))
}

// SanitizeToken replaces a credential with a length marker. No part of the
// token survives; even a short prefix can identify the token type.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
