// Package services – input normalization helpers shared by the idea, vote,
// and engagement services.
package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// emailRE accepts the usual local@domain.tld shape. It is intentionally
// permissive beyond requiring an "@" and a dotted domain; the mailbox is
// never dereferenced by this service.
var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an email address. All comparisons and
// storage use the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s (already normalized) is a syntactically
// acceptable email address.
func ValidEmail(s string) bool {
	return emailRE.MatchString(s)
}

// validName reports whether a proposer or voter name holds 2-100 runes after
// trimming.
func validName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 2 && n <= 100
}
