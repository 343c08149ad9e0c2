// Package signaling implements pure, dependency-free identity and
// validation helpers: id generation, display name / chat validation, and
// the private-message prefix grammar. None of these functions touch
// shared state; they are exercised directly by the hub's router under its
// own serialization discipline.
package signaling

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// NewID returns a freshly generated 24-lowercase-hex-digit identifier,
// unique for the process lifetime with negligible collision probability.
func NewID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on the standard reader only fails if the OS
		// entropy source is broken; there is no sane recovery path.
		panic("signaling: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

var nameClass = regexp.MustCompile(`^[A-Za-z0-9 _\-.]+$`)

// ValidateName returns the canonical (trimmed) form of s iff it is a
// non-empty string of length 1..32 matching the allowed character class,
// else ("", false).
func ValidateName(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 1 || len(trimmed) > 32 {
		return "", false
	}
	if !nameClass.MatchString(trimmed) {
		return "", false
	}
	return trimmed, true
}

// ValidateChat returns the trimmed chat body iff its length is in 1..500
// and it contains no disallowed C0 control character. Line feed and
// carriage return are explicitly permitted so multi-line chat works while
// embedded control sequences do not.
func ValidateChat(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 1 || len(trimmed) > 500 {
		return "", false
	}
	for _, r := range trimmed {
		if isDisallowedControl(r) {
			return "", false
		}
	}
	return trimmed, true
}

func isDisallowedControl(r rune) bool {
	switch {
	case r == '\n' || r == '\r':
		return false
	case r >= 0x00 && r <= 0x08:
		return true
	case r == 0x0B || r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r == 0x7F:
		return true
	default:
		return false
	}
}

// ReplyPrefix is the literal prefix that marks chat text as a reply
// quotation rather than a private-message address.
const ReplyPrefix = `@reply [`

// ParsePrivatePrefix extracts the addressed name and body from chat text
// beginning with `@`:
//
//  1. `@"<name with spaces>" <body>` — a closing quote, then a single
//     space, then a non-empty body.
//  2. `@<name-without-space> <body>` — split at the first space.
//
// Text beginning with the literal ReplyPrefix must be checked by the
// caller BEFORE calling this function; ParsePrivatePrefix itself does not
// special-case it.
func ParsePrivatePrefix(text string) (name, body string, ok bool) {
	if !strings.HasPrefix(text, "@") {
		return "", "", false
	}
	rest := text[1:]

	if strings.HasPrefix(rest, `"`) {
		closing := strings.Index(rest[1:], `"`)
		if closing < 0 {
			return "", "", false
		}
		closing++ // index into rest
		name = rest[1:closing]
		after := rest[closing+1:]
		if !strings.HasPrefix(after, " ") {
			return "", "", false
		}
		body = after[1:]
		if name == "" || body == "" {
			return "", "", false
		}
		return name, body, true
	}

	sp := strings.Index(rest, " ")
	if sp < 0 {
		return "", "", false
	}
	name = rest[:sp]
	body = rest[sp+1:]
	if name == "" || body == "" {
		return "", "", false
	}
	return name, body, true
}
