package sql

import (
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // The value that was checked
}

// CheckForInjection runs libinjection over value. It returns nil when the
// value is clean.
func CheckForInjection(value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}

var unsafeSearchChars = regexp.MustCompile(`[^\p{L}\p{N} \-]+`)

// SanitizeSearchTerm reduces a user-supplied keyword to letters, digits,
// spaces and hyphens so it can be embedded in a LIKE pattern. It returns
// false when nothing usable remains or libinjection flags the raw term.
func SanitizeSearchTerm(term string) (string, bool) {
	if CheckForInjection(term) != nil {
		return "", false
	}
	cleaned := strings.TrimSpace(unsafeSearchChars.ReplaceAllString(term, " "))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" || len(cleaned) > 64 {
		return "", false
	}
	return cleaned, true
}
