package sanitizer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxDisplayNameLength bounds names copied from third-party profiles.
const maxDisplayNameLength = 256

// NormalizeDisplayName makes a provider-supplied name safe to store and
// compare: control characters are dropped, whitespace is collapsed, the
// result is NFC-normalized and capped at maxDisplayNameLength runes.
func NormalizeDisplayName(name string) string {
	name = RemoveControlChars(name)
	name = SingleLine(name)
	return MaxLength(norm.NFC.String(name), maxDisplayNameLength)
}

// NormalizeProfileEmail is NormalizeEmail for provider-supplied addresses.
// Values without exactly one "@" are dropped instead of passed through.
func NormalizeProfileEmail(email string) string {
	email = NormalizeEmail(RemoveControlChars(email))
	if email == "" || strings.HasPrefix(email, "@") || ExtractEmailDomain(email) == "" {
		return ""
	}
	return email
}
