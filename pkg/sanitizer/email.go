package sanitizer

import "strings"

// NormalizeEmail trims and lowercases an address and collapses repeated
// dots in the local part. Values without exactly one "@" are only trimmed
// and lowercased.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}

	local = strings.Trim(dotRegex.ReplaceAllString(local, "."), ".")
	return local + "@" + domain
}

// ExtractEmailDomain returns the lowercased domain of an address, or "" if
// it does not contain exactly one "@".
func ExtractEmailDomain(email string) string {
	_, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || strings.Contains(domain, "@") {
		return ""
	}
	return strings.ToLower(domain)
}
