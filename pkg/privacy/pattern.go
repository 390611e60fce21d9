// Package privacy implements the deterministic PII predicate, the
// anonymiser, and the privacy-tiered router between the local embedder and
// an external embedding API.
package privacy

import "regexp"

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ssnPattern      = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	apiKeyPattern   = regexp.MustCompile(`(?i)api[ _-]?key\s*[:=]\s*\S+`)
	tokenPattern    = regexp.MustCompile(`(?i)\btoken\s*[:=]\s*\S+`)
	passwordPattern = regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*\S+`)

	sensitiveSubstrings = []*regexp.Regexp{
		regexp.MustCompile(`(?i)password`),
		regexp.MustCompile(`(?i)api key`),
		regexp.MustCompile(`(?i)secret`),
		regexp.MustCompile(`(?i)token`),
	}
)

// IsSensitive reports whether text matches the sensitive-text predicate:
// an email-like pattern, an SSN-like pattern, or a case-insensitive
// occurrence of "password", "api key", "secret", or "token".
func IsSensitive(text string) bool {
	if emailPattern.MatchString(text) || ssnPattern.MatchString(text) {
		return true
	}
	for _, re := range sensitiveSubstrings {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Anonymise replaces recognised PII in text with placeholder tokens. It is
// idempotent: Anonymise(Anonymise(t)) == Anonymise(t), since every
// placeholder ([EMAIL], [SSN], [API_KEY], [TOKEN], [PASSWORD]) matches none
// of the patterns it was produced by.
//
// Order matters: api key / token / password are replaced before the bare
// email/SSN patterns so that e.g. "token: a@b.com" becomes [TOKEN] rather
// than "token: [EMAIL]".
func Anonymise(text string) string {
	out := apiKeyPattern.ReplaceAllString(text, "[API_KEY]")
	out = tokenPattern.ReplaceAllString(out, "[TOKEN]")
	out = passwordPattern.ReplaceAllString(out, "[PASSWORD]")
	out = emailPattern.ReplaceAllString(out, "[EMAIL]")
	out = ssnPattern.ReplaceAllString(out, "[SSN]")
	return out
}
