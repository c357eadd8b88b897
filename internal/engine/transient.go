package engine

import "regexp"

// transientPattern matches the resource exhaustion class of failures after
// which a fresh session usually succeeds.
var transientPattern = regexp.MustCompile(
	`(?i)out of memory|\boom\b|device (was )?lost|resource[ _]exhausted|` +
		`insufficient memory`,
)

// IsTransient reports whether err belongs to the retryable failure class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	return transientPattern.MatchString(err.Error())
}
