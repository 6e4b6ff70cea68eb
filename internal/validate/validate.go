// Package validate holds the pure field validators used during answer
// collection. Validators trim their input, return false on bad input and
// never produce an error.
package validate

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	digitRe = regexp.MustCompile(`^\d+$`)
	dobRes  = []*regexp.Regexp{
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
		regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	}
)

// Phone accepts a 10-digit Indian phone number, optionally prefixed with
// +91 or 91. Spaces and hyphens are ignored.
func Phone(text string) bool {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")
	// Strip a leading country code only when it leaves 10 digits behind.
	if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	return len(s) == 10 && digitRe.MatchString(s)
}

// Email accepts a local@domain.tld shape with a 2+ letter TLD.
func Email(text string) bool {
	return emailRe.MatchString(strings.TrimSpace(text))
}

// PinCode accepts exactly 6 digits after stripping spaces.
func PinCode(text string) bool {
	s := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	return len(s) == 6 && digitRe.MatchString(s)
}

// DateOfBirth accepts DD/MM/YYYY, DD-MM-YYYY or YYYY-MM-DD. The check is
// format-only: calendrically impossible dates like 31/02/2099 pass.
func DateOfBirth(text string) bool {
	s := strings.TrimSpace(text)
	for _, re := range dobRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
