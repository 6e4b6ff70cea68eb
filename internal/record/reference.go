package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RefPrefix is the fixed prefix of every reference number.
const RefPrefix = "ODCC"

var refRe = regexp.MustCompile(`^ODCC-\d{8}-\d{5}$`)

// FormatReference derives the reference number from a record's id and
// creation date: ODCC-YYYYMMDD-NNNNN. Deterministic, so re-deriving it
// for the same record always yields the same value.
func FormatReference(id uint, created time.Time) string {
	return fmt.Sprintf("%s-%s-%05d", RefPrefix, created.Format("20060102"), id)
}

// MatchReference reports whether text looks like a reference number.
// Matching is case-insensitive; use NormalizeReference before lookups.
func MatchReference(text string) bool {
	return refRe.MatchString(NormalizeReference(text))
}

// NormalizeReference upper-cases and trims a candidate reference number.
func NormalizeReference(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}
