package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day-count units. Months and years are approximate with no calendar correction.
const (
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

// ErrInvalidAge indicates an age expression could not be parsed.
var ErrInvalidAge = errors.New("invalid age expression")

// agePattern matches expressions like "> 30 days" or "<2 weeks".
var agePattern = regexp.MustCompile(`(?i)^\s*([<>])\s*([0-9]+)\s*(days?|weeks?|months?|years?)\s*$`)

// AgeComparator compares the age of a timestamp against a day threshold.
type AgeComparator struct {
	// Older is true for ">" (older than Days) and false for "<".
	Older bool

	// Days is the threshold in whole days.
	Days int
}

// ParseAge parses `("<"|">") <int> (days|weeks|months|years)`.
func ParseAge(s string) (AgeComparator, error) {
	m := agePattern.FindStringSubmatch(s)
	if m == nil {
		return AgeComparator{}, fmt.Errorf("%w: %q", ErrInvalidAge, s)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return AgeComparator{}, fmt.Errorf("%w: %q", ErrInvalidAge, s)
	}

	unit := strings.TrimSuffix(strings.ToLower(m[3]), "s")
	switch unit {
	case "week":
		n *= daysPerWeek
	case "month":
		n *= daysPerMonth
	case "year":
		n *= daysPerYear
	}

	return AgeComparator{Older: m[1] == ">", Days: n}, nil
}

// Matches reports whether ts satisfies the comparator at now. A zero
// timestamp never matches.
func (a AgeComparator) Matches(ts, now time.Time) bool {
	if ts.IsZero() {
		return false
	}
	days := now.Sub(ts).Hours() / 24
	if a.Older {
		return days > float64(a.Days)
	}
	return days < float64(a.Days)
}

// String renders the comparator back to its expression form.
func (a AgeComparator) String() string {
	op := "<"
	if a.Older {
		op = ">"
	}
	return fmt.Sprintf("%s %d days", op, a.Days)
}
