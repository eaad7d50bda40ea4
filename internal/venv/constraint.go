package venv

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Constraint is a parsed interpreter version requirement. Supported
// shapes: "3.10" (exact major.minor), "3.10+" (minimum), "3.9-3.12"
// (inclusive range), ">=3.10", "<=3.11".
type Constraint struct {
	Raw string
	Min string // empty = unbounded
	Max string // empty = unbounded
	// Exact restricts to the Min major.minor series.
	Exact bool
}

var (
	minPlusRe = regexp.MustCompile(`^(\d+\.\d+)\+$`)
	rangeRe   = regexp.MustCompile(`^(\d+\.\d+)-(\d+\.\d+)$`)
	gteRe     = regexp.MustCompile(`^>=(\d+\.\d+)$`)
	lteRe     = regexp.MustCompile(`^<=(\d+\.\d+)$`)
	exactRe   = regexp.MustCompile(`^(\d+\.\d+)$`)
)

// ParseConstraint parses a constraint string.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	switch {
	case minPlusRe.MatchString(s):
		return Constraint{Raw: s, Min: minPlusRe.FindStringSubmatch(s)[1]}, nil
	case rangeRe.MatchString(s):
		m := rangeRe.FindStringSubmatch(s)
		if compareVersions(m[1], m[2]) > 0 {
			return Constraint{}, fmt.Errorf("venv: invalid range %q: lower bound above upper", s)
		}
		return Constraint{Raw: s, Min: m[1], Max: m[2]}, nil
	case gteRe.MatchString(s):
		return Constraint{Raw: s, Min: gteRe.FindStringSubmatch(s)[1]}, nil
	case lteRe.MatchString(s):
		return Constraint{Raw: s, Max: lteRe.FindStringSubmatch(s)[1]}, nil
	case exactRe.MatchString(s):
		return Constraint{Raw: s, Min: s, Exact: true}, nil
	default:
		return Constraint{}, fmt.Errorf("venv: unrecognized version constraint %q", s)
	}
}

// Satisfies reports whether a concrete interpreter version (e.g.
// "3.11.4") meets the constraint.
func (c Constraint) Satisfies(version string) bool {
	if c.Exact {
		return version == c.Min || strings.HasPrefix(version, c.Min+".")
	}
	if c.Min != "" && compareVersions(version, c.Min) < 0 {
		return false
	}
	if c.Max != "" && compareMinor(version, c.Max) > 0 {
		return false
	}
	return true
}

func (c Constraint) String() string { return c.Raw }

func parseParts(v string) []int {
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return parts
		}
		parts = append(parts, n)
	}
	return parts
}

func compareVersions(a, b string) int {
	pa, pb := parseParts(a), parseParts(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		va, vb := 0, 0
		if i < len(pa) {
			va = pa[i]
		}
		if i < len(pb) {
			vb = pb[i]
		}
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// compareMinor compares a full version against a major.minor bound,
// truncating the version so "3.11.4" does not exceed a "3.11" maximum.
func compareMinor(version, bound string) int {
	vp := parseParts(version)
	if len(vp) > 2 {
		vp = vp[:2]
	}
	trimmed := make([]string, len(vp))
	for i, n := range vp {
		trimmed[i] = strconv.Itoa(n)
	}
	return compareVersions(strings.Join(trimmed, "."), bound)
}
