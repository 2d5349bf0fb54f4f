// Package dateparse resolves natural-language date references from free
// text into concrete dates. Resolution never fails: when nothing in the
// text looks like a date, the reference instant is returned unchanged.
//
// Ambiguous numeric dates such as "03/04/2025" are parsed month-first
// (the upstream parser's US-style default).
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	upstream "github.com/araddon/dateparse"
)

// relativePhrases maps literal substrings to day offsets. The slice is
// ordered longest phrase first so that "day before yesterday" wins over the
// embedded "yesterday"; iteration order is what keeps matches deterministic.
var relativePhrases = []struct {
	phrase string
	days   int
}{
	{"day before yesterday", -2},
	{"day after tomorrow", 2},
	{"yesterday", -1},
	{"tomorrow", 1},
	{"today", 0},
}

// offsetPattern matches "last 3 weeks", "next 2 months" and friends.
var offsetPattern = regexp.MustCompile(`(last|next) (\d+) (day|week|month)s?`)

// explicitPattern matches D-M-YY(YY) and YYYY-M-D numeric dates with - or /
// separators.
var explicitPattern = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}`)

// Resolve extracts a calendar date from text relative to ref. Matching is
// case-insensitive and works through, in order: relative keyword phrases,
// last/next numeric offsets, explicit numeric dates, and a sliding 3-word
// window of general-purpose parsing. Months are approximated as 30 days.
func Resolve(text string, ref time.Time) time.Time {
	if t, ok := Match(text, ref); ok {
		return t
	}
	return ref
}

// Match runs the same pipeline as Resolve but reports whether anything in
// the text actually looked like a date, for callers with their own fallback.
func Match(text string, ref time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	for _, rel := range relativePhrases {
		if strings.Contains(lower, rel.phrase) {
			return ref.AddDate(0, 0, rel.days), true
		}
	}

	if m := offsetPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			days := n
			switch m[3] {
			case "week":
				days = n * 7
			case "month":
				// 30-day month approximation, kept deliberately.
				days = n * 30
			}
			if m[1] == "last" {
				days = -days
			}
			return ref.AddDate(0, 0, days), true
		}
	}

	if m := explicitPattern.FindString(lower); m != "" {
		if t, ok := ParseGeneral(m); ok {
			return t, true
		}
		// A numeric date that fails to parse ends the scan; the window
		// fallback is not attempted.
		return time.Time{}, false
	}

	// Slide a 3-word window across the text; the first window that parses
	// as a date wins, parse failures are skipped per window.
	words := strings.Fields(lower)
	for i := 0; i+3 <= len(words); i++ {
		candidate := strings.Join(words[i:i+3], " ")
		if t, ok := ParseGeneral(candidate); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseGeneral attempts general-purpose date parsing of s. The boolean
// result is false when s is empty or unparsable; no error is surfaced
// because callers substitute documented fallbacks instead.
func ParseGeneral(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := upstream.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
