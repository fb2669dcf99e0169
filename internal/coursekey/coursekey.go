// Package coursekey parses and normalizes raw course codes.
//
// A course code has three components: an alphabetic department, a
// four-character number segment (digit, two alphanumerics, digit), and an
// optional single-letter suffix. "socwork-2a06a" canonicalizes to
// "SOCWORK-2A06A"; its channel form drops the suffix: "socwork-2a06".
package coursekey

import (
	"fmt"
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^\s*([A-Za-z]+)[\s\-_]*(\d[A-Za-z0-9]{2}\d)([A-Za-z])?\s*$`)

// Code is a parsed course code.
type Code struct {
	Raw        string
	Department string
	Number     string
	Suffix     string
}

// Parse extracts the department, number, and optional suffix from a raw
// course code. The components are normalized to uppercase.
func Parse(raw string) (Code, error) {
	match := codePattern.FindStringSubmatch(raw)
	if match == nil {
		return Code{}, fmt.Errorf("invalid course code format: %q", raw)
	}
	return Code{
		Raw:        raw,
		Department: strings.ToUpper(match[1]),
		Number:     strings.ToUpper(match[2]),
		Suffix:     strings.ToUpper(match[3]),
	}, nil
}

// Canonical returns the uppercase hyphenated form including any suffix,
// e.g. "SOCWORK-2A06A".
func (c Code) Canonical() string {
	return c.Department + "-" + c.Number + c.Suffix
}

// ChannelName returns the lowercase hyphenated form without the suffix,
// suitable for channel naming, e.g. "socwork-2a06".
func (c Code) ChannelName() string {
	return strings.ToLower(c.Department + "-" + c.Number)
}
