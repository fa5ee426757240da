package logic

import "unicode/utf8"

// Name is a sensor name bounded to MaxNameLen-1 bytes.
// Longer names are cut at the last rune boundary that fits.
type Name struct {
	s         string
	truncated bool
}

// NewName bounds s. Truncation is not an error; see Truncated.
func NewName(s string) Name {
	limit := MaxNameLen - 1
	if len(s) <= limit {
		return Name{s: s}
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return Name{s: s[:cut], truncated: true}
}

func (n Name) String() string { return n.s }

// Truncated reports whether the original text did not fit.
func (n Name) Truncated() bool { return n.truncated }
