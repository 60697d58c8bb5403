// Package icons selects the glyphs the dashboard draws with. Serial
// consoles and minimal terminals get plain ASCII.
package icons

import (
	"os"
	"strings"
)

// IconSet contains the glyphs used in the dashboard
type IconSet struct {
	// Status
	Dot     string
	Cross   string
	Warning string

	// Navigation
	ArrowUp   string
	ArrowDown string
	Pointer   string
}

// Unicode is the default set for UTF-8 terminals
var Unicode = IconSet{
	Dot:     "●",
	Cross:   "✗",
	Warning: "▲",

	ArrowUp:   "↑",
	ArrowDown: "↓",
	Pointer:   "›",
}

// ASCII is a minimal fallback for terminals without Unicode
var ASCII = IconSet{
	Dot:     "*",
	Cross:   "x",
	Warning: "!",

	ArrowUp:   "^",
	ArrowDown: "v",
	Pointer:   ">",
}

// IsZero reports whether the set has no glyphs.
func (i IconSet) IsZero() bool {
	return i == IconSet{}
}

// OrDefault returns i, or Unicode when i is empty.
func (i IconSet) OrDefault() IconSet {
	if i.IsZero() {
		return Unicode
	}
	return i
}

// HasUnicode detects if the terminal supports Unicode
func HasUnicode() bool {
	for _, name := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := strings.ToLower(os.Getenv(name))
		if v == "" {
			continue
		}
		// The first locale variable that is set decides.
		return strings.Contains(v, "utf-8") || strings.Contains(v, "utf8")
	}

	switch os.Getenv("TERM") {
	case "linux", "vt100", "vt102", "vt220", "dumb", "":
		return false
	}
	return true
}

// Detect returns the appropriate icon set for the current terminal
func Detect() IconSet {
	// Explicit preference via env var
	switch strings.ToLower(os.Getenv("EDGEMON_ICONS")) {
	case "unicode":
		return Unicode
	case "ascii":
		return ASCII
	}
	if HasUnicode() {
		return Unicode
	}
	return ASCII
}
