package versions

import (
	"regexp"
	"strconv"
	"strings"
)

// Sentinel is returned by resolution when no version could be determined.
const Sentinel = "0.0.0"

var (
	headerPattern = regexp.MustCompile(`@version\s+(\d+(?:\.\d+)*)`)
	dottedPattern = regexp.MustCompile(`^\d+(?:\.\d+)*$`)
)

// IsNewer reports whether a is strictly newer than b. Components are compared
// as integers left to right; a missing trailing component counts as 0, so
// "1.2" and "1.2.0" are equal and equal versions are never newer.
func IsNewer(a, b string) bool {
	aParts := strings.Split(strings.TrimPrefix(strings.TrimSpace(a), "v"), ".")
	bParts := strings.Split(strings.TrimPrefix(strings.TrimSpace(b), "v"), ".")

	n := len(aParts)
	if len(bParts) > n {
		n = len(bParts)
	}

	for i := 0; i < n; i++ {
		aNum := component(aParts, i)
		bNum := component(bParts, i)

		switch {
		case aNum > bNum:
			return true
		case aNum < bNum:
			return false
		}
	}

	return false // same version
}

// Extract pulls the dotted-numeric version out of an "@version x.y.z" header.
func Extract(content []byte) (string, bool) {
	m := headerPattern.FindSubmatch(content)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// IsDotted reports whether v is a dotted-numeric version ("2", "2.10", "2.10.0").
func IsDotted(v string) bool {
	return dottedPattern.MatchString(v)
}

// component parses the leading digits of parts[i]; absent or non-numeric is 0.
func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	s := parts[i]
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
