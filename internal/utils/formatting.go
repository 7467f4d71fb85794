package utils

import (
	"regexp"
	"unicode/utf8"
)

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func StripANSI(input string) string {
	return ansiSeq.ReplaceAllString(input, "")
}

// VisibleWidth counts the runes left once color codes are removed.
func VisibleWidth(s string) int {
	return utf8.RuneCountInString(StripANSI(s))
}

func GetMaxWidth(lines []string) int {
	widest := 0
	for _, line := range lines {
		widest = max(widest, VisibleWidth(line))
	}
	return widest
}
