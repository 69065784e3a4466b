package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func TrimString(s string, length int) string {
	if len(s) <= length {
		return s
	}

	return s[:length]
}

// LowerFirst lowercases the leading rune so an instruction can be spliced mid sentence
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToLower(r)) + s[size:]
}

// FirstNonEmpty returns the first argument that has content after trimming
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
