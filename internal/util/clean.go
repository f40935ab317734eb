package util

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxBinaryCheckBytes = 512

const utf8BOM = "\ufeff"

var charReplacer = strings.NewReplacer(
	"\u00a0", " ", "\u2018", "'", "\u2019", "'", "\u201C", "\"",
	"\u201D", "\"", "\u2013", "-", "\u2014", "--", "\u2026", "...",
)

// IsLikelyBinary reports whether the first bytes of path contain a NUL byte.
func IsLikelyBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, maxBinaryCheckBytes)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	return bytes.Contains(buffer[:n], []byte{0}), nil
}

// CleanField normalises a free-text CSV value before it is placed in a prompt:
// a leading BOM is dropped, invalid UTF-8 and control characters are removed,
// typographic punctuation is flattened and surrounding space is trimmed.
func CleanField(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = charReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// CleanHeader strips a BOM and surrounding space from a header name.
func CleanHeader(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, utf8BOM))
}
