package services

import (
	"regexp"
	"strings"

	"vouchercat/internal/catalog"
	"vouchercat/internal/models"
)

// catalogIDPattern matches the ID the model cites after "Chosen" or
// "considered". The optional closing parenthesis is captured so that IDs
// written like "(considered 12)" can be left alone.
var catalogIDPattern = regexp.MustCompile(`\b(Chosen|considered)(\s+)(\d{2,})(\)?)`)

// NormalizeComment replaces cited catalog IDs with their display names.
// IDs shorter than two digits, directly followed by ")", or absent from cat
// are kept as written.
func NormalizeComment(comment string, cat *catalog.Catalog) string {
	if comment == "" || cat == nil {
		return comment
	}
	return catalogIDPattern.ReplaceAllStringFunc(comment, func(match string) string {
		m := catalogIDPattern.FindStringSubmatch(match)
		if m[4] != "" {
			return match
		}
		name, ok := cat.Name(m[3])
		if !ok {
			return match
		}
		return m[1] + m[2] + name
	})
}

// withFallbackNote appends the fallback-language note to comment.
func withFallbackNote(comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return models.LanguageFallbackNote
	}
	return comment + " " + models.LanguageFallbackNote
}
