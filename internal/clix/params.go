package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"vouchercat/internal/csvio"
	"vouchercat/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		return PaginationParams{}, fmt.Errorf("--offset must not be negative, got %d", offset)
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseList splits a comma-separated flag value, trimming blanks.
func ParseList(flags *pflag.FlagSet, name string) ([]string, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items, nil
}

// ParseEncodings resolves the --encodings flag. An empty flag returns nil.
func ParseEncodings(flags *pflag.FlagSet) ([]csvio.Encoding, error) {
	names, err := ParseList(flags, "encodings")
	if err != nil {
		return nil, err
	}
	var encodings []csvio.Encoding
	for _, name := range names {
		enc, err := csvio.LookupEncoding(name)
		if err != nil {
			return nil, fmt.Errorf("--encodings: %w", err)
		}
		encodings = append(encodings, enc)
	}
	return encodings, nil
}

// ParseLanguage reads a language flag, defaulting to the fallback language.
func ParseLanguage(flags *pflag.FlagSet, name string) (string, error) {
	lang, err := flags.GetString(name)
	if err != nil {
		return "", err
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return models.FallbackLanguage, nil
	}
	if !models.IsSupportedLanguage(lang) {
		return "", fmt.Errorf("--%s must be one of %v, got %q", name, models.SupportedLanguages, lang)
	}
	return lang, nil
}
