package models

import (
	"strings"
	"time"
)

// UnknownCategory is the sentinel category for rows that could not be classified.
const UnknownCategory = "unknown"

// Input columns every CSV must carry.
const (
	ColumnProgramName        = "ProgramName"
	ColumnProgramDescription = "ProgramDescription"
	ColumnAboutPlace         = "About_Place"
)

// Columns appended to every output row.
const (
	ColumnCategoryID   = "category_id"
	ColumnCategoryURL  = "category_url"
	ColumnCategoryName = "category_name"
	ColumnComment      = "comment"
)

// RequiredColumns is the default required input schema.
var RequiredColumns = []string{ColumnProgramName, ColumnProgramDescription, ColumnAboutPlace}

// OutputColumns lists the classification columns in the order they are appended.
var OutputColumns = []string{ColumnCategoryID, ColumnCategoryURL, ColumnCategoryName, ColumnComment}

// Supported catalog languages.
const (
	LanguageLithuanian = "lt"
	LanguageLatvian    = "lv"
	LanguagePolish     = "pl"
	LanguageUnknown    = "unknown"
)

// FallbackLanguage is used when language detection yields LanguageUnknown.
const FallbackLanguage = LanguageLithuanian

// LanguageFallbackNote is appended to every comment of a run that used FallbackLanguage.
const LanguageFallbackNote = "Language not detected; classified with the Lithuanian (lt) tree."

// SupportedLanguages in display order.
var SupportedLanguages = []string{LanguageLithuanian, LanguageLatvian, LanguagePolish}

// IsSupportedLanguage reports whether code names a language with a catalog and prompt.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// ProductInput holds the three free-text fields sent to the model for one row.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CategoryOutput is the classification of one ProductInput.
type CategoryOutput struct {
	Category string `json:"category"`
	Comment  string `json:"comment"`
}

// IsUnknown reports whether the output carries the unknown sentinel.
func (o CategoryOutput) IsUnknown() bool {
	return strings.EqualFold(strings.TrimSpace(o.Category), UnknownCategory)
}

// Unknown builds an unknown output with the given diagnostic comment.
func Unknown(comment string) CategoryOutput {
	return CategoryOutput{Category: UnknownCategory, Comment: comment}
}

// Row is one CSV record keyed by column name.
type Row map[string]string

// Summary counts the outcome of one run.
type Summary struct {
	Total       int `json:"total"`
	Categorized int `json:"categorized"`
	Unknown     int `json:"unknown"`
}

// Add counts one classification result.
func (s *Summary) Add(o CategoryOutput) {
	s.Total++
	if o.IsUnknown() {
		s.Unknown++
	} else {
		s.Categorized++
	}
}

// RunResult is returned by a completed pipeline run.
type RunResult struct {
	RunID            string    `json:"run_id"`
	InputPath        string    `json:"input_path"`
	OutputPath       string    `json:"output_path"`
	Encoding         string    `json:"encoding"`
	Language         string    `json:"language"`
	LanguageFallback bool      `json:"language_fallback"`
	Summary          Summary   `json:"summary"`
	CostUSD          float64   `json:"cost_usd"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Run is a persisted history record of one pipeline run.
type Run struct {
	ID          string    `db:"id" json:"id"`
	InputPath   string    `db:"input_path" json:"input_path"`
	OutputPath  string    `db:"output_path" json:"output_path"`
	Language    string    `db:"language" json:"language"`
	Encoding    string    `db:"encoding" json:"encoding"`
	Model       string    `db:"model" json:"model"`
	Status      string    `db:"status" json:"status"`
	Error       string    `db:"error" json:"error,omitempty"`
	Total       int       `db:"total" json:"total"`
	Categorized int       `db:"categorized" json:"categorized"`
	Unknown     int       `db:"unknown" json:"unknown"`
	CostUSD     float64   `db:"cost_usd" json:"cost_usd"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	FinishedAt  time.Time `db:"finished_at" json:"finished_at"`
}

// UsageSummary aggregates history across runs.
type UsageSummary struct {
	Runs    int64   `json:"runs"`
	Rows    int64   `json:"rows"`
	CostUSD float64 `json:"cost_usd"`
}

// UsageLog is one persisted model call and its cost.
type UsageLog struct {
	ID           int64     `db:"id" json:"id"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	RunID        string    `db:"run_id" json:"run_id,omitempty"`
	Operation    string    `db:"operation" json:"operation"`
	ProviderName string    `db:"provider_name" json:"provider_name"`
	ModelName    string    `db:"model_name" json:"model_name"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Cost         float64   `db:"cost" json:"cost"`
}
