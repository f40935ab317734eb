package categorizer

import (
	"context"

	"vouchercat/internal/models"
)

// WaitObserver is told true before each rate-limit backoff and false once a
// classification call has settled. It may be called from many goroutines.
type WaitObserver func(waiting bool)

// ProductCategorizer assigns a catalog leaf to a product. Categorize never
// fails: problems are reported as an unknown category with a diagnostic comment.
type ProductCategorizer interface {
	Categorize(ctx context.Context, product models.ProductInput, language string, onWaiting WaitObserver) models.CategoryOutput
}

// LanguageDetector guesses the catalog language of a CSV sample. It returns
// models.LanguageUnknown when it cannot tell.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, sample string) string
}
