package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"vouchercat/internal/models"
	"vouchercat/pkg/categorizer"
)

// ClassifyBatch classifies every product concurrently with at most
// concurrency calls in flight. Result i belongs to products[i]. A product
// that cannot be admitted because ctx ended is reported as unknown.
func ClassifyBatch(ctx context.Context, cat categorizer.ProductCategorizer, products []models.ProductInput, language string, concurrency int, onWaiting categorizer.WaitObserver) []models.CategoryOutput {
	if concurrency < 1 {
		concurrency = 1
	}
	gate := semaphore.NewWeighted(int64(concurrency))
	results := make([]models.CategoryOutput, len(products))

	var wg sync.WaitGroup
	for i, p := range products {
		wg.Add(1)
		go func(i int, p models.ProductInput) {
			defer wg.Done()
			if err := gate.Acquire(ctx, 1); err != nil {
				results[i] = models.Unknown(fmt.Sprintf("Unexpected error during categorization: %v", err))
				return
			}
			defer gate.Release(1)
			results[i] = cat.Categorize(ctx, p, language, onWaiting)
		}(i, p)
	}
	wg.Wait()
	return results
}
