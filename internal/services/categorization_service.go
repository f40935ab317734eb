package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/catalog"
	"vouchercat/internal/costtracker"
	"vouchercat/internal/csvio"
	"vouchercat/internal/models"
	"vouchercat/pkg/categorizer"
)

// ProgressFunc receives the number of rows written so far and the estimated total.
type ProgressFunc func(processed, total int)

// Observer receives run notifications. Either field may be nil. OnWaiting
// is called from the classification goroutines.
type Observer struct {
	OnProgress ProgressFunc
	OnWaiting  categorizer.WaitObserver
}

// Options tune a run.
type Options struct {
	ChunkSize       int
	Concurrency     int
	Encodings       []csvio.Encoding
	RequiredColumns []string
	SampleLines     int
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       50,
		Concurrency:     50,
		Encodings:       csvio.DefaultEncodings,
		RequiredColumns: models.RequiredColumns,
		SampleLines:     10,
	}
}

// RunRecorder persists a finished run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.Run) error
}

// CategorizationService classifies every row of a CSV file and writes the
// results next to it.
type CategorizationService struct {
	Categorizer categorizer.ProductCategorizer
	Detector    categorizer.LanguageDetector
	Catalogs    *catalog.Registry
	Options     Options

	// Optional.
	History     RunRecorder
	CostTracker costtracker.CostTracker
	ModelName   string
}

func NewCategorizationService(cat categorizer.ProductCategorizer, det categorizer.LanguageDetector, catalogs *catalog.Registry, opts Options) *CategorizationService {
	defaults := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if len(opts.Encodings) == 0 {
		opts.Encodings = defaults.Encodings
	}
	if len(opts.RequiredColumns) == 0 {
		opts.RequiredColumns = defaults.RequiredColumns
	}
	if opts.SampleLines <= 0 {
		opts.SampleLines = defaults.SampleLines
	}
	return &CategorizationService{
		Categorizer: cat,
		Detector:    det,
		Catalogs:    catalogs,
		Options:     opts,
	}
}

// ProcessFile runs the whole pipeline for inputPath. Input problems
// (encoding, missing columns) fail before any model call or output write.
func (s *CategorizationService) ProcessFile(ctx context.Context, inputPath string, obs Observer) (*models.RunResult, error) {
	return s.ProcessFileAs(ctx, uuid.NewString(), inputPath, obs)
}

// ProcessFileAs is ProcessFile with a caller-chosen run id, used when the run
// was registered before it started (queued jobs).
func (s *CategorizationService) ProcessFileAs(ctx context.Context, runID, inputPath string, obs Observer) (*models.RunResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &models.RunResult{
		RunID:      runID,
		InputPath:  inputPath,
		OutputPath: csvio.OutputPath(inputPath),
		StartedAt:  time.Now().UTC(),
	}
	ctx = costtracker.WithRunID(ctx, result.RunID)
	logger := log.WithFields(log.Fields{"run_id": result.RunID, "input": inputPath})
	logger.Info("Starting categorization run")

	err := s.process(ctx, result, obs, logger)
	result.FinishedAt = time.Now().UTC()
	if s.CostTracker != nil {
		result.CostUSD, _ = s.CostTracker.RunCost(ctx, result.RunID)
	}
	s.record(context.WithoutCancel(ctx), result, err, logger)

	if err != nil {
		logger.WithError(err).Error("Categorization run failed")
		return nil, err
	}
	logger.WithFields(log.Fields{
		"total":       result.Summary.Total,
		"categorized": result.Summary.Categorized,
		"unknown":     result.Summary.Unknown,
		"output":      result.OutputPath,
	}).Info("Categorization run completed")
	return result, nil
}

func (s *CategorizationService) process(ctx context.Context, result *models.RunResult, obs Observer, logger *log.Entry) error {
	path := result.InputPath

	enc, err := csvio.DetectEncoding(path, s.Options.Encodings...)
	if err != nil {
		return err
	}
	result.Encoding = enc.Name

	columns, err := csvio.GetColumns(path, enc)
	if err != nil {
		return err
	}
	if err := csvio.ValidateColumns(columns, s.Options.RequiredColumns); err != nil {
		return err
	}

	sample, err := csvio.SampleLines(path, enc, s.Options.SampleLines)
	if err != nil {
		return err
	}
	language := s.Detector.DetectLanguage(ctx, sample)
	if !models.IsSupportedLanguage(language) {
		logger.Warnf("Language not detected, falling back to %s", models.FallbackLanguage)
		language = models.FallbackLanguage
		result.LanguageFallback = true
	}
	result.Language = language

	cat, err := s.Catalogs.Get(language)
	if err != nil {
		return err
	}

	total, err := csvio.CountRows(path, enc)
	if err != nil {
		return err
	}
	outputColumns := withOutputColumns(columns)

	processed := 0
	for offset, first := 0, true; ; first = false {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled after %d rows: %w", processed, err)
		}

		rows, err := csvio.ReadChunk(path, offset, s.Options.ChunkSize, enc)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			if first {
				// Header-only input still produces a header-only output.
				if err := csvio.WriteChunk(result.OutputPath, nil, true, enc, outputColumns); err != nil {
					return err
				}
			}
			break
		}

		products := make([]models.ProductInput, len(rows))
		for i, row := range rows {
			products[i] = csvio.ExtractProduct(row)
		}
		logger.Debugf("Classifying rows %d-%d", offset, offset+len(rows)-1)
		outputs := ClassifyBatch(ctx, s.Categorizer, products, language, s.Options.Concurrency, obs.OnWaiting)

		for i, row := range rows {
			applyResult(row, outputs[i], cat, result.LanguageFallback)
			result.Summary.Add(outputs[i])
		}

		if err := csvio.WriteChunk(result.OutputPath, rows, first, enc, outputColumns); err != nil {
			return err
		}
		offset += len(rows)
		processed += len(rows)
		if obs.OnProgress != nil {
			obs.OnProgress(processed, max(total, processed))
		}
	}
	return nil
}

// withOutputColumns appends the classification columns the input lacks.
func withOutputColumns(columns []string) []string {
	out := append([]string(nil), columns...)
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range models.OutputColumns {
		if !present[c] {
			out = append(out, c)
		}
	}
	return out
}

func applyResult(row models.Row, out models.CategoryOutput, cat *catalog.Catalog, fallback bool) {
	row[models.ColumnCategoryID] = out.Category
	row[models.ColumnCategoryURL] = ""
	row[models.ColumnCategoryName] = ""
	if entry, ok := cat.Lookup(out.Category); ok {
		row[models.ColumnCategoryURL] = entry.URL
		row[models.ColumnCategoryName] = entry.Name
	}

	comment := NormalizeComment(out.Comment, cat)
	if fallback {
		comment = withFallbackNote(comment)
	}
	row[models.ColumnComment] = comment
}

func (s *CategorizationService) record(ctx context.Context, result *models.RunResult, runErr error, logger *log.Entry) {
	if s.History == nil {
		return
	}
	run := &models.Run{
		ID:          result.RunID,
		InputPath:   result.InputPath,
		OutputPath:  result.OutputPath,
		Language:    result.Language,
		Encoding:    result.Encoding,
		Model:       s.ModelName,
		Status:      models.JobStatusCompleted,
		Total:       result.Summary.Total,
		Categorized: result.Summary.Categorized,
		Unknown:     result.Summary.Unknown,
		CostUSD:     result.CostUSD,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	if runErr != nil {
		run.Status = models.JobStatusFailed
		run.Error = runErr.Error()
	}
	if err := s.History.RecordRun(ctx, run); err != nil {
		logger.WithError(err).Warn("Failed to record run history")
	}
}
