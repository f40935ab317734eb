package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vouchercat/internal/catalog"
	"vouchercat/internal/csvio"
	"vouchercat/internal/models"
	"vouchercat/pkg/categorizer"
)

// stubCategorizer answers from a fixed function and counts calls.
type stubCategorizer struct {
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
	answer   func(p models.ProductInput) models.CategoryOutput
}

func (s *stubCategorizer) Categorize(ctx context.Context, p models.ProductInput, language string, onWaiting categorizer.WaitObserver) models.CategoryOutput {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if onWaiting != nil {
		onWaiting(false)
	}
	return s.answer(p)
}

// byName classifies "Spa*" rows as 292 and everything else as unknown.
func byName(p models.ProductInput) models.CategoryOutput {
	if strings.HasPrefix(p.Name, "Spa") {
		return models.CategoryOutput{Category: "292", Comment: "Chosen 292 (0.85); considered 299 (0.10) but no food."}
	}
	return models.Unknown("Unknown (0.30); considered 299 (0.20) but vague.")
}

type mockDetector struct{ mock.Mock }

func (m *mockDetector) DetectLanguage(ctx context.Context, sample string) string {
	return m.Called(ctx, sample).String(0)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) RecordRun(ctx context.Context, run *models.Run) error {
	return m.Called(ctx, run).Error(0)
}

func testRegistry() *catalog.Registry {
	return catalog.NewRegistry(
		catalog.New("lt",
			map[string]string{"292": "SPA or massages", "299": "Dining"},
			map[string]string{"292": "https://example.lt/292"}),
		catalog.New("lv",
			map[string]string{"292": "SPA LV"},
			map[string]string{"292": "https://example.lv/292"}),
	)
}

func writeInput(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("ProgramName,ProgramDescription,About_Place,Price\n")
	for i := 0; i < rows; i++ {
		name := "Other"
		if i%2 == 0 {
			name = "Spa"
		}
		fmt.Fprintf(&b, "%s %d,Description %d,Vilnius,%d\n", name, i, i, 10+i)
	}
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func newService(cat categorizer.ProductCategorizer, det categorizer.LanguageDetector, chunkSize, concurrency int) *CategorizationService {
	return NewCategorizationService(cat, det, testRegistry(), Options{ChunkSize: chunkSize, Concurrency: concurrency})
}

func TestProcessFile_RowsColumnsAndSummary(t *testing.T) {
	input := writeInput(t, 7)
	cat := &stubCategorizer{answer: byName}
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt").Once()

	var progress [][2]int
	svc := newService(cat, det, 3, 2)
	res, err := svc.ProcessFile(context.Background(), input, Observer{
		OnProgress: func(processed, total int) { progress = append(progress, [2]int{processed, total}) },
	})
	require.NoError(t, err)
	det.AssertExpectations(t)

	assert.Equal(t, "lt", res.Language)
	assert.False(t, res.LanguageFallback)
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "vouchers_categorized.csv"), res.OutputPath)
	assert.Equal(t, models.Summary{Total: 7, Categorized: 4, Unknown: 3}, res.Summary)
	assert.Equal(t, res.Summary.Total, res.Summary.Categorized+res.Summary.Unknown)
	assert.EqualValues(t, 7, cat.calls.Load())

	// ceil(7/3) chunks of sizes 3, 3, 1
	assert.Equal(t, [][2]int{{3, 7}, {6, 7}, {7, 7}}, progress)

	records := readOutput(t, res.OutputPath)
	require.Len(t, records, 8)
	assert.Equal(t, []string{"ProgramName", "ProgramDescription", "About_Place", "Price",
		"category_id", "category_url", "category_name", "comment"}, records[0])

	assert.Equal(t, []string{"Spa 0", "Description 0", "Vilnius", "10",
		"292", "https://example.lt/292", "SPA or massages",
		"Chosen SPA or massages (0.85); considered Dining (0.10) but no food."}, records[1])
	assert.Equal(t, []string{"Other 1", "Description 1", "Vilnius", "11",
		"unknown", "", "", "Unknown (0.30); considered Dining (0.20) but vague."}, records[2])
	assert.Equal(t, "Spa 6", records[7][0])
}

func TestProcessFile_Deterministic(t *testing.T) {
	input := writeInput(t, 5)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt")
	svc := newService(&stubCategorizer{answer: byName}, det, 2, 4)

	first, err := svc.ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)
	firstOut := readOutput(t, first.OutputPath)

	second, err := svc.ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)
	assert.Equal(t, firstOut, readOutput(t, second.OutputPath))
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestProcessFile_UnknownLanguageFallsBack(t *testing.T) {
	input := writeInput(t, 3)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("unknown")

	res, err := newService(&stubCategorizer{answer: byName}, det, 50, 50).ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)
	assert.Equal(t, "lt", res.Language)
	assert.True(t, res.LanguageFallback)

	records := readOutput(t, res.OutputPath)
	for _, rec := range records[1:] {
		assert.True(t, strings.HasSuffix(rec[7], models.LanguageFallbackNote), rec[7])
	}
	assert.Equal(t, "https://example.lt/292", records[1][5])
}

func TestProcessFile_UsesDetectedCatalog(t *testing.T) {
	input := writeInput(t, 1)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.HasPrefix(s, "Spa 0,")
	})).Return("lv")

	res, err := newService(&stubCategorizer{answer: byName}, det, 50, 50).ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)
	records := readOutput(t, res.OutputPath)
	assert.Equal(t, "SPA LV", records[1][6])
	assert.Equal(t, "Chosen SPA LV (0.85); considered 299 (0.10) but no food.", records[1][7])
}

func TestProcessFile_MissingColumnsFailsBeforeAnyCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("ProgramName,About_Place\nSpa,Vilnius\n"), 0o600))

	cat := &stubCategorizer{answer: byName}
	det := &mockDetector{}
	rec := &mockRecorder{}
	rec.On("RecordRun", mock.Anything, mock.MatchedBy(func(r *models.Run) bool {
		return r.Status == models.JobStatusFailed && strings.Contains(r.Error, "ProgramDescription")
	})).Return(nil).Once()

	svc := newService(cat, det, 50, 50)
	svc.History = rec
	_, err := svc.ProcessFile(context.Background(), path, Observer{})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
	var missing *models.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"ProgramDescription"}, missing.Missing)

	assert.Zero(t, cat.calls.Load())
	det.AssertNotCalled(t, "DetectLanguage", mock.Anything, mock.Anything)
	rec.AssertExpectations(t)
	_, statErr := os.Stat(csvio.OutputPath(path))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessFile_AllCallsFail(t *testing.T) {
	input := writeInput(t, 6)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt")
	cat := &stubCategorizer{answer: func(models.ProductInput) models.CategoryOutput {
		return models.Unknown("API error (openai): provider request failed")
	}}

	res, err := newService(cat, det, 4, 4).ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Total, res.Summary.Unknown)
	assert.Zero(t, res.Summary.Categorized)

	for _, rec := range readOutput(t, res.OutputPath)[1:] {
		assert.Equal(t, "unknown", rec[4])
		assert.Empty(t, rec[5])
		assert.Equal(t, "API error (openai): provider request failed", rec[7])
	}
}

func TestProcessFile_HeaderOnlyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("ProgramName,ProgramDescription,About_Place\n"), 0o600))
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, "").Return("unknown")

	res, err := newService(&stubCategorizer{answer: byName}, det, 50, 50).ProcessFile(context.Background(), path, Observer{})
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Total)
	records := readOutput(t, res.OutputPath)
	require.Len(t, records, 1)
	assert.Len(t, records[0], 7)
}

func TestProcessFile_PreservesCP1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.csv")
	require.NoError(t, os.WriteFile(path, []byte("ProgramName,ProgramDescription,About_Place\nSpa Caf\xe9,D,P\n"), 0o600))
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt")

	res, err := newService(&stubCategorizer{answer: byName}, det, 50, 50).ProcessFile(context.Background(), path, Observer{})
	require.NoError(t, err)
	assert.Equal(t, "cp1252", res.Encoding)

	raw, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Spa Caf\xe9")
}

func TestProcessFile_RecordsCompletedRun(t *testing.T) {
	input := writeInput(t, 2)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt")
	rec := &mockRecorder{}
	var recorded *models.Run
	rec.On("RecordRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*models.Run)
	}).Return(nil)

	svc := newService(&stubCategorizer{answer: byName}, det, 50, 50)
	svc.History = rec
	svc.ModelName = "gpt-test"
	res, err := svc.ProcessFile(context.Background(), input, Observer{})
	require.NoError(t, err)

	require.NotNil(t, recorded)
	assert.Equal(t, res.RunID, recorded.ID)
	assert.Equal(t, models.JobStatusCompleted, recorded.Status)
	assert.Equal(t, "gpt-test", recorded.Model)
	assert.Equal(t, 2, recorded.Total)
	assert.Equal(t, 1, recorded.Categorized)
}

func TestProcessFileAs_KeepsRunID(t *testing.T) {
	input := writeInput(t, 1)
	det := &mockDetector{}
	det.On("DetectLanguage", mock.Anything, mock.Anything).Return("lt")

	res, err := newService(&stubCategorizer{answer: byName}, det, 50, 50).
		ProcessFileAs(context.Background(), "run-42", input, Observer{})
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
}

func TestClassifyBatch_OrderAndConcurrencyBound(t *testing.T) {
	products := make([]models.ProductInput, 40)
	for i := range products {
		products[i] = models.ProductInput{Name: fmt.Sprintf("p%d", i)}
	}
	cat := &stubCategorizer{answer: func(p models.ProductInput) models.CategoryOutput {
		return models.CategoryOutput{Category: strings.TrimPrefix(p.Name, "p")}
	}}

	var mu sync.Mutex
	waitingEvents := 0
	out := ClassifyBatch(context.Background(), cat, products, "lt", 5, func(bool) {
		mu.Lock()
		waitingEvents++
		mu.Unlock()
	})

	require.Len(t, out, 40)
	for i, o := range out {
		assert.Equal(t, fmt.Sprint(i), o.Category)
	}
	assert.LessOrEqual(t, cat.peak.Load(), int64(5))
	assert.Equal(t, 40, waitingEvents)
}

func TestClassifyBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cat := &stubCategorizer{answer: byName}

	out := ClassifyBatch(ctx, cat, make([]models.ProductInput, 3), "lt", 1, nil)
	require.Len(t, out, 3)
	for _, o := range out {
		assert.True(t, o.IsUnknown())
		assert.Contains(t, o.Comment, "Unexpected error during categorization")
	}
}

func TestNormalizeComment(t *testing.T) {
	cat := catalog.New("lt", map[string]string{"292": "A", "299": "B", "12": "Twelve", "7": "Seven"}, nil)

	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "chosen and considered",
			in:   "Chosen 292 (0.85); considered 299 (0.10) but X.",
			want: "Chosen A (0.85); considered B (0.10) but X.",
		},
		{
			name: "unmapped id stays numeric",
			in:   "Chosen 292 (0.85); considered 555 (0.10) but X.",
			want: "Chosen A (0.85); considered 555 (0.10) but X.",
		},
		{
			name: "single digit ignored",
			in:   "Chosen 7 (0.90)",
			want: "Chosen 7 (0.90)",
		},
		{
			name: "closing parenthesis blocks rewrite",
			in:   "Unknown (considered 12)",
			want: "Unknown (considered 12)",
		},
		{
			name: "unknown comment",
			in:   "Unknown (0.40); considered 12 (0.30) but vague.",
			want: "Unknown (0.40); considered Twelve (0.30) but vague.",
		},
		{
			name: "other words untouched",
			in:   "Picked 292 instead",
			want: "Picked 292 instead",
		},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeComment(tc.in, cat))
		})
	}
}
