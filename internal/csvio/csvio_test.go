package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouchercat/internal/models"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func sampleCSV(n int) string {
	var b strings.Builder
	b.WriteString("ProgramName,ProgramDescription,About_Place,ExtraCol\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Program %d,Description %d,Place %d,Extra%d\n", i, i, i, i)
	}
	return b.String()
}

func TestDetectEncoding(t *testing.T) {
	t.Run("utf-8", func(t *testing.T) {
		path := writeFile(t, "utf8.csv", []byte("ProgramName\nRīga\n"))
		enc, err := DetectEncoding(path)
		require.NoError(t, err)
		assert.Equal(t, "utf-8", enc.Name)
	})

	t.Run("cp1252", func(t *testing.T) {
		// 0xE9 is é in windows-1252 and an invalid UTF-8 start byte here.
		path := writeFile(t, "cp.csv", []byte("ProgramName\nCaf\xe9 \x80 voucher\n"))
		enc, err := DetectEncoding(path)
		require.NoError(t, err)
		assert.Equal(t, "cp1252", enc.Name)
	})

	t.Run("latin1 when cp1252 has undefined bytes", func(t *testing.T) {
		path := writeFile(t, "latin.csv", []byte("ProgramName\nA\x81B\xe9\n"))
		enc, err := DetectEncoding(path)
		require.NoError(t, err)
		assert.Equal(t, "latin1", enc.Name)
	})

	t.Run("no candidate decodes", func(t *testing.T) {
		path := writeFile(t, "bad.csv", []byte("ProgramName\n\xff\xfe\n"))
		_, err := DetectEncoding(path, UTF8)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrEncoding)
	})

	t.Run("binary file", func(t *testing.T) {
		path := writeFile(t, "bin.csv", []byte{'a', 0, 'b', '\n'})
		_, err := DetectEncoding(path)
		assert.ErrorIs(t, err, models.ErrEncoding)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := DetectEncoding(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrEncoding)
	})
}

func TestLookupEncoding(t *testing.T) {
	enc, err := LookupEncoding("Windows-1252")
	require.NoError(t, err)
	assert.Equal(t, CP1252.Name, enc.Name)

	_, err = LookupEncoding("koi8-r")
	assert.Error(t, err)
}

func TestGetColumns(t *testing.T) {
	path := writeFile(t, "in.csv", []byte("\xef\xbb\xbfProgramName,ProgramDescription,About_Place\nA,B,C\n"))
	cols, err := GetColumns(path, UTF8)
	require.NoError(t, err)
	assert.Equal(t, []string{"ProgramName", "ProgramDescription", "About_Place"}, cols)

	empty := writeFile(t, "empty.csv", nil)
	cols, err = GetColumns(empty, UTF8)
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestValidateColumns(t *testing.T) {
	require.NoError(t, ValidateColumns([]string{"ProgramName", "ProgramDescription", "About_Place", "X"}, models.RequiredColumns))

	err := ValidateColumns([]string{"ProgramName", "About_Place"}, models.RequiredColumns)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)

	var missing *models.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"ProgramDescription"}, missing.Missing)
	assert.Contains(t, err.Error(), "ProgramDescription")

	err = ValidateColumns(nil, models.RequiredColumns)
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Missing, 3)
}

func TestReadChunk(t *testing.T) {
	path := writeFile(t, "in.csv", []byte(sampleCSV(5)))

	rows, err := ReadChunk(path, 0, 2, UTF8)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Program 0", rows[0]["ProgramName"])
	assert.Equal(t, "Extra1", rows[1]["ExtraCol"])

	rows, err = ReadChunk(path, 4, 2, UTF8)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Program 4", rows[0]["ProgramName"])

	rows, err = ReadChunk(path, 10, 2, UTF8)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = ReadChunk(path, 0, 0, UTF8)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestReadChunk_RaggedAndQuotedRecords(t *testing.T) {
	content := "ProgramName,ProgramDescription,About_Place\n" +
		"Short,Only two\n" +
		"\"Multi\nline\",\"Has, comma\",Vilnius,surplus\n"
	path := writeFile(t, "ragged.csv", []byte(content))

	rows, err := ReadChunk(path, 0, 10, UTF8)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["About_Place"])
	assert.Equal(t, "Multi\nline", rows[1]["ProgramName"])
	assert.Equal(t, "Has, comma", rows[1]["ProgramDescription"])
	assert.Len(t, rows[1], 3)
}

func TestReadChunk_DecodesCP1252(t *testing.T) {
	path := writeFile(t, "cp.csv", []byte("ProgramName,ProgramDescription,About_Place\nCaf\xe9,D,P\n"))
	rows, err := ReadChunk(path, 0, 10, CP1252)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Café", rows[0]["ProgramName"])
}

func TestCountRows(t *testing.T) {
	path := writeFile(t, "in.csv", []byte(sampleCSV(7)))
	n, err := CountRows(path, UTF8)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	noTrailingNewline := writeFile(t, "nt.csv", []byte("H\na\nb"))
	n, err = CountRows(noTrailingNewline, UTF8)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty := writeFile(t, "empty.csv", nil)
	n, err = CountRows(empty, UTF8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSampleLines(t *testing.T) {
	path := writeFile(t, "in.csv", []byte(sampleCSV(20)))
	sample, err := SampleLines(path, UTF8, 3)
	require.NoError(t, err)
	lines := strings.Split(sample, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Program 0,"))
	assert.NotContains(t, sample, "ProgramName")
}

func TestWriteChunk(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	cols := []string{"ProgramName", "category_id"}

	first := []models.Row{{"ProgramName": "A", "category_id": "292"}}
	second := []models.Row{{"ProgramName": "B", "category_id": "unknown"}, {"ProgramName": "C"}}

	require.NoError(t, WriteChunk(out, first, true, UTF8, cols))
	require.NoError(t, WriteChunk(out, second, false, UTF8, cols))

	records := readAll(t, out)
	assert.Equal(t, [][]string{
		{"ProgramName", "category_id"},
		{"A", "292"},
		{"B", "unknown"},
		{"C", ""},
	}, records)

	// A new first chunk overwrites the previous output.
	require.NoError(t, WriteChunk(out, first, true, UTF8, cols))
	assert.Len(t, readAll(t, out), 2)
}

func TestWriteChunk_ReplacesUnsupportedCharacters(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	rows := []models.Row{{"name": "Rīga café"}}
	require.NoError(t, WriteChunk(out, rows, true, CP1252, []string{"name"}))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "caf\xe9")
	assert.NotContains(t, string(raw), "ī")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "vouchers_categorized.csv"), OutputPath(filepath.Join("data", "vouchers.csv")))
	assert.Equal(t, "input_categorized.csv", OutputPath("input.csv"))
}

func TestExtractProduct(t *testing.T) {
	p := ExtractProduct(models.Row{
		"ProgramName":        " SPA poilsis ",
		"ProgramDescription": "Masažai\nir procedūros",
		"About_Place":        "Vilnius",
		"Other":              "ignored",
	})
	assert.Equal(t, models.ProductInput{Name: "SPA poilsis", Description: "Masažai ir procedūros", Location: "Vilnius"}, p)
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
