package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
	"vouchercat/internal/util"
)

// OutputSuffix is appended to the input file stem to name the output file.
const OutputSuffix = "_categorized"

// OutputPath returns <dir>/<stem>_categorized.csv for an input path.
func OutputPath(inputPath string) string {
	dir, base := filepath.Split(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+OutputSuffix+".csv")
}

func openCSV(path string, enc Encoding) (*os.File, *csv.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := csv.NewReader(enc.NewReader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return f, r, nil
}

func readHeader(r *csv.Reader) ([]string, error) {
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = util.CleanHeader(header[i])
	}
	return header, nil
}

// GetColumns returns the header fields of path, or an empty slice for an empty file.
func GetColumns(path string, enc Encoding) ([]string, error) {
	f, r, err := openCSV(path, enc)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

// ValidateColumns fails with a *models.MissingColumnsError listing every
// required column absent from columns.
func ValidateColumns(columns, required []string) error {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	var missing []string
	for _, c := range required {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &models.MissingColumnsError{Missing: missing}
	}
	return nil
}

// ReadChunk returns up to limit rows starting at the offset-th data row
// (0-based, header excluded). The file is re-read from the start on every call.
func ReadChunk(path string, offset, limit int, enc Encoding) ([]models.Row, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: invalid chunk window offset=%d limit=%d", models.ErrValidation, offset, limit)
	}

	f, r, err := openCSV(path, enc)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) == 0 {
		return []models.Row{}, nil
	}

	rows := make([]models.Row, 0, limit)
	for index := 0; len(rows) < limit; index++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if index < offset {
			continue
		}
		rows = append(rows, toRow(header, record, offset+len(rows)))
	}
	return rows, nil
}

func toRow(header, record []string, index int) models.Row {
	if len(record) > len(header) {
		log.Debugf("Row %d has %d fields, header has %d; dropping the surplus", index, len(record), len(header))
	}
	row := make(models.Row, len(header)+len(models.OutputColumns))
	for i, col := range header {
		if i < len(record) {
			row[col] = record[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

// CountRows counts the raw lines of path minus the header line.
func CountRows(path string, enc Encoding) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lines := 0
	r := bufio.NewReader(enc.NewReader(f))
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			lines++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to count rows of %s: %w", path, err)
		}
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}

// SampleLines returns up to n raw data lines following the header.
func SampleLines(path string, enc Encoding, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(enc.NewReader(f))
	for i := 0; i <= n; i++ {
		line, err := r.ReadString('\n')
		if i > 0 {
			if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to sample %s: %w", path, err)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractProduct builds the model input from the three required columns of a row.
func ExtractProduct(row models.Row) models.ProductInput {
	return models.ProductInput{
		Name:        util.CleanField(row[models.ColumnProgramName]),
		Description: util.CleanField(row[models.ColumnProgramDescription]),
		Location:    util.CleanField(row[models.ColumnAboutPlace]),
	}
}
