package csvio

import (
	"encoding/csv"
	"fmt"
	"os"

	"vouchercat/internal/models"
)

// WriteChunk writes rows to path in column order. The first chunk truncates the
// file and writes the header; later chunks append without one.
func WriteChunk(path string, rows []models.Row, isFirstChunk bool, enc Encoding, columns []string) (err error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if isFirstChunk {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output %s: %w", path, cerr)
		}
	}()

	ew := enc.NewWriter(f)
	w := csv.NewWriter(ew)
	if isFirstChunk {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
