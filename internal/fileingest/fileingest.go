// Package fileingest finds the CSV exports a batch invocation should process.
package fileingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vouchercat/internal/csvio"
)

// FileMeta holds metadata about a file to be categorized.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// IsOutputFile reports whether name looks like a file this tool wrote.
func IsOutputFile(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, csvio.OutputSuffix)
}

/*
DiscoverCSVFiles recursively finds all .csv files under rootDir, skipping
previously written *_categorized.csv outputs and hidden directories.

Results are sorted by path.
*/
func DiscoverCSVFiles(ctx context.Context, rootDir string) ([]FileMeta, error) {
	var files []FileMeta
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".csv") || IsOutputFile(d.Name()) {
			return nil
		}
		meta, metaErr := ExtractFileMeta(path)
		if metaErr != nil {
			// Skip files we can't stat, but continue
			return nil
		}
		files = append(files, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", rootDir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ExtractFileMeta extracts metadata from a given file path.
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
