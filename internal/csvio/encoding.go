package csvio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"vouchercat/internal/models"
	"vouchercat/internal/util"
)

// probeLines is the number of lines read when testing a candidate encoding.
const probeLines = 10

// Encoding is a named text encoding used for both reading and writing a CSV file.
type Encoding struct {
	Name  string
	codec encoding.Encoding
	// strict rejects decoded C1 control characters, which windows-1252 only
	// produces for its five undefined byte values.
	strict bool
}

var (
	UTF8   = Encoding{Name: "utf-8", codec: unicode.UTF8BOM}
	CP1252 = Encoding{Name: "cp1252", codec: charmap.Windows1252, strict: true}
	Latin1 = Encoding{Name: "latin1", codec: charmap.ISO8859_1}
)

// DefaultEncodings is the candidate order tried by DetectEncoding.
var DefaultEncodings = []Encoding{UTF8, CP1252, Latin1}

// LookupEncoding resolves a configured encoding name.
func LookupEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return UTF8, nil
	case "cp1252", "windows-1252":
		return CP1252, nil
	case "latin1", "latin-1", "iso-8859-1":
		return Latin1, nil
	}
	return Encoding{}, fmt.Errorf("unsupported encoding %q", name)
}

// NewReader decodes r into UTF-8. A UTF-8 byte-order mark is dropped.
func (e Encoding) NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, e.codec.NewDecoder())
}

// NewWriter encodes UTF-8 written to it into e. Characters that e cannot
// represent are replaced instead of failing the write. Close flushes the
// encoder; it does not close w.
func (e Encoding) NewWriter(w io.Writer) io.WriteCloser {
	if e.Name == UTF8.Name {
		return nopCloser{w}
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(e.codec.NewEncoder()))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (e Encoding) String() string { return e.Name }

func (e Encoding) decodes(sample []byte) bool {
	if e.Name == UTF8.Name {
		return utf8.Valid(sample)
	}
	out, _, err := transform.Bytes(e.codec.NewDecoder(), sample)
	if err != nil {
		return false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return false
	}
	if e.strict {
		for _, r := range string(out) {
			if r >= 0x80 && r <= 0x9f {
				return false
			}
		}
	}
	return true
}

// DetectEncoding returns the first candidate that cleanly decodes the first
// lines of path. With no candidates DefaultEncodings is used.
func DetectEncoding(path string, candidates ...Encoding) (Encoding, error) {
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}

	binary, err := util.IsLikelyBinary(path)
	if err != nil {
		return Encoding{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if binary {
		return Encoding{}, fmt.Errorf("%w: %s looks like a binary file", models.ErrEncoding, path)
	}

	sample, err := readProbe(path)
	if err != nil {
		return Encoding{}, err
	}

	names := make([]string, 0, len(candidates))
	for _, enc := range candidates {
		names = append(names, enc.Name)
		if enc.decodes(sample) {
			log.Debugf("Detected encoding %s for %s", enc.Name, path)
			return enc, nil
		}
	}
	return Encoding{}, fmt.Errorf("%w for %s; tried %v", models.ErrEncoding, path, names)
}

func readProbe(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	r := bufio.NewReader(f)
	for i := 0; i < probeLines; i++ {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return buf.Bytes(), nil
}
