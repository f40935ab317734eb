package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	templateExt        = ".tmpl"
	detectTemplateName = "detect_language"
)

// DefaultLanguage is used by Build when no template exists for the requested language.
const DefaultLanguage = models.LanguageLithuanian

// Set holds one classification template per language plus the language
// detection template.
type Set struct {
	templates map[string]*Template
	detect    *Template
}

// LoadDefault parses the embedded templates.
func LoadDefault() (*Set, error) {
	return Load("")
}

// Load parses the embedded templates, then replaces any of them for which
// overrideDir holds a <name>.tmpl file. An empty overrideDir or one that does
// not exist leaves the embedded set unchanged.
func Load(overrideDir string) (*Set, error) {
	s := &Set{templates: make(map[string]*Template)}

	for _, lang := range models.SupportedLanguages {
		text, err := readTemplate(overrideDir, lang)
		if err != nil {
			return nil, err
		}
		t, err := Parse(lang, text, ProductSlots...)
		if err != nil {
			return nil, err
		}
		s.templates[lang] = t
	}

	text, err := readTemplate(overrideDir, detectTemplateName)
	if err != nil {
		return nil, err
	}
	if s.detect, err = Parse(detectTemplateName, text, SlotSample); err != nil {
		return nil, err
	}
	return s, nil
}

func readTemplate(overrideDir, name string) (string, error) {
	filename := name + templateExt
	if overrideDir != "" {
		path := filepath.Join(overrideDir, filename)
		data, err := os.ReadFile(path)
		if err == nil {
			log.Debugf("Using prompt override %s", path)
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read prompt override '%s': %w", path, err)
		}
	}
	data, err := templateFS.ReadFile("templates/" + filename)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded prompt %s: %w", filename, err)
	}
	return string(data), nil
}

// Build renders the classification prompt for product in language, falling
// back to DefaultLanguage when the language has no template.
func (s *Set) Build(product models.ProductInput, language string) (string, error) {
	t, ok := s.templates[language]
	if !ok {
		t = s.templates[DefaultLanguage]
	}
	return t.Render(map[Slot]string{
		SlotProductName:        product.Name,
		SlotProductDescription: product.Description,
		SlotProductLocation:    product.Location,
	})
}

// BuildLanguageDetection renders the language detection prompt for a sample of CSV lines.
func (s *Set) BuildLanguageDetection(sample string) (string, error) {
	return s.detect.Render(map[Slot]string{SlotSample: sample})
}

// Languages lists the languages with a classification template.
func (s *Set) Languages() []string {
	langs := make([]string, 0, len(s.templates))
	for l := range s.templates {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
