// Package catalog holds the per-language category tables: leaf ID to display
// name and leaf ID to product-listing URL.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"vouchercat/internal/models"
)

//go:embed data/*.json
var dataFS embed.FS

// Category is one catalog entry.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Catalog maps leaf IDs of one language to display names and URLs. It is
// read-only after loading and safe for concurrent use.
type Catalog struct {
	Language string
	names    map[string]string
	urls     map[string]string
}

type catalogFile struct {
	Language string            `json:"language"`
	Names    map[string]string `json:"names"`
	URLs     map[string]string `json:"urls"`
}

// New builds a catalog from in-memory tables. Both maps are copied.
func New(language string, names, urls map[string]string) *Catalog {
	c := &Catalog{
		Language: language,
		names:    make(map[string]string, len(names)),
		urls:     make(map[string]string, len(urls)),
	}
	for id, name := range names {
		c.names[id] = name
	}
	for id, url := range urls {
		c.urls[id] = url
	}
	return c
}

// Parse decodes a catalog from its JSON form.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if f.Language == "" {
		return nil, fmt.Errorf("%w: catalog has no language", models.ErrValidation)
	}
	return New(f.Language, f.Names, f.URLs), nil
}

// Name returns the display name of id. Unknown IDs, including the unknown
// sentinel, report false.
func (c *Catalog) Name(id string) (string, bool) {
	name, ok := c.names[id]
	return name, ok
}

// URL returns the listing URL of id, which may be empty.
func (c *Catalog) URL(id string) (string, bool) {
	url, ok := c.urls[id]
	return url, ok
}

// Len is the number of named categories.
func (c *Catalog) Len() int { return len(c.names) }

// Lookup returns the full entry for id.
func (c *Catalog) Lookup(id string) (Category, bool) {
	name, ok := c.names[id]
	if !ok {
		return Category{}, false
	}
	return Category{ID: id, Name: name, URL: c.urls[id]}, true
}

// Categories lists every entry in numeric ID order. A non-empty filter keeps
// entries whose name contains it, case-insensitively.
func (c *Catalog) Categories(filter string) []Category {
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]Category, 0, len(c.names))
	for _, id := range c.IDs() {
		name := c.names[id]
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		out = append(out, Category{ID: id, Name: name, URL: c.urls[id]})
	}
	return out
}

// IDs returns every named ID, numerically sorted where possible.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.names))
	for id := range c.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Registry is the set of catalogs available to a process, keyed by language.
type Registry struct {
	catalogs map[string]*Catalog
}

// NewRegistry builds a registry from already-loaded catalogs.
func NewRegistry(catalogs ...*Catalog) *Registry {
	r := &Registry{catalogs: make(map[string]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		r.catalogs[c.Language] = c
	}
	return r
}

// LoadAll loads every embedded catalog.
func LoadAll() (*Registry, error) {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded catalogs: %w", err)
	}
	r := NewRegistry()
	for _, e := range entries {
		data, err := dataFS.ReadFile(path.Join("data", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", e.Name(), err)
		}
		c, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", e.Name(), err)
		}
		r.catalogs[c.Language] = c
	}
	return r, nil
}

// Get returns the catalog for language or ErrNotFound.
func (r *Registry) Get(language string) (*Catalog, error) {
	c, ok := r.catalogs[language]
	if !ok {
		return nil, fmt.Errorf("%w: no catalog for language %q", models.ErrNotFound, language)
	}
	return c, nil
}

// Languages lists the registered languages in sorted order.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.catalogs))
	for l := range r.catalogs {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
