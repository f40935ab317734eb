// Package prompt renders the per-language classification prompts. Templates
// are parsed once into literal and slot segments, so rendering never
// re-scans substituted product text for placeholders.
package prompt

import (
	"fmt"
	"strings"

	"vouchercat/internal/models"
)

// Slot names a placeholder written as {{NAME}} in a template.
type Slot string

const (
	SlotProductName        Slot = "PRODUCT_NAME"
	SlotProductDescription Slot = "PRODUCT_DESCRIPTION"
	SlotProductLocation    Slot = "PRODUCT_LOCATION"
	SlotSample             Slot = "SAMPLE"
)

// ProductSlots are the slots every classification template must carry.
var ProductSlots = []Slot{SlotProductName, SlotProductDescription, SlotProductLocation}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

type segment struct {
	literal string
	slot    Slot
}

// Template is a parsed prompt. It is immutable and safe for concurrent use.
type Template struct {
	name     string
	segments []segment
	slots    []Slot
}

// Parse splits text into literal and slot segments. Every placeholder must be
// one of slots and every slot must occur at least once. Single braces are
// literal text.
func Parse(name, text string, slots ...Slot) (*Template, error) {
	allowed := make(map[Slot]bool, len(slots))
	for _, s := range slots {
		allowed[s] = false
	}

	t := &Template{name: name, slots: slots}
	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("%w: template %s: unclosed %q", models.ErrConfig, name, openDelim)
		}
		slot := Slot(strings.TrimSpace(rest[start+len(openDelim) : start+len(openDelim)+end]))
		if _, ok := allowed[slot]; !ok {
			return nil, fmt.Errorf("%w: template %s: unknown slot %q", models.ErrConfig, name, slot)
		}
		allowed[slot] = true

		if start > 0 {
			t.segments = append(t.segments, segment{literal: rest[:start]})
		}
		t.segments = append(t.segments, segment{slot: slot})
		rest = rest[start+len(openDelim)+end+len(closeDelim):]
	}
	if rest != "" {
		t.segments = append(t.segments, segment{literal: rest})
	}

	for _, s := range slots {
		if !allowed[s] {
			return nil, fmt.Errorf("%w: template %s: missing slot %q", models.ErrConfig, name, s)
		}
	}
	return t, nil
}

// Name identifies the template in logs and errors.
func (t *Template) Name() string { return t.name }

// Render fills every slot from values verbatim.
func (t *Template) Render(values map[Slot]string) (string, error) {
	for _, s := range t.slots {
		if _, ok := values[s]; !ok {
			return "", fmt.Errorf("template %s: no value for slot %q", t.name, s)
		}
	}
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.slot != "" {
			b.WriteString(values[seg.slot])
			continue
		}
		b.WriteString(seg.literal)
	}
	return b.String(), nil
}
