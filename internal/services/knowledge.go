package services

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platewise/receipt-scan/internal/models"
)

//go:embed knowledge.yaml
var knowledgeData []byte

// Basis is the unit convention a knowledge-base entry is expressed in.
type Basis string

const (
	BasisPer100g  Basis = "per100g"
	BasisPer100ml Basis = "per100ml"
	BasisPerUnit  Basis = "perUnit"
	BasisPerServe Basis = "perServe"
)

// KnowledgeEntry maps a group of item-name keywords to a base nutrition
// profile at a given basis.
type KnowledgeEntry struct {
	Keywords []string                `yaml:"keywords"`
	Basis    Basis                   `yaml:"basis"`
	Profile  models.NutritionProfile `yaml:"profile"`
}

// KnowledgeBase is the static nutrition reference table. It is loaded once
// at startup and never mutated, so it is safe to share across requests.
//
// Matching is first-match-wins over the authored entry order; the data file
// keeps specific terms ahead of broad ones so "chicken breast" is not
// classified as generic "chicken".
type KnowledgeBase struct {
	entries []KnowledgeEntry
}

// NewKnowledgeBase parses the embedded reference table.
func NewKnowledgeBase() (*KnowledgeBase, error) {
	var doc struct {
		Entries []KnowledgeEntry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(knowledgeData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge table: %w", err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("knowledge table is empty")
	}

	for i, e := range doc.Entries {
		if len(e.Keywords) == 0 {
			return nil, fmt.Errorf("knowledge entry %d has no keywords", i)
		}
		switch e.Basis {
		case BasisPer100g, BasisPer100ml, BasisPerUnit, BasisPerServe:
		default:
			return nil, fmt.Errorf("knowledge entry %d has unknown basis %q", i, e.Basis)
		}
	}

	return &KnowledgeBase{entries: doc.Entries}, nil
}

// Lookup returns the first entry whose keyword list contains a
// case-insensitive substring match against the item name. The boolean is
// false when nothing matches; callers substitute the default profile.
func (kb *KnowledgeBase) Lookup(name string) (KnowledgeEntry, bool) {
	lowered := strings.ToLower(name)
	for _, entry := range kb.entries {
		for _, kw := range entry.Keywords {
			if strings.Contains(lowered, kw) {
				return entry, true
			}
		}
	}
	return KnowledgeEntry{}, false
}

// Len reports the number of keyword groups in the table.
func (kb *KnowledgeBase) Len() int {
	return len(kb.entries)
}
