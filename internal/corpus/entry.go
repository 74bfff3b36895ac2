// Package corpus defines the educational entry model and the sources the
// static corpus is read from at startup. Entries are validated here so that
// authoring defects (unknown categories, bad level tiers, empty ids) stop the
// process before any index is built.
package corpus

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
)

// Category is the closed set of topic groupings. Every entry belongs to
// exactly one.
type Category string

const (
	CategoryAgingBiology     Category = "aging-biology"
	CategoryFallsMobility    Category = "falls-mobility"
	CategoryCognitiveHealth  Category = "cognitive-health"
	CategoryFrailtyFunction  Category = "frailty-function"
	CategoryPolypharmacy     Category = "polypharmacy"
	CategoryNutritionAging   Category = "nutrition-aging"
	CategoryContinence       Category = "continence"
	CategoryEndOfLife        Category = "end-of-life"
	CategoryEpithelialTissue Category = "epithelial-tissue"
	CategoryConnective       Category = "connective-tissue"
	CategoryMuscleTissue     Category = "muscle-tissue"
	CategoryNervousTissue    Category = "nervous-tissue"
)

var categories = []Category{
	CategoryAgingBiology,
	CategoryFallsMobility,
	CategoryCognitiveHealth,
	CategoryFrailtyFunction,
	CategoryPolypharmacy,
	CategoryNutritionAging,
	CategoryContinence,
	CategoryEndOfLife,
	CategoryEpithelialTissue,
	CategoryConnective,
	CategoryMuscleTissue,
	CategoryNervousTissue,
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps a raw string onto the enumeration.
func ParseCategory(s string) (Category, bool) {
	for _, c := range categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}

// Tier bounds for Entry.Levels.
const (
	MinLevel = 1
	MaxLevel = 5
)

var levelLabels = map[int]string{
	1: "8th Grade",
	2: "High School",
	3: "College",
	4: "Graduate",
	5: "MD/Professional",
}

// LevelLabel is the audience label shown for a tier.
func LevelLabel(tier int) string {
	return levelLabels[tier]
}

// KeyTerm is a glossary pair attached to a level.
type KeyTerm struct {
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
}

// Level is one complexity tier of an entry's explanation.
type Level struct {
	Label    string    `json:"label" yaml:"label"`
	Summary  string    `json:"summary" yaml:"summary"`
	Body     string    `json:"body" yaml:"body"`
	KeyTerms []KeyTerm `json:"key_terms" yaml:"keyTerms"`
}

func (l Level) Clone() Level {
	l.KeyTerms = slices.Clone(l.KeyTerms)
	return l
}

// CrossReference points at another entry by id. The target may not exist.
type CrossReference struct {
	TargetID     string `json:"target_id" yaml:"targetId"`
	Relationship string `json:"relationship" yaml:"relationship"`
}

// Entry is one educational topic.
type Entry struct {
	ID              string           `json:"id" yaml:"id"`
	Category        Category         `json:"category" yaml:"category"`
	DisplayName     string           `json:"display_name" yaml:"displayName"`
	AlternateNames  []string         `json:"alternate_names" yaml:"alternateNames"`
	Levels          map[int]Level    `json:"levels" yaml:"levels"`
	Keywords        []string         `json:"keywords" yaml:"keywords"`
	Tags            []string         `json:"tags" yaml:"tags"`
	CrossReferences []CrossReference `json:"cross_references" yaml:"crossReferences"`
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() Entry {
	c := *e
	c.AlternateNames = slices.Clone(e.AlternateNames)
	c.Keywords = slices.Clone(e.Keywords)
	c.Tags = slices.Clone(e.Tags)
	c.CrossReferences = slices.Clone(e.CrossReferences)
	if e.Levels != nil {
		c.Levels = make(map[int]Level, len(e.Levels))
		for tier, lvl := range e.Levels {
			c.Levels[tier] = lvl.Clone()
		}
	}
	return c
}

// Tiers returns the entry's level tiers in ascending order.
func (e *Entry) Tiers() []int {
	tiers := make([]int, 0, len(e.Levels))
	for tier := range e.Levels {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)
	return tiers
}

// Validate checks the schema constraints that cannot be expressed in the
// type itself. It does not check id uniqueness; that is the index
// builder's job.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: empty id", apperrors.ErrInvalidEntry)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: entry %q has unknown category %q", apperrors.ErrInvalidEntry, e.ID, e.Category)
	}
	if strings.TrimSpace(e.DisplayName) == "" {
		return fmt.Errorf("%w: entry %q has empty display name", apperrors.ErrInvalidEntry, e.ID)
	}
	for tier := range e.Levels {
		if tier < MinLevel || tier > MaxLevel {
			return fmt.Errorf("%w: entry %q has level %d outside %d-%d",
				apperrors.ErrInvalidEntry, e.ID, tier, MinLevel, MaxLevel)
		}
	}
	return nil
}

// normalize fills derived fields and lower-cases keywords and tags.
func (e *Entry) normalize() {
	for tier, lvl := range e.Levels {
		if lvl.Label == "" {
			lvl.Label = LevelLabel(tier)
			e.Levels[tier] = lvl
		}
	}
	e.Keywords = lowerAll(e.Keywords)
	e.Tags = lowerAll(e.Tags)
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
