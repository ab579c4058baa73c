package scorer

import (
	"strings"
	"unicode"

	"github.com/ayushsreejith06/max/internal/model"
)

// AlignmentScorer rates, 0-100, how well an item fits its sector's goals.
type AlignmentScorer interface {
	Alignment(item *model.ChecklistItem, sector *model.Sector, confidence float64) float64
}

// KeywordAlignment blends keyword overlap between the item's reasoning and
// the sector description with the item's confidence.
type KeywordAlignment struct {
	// Default is returned when the sector has no description.
	Default float64
}

var _ AlignmentScorer = KeywordAlignment{}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "into": true, "from": true,
	"that": true, "this": true, "are": true, "our": true, "its": true, "their": true,
	"was": true, "will": true, "has": true, "have": true, "but": true, "not": true,
}

// Alignment implements AlignmentScorer.
func (k KeywordAlignment) Alignment(item *model.ChecklistItem, sector *model.Sector, confidence float64) float64 {
	goal := keywords(sector.Description)
	if len(goal) == 0 {
		return k.Default
	}
	said := keywords(item.Reasoning + " " + string(item.Action))

	hits := 0
	for w := range goal {
		if said[w] {
			hits++
		}
	}
	overlap := float64(hits) / float64(len(goal)) * 100
	return clamp(0.7*overlap+0.3*confidence, 0, 100)
}

func keywords(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
