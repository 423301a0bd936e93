// Package search implements the relevance match engine over the search
// index: text scoring (tag prefix, title, description tiers) gated by
// AND-across-category filters evaluated as roaring bitmap intersections.
package search

import (
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/kljensen/snowball"
	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/index"
)

// Relevance weights. Only the relative ordering is contractual:
// tag prefix >> title phrase/first-word prefix > title substring and later
// word prefixes > description matches.
const (
	weightTag        = 100
	weightTitleHigh  = 100
	weightTitleLow   = 10
	weightDescPhrase = 10
	weightDescWord   = 1

	// Description matches as a whole may never outweigh a title substring
	// match, regardless of description length.
	descScoreCap = weightTitleLow - 1

	// Queries shorter than this skip description matching entirely; one or
	// two characters produce too much low-precision noise.
	minDescQueryLen = 3
)

// Visibility controls what an empty query matches.
type Visibility string

const (
	VisibilityShown  Visibility = "shown"
	VisibilityHidden Visibility = "hidden"
)

// Filters holds the selected filter values, one slice per category.
// Within a category values are OR'd; across categories AND applies.
type Filters struct {
	Types          []string
	Indicators     []string
	Components     []string
	Considerations []string
}

// Active reports whether any filter category has at least one value.
func (f Filters) Active() bool {
	return len(f.Types) > 0 || len(f.Indicators) > 0 ||
		len(f.Components) > 0 || len(f.Considerations) > 0
}

// MatchType names which mechanism matched an entry; the union over all
// matched entries is reported to collaborating UI.
type MatchType string

const (
	MatchTag            MatchType = "tag"
	MatchTitle          MatchType = "title"
	MatchDescription    MatchType = "description"
	MatchTypes          MatchType = "types"
	MatchIndicators     MatchType = "indicators"
	MatchComponents     MatchType = "components"
	MatchConsiderations MatchType = "considerations"
)

// Query is one match request. Text must already be lowercased and trimmed
// by the caller; empty text means "no text filter".
type Query struct {
	Text            string
	Filters         Filters
	EmptyVisibility Visibility
}

// Result is one scored entry. The wrapped entry is a copy; the engine never
// mutates the index.
type Result struct {
	Entry     api.IndexEntry
	Relevance float64
	// Position is 1-based display order, assigned by the sort engine.
	Position int
}

// Output is the outcome of one query.
type Output struct {
	Results    []Result
	MatchTypes map[MatchType]bool
	// TagMatched reports that at least one entry matched by tag prefix;
	// callers use it to pick the tag tie-breaker.
	TagMatched bool
}

// Engine scores index entries for one configured list.
type Engine struct {
	store      index.Store
	categories []api.Category
}

// New returns an engine matching only the given categories. A list with no
// configured categories matches nothing.
func New(store index.Store, categories ...api.Category) *Engine {
	return &Engine{store: store, categories: categories}
}

// Match evaluates the query against every candidate entry.
func (e *Engine) Match(q Query) Output {
	out := Output{MatchTypes: make(map[MatchType]bool)}
	if len(e.categories) == 0 {
		return out
	}

	candidates := roaring.New()
	for _, c := range e.categories {
		candidates.Or(e.store.CategoryBits(c))
	}

	activeFilters := e.applyFilters(candidates, q.Filters, out.MatchTypes)
	if candidates.IsEmpty() {
		// Preserve reported match types only when something matched.
		out.MatchTypes = make(map[MatchType]bool)
		return out
	}

	entries := e.store.Entries()
	it := candidates.Iterator()
	for it.HasNext() {
		ord := it.Next()
		if int(ord) >= len(entries) {
			continue
		}
		entry := entries[ord]

		score, types, ok := scoreText(entry, q)
		if !ok {
			continue
		}
		for _, t := range types {
			out.MatchTypes[t] = true
			if t == MatchTag {
				out.TagMatched = true
			}
		}
		// Flat bonus per satisfied filter category; inclusion is already
		// AND-gated so this only shifts ties under relevance sort.
		score += float64(activeFilters)
		out.Results = append(out.Results, Result{Entry: entry, Relevance: score})
	}

	if len(out.Results) == 0 {
		out.MatchTypes = make(map[MatchType]bool)
		out.TagMatched = false
	}
	return out
}

// applyFilters intersects the candidate set with each active filter
// category and returns how many categories were active.
func (e *Engine) applyFilters(candidates *roaring.Bitmap, f Filters, used map[MatchType]bool) int {
	active := 0
	apply := func(values []string, t MatchType, bits func(string) *roaring.Bitmap) {
		if len(values) == 0 {
			return
		}
		active++
		allowed := roaring.New()
		for _, v := range values {
			allowed.Or(bits(v))
		}
		candidates.And(allowed)
		if !candidates.IsEmpty() {
			used[t] = true
		}
	}

	apply(f.Types, MatchTypes, e.store.TypeBits)
	apply(f.Indicators, MatchIndicators, func(v string) *roaring.Bitmap {
		return e.linkUnion(v, index.LinkTag, index.LinkIndicators, index.LinkComponents, index.LinkConsiderations)
	})
	apply(f.Components, MatchComponents, func(v string) *roaring.Bitmap {
		return e.linkUnion(v, index.LinkTag, index.LinkComponents, index.LinkConsiderations)
	})
	apply(f.Considerations, MatchConsiderations, func(v string) *roaring.Bitmap {
		return e.linkUnion(v, index.LinkTag, index.LinkConsiderations)
	})
	return active
}

func (e *Engine) linkUnion(prefix string, kinds ...index.Linkage) *roaring.Bitmap {
	out := roaring.New()
	for _, k := range kinds {
		out.Or(e.store.LinkageBits(k, prefix))
	}
	return out
}

// scoreText computes the text relevance of one entry. The third return is
// false when the entry fails the text gate entirely.
func scoreText(entry api.IndexEntry, q Query) (float64, []MatchType, bool) {
	text := q.Text
	if text == "" {
		if q.EmptyVisibility == VisibilityShown {
			return 0, nil, true
		}
		return 0, nil, false
	}

	score := 0.0
	var types []MatchType

	// 1. Tag prefix.
	if entry.Tag != "" && strings.HasPrefix(entry.Tag, text) {
		score += weightTag
		types = append(types, MatchTag)
	} else if entry.Title != "" {
		// 2. Title. Phrase queries match against the whole title; single
		// words match by word prefix, the first word weighted highest.
		if strings.Contains(text, " ") {
			if strings.HasPrefix(entry.Title, text) {
				score += weightTitleHigh
				types = append(types, MatchTitle)
			} else if strings.Contains(entry.Title, text) {
				score += weightTitleLow
				types = append(types, MatchTitle)
			}
		} else {
			for i, w := range entry.TitleWords {
				if strings.HasPrefix(w, text) {
					if i == 0 {
						score += weightTitleHigh
					} else {
						score += weightTitleLow
					}
					if len(types) == 0 || types[len(types)-1] != MatchTitle {
						types = append(types, MatchTitle)
					}
				}
			}
		}
	}

	// 3. Description, capped so it can never outrank a title match.
	if entry.Description != "" && len(text) >= minDescQueryLen {
		desc := descScore(entry, text)
		if desc > 0 {
			if desc > descScoreCap {
				desc = descScoreCap
			}
			score += desc
			types = append(types, MatchDescription)
		}
	}

	return score, types, score > 0
}

func descScore(entry api.IndexEntry, text string) float64 {
	if strings.Contains(text, " ") {
		if strings.Contains(entry.Description, text) {
			return weightDescPhrase
		}
		return 0
	}

	score := 0.0
	for _, w := range entry.DescWords {
		if strings.HasPrefix(w, text) {
			score += weightDescWord
		}
	}
	if score > 0 {
		return score
	}

	// Lowest tier: stemmed whole-word equality, so "planning" still finds
	// descriptions that only contain "plans".
	stem, err := snowball.Stem(text, "english", true)
	if err != nil || stem == "" {
		return 0
	}
	for _, s := range entry.DescStems {
		if s == stem {
			score += weightDescWord
		}
	}
	return score
}
