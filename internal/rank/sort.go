// Package rank orders scored entries by a primary key with an optional
// tie-breaker. Sorting is pure and stable: equal keys keep their input
// order, so repeated calls with the same input are deterministic.
package rank

import (
	"math"
	"sort"

	"github.com/nbed-digital/continuum/internal/search"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Primary selects the primary sort key.
type Primary string

const (
	ByTitle     Primary = "title"
	ByDate      Primary = "date"
	ByRelevance Primary = "relevance"
)

// TieBreaker selects the secondary key, applied only on primary equality.
type TieBreaker string

const (
	TieNone  TieBreaker = ""
	TieTitle TieBreaker = "title"
	TieTag   TieBreaker = "tag"
	TieDate  TieBreaker = "date"
)

// Sort orders results in place and assigns 1-based positions.
//
// Title compares with locale collation, ascending. Date sorts most recent
// first with missing dates as epoch 0. Relevance sorts descending with
// missing/NaN treated as 0. Tag ties use numeric-aware collation so "1.2"
// sorts before "1.10".
func Sort(results []search.Result, primary Primary, tie TieBreaker) {
	titles := collate.New(language.English, collate.IgnoreCase)
	tags := collate.New(language.English, collate.Numeric)

	cmp := func(a, b *search.Result) int {
		if c := compareKey(a, b, string(primary), titles, tags); c != 0 {
			return c
		}
		if tie != TieNone {
			return compareKey(a, b, string(tie), titles, tags)
		}
		return 0
	}

	sort.SliceStable(results, func(i, j int) bool {
		return cmp(&results[i], &results[j]) < 0
	})
	for i := range results {
		results[i].Position = i + 1
	}
}

func compareKey(a, b *search.Result, key string, titles, tags *collate.Collator) int {
	switch key {
	case string(ByTitle):
		return titles.CompareString(a.Entry.Title, b.Entry.Title)
	case string(TieTag):
		return tags.CompareString(a.Entry.Tag, b.Entry.Tag)
	case string(ByDate):
		// Descending: most recent first.
		switch {
		case a.Entry.Date > b.Entry.Date:
			return -1
		case a.Entry.Date < b.Entry.Date:
			return 1
		}
		return 0
	case string(ByRelevance):
		ra, rb := relevance(a), relevance(b)
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		return 0
	}
	return 0
}

func relevance(r *search.Result) float64 {
	if math.IsNaN(r.Relevance) {
		return 0
	}
	return r.Relevance
}
