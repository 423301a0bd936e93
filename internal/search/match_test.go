package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/index"
)

func testStore() *index.MemoryStore {
	entries := []api.IndexEntry{
		{ID: "loc-1", Category: api.CategoryIndicator, Tag: "1",
			Title: "leadership", TitleWords: []string{"leadership"}},
		{ID: "loc-2", Category: api.CategoryComponent, Tag: "1.1",
			Title: "shared vision", TitleWords: []string{"shared", "vision"}},
		{ID: "loc-3", Category: api.CategoryConsideration, Tag: "1.1.1",
			Title: "draft a vision statement", TitleWords: []string{"draft", "a", "vision", "statement"}},
		{ID: "res-1", Category: api.CategoryResource, Type: "document",
			Title:       "vision planning guide",
			TitleWords:  []string{"vision", "planning", "guide"},
			Description: "a practical guide to planning a shared vision",
			DescWords:   []string{"a", "practical", "guide", "to", "planning", "a", "shared", "vision"},
			DescStems:   []string{"a", "practic", "guid", "to", "plan", "a", "share", "vision"},
			Indicators:  []string{"1"}, Components: []string{"1.1"}, Considerations: []string{"1.1.1"}},
		{ID: "res-2", Category: api.CategoryResource, Type: "video",
			Title: "intro video", TitleWords: []string{"intro", "video"}},
	}
	return index.NewMemoryStoreWith(entries, api.NewCountMap())
}

func allCategories(store index.Store) *Engine {
	return New(store, api.Categories...)
}

func resultIDs(out Output) []string {
	ids := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		ids = append(ids, r.Entry.ID)
	}
	return ids
}

func relevanceOf(t *testing.T, out Output, id string) float64 {
	t.Helper()
	for _, r := range out.Results {
		if r.Entry.ID == id {
			return r.Relevance
		}
	}
	t.Fatalf("no result %s", id)
	return 0
}

func TestTagPrefixMatch(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "1.1"})

	assert.ElementsMatch(t, []string{"loc-2", "loc-3"}, resultIDs(out))
	assert.True(t, out.TagMatched)
	assert.True(t, out.MatchTypes[MatchTag])
	assert.Equal(t, float64(100), relevanceOf(t, out, "loc-2"))
	assert.Equal(t, float64(100), relevanceOf(t, out, "loc-3"))
}

func TestTitleFirstWordOutranksLaterWords(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "vision"})

	// res-1 leads with the word, loc-2 and loc-3 contain it later.
	assert.Greater(t, relevanceOf(t, out, "res-1"), relevanceOf(t, out, "loc-2"))
	assert.Equal(t, float64(10), relevanceOf(t, out, "loc-2"))
	assert.False(t, out.TagMatched)
	assert.True(t, out.MatchTypes[MatchTitle])
}

func TestPhraseQuery(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "shared vision"})

	// Title prefix phrase scores full weight; a description-only phrase hit
	// stays strictly below any title match.
	assert.Equal(t, float64(100), relevanceOf(t, out, "loc-2"))
	assert.Less(t, relevanceOf(t, out, "res-1"), float64(10))
	assert.True(t, out.MatchTypes[MatchDescription])
}

func TestShortQuerySkipsDescription(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "pr"})

	// "practical" sits in the description only, and two characters is below
	// the description threshold.
	assert.Empty(t, resultIDs(out))
	assert.Empty(t, out.MatchTypes)
}

func TestStemmedDescriptionFallback(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "plans"})

	require.Equal(t, []string{"res-1"}, resultIDs(out))
	assert.Equal(t, float64(1), relevanceOf(t, out, "res-1"))
	assert.True(t, out.MatchTypes[MatchDescription])
}

func TestFiltersOrWithinCategory(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{
		EmptyVisibility: VisibilityShown,
		Filters:         Filters{Types: []string{"document", "video"}},
	})
	assert.ElementsMatch(t, []string{"res-1", "res-2"}, resultIDs(out))
}

func TestFiltersAndAcrossCategories(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{
		EmptyVisibility: VisibilityShown,
		Filters: Filters{
			Types:      []string{"document", "video"},
			Indicators: []string{"1"},
		},
	})

	// res-2 passes the type filter but is not linked under indicator 1.
	require.Equal(t, []string{"res-1"}, resultIDs(out))
	// One bonus point per satisfied filter category.
	assert.Equal(t, float64(2), relevanceOf(t, out, "res-1"))
	assert.True(t, out.MatchTypes[MatchTypes])
	assert.True(t, out.MatchTypes[MatchIndicators])
}

func TestIndicatorFilterCoversRubricAndResources(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{
		EmptyVisibility: VisibilityShown,
		Filters:         Filters{Indicators: []string{"1"}},
	})
	assert.ElementsMatch(t, []string{"loc-1", "loc-2", "loc-3", "res-1"}, resultIDs(out))
}

func TestEmptyQueryVisibility(t *testing.T) {
	e := allCategories(testStore())

	shown := e.Match(Query{EmptyVisibility: VisibilityShown})
	assert.Len(t, shown.Results, 5)

	hidden := e.Match(Query{EmptyVisibility: VisibilityHidden})
	assert.Empty(t, hidden.Results)
}

func TestNoCategoriesMatchesNothing(t *testing.T) {
	e := New(testStore())
	out := e.Match(Query{Text: "vision"})
	assert.Empty(t, out.Results)
}

func TestNoResultsClearsMatchTypes(t *testing.T) {
	e := allCategories(testStore())
	out := e.Match(Query{Text: "zzzzz"})
	assert.Empty(t, out.Results)
	assert.Empty(t, out.MatchTypes)
	assert.False(t, out.TagMatched)
}
