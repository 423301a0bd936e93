// Package list orchestrates the match and sort engines for one managed
// result list: debounced requerying, stale-query supersession, group-wise
// incremental reveal, and combobox-style active-descendant navigation.
// The DOM (or any other view) sits behind the Renderer interface; the
// controller itself never touches presentation state.
package list

import (
	"strings"
	"sync"
	"time"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/rank"
	"github.com/nbed-digital/continuum/internal/search"
)

const (
	// DefaultGroupSize is how many items one "show more" step reveals.
	DefaultGroupSize = 10
	// DefaultDebounce is the quiet period after typing before requerying.
	DefaultDebounce = 250 * time.Millisecond
)

// Item is one rendered result. Revealed is false for items beyond the
// currently revealed groups; the view keeps those hidden.
type Item struct {
	search.Result
	Revealed bool
}

// Renderer receives the controller's view side effects. Implementations
// map these onto the ARIA combobox pattern (aria-expanded,
// aria-activedescendant, hidden toggles).
type Renderer interface {
	// RenderResults replaces the list contents. moreAvailable reports
	// whether unrevealed groups remain (the "show more" affordance).
	RenderResults(items []Item, moreAvailable bool)
	// SetActiveDescendant marks the 1-based position active; 0 clears it.
	SetActiveDescendant(position int)
	// SetExpanded toggles the combobox expanded state.
	SetExpanded(expanded bool)
	// ShowEmptyState shows or hides the no-results message.
	ShowEmptyState(show bool)
	// SetLayout switches between the compact and detailed layouts.
	SetLayout(layout string)
	// FocusInput returns focus to the search input.
	FocusInput()
}

// MatchesChangedFunc is notified after every committed query with the match
// count and which match mechanisms produced it.
type MatchesChangedFunc func(count int, matchTypes map[search.MatchType]bool)

// ActivateFunc is invoked when the user activates the active item.
type ActivateFunc func(item Item)

// Config tunes one controller.
type Config struct {
	Categories      []api.Category
	GroupSize       int
	Debounce        time.Duration
	EmptyVisibility search.Visibility
}

// Controller drives one list. All exported methods are safe for concurrent
// use; in practice they are called from a single UI goroutine plus the
// debounce timer.
type Controller struct {
	engine    *search.Engine
	renderer  Renderer
	onMatches MatchesChangedFunc
	onActive  ActivateFunc

	groupSize       int
	emptyVisibility search.Visibility
	debounce        *scheduler

	mu         sync.Mutex
	query      string
	filters    search.Filters
	sortType   rank.Primary // "" = automatic (title when idle, relevance when searching)
	layout     string
	results    []search.Result
	tagMatched bool
	revealed   int // revealed group count, >= 1 once rendered
	activePos  int // 1-based position among results, 0 = none
	generation uint64
}

// New wires a controller to its engine and renderer.
func New(engine *search.Engine, renderer Renderer, cfg Config) *Controller {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.EmptyVisibility == "" {
		cfg.EmptyVisibility = search.VisibilityHidden
	}
	return &Controller{
		engine:          engine,
		renderer:        renderer,
		groupSize:       cfg.GroupSize,
		emptyVisibility: cfg.EmptyVisibility,
		debounce:        newScheduler(cfg.Debounce),
	}
}

// OnMatchesChanged registers the matches-changed notification.
func (c *Controller) OnMatchesChanged(fn MatchesChangedFunc) { c.onMatches = fn }

// OnActivate registers the item activation callback.
func (c *Controller) OnActivate(fn ActivateFunc) { c.onActive = fn }

// Close cancels any pending debounced query.
func (c *Controller) Close() { c.debounce.Cancel() }

// Input reacts to search box typing: the requery runs after the debounce
// quiet period, and later keystrokes supersede earlier ones.
func (c *Controller) Input(text string) {
	gen, snapshot := c.begin(text)
	c.debounce.Schedule(func() { c.execute(gen, snapshot) })
}

// Search runs a query immediately, superseding anything pending.
func (c *Controller) Search(text string) {
	c.debounce.Cancel()
	gen, snapshot := c.begin(text)
	c.execute(gen, snapshot)
}

// SetFilters re-runs the match with the current query and new filters.
func (c *Controller) SetFilters(f search.Filters) {
	c.mu.Lock()
	c.filters = f
	c.generation++
	gen := c.generation
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.execute(gen, snapshot)
}

// SetSort changes the primary sort and resorts the current results without
// re-running the match engine.
func (c *Controller) SetSort(primary rank.Primary) {
	c.mu.Lock()
	c.sortType = primary
	primarySort, tie := c.effectiveSortLocked()
	rank.Sort(c.results, primarySort, tie)
	c.activePos = 0
	c.mu.Unlock()
	c.render()
	c.renderer.SetActiveDescendant(0)
}

// SetLayout switches the list layout. Pure view state.
func (c *Controller) SetLayout(layout string) {
	c.mu.Lock()
	c.layout = layout
	c.mu.Unlock()
	c.renderer.SetLayout(layout)
}

// ShowMore reveals the next group of results.
func (c *Controller) ShowMore() {
	c.mu.Lock()
	if c.revealed*c.groupSize < len(c.results) {
		c.revealed++
	}
	c.mu.Unlock()
	c.render()
}

// MoveActive shifts the active descendant by delta (+1/-1). Movement never
// wraps; stepping past the last revealed item reveals the next group first,
// stepping past either end of the full result set is a no-op.
func (c *Controller) MoveActive(delta int) {
	c.mu.Lock()
	next := c.activePos + delta
	if c.activePos == 0 && delta > 0 {
		next = 1
	}
	if next < 1 || next > len(c.results) {
		c.mu.Unlock()
		return
	}
	revealedItems := c.revealed * c.groupSize
	if next > revealedItems {
		c.revealed++
	}
	c.activePos = next
	rerender := next > revealedItems
	c.mu.Unlock()

	if rerender {
		c.render()
	}
	c.renderer.SetActiveDescendant(next)
}

// Activate fires the activation callback for the active item, if any.
func (c *Controller) Activate() {
	c.mu.Lock()
	var item *Item
	if c.activePos >= 1 && c.activePos <= len(c.results) {
		item = &Item{Result: c.results[c.activePos-1], Revealed: true}
	}
	fn := c.onActive
	c.mu.Unlock()
	if item != nil && fn != nil {
		fn(*item)
	}
}

// Escape clears the query, resets visibility to the configured empty-query
// behaviour, and returns focus to the input.
func (c *Controller) Escape() {
	c.debounce.Cancel()
	c.Search("")
	c.renderer.FocusInput()
}

// State returns the current query and match count, for toolbars and tests.
func (c *Controller) State() (query string, matches int, activePos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query, len(c.results), c.activePos
}

// begin records the new query text and claims a generation token. Only the
// computation holding the latest token may commit its results.
func (c *Controller) begin(text string) (uint64, querySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = strings.ToLower(strings.TrimSpace(text))
	c.generation++
	return c.generation, c.snapshotLocked()
}

type querySnapshot struct {
	query   string
	filters search.Filters
}

func (c *Controller) snapshotLocked() querySnapshot {
	return querySnapshot{query: c.query, filters: c.filters}
}

// execute runs match + sort for one generation and commits if still
// current. A superseded computation runs to completion but its commit is a
// no-op, so a stale result can never overwrite a newer render.
func (c *Controller) execute(gen uint64, snap querySnapshot) {
	out := c.engine.Match(search.Query{
		Text:            snap.query,
		Filters:         snap.filters,
		EmptyVisibility: c.emptyVisibility,
	})

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.results = out.Results
	c.tagMatched = out.TagMatched
	primarySort, tie := c.effectiveSortLocked()
	rank.Sort(c.results, primarySort, tie)
	c.revealed = 1
	c.activePos = 0
	count := len(c.results)
	matchTypes := out.MatchTypes
	query := c.query
	filtersActive := c.filters.Active()
	onMatches := c.onMatches
	c.mu.Unlock()

	c.render()
	c.renderer.SetActiveDescendant(0)
	c.renderer.SetExpanded(count > 0)
	c.renderer.ShowEmptyState(count == 0 && (query != "" || filtersActive))
	if onMatches != nil {
		onMatches(count, matchTypes)
	}
}

// effectiveSortLocked resolves the automatic sort: title order while idle,
// relevance while searching with tag or title tie-breaking depending on
// what matched. Must be called with c.mu held.
func (c *Controller) effectiveSortLocked() (rank.Primary, rank.TieBreaker) {
	if c.sortType != "" {
		return c.sortType, rank.TieNone
	}
	if c.query == "" {
		return rank.ByTitle, rank.TieNone
	}
	tie := rank.TieTitle
	if c.tagMatched {
		tie = rank.TieTag
	}
	return rank.ByRelevance, tie
}

// render pushes the current window of results to the renderer.
func (c *Controller) render() {
	c.mu.Lock()
	revealedItems := c.revealed * c.groupSize
	items := make([]Item, len(c.results))
	for i, r := range c.results {
		items[i] = Item{Result: r, Revealed: i < revealedItems}
	}
	more := len(c.results) > revealedItems
	c.mu.Unlock()
	c.renderer.RenderResults(items, more)
}
