package api

// Category classifies a search index entry.
type Category string

const (
	CategoryIndicator     Category = "indicator"
	CategoryComponent     Category = "component"
	CategoryConsideration Category = "consideration"
	CategoryResource      Category = "resource"
)

// Categories lists every valid category in rubric order.
var Categories = []Category{
	CategoryIndicator,
	CategoryComponent,
	CategoryConsideration,
	CategoryResource,
}

// Phase is a maturity stage derived from the ratio of established considerations.
type Phase string

const (
	PhaseInitiating   Phase = "initiating"
	PhaseImplementing Phase = "implementing"
	PhaseDeveloping   Phase = "developing"
	PhaseSustaining   Phase = "sustaining"
)

// Phases lists the four phases in cascade order.
var Phases = []Phase{
	PhaseInitiating,
	PhaseImplementing,
	PhaseDeveloping,
	PhaseSustaining,
}

// Title returns the phase name capitalized for display
// ("initiating" -> "Initiating").
func (p Phase) Title() string {
	if p == "" {
		return ""
	}
	b := []byte(p)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// IndexEntry is one record of the precomputed search index.
// Rubric entries (indicator/component/consideration) carry a hierarchical
// dotted tag: "1" = indicator, "1.2" = component, "1.2.3" = consideration.
// Prefix matching on Tag is the mechanism for "contains" relationships.
//
// Title, TitleWords, Description and DescWords are lowercased and trimmed at
// build time so the match engine never needs to normalize at query time.
type IndexEntry struct {
	ID         string   `json:"id"`
	Category   Category `json:"category"`
	Title      string   `json:"title"`
	TitleWords []string `json:"titleWords"`
	Tag        string   `json:"tag,omitempty"`

	Description string   `json:"description,omitempty"`
	DescWords   []string `json:"descWords,omitempty"`
	DescStems   []string `json:"descStems,omitempty"`

	// Resource-only fields.
	Type           string   `json:"type,omitempty"`
	Date           int64    `json:"date,omitempty"` // ms since epoch
	Indicators     []string `json:"indicators,omitempty"`
	Components     []string `json:"components,omitempty"`
	Considerations []string `json:"considerations,omitempty"`
}

// ScopeCount aggregates consideration counts for one scope: the whole
// continuum, a single indicator, or a single component.
// The sum of the four phase counts always equals Total.
type ScopeCount struct {
	Total        int `json:"total"`
	Initiating   int `json:"initiating"`
	Implementing int `json:"implementing"`
	Developing   int `json:"developing"`
	Sustaining   int `json:"sustaining"`
}

// Phase returns the count for a single phase.
func (s ScopeCount) Phase(p Phase) int {
	switch p {
	case PhaseInitiating:
		return s.Initiating
	case PhaseImplementing:
		return s.Implementing
	case PhaseDeveloping:
		return s.Developing
	case PhaseSustaining:
		return s.Sustaining
	}
	return 0
}

// ConsiderationLink is the reverse lookup for a single consideration tag:
// which phase it belongs to and which indicator/component contain it.
type ConsiderationLink struct {
	Phase     Phase  `json:"phase"`
	Indicator string `json:"indicator"`
	Component string `json:"component"`
}

// ScopeContinuum is the key of the whole-rubric scope in a CountMap.
const ScopeContinuum = "continuum"

// CountMap is the consideration-count artifact: per-scope totals plus the
// per-consideration reverse lookup. Built once at build time; immutable at
// runtime. Version identifies the continuum structure it was built from;
// assessments stamped with an older version must fully regenerate their
// completion rollups instead of patching them incrementally.
type CountMap struct {
	Version string                       `json:"version"`
	Scopes  map[string]ScopeCount        `json:"scopes"`
	Links   map[string]ConsiderationLink `json:"links"`
}

// NewCountMap returns an empty CountMap with the continuum scope seeded.
func NewCountMap() *CountMap {
	return &CountMap{
		Scopes: map[string]ScopeCount{ScopeContinuum: {}},
		Links:  map[string]ConsiderationLink{},
	}
}

// Scope returns the counts for a scope key and whether it exists.
func (m *CountMap) Scope(key string) (ScopeCount, bool) {
	s, ok := m.Scopes[key]
	return s, ok
}

// Link returns the reverse lookup for a consideration tag.
func (m *CountMap) Link(tag string) (ConsiderationLink, bool) {
	l, ok := m.Links[tag]
	return l, ok
}
