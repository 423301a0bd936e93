package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kljensen/snowball"
	"github.com/nbed-digital/continuum/api"
)

var componentTagRe = regexp.MustCompile(`^(\d+)\.\d+$`)

// Engine walks a content directory and produces the two build-time
// artifacts: the search index and the consideration count map.
//
// Layout:
//
//	<dir>/indicators/*.{yaml,yml,json}
//	<dir>/components/*.{yaml,yml,json}
//	<dir>/resources/*.{yaml,yml,json}
type Engine struct {
	Dir string
}

func NewEngine(dir string) *Engine {
	return &Engine{Dir: dir}
}

// Build reads the whole content tree. Records are processed in tag order so
// ids and ordinals are stable across rebuilds of unchanged content.
func (e *Engine) Build() ([]api.IndexEntry, *api.CountMap, error) {
	indicators, err := loadAll[IndicatorRecord](filepath.Join(e.Dir, "indicators"))
	if err != nil {
		return nil, nil, err
	}
	components, err := loadAll[ComponentRecord](filepath.Join(e.Dir, "components"))
	if err != nil {
		return nil, nil, err
	}
	resources, err := loadAll[ResourceRecord](filepath.Join(e.Dir, "resources"))
	if err != nil {
		return nil, nil, err
	}

	sortByTag(indicators, func(r IndicatorRecord) string { return r.Tag })
	sortByTag(components, func(r ComponentRecord) string { return r.Tag })

	entries := buildIndex(indicators, components, resources)
	counts, err := buildCounts(indicators, components)
	if err != nil {
		return nil, nil, err
	}
	return entries, counts, nil
}

// loadAll reads every record file directly under dir. A missing directory is
// not an error; the content tree may legitimately have no resources yet.
func loadAll[T any](dir string) ([]T, error) {
	names, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content dir %s: %w", dir, err)
	}
	var out []T
	for _, d := range names {
		if d.IsDir() {
			continue
		}
		switch filepath.Ext(d.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		var rec T
		if err := loadRecord(filepath.Join(dir, d.Name()), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// buildIndex assembles the flat search index: rubric entries first
// (indicator, then each component followed by its considerations in phase
// order), then published resources. Ids are loc-N / res-N counters.
func buildIndex(indicators []IndicatorRecord, components []ComponentRecord, resources []ResourceRecord) []api.IndexEntry {
	var entries []api.IndexEntry
	locIndex := 1

	rubricEntry := func(category api.Category, tag, title string) {
		entries = append(entries, api.IndexEntry{
			ID:         fmt.Sprintf("loc-%d", locIndex),
			Category:   category,
			Title:      normalize(title),
			TitleWords: words(title),
			Tag:        normalize(tag),
		})
		locIndex++
	}

	for _, ind := range indicators {
		rubricEntry(api.CategoryIndicator, ind.Tag, ind.Title)
	}
	for i := range components {
		comp := &components[i]
		rubricEntry(api.CategoryComponent, comp.Tag, comp.Title)
		for _, phase := range api.Phases {
			block := comp.Phase(string(phase))
			for _, cons := range block.Considerations {
				rubricEntry(api.CategoryConsideration, cons.Tag, cons.Title)
			}
		}
	}

	resIndex := 1
	for _, res := range resources {
		if !res.Published {
			continue
		}
		entries = append(entries, api.IndexEntry{
			ID:             fmt.Sprintf("res-%d", resIndex),
			Category:       api.CategoryResource,
			Title:          normalize(res.Title),
			TitleWords:     words(res.Title),
			Description:    normalize(res.Description),
			DescWords:      words(res.Description),
			DescStems:      stems(res.Description),
			Date:           parseDate(res.DateAdded),
			Type:           res.Type,
			Indicators:     res.LinkedIndicators,
			Components:     res.LinkedComponents,
			Considerations: res.LinkedConsiderations,
		})
		resIndex++
	}
	return entries
}

// buildCounts aggregates the consideration count map: running totals at the
// continuum, indicator and component scopes plus the per-consideration
// reverse lookup. Version is a content hash of the result.
func buildCounts(indicators []IndicatorRecord, components []ComponentRecord) (*api.CountMap, error) {
	m := api.NewCountMap()
	for _, ind := range indicators {
		m.Scopes[ind.Tag] = api.ScopeCount{}
	}

	for i := range components {
		comp := &components[i]
		match := componentTagRe.FindStringSubmatch(comp.Tag)
		if match == nil {
			return nil, fmt.Errorf("component tag %q is not of the form N.N", comp.Tag)
		}
		indicatorTag := match[1]
		m.Scopes[comp.Tag] = api.ScopeCount{}

		for _, phase := range api.Phases {
			block := comp.Phase(string(phase))
			for _, cons := range block.Considerations {
				m.Links[cons.Tag] = api.ConsiderationLink{
					Phase:     phase,
					Indicator: indicatorTag,
					Component: comp.Tag,
				}
				for _, scope := range []string{api.ScopeContinuum, indicatorTag, comp.Tag} {
					bump(m.Scopes, scope, phase)
				}
			}
		}
	}

	m.Version = countVersion(m)
	return m, nil
}

func bump(scopes map[string]api.ScopeCount, key string, phase api.Phase) {
	s := scopes[key]
	s.Total++
	switch phase {
	case api.PhaseInitiating:
		s.Initiating++
	case api.PhaseImplementing:
		s.Implementing++
	case api.PhaseDeveloping:
		s.Developing++
	case api.PhaseSustaining:
		s.Sustaining++
	}
	scopes[key] = s
}

// countVersion hashes the canonical JSON form of the scope and link maps.
// encoding/json emits map keys sorted, so the hash is deterministic for the
// same continuum structure regardless of build order.
func countVersion(m *api.CountMap) string {
	blob, err := json.Marshal(struct {
		Scopes map[string]api.ScopeCount        `json:"scopes"`
		Links  map[string]api.ConsiderationLink `json:"links"`
	}{m.Scopes, m.Links})
	if err != nil {
		log.Printf("count map hash: %v", err)
		return "unversioned"
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:6])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func words(s string) []string {
	return strings.Fields(normalize(s))
}

// stems produces snowball-stemmed description words for the lowest-weight
// match tier. Words the stemmer rejects are kept as-is.
func stems(s string) []string {
	raw := words(s)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		stemmed, err := snowball.Stem(w, "english", true)
		if err != nil || stemmed == "" {
			stemmed = w
		}
		out = append(out, stemmed)
	}
	return out
}

// parseDate accepts the date formats the CMS has exported over time.
func parseDate(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	log.Printf("unparseable resource date %q", s)
	return 0
}
