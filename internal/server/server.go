// Package server exposes the search index and consideration counts over
// HTTP: the two static data artifacts that back the site, plus a query
// endpoint for clients that prefer server-side matching.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/index"
	"github.com/nbed-digital/continuum/internal/rank"
	"github.com/nbed-digital/continuum/internal/search"
)

// artifactCacheControl marks the data artifacts as long-lived: they only
// change when the content is rebuilt and redeployed.
const artifactCacheControl = "public, max-age=3600, immutable"

// defaultLimit bounds /api/search responses when the client gives none.
const defaultLimit = 50

// Server serves one index snapshot source. The store may be swapped
// behind it by a content watcher; every request reads the current
// snapshot.
type Server struct {
	store  index.Store
	engine *search.Engine
}

// New wires a server over the given store, matching all categories.
func New(store index.Store) *Server {
	return &Server{
		store:  store,
		engine: search.New(store, api.Categories...),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/data/search-index.json", s.handleSearchIndex)
	r.Get("/data/consideration-count.json", s.handleCounts)
	r.Get("/api/search", s.handleSearch)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", artifactCacheControl)
	writeJSON(w, s.store.Entries())
}

func (s *Server) handleCounts(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", artifactCacheControl)
	writeJSON(w, s.store.Counts())
}

// searchResponse is the /api/search payload.
type searchResponse struct {
	Query      string             `json:"query"`
	Total      int                `json:"total"`
	TagMatched bool               `json:"tagMatched"`
	MatchTypes []search.MatchType `json:"matchTypes"`
	Results    []search.Result    `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	text := strings.ToLower(strings.TrimSpace(params.Get("q")))

	q := search.Query{
		Text:            text,
		EmptyVisibility: search.VisibilityShown,
		Filters: search.Filters{
			Types:          splitParam(params.Get("types")),
			Indicators:     splitParam(params.Get("indicators")),
			Components:     splitParam(params.Get("components")),
			Considerations: splitParam(params.Get("considerations")),
		},
	}
	out := s.engine.Match(q)

	primary, tie := sortOrder(params.Get("sort"), text, out.TagMatched)
	rank.Sort(out.Results, primary, tie)

	limit := defaultLimit
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	total := len(out.Results)
	if limit < total {
		out.Results = out.Results[:limit]
	}

	types := make([]search.MatchType, 0, len(out.MatchTypes))
	for mt := range out.MatchTypes {
		types = append(types, mt)
	}
	writeJSON(w, searchResponse{
		Query:      text,
		Total:      total,
		TagMatched: out.TagMatched,
		MatchTypes: types,
		Results:    out.Results,
	})
}

// sortOrder applies the same defaulting the interactive list uses: title
// order for browsing, relevance for queries, with the tie key following
// whether a tag matched.
func sortOrder(param, text string, tagMatched bool) (rank.Primary, rank.TieBreaker) {
	switch param {
	case "title":
		return rank.ByTitle, rank.TieNone
	case "date":
		return rank.ByDate, rank.TieNone
	case "relevance":
		return rank.ByRelevance, rank.TieNone
	}
	if text == "" {
		return rank.ByTitle, rank.TieNone
	}
	if tagMatched {
		return rank.ByRelevance, rank.TieTag
	}
	return rank.ByRelevance, rank.TieTitle
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}
