package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/index"
)

func testHandler() http.Handler {
	entries := []api.IndexEntry{
		{ID: "loc-1", Category: api.CategoryIndicator, Tag: "1",
			Title: "leadership", TitleWords: []string{"leadership"}},
		{ID: "loc-2", Category: api.CategoryComponent, Tag: "1.1",
			Title: "shared vision", TitleWords: []string{"shared", "vision"}},
		{ID: "res-1", Category: api.CategoryResource, Type: "document",
			Title: "vision guide", TitleWords: []string{"vision", "guide"},
			Indicators: []string{"1"}},
	}
	counts := api.NewCountMap()
	counts.Version = "v1"
	return New(index.NewMemoryStoreWith(entries, counts)).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, testHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchIndexArtifact(t *testing.T) {
	rec := get(t, testHandler(), "/data/search-index.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600, immutable", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var entries []api.IndexEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)
}

func TestCountsArtifact(t *testing.T) {
	rec := get(t, testHandler(), "/data/consideration-count.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600, immutable", rec.Header().Get("Cache-Control"))

	var counts api.CountMap
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, "v1", counts.Version)
}

func TestSearchEndpoint(t *testing.T) {
	rec := get(t, testHandler(), "/api/search?q=Vision")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "vision", resp.Query)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	// First-word title match outranks a later-word match.
	assert.Equal(t, "res-1", resp.Results[0].Entry.ID)
	assert.Equal(t, 1, resp.Results[0].Position)
}

func TestSearchEndpointFilters(t *testing.T) {
	rec := get(t, testHandler(), "/api/search?indicators=1&types=document")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "res-1", resp.Results[0].Entry.ID)
}

func TestSearchEndpointLimit(t *testing.T) {
	rec := get(t, testHandler(), "/api/search?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Results, 1)

	rec = get(t, testHandler(), "/api/search?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
