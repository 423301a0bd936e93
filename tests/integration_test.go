package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/content"
	"github.com/nbed-digital/continuum/internal/export"
	"github.com/nbed-digital/continuum/internal/index"
	"github.com/nbed-digital/continuum/internal/server"
	"github.com/nbed-digital/continuum/internal/userdata"
)

// testFixture carries one built content tree through the whole pipeline:
// content ingest, the SQLite artifact, the HTTP surface, and the
// assessment store wired to the loaded counts.
type testFixture struct {
	store *index.MemoryStore
	users *userdata.Store
}

func writeFixtureContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"indicators/1.yaml": `
tag: "1"
title: Leadership
`,
		"components/1.1.yaml": `
tag: "1.1"
title: Shared Vision
initiating:
  considerations:
    - tag: "1.1.1"
      title: Draft a vision statement
    - tag: "1.1.2"
      title: Gather community input
implementing:
  considerations:
    - tag: "1.1.3"
      title: Share the vision with staff
sustaining:
  considerations:
    - tag: "1.1.4"
      title: Embed the vision in planning
`,
		"resources/guide.yaml": `
title: Vision Planning Guide
description: A practical guide to planning a shared vision
type: document
dateAdded: "2024-03-01"
published: true
linkedIndicators: ["1"]
linkedComponents: ["1.1"]
linkedConsiderations: ["1.1.1"]
`,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// newFixture builds the content, round-trips it through the SQLite
// artifact, and opens an assessment store against the loaded counts.
func newFixture(t *testing.T) *testFixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	entries, counts, err := content.NewEngine(writeFixtureContent(t)).Build()
	require.NoError(t, err)
	require.NoError(t, index.WriteSQLite(dbPath, entries, counts))

	store, err := index.OpenSQLite(dbPath)
	require.NoError(t, err)

	users, err := userdata.Open(memfs.New(), "userdata.json", store)
	require.NoError(t, err)
	return &testFixture{store: store, users: users}
}

func TestArtifactRoundTripServesOverHTTP(t *testing.T) {
	f := newFixture(t)
	h := server.New(f.store).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/search-index.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600, immutable", rec.Header().Get("Cache-Control"))

	var entries []api.IndexEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	// 1 indicator + 1 component + 4 considerations + 1 resource.
	assert.Len(t, entries, 7)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=1.1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total      int  `json:"total"`
		TagMatched bool `json:"tagMatched"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total, "component plus its four considerations")
	assert.True(t, resp.TagMatched)
}

func TestAssessmentLifecycle(t *testing.T) {
	f := newFixture(t)

	a, err := f.users.CreateAssessment("Park Street School", "ASD-S", "2025-2026", "Jo Brown")
	require.NoError(t, err)
	assert.Equal(t, f.store.Counts().Version, a.ContinuumVersion)

	// Establish the two initiating considerations: 2/2 initiating with
	// implementing untouched advances the continuum scope.
	require.NoError(t, f.users.EstablishConsideration(a.ID, "1.1.1"))
	require.NoError(t, f.users.EstablishConsideration(a.ID, "1.1.2"))

	got, err := f.users.Assessment(a.ID)
	require.NoError(t, err)
	e := got.ContinuumCompletion[api.ScopeContinuum]
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, 4, e.Total)
	assert.Equal(t, float64(1), e.InitiatingRatio)
	assert.Equal(t, "Implementing", e.Phase)
}

func TestExportImportRoundTripWithConflicts(t *testing.T) {
	f := newFixture(t)

	a, err := f.users.CreateAssessment("Park Street School", "ASD-S", "2025-2026", "Jo Brown")
	require.NoError(t, err)
	require.NoError(t, f.users.EstablishConsideration(a.ID, "1.1.1"))

	current, err := f.users.Assessment(a.ID)
	require.NoError(t, err)
	raw, err := export.Marshal(current)
	require.NoError(t, err)
	require.NoError(t, f.users.MarkExported(a.ID))

	name := export.Filename(current, time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "assessment_park-street-school_2025-2026_export-2026-08-30.csv", name)

	incoming, err := export.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, current.ConsiderationsEstablished, incoming.ConsiderationsEstablished)

	conflict := export.DetectConflict(f.users.Assessments(), incoming)
	require.NotNil(t, conflict.SameID)
	require.NotNil(t, conflict.SameSchoolYear)

	// Keep both: the import lands under a fresh id.
	require.NoError(t, export.Apply(f.users, incoming, export.ResolveKeepBoth))
	assessments := f.users.Assessments()
	require.Len(t, assessments, 2)
	assert.NotEqual(t, assessments[0].ID, assessments[1].ID)
}
