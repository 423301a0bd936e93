package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbed-digital/continuum/api"
)

// writeContentTree lays out a small rubric: one indicator, one component
// with a consideration per phase, and two resources (one unpublished).
func writeContentTree(t *testing.T) string {
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
implementing:
  considerations:
    - tag: "1.1.2"
      title: Share the vision with staff
developing:
  considerations:
    - tag: "1.1.3"
      title: Review the vision annually
sustaining:
  considerations:
    - tag: "1.1.4"
      title: Embed the vision in planning
`,
		"resources/guide.json": `{
  "title": "Vision Planning Guide",
  "description": "A practical guide to planning a shared vision",
  "type": "document",
  "dateAdded": "2024-03-01",
  "published": true,
  "linkedIndicators": ["1"],
  "linkedComponents": ["1.1"],
  "linkedConsiderations": ["1.1.1"]
}`,
		"resources/draft.yaml": `
title: Unfinished Draft
description: Not ready yet
type: document
published: false
`,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestBuildIndexOrderAndIDs(t *testing.T) {
	entries, _, err := NewEngine(writeContentTree(t)).Build()
	require.NoError(t, err)

	// Indicator, component, its four considerations in phase order, then
	// the one published resource.
	require.Len(t, entries, 7)
	assert.Equal(t, "loc-1", entries[0].ID)
	assert.Equal(t, api.CategoryIndicator, entries[0].Category)
	assert.Equal(t, "leadership", entries[0].Title)

	assert.Equal(t, api.CategoryComponent, entries[1].Category)
	assert.Equal(t, "1.1", entries[1].Tag)

	tags := []string{entries[2].Tag, entries[3].Tag, entries[4].Tag, entries[5].Tag}
	assert.Equal(t, []string{"1.1.1", "1.1.2", "1.1.3", "1.1.4"}, tags)

	res := entries[6]
	assert.Equal(t, "res-1", res.ID)
	assert.Equal(t, api.CategoryResource, res.Category)
	assert.Equal(t, "vision planning guide", res.Title)
	assert.Equal(t, []string{"vision", "planning", "guide"}, res.TitleWords)
	assert.NotEmpty(t, res.DescStems)
	assert.NotZero(t, res.Date)
	assert.Equal(t, []string{"1.1.1"}, res.Considerations)
}

func TestBuildSkipsUnpublishedResources(t *testing.T) {
	entries, _, err := NewEngine(writeContentTree(t)).Build()
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "unfinished draft", e.Title)
	}
}

func TestBuildCounts(t *testing.T) {
	_, counts, err := NewEngine(writeContentTree(t)).Build()
	require.NoError(t, err)

	continuum, ok := counts.Scope(api.ScopeContinuum)
	require.True(t, ok)
	assert.Equal(t, api.ScopeCount{Total: 4, Initiating: 1, Implementing: 1, Developing: 1, Sustaining: 1}, continuum)

	ind, ok := counts.Scope("1")
	require.True(t, ok)
	assert.Equal(t, 4, ind.Total)

	comp, ok := counts.Scope("1.1")
	require.True(t, ok)
	assert.Equal(t, 4, comp.Total)

	link, ok := counts.Link("1.1.3")
	require.True(t, ok)
	assert.Equal(t, api.PhaseDeveloping, link.Phase)
	assert.Equal(t, "1", link.Indicator)
	assert.Equal(t, "1.1", link.Component)
}

func TestCountVersionStableAcrossRebuilds(t *testing.T) {
	dir := writeContentTree(t)
	_, first, err := NewEngine(dir).Build()
	require.NoError(t, err)
	_, second, err := NewEngine(dir).Build()
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.NotEmpty(t, first.Version)
}

func TestCountVersionChangesWithStructure(t *testing.T) {
	dir := writeContentTree(t)
	_, before, err := NewEngine(dir).Build()
	require.NoError(t, err)

	extra := `
tag: "1.2"
title: Another Component
initiating:
  considerations:
    - tag: "1.2.1"
      title: Start something new
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components", "1.2.yaml"), []byte(extra), 0o644))

	_, after, err := NewEngine(dir).Build()
	require.NoError(t, err)
	assert.NotEqual(t, before.Version, after.Version)
}

func TestBuildRejectsMalformedComponentTag(t *testing.T) {
	dir := writeContentTree(t)
	bad := "tag: \"oops\"\ntitle: Broken\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components", "bad.yaml"), []byte(bad), 0o644))

	_, _, err := NewEngine(dir).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestTagLess(t *testing.T) {
	assert.True(t, tagLess("1.2", "1.10"))
	assert.True(t, tagLess("1", "1.1"))
	assert.False(t, tagLess("2.1", "1.9"))
}

func TestParseDateFormats(t *testing.T) {
	assert.NotZero(t, parseDate("2024-03-01"))
	assert.NotZero(t, parseDate("2024-03-01T10:00:00Z"))
	assert.NotZero(t, parseDate("2024-03-01 10:00:00"))
	assert.Zero(t, parseDate(""))
	assert.Zero(t, parseDate("yesterday"))
}
