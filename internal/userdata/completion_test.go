package userdata

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbed-digital/continuum/api"
)

func TestFullAndIncrementalCompletionAgree(t *testing.T) {
	counts := newTestCounts()
	tags := []string{"1.1.1", "1.1.2", "1.1.3", "1.1.4"}

	incremental := Assessment{ContinuumCompletion: CompletionMap{}}
	for _, tag := range tags {
		incremental.ConsiderationsEstablished = append(incremental.ConsiderationsEstablished, tag)
		updateCompletion(&incremental, counts.m, tag, 1)
	}

	full := Assessment{ConsiderationsEstablished: tags}
	generateCompletion(&full, counts.m)

	for scope, want := range full.ContinuumCompletion {
		got, ok := incremental.ContinuumCompletion[scope]
		require.True(t, ok, "scope %s missing from incremental result", scope)
		assert.Equal(t, *want, *got, "scope %s diverged", scope)
	}
}

func TestRatiosGuardDivisionByZero(t *testing.T) {
	e := newCompletionEntry(api.ScopeCount{})
	e.refresh()
	assert.Zero(t, e.Ratio)
	assert.Zero(t, e.InitiatingRatio)
	assert.Equal(t, "Initiating", e.Phase)
}

func TestCountsClampAtZero(t *testing.T) {
	counts := newTestCounts()
	a := Assessment{ContinuumCompletion: CompletionMap{}}
	updateCompletion(&a, counts.m, "1.1.1", -1)

	e := a.ContinuumCompletion[api.ScopeContinuum]
	require.NotNil(t, e)
	assert.Zero(t, e.Count)
	assert.Zero(t, e.InitiatingCount)
}

func TestPhaseCascade(t *testing.T) {
	// Each phase has 4 considerations at this scope.
	entry := func(initiating, implementing, developing, sustaining int) *CompletionEntry {
		e := newCompletionEntry(api.ScopeCount{
			Total: 16, Initiating: 4, Implementing: 4, Developing: 4, Sustaining: 4,
		})
		e.InitiatingCount = initiating
		e.ImplementingCount = implementing
		e.DevelopingCount = developing
		e.SustainingCount = sustaining
		e.Count = initiating + implementing + developing + sustaining
		e.refresh()
		return e
	}

	// Below every threshold.
	assert.Equal(t, "Initiating", entry(2, 0, 0, 0).Phase)
	// 3/4 initiating but the next phase has not started.
	assert.Equal(t, "Initiating", entry(3, 0, 0, 0).Phase)
	// 3/4 current and 1/4 next advances.
	assert.Equal(t, "Implementing", entry(3, 1, 0, 0).Phase)
	// A fully established phase advances regardless of the next.
	assert.Equal(t, "Implementing", entry(4, 0, 0, 0).Phase)
	// The check cascades, jumping multiple phases in one evaluation.
	assert.Equal(t, "Developing", entry(4, 4, 0, 0).Phase)
	assert.Equal(t, "Sustaining", entry(4, 4, 4, 0).Phase)
	assert.Equal(t, "Sustaining", entry(4, 4, 3, 1).Phase)
	// A stalled middle phase stops the cascade.
	assert.Equal(t, "Implementing", entry(4, 2, 4, 4).Phase)
}

func TestUnknownTagIsIgnored(t *testing.T) {
	counts := newTestCounts()
	a := Assessment{ConsiderationsEstablished: []string{"9.9.9"}}
	generateCompletion(&a, counts.m)
	assert.Zero(t, a.ContinuumCompletion[api.ScopeContinuum].Count)
}

// When the continuum structure changes underneath an assessment, the next
// consideration change regenerates the whole rollup instead of patching
// counts derived from the old structure.
func TestVersionMismatchForcesRegeneration(t *testing.T) {
	counts := newTestCounts()
	fs := memfs.New()
	s, err := Open(fs, "userdata.json", counts)
	require.NoError(t, err)

	a, err := s.CreateAssessment("A", "", "2025", "")
	require.NoError(t, err)
	require.NoError(t, s.EstablishConsideration(a.ID, "1.1.1"))

	// The continuum grows a second initiating consideration.
	counts.m.Version = "v-test-2"
	sc := counts.m.Scopes[api.ScopeContinuum]
	sc.Total++
	sc.Initiating++
	counts.m.Scopes[api.ScopeContinuum] = sc
	counts.m.Links["1.1.5"] = api.ConsiderationLink{Phase: api.PhaseInitiating, Indicator: "1", Component: "1.1"}

	require.NoError(t, s.EstablishConsideration(a.ID, "1.1.5"))
	got, err := s.Assessment(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "v-test-2", got.ContinuumVersion)

	e := got.ContinuumCompletion[api.ScopeContinuum]
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Count)
	assert.Equal(t, 5, e.Total, "totals rebuilt against the new structure")
	assert.Equal(t, 2, e.InitiatingCount)
}
