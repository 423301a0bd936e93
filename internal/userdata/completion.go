package userdata

import "github.com/nbed-digital/continuum/api"

// Phase advancement thresholds. A scope advances past a phase when that
// phase is three-quarters established and the next has been started, or
// when the phase is fully established regardless of the next.
const (
	advanceCurrentRatio = 0.75
	advanceNextRatio    = 0.25
)

// generateCompletion rebuilds the whole rollup from the established list.
// It is the reference computation; incremental updates must converge to
// the same result.
func generateCompletion(a *Assessment, counts *api.CountMap) {
	m := make(CompletionMap, len(counts.Scopes))
	for key, sc := range counts.Scopes {
		m[key] = newCompletionEntry(sc)
	}
	for _, tag := range a.ConsiderationsEstablished {
		link, ok := counts.Link(tag)
		if !ok {
			continue
		}
		for _, key := range scopeKeys(link) {
			if e := m[key]; e != nil {
				e.add(link.Phase, 1)
			}
		}
	}
	for _, e := range m {
		e.refresh()
	}
	a.ContinuumCompletion = m
}

// updateCompletion applies a single establish (+1) or retract (-1) to the
// three scopes the tag rolls up into.
func updateCompletion(a *Assessment, counts *api.CountMap, tag string, delta int) {
	link, ok := counts.Link(tag)
	if !ok {
		return
	}
	if a.ContinuumCompletion == nil {
		a.ContinuumCompletion = CompletionMap{}
	}
	for _, key := range scopeKeys(link) {
		e := a.ContinuumCompletion[key]
		if e == nil {
			sc, _ := counts.Scope(key)
			e = newCompletionEntry(sc)
			a.ContinuumCompletion[key] = e
		}
		e.add(link.Phase, delta)
		e.refresh()
	}
}

// scopeKeys lists the rollup targets for one consideration: the whole
// continuum plus its indicator and component.
func scopeKeys(l api.ConsiderationLink) []string {
	keys := make([]string, 0, 3)
	keys = append(keys, api.ScopeContinuum)
	if l.Indicator != "" {
		keys = append(keys, l.Indicator)
	}
	if l.Component != "" {
		keys = append(keys, l.Component)
	}
	return keys
}

func newCompletionEntry(sc api.ScopeCount) *CompletionEntry {
	return &CompletionEntry{
		Total:             sc.Total,
		InitiatingTotal:   sc.Initiating,
		ImplementingTotal: sc.Implementing,
		DevelopingTotal:   sc.Developing,
		SustainingTotal:   sc.Sustaining,
	}
}

// add bumps the overall and per-phase counts, clamping at zero so a stray
// retract can never drive a count negative.
func (e *CompletionEntry) add(p api.Phase, delta int) {
	e.Count = clampZero(e.Count + delta)
	switch p {
	case api.PhaseInitiating:
		e.InitiatingCount = clampZero(e.InitiatingCount + delta)
	case api.PhaseImplementing:
		e.ImplementingCount = clampZero(e.ImplementingCount + delta)
	case api.PhaseDeveloping:
		e.DevelopingCount = clampZero(e.DevelopingCount + delta)
	case api.PhaseSustaining:
		e.SustainingCount = clampZero(e.SustainingCount + delta)
	}
}

// refresh recomputes the derived ratios and the phase classification.
func (e *CompletionEntry) refresh() {
	e.Ratio = ratio(e.Count, e.Total)
	e.InitiatingRatio = ratio(e.InitiatingCount, e.InitiatingTotal)
	e.ImplementingRatio = ratio(e.ImplementingCount, e.ImplementingTotal)
	e.DevelopingRatio = ratio(e.DevelopingCount, e.DevelopingTotal)
	e.SustainingRatio = ratio(e.SustainingCount, e.SustainingTotal)
	e.Phase = e.classify()
}

// classify walks the phase cascade from Initiating upward, advancing while
// the current phase clears its threshold.
func (e *CompletionEntry) classify() string {
	ratios := []float64{
		e.InitiatingRatio,
		e.ImplementingRatio,
		e.DevelopingRatio,
		e.SustainingRatio,
	}
	idx := 0
	for idx < len(ratios)-1 {
		cur, next := ratios[idx], ratios[idx+1]
		if (cur >= advanceCurrentRatio && next >= advanceNextRatio) || cur == 1 {
			idx++
			continue
		}
		break
	}
	return api.Phases[idx].Title()
}

func ratio(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
