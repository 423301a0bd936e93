package export

import "github.com/nbed-digital/continuum/internal/userdata"

// Conflict describes how an imported assessment collides with the
// existing set. The two collision kinds are detected independently: an
// import can hit a stored record's id, a different record's school and
// reporting year, both, or neither.
type Conflict struct {
	// SameID is the stored assessment whose id the import would take.
	SameID *userdata.Assessment
	// SameSchoolYear is the stored assessment covering the same school
	// and reporting year.
	SameSchoolYear *userdata.Assessment
}

// Any reports whether either collision was found.
func (c Conflict) Any() bool {
	return c.SameID != nil || c.SameSchoolYear != nil
}

// DetectConflict checks an incoming assessment against the stored set.
func DetectConflict(existing []userdata.Assessment, incoming userdata.Assessment) Conflict {
	var c Conflict
	for i := range existing {
		a := &existing[i]
		if c.SameID == nil && a.ID == incoming.ID {
			c.SameID = a
		}
		if c.SameSchoolYear == nil &&
			a.School == incoming.School && a.ReportingYear == incoming.ReportingYear {
			c.SameSchoolYear = a
		}
	}
	return c
}

// Resolution says what to do with a conflicting import.
type Resolution int

const (
	// ResolveReplace overwrites the stored record that shares the id.
	ResolveReplace Resolution = iota
	// ResolveKeepBoth stores the import under a freshly allocated id.
	ResolveKeepBoth
	// ResolveSkip drops the import.
	ResolveSkip
)

// Apply folds an imported assessment into the store according to the
// chosen resolution. With no conflict the resolution is ignored and the
// record is stored as-is.
func Apply(s *userdata.Store, incoming userdata.Assessment, res Resolution) error {
	c := DetectConflict(s.Assessments(), incoming)
	if !c.Any() {
		return s.SetAssessment(incoming)
	}
	switch res {
	case ResolveReplace:
		if c.SameID == nil && c.SameSchoolYear != nil {
			incoming.ID = c.SameSchoolYear.ID
		}
		return s.SetAssessment(incoming)
	case ResolveKeepBoth:
		fresh, err := s.CreateAssessment(incoming.School, incoming.District,
			incoming.ReportingYear, incoming.ActiveAssessor)
		if err != nil {
			return err
		}
		incoming.ID = fresh.ID
		return s.SetAssessment(incoming)
	case ResolveSkip:
		return nil
	}
	return nil
}
