package userdata

// Schema versions of the persisted sub-objects. Bumping one requires a
// matching step in the migration chain (migrate.go).
const (
	PreferencesSchemaVersion = "0.2"
	UIStateSchemaVersion     = "0.4"
	AssessmentSchemaVersion  = "0.2"
)

// UI modes.
const (
	ModeReading    = "reading"
	ModeAssessment = "assessment"
)

// StatusInProgress is the status a new assessment starts in.
const StatusInProgress = "In Progress"

// PageRef points at a site page, for "pick up where you left off" UI.
type PageRef struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Preferences are durable user choices.
type Preferences struct {
	ResourcePageSort         string   `json:"resourcePageSort"`
	ResourcePageLayout       string   `json:"resourcePageLayout"`
	ReportIncludedIndicators []string `json:"reportIncludedIndicators"`
	Theme                    string   `json:"theme"`
	SchemaVersion            string   `json:"schemaVersion"`
}

// UIState is transient-but-persisted interface state. An active id of 0
// means none; a non-zero id referencing a deleted assessment is treated as
// soft-null by the getters rather than an error.
type UIState struct {
	ActiveAssessmentID  int      `json:"activeAssessmentId"`
	ActiveReportID      int      `json:"activeReportId"`
	LastModifiedPage    *PageRef `json:"lastModifiedPage"`
	LastVisitedPage     *PageRef `json:"lastVisitedPage"`
	Mode                string   `json:"mode"`
	OnboardingCompleted bool     `json:"onboardingCompleted"`
	SchemaVersion       string   `json:"schemaVersion"`
}

// ChangeEntry is one change-log line on an assessment.
type ChangeEntry struct {
	Date     int64  `json:"date"` // ms since epoch
	Assessor string `json:"assessor"`
	Message  string `json:"message"`
}

// ChangeLogCap limits how many change entries an assessment retains;
// the oldest entry is evicted first.
const ChangeLogCap = 20

// CompletionEntry is the derived completion rollup for one scope
// ("continuum", an indicator tag, or a component tag).
type CompletionEntry struct {
	Count             int `json:"count"`
	InitiatingCount   int `json:"initiatingCount"`
	ImplementingCount int `json:"implementingCount"`
	DevelopingCount   int `json:"developingCount"`
	SustainingCount   int `json:"sustainingCount"`

	Total             int `json:"total"`
	InitiatingTotal   int `json:"initiatingTotal"`
	ImplementingTotal int `json:"implementingTotal"`
	DevelopingTotal   int `json:"developingTotal"`
	SustainingTotal   int `json:"sustainingTotal"`

	Ratio             float64 `json:"ratio"`
	InitiatingRatio   float64 `json:"initiatingRatio"`
	ImplementingRatio float64 `json:"implementingRatio"`
	DevelopingRatio   float64 `json:"developingRatio"`
	SustainingRatio   float64 `json:"sustainingRatio"`

	// Phase is the display-cased classification
	// (Initiating/Implementing/Developing/Sustaining).
	Phase string `json:"phase"`
}

// CompletionMap holds the completion entries keyed by scope.
type CompletionMap map[string]*CompletionEntry

// Assessment is one user-created assessment record.
type Assessment struct {
	ID             int      `json:"id"`
	School         string   `json:"school"`
	District       string   `json:"district"`
	ReportingYear  string   `json:"reportingYear"`
	Status         string   `json:"status"`
	Assessors      []string `json:"assessors"`
	ActiveAssessor string   `json:"activeAssessor"`
	LastModifiedBy string   `json:"lastModifiedBy"`

	DateCreated   int64 `json:"dateCreated"`
	DateModified  int64 `json:"dateModified"`
	DateCompleted int64 `json:"dateCompleted"`
	DateExported  int64 `json:"dateExported"`

	UnexportedChanges bool `json:"unexportedChanges"`

	ChangeLog                 []ChangeEntry `json:"changeLog"`
	ConsiderationsEstablished []string      `json:"considerationsEstablished"`
	ContinuumCompletion       CompletionMap `json:"continuumCompletion"`
	ContinuumVersion          string        `json:"continuumVersion"`
	SchemaVersion             string        `json:"schemaVersion"`
}

// UserData is the root persisted object, serialized as one JSON blob.
type UserData struct {
	Preferences Preferences  `json:"uiPreferences"`
	UIState     UIState      `json:"uiState"`
	Assessments []Assessment `json:"assessments"`
}

// DefaultUserData returns the fresh-profile state.
func DefaultUserData() UserData {
	return UserData{
		Preferences: Preferences{
			ResourcePageSort:         "date",
			ResourcePageLayout:       "compact",
			ReportIncludedIndicators: []string{"1", "2", "3", "4", "5", "6", "7"},
			Theme:                    "light",
			SchemaVersion:            PreferencesSchemaVersion,
		},
		UIState: UIState{
			Mode:          ModeReading,
			SchemaVersion: UIStateSchemaVersion,
		},
	}
}

// Clone returns a deep copy. Subscribers only ever see clones so they can
// never mutate store state.
func (u UserData) Clone() UserData {
	out := u
	out.Preferences.ReportIncludedIndicators = cloneSlice(u.Preferences.ReportIncludedIndicators)
	out.UIState.LastModifiedPage = clonePage(u.UIState.LastModifiedPage)
	out.UIState.LastVisitedPage = clonePage(u.UIState.LastVisitedPage)
	out.Assessments = make([]Assessment, len(u.Assessments))
	for i := range u.Assessments {
		out.Assessments[i] = u.Assessments[i].Clone()
	}
	return out
}

// Clone returns a deep copy of one assessment.
func (a Assessment) Clone() Assessment {
	out := a
	out.Assessors = cloneSlice(a.Assessors)
	out.ConsiderationsEstablished = cloneSlice(a.ConsiderationsEstablished)
	out.ChangeLog = make([]ChangeEntry, len(a.ChangeLog))
	copy(out.ChangeLog, a.ChangeLog)
	if a.ContinuumCompletion != nil {
		out.ContinuumCompletion = make(CompletionMap, len(a.ContinuumCompletion))
		for k, v := range a.ContinuumCompletion {
			entry := *v
			out.ContinuumCompletion[k] = &entry
		}
	}
	return out
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func clonePage(p *PageRef) *PageRef {
	if p == nil {
		return nil
	}
	ref := *p
	return &ref
}
