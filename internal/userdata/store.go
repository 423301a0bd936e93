package userdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/nbed-digital/continuum/api"
)

// ErrNoAssessment is returned when an assessment id does not resolve.
var ErrNoAssessment = errors.New("userdata: assessment not found")

// ErrBadTag is returned when a consideration tag is not of the
// indicator.component.consideration form.
var ErrBadTag = errors.New("userdata: malformed consideration tag")

var considerationTagRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Counter supplies the continuum totals used to derive completion.
// index.Store satisfies it.
type Counter interface {
	Counts() *api.CountMap
}

// Changes maps a section name ("uiPreferences", "uiState", "assessments")
// to the fields that changed within it. The first call after Subscribe
// uses the single section "initial".
type Changes map[string][]string

// Subscriber receives a deep copy of the data after every mutation.
type Subscriber func(data UserData, changes Changes)

// Store owns the persisted user data blob. Every mutation is written
// through to the filesystem before subscribers are notified. All methods
// are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	fs     billy.Filesystem
	path   string
	counts Counter
	now    func() time.Time

	data UserData

	subMu sync.Mutex
	subs  map[uintptr]Subscriber
}

// Open loads the blob at path (or starts from defaults when it is missing
// or unreadable), runs schema migrations, and writes the result back.
func Open(fs billy.Filesystem, path string, counts Counter) (*Store, error) {
	s := &Store{
		fs:     fs,
		path:   path,
		counts: counts,
		now:    time.Now,
		subs:   make(map[uintptr]Subscriber),
	}
	s.data = s.load()
	if migrated, err := Migrate(&s.data); err != nil {
		return nil, fmt.Errorf("migrating user data: %w", err)
	} else if migrated {
		log.Printf("userdata: migrated %s", path)
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close drops all subscriptions. The data itself needs no flushing; every
// mutation was written through.
func (s *Store) Close() {
	s.subMu.Lock()
	s.subs = make(map[uintptr]Subscriber)
	s.subMu.Unlock()
}

// load never fails: a missing or corrupt file falls back to defaults so a
// damaged profile cannot lock the user out.
func (s *Store) load() UserData {
	raw, err := util.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("userdata: read %s: %v, starting fresh", s.path, err)
		}
		return DefaultUserData()
	}
	data := DefaultUserData()
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("userdata: parse %s: %v, starting fresh", s.path, err)
		return DefaultUserData()
	}
	return data
}

func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user data: %w", err)
	}
	if err := util.WriteFile(s.fs, s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Subscribe registers fn and immediately invokes it with the current data
// under the section "initial". Registering the same function twice is a
// no-op. The returned function removes the subscription.
func (s *Store) Subscribe(fn Subscriber) func() {
	key := reflect.ValueOf(fn).Pointer()

	s.subMu.Lock()
	_, dup := s.subs[key]
	if !dup {
		s.subs[key] = fn
	}
	s.subMu.Unlock()

	s.mu.RLock()
	snap := s.data.Clone()
	s.mu.RUnlock()
	fn(snap, Changes{"initial": nil})

	return func() {
		s.subMu.Lock()
		delete(s.subs, key)
		s.subMu.Unlock()
	}
}

// notify runs outside the data lock so subscribers may call back into the
// store.
func (s *Store) notify(snap UserData, changes Changes) {
	s.subMu.Lock()
	fns := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap.Clone(), changes)
	}
}

// mutate applies fn under the write lock, persists, then notifies.
func (s *Store) mutate(changes Changes, fn func(*UserData) error) error {
	s.mu.Lock()
	if err := fn(&s.data); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.save(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.data.Clone()
	s.mu.Unlock()
	s.notify(snap, changes)
	return nil
}

// UserData returns a deep copy of the full blob.
func (s *Store) UserData() UserData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Preferences returns a copy of the preference section.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.data.Preferences
	p.ReportIncludedIndicators = cloneSlice(p.ReportIncludedIndicators)
	return p
}

// State returns a copy of the UI state section.
func (s *Store) State() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.data.UIState
	st.LastModifiedPage = clonePage(st.LastModifiedPage)
	st.LastVisitedPage = clonePage(st.LastVisitedPage)
	return st
}

// Assessments returns deep copies of all assessments in storage order.
func (s *Store) Assessments() []Assessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assessment, len(s.data.Assessments))
	for i := range s.data.Assessments {
		out[i] = s.data.Assessments[i].Clone()
	}
	return out
}

// Assessment returns a deep copy of the assessment with the given id.
func (s *Store) Assessment(id int) (Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.data.Assessments {
		if s.data.Assessments[i].ID == id {
			return s.data.Assessments[i].Clone(), nil
		}
	}
	return Assessment{}, fmt.Errorf("assessment %d: %w", id, ErrNoAssessment)
}

// ActiveAssessment resolves the UI's active assessment id. A dangling or
// zero id yields ok=false, never an error.
func (s *Store) ActiveAssessment() (Assessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.data.UIState.ActiveAssessmentID
	if id == 0 {
		return Assessment{}, false
	}
	for i := range s.data.Assessments {
		if s.data.Assessments[i].ID == id {
			return s.data.Assessments[i].Clone(), true
		}
	}
	return Assessment{}, false
}

// SetPreferences replaces the preference section. changed names the fields
// that differ, for subscribers that react selectively.
func (s *Store) SetPreferences(p Preferences, changed ...string) error {
	return s.mutate(Changes{"uiPreferences": changed}, func(d *UserData) error {
		p.SchemaVersion = PreferencesSchemaVersion
		d.Preferences = p
		return nil
	})
}

// SetState replaces the UI state section.
func (s *Store) SetState(st UIState, changed ...string) error {
	return s.mutate(Changes{"uiState": changed}, func(d *UserData) error {
		st.SchemaVersion = UIStateSchemaVersion
		d.UIState = st
		return nil
	})
}

// CreateAssessment allocates the next id as one past the highest id still
// in the set (max+1, not count+1, so deleting an older record never causes
// id reuse), seeds the record, and makes it the active assessment.
func (s *Store) CreateAssessment(school, district, reportingYear, assessor string) (Assessment, error) {
	var created Assessment
	err := s.mutate(Changes{"assessments": {"create"}, "uiState": {"activeAssessmentId", "mode"}}, func(d *UserData) error {
		now := s.now().UnixMilli()
		id := 1
		for i := range d.Assessments {
			if d.Assessments[i].ID >= id {
				id = d.Assessments[i].ID + 1
			}
		}
		a := Assessment{
			ID:             id,
			School:         school,
			District:       district,
			ReportingYear:  reportingYear,
			Status:         StatusInProgress,
			Assessors:      []string{assessor},
			ActiveAssessor: assessor,
			LastModifiedBy: assessor,
			DateCreated:    now,
			DateModified:   now,
			ChangeLog: []ChangeEntry{
				{Date: now, Assessor: assessor, Message: "Assessment created."},
			},
			ConsiderationsEstablished: []string{},
			ContinuumCompletion:       CompletionMap{},
			ContinuumVersion:          s.continuumVersion(),
			UnexportedChanges:         true,
			SchemaVersion:             AssessmentSchemaVersion,
		}
		generateCompletion(&a, s.countMap())
		d.Assessments = append(d.Assessments, a)
		d.UIState.ActiveAssessmentID = id
		d.UIState.Mode = ModeAssessment
		created = a.Clone()
		return nil
	})
	return created, err
}

// SetAssessment stores a by id. An unknown id appends the record rather
// than failing, which makes imports and restores idempotent.
func (s *Store) SetAssessment(a Assessment) error {
	return s.mutate(Changes{"assessments": []string{"update"}}, func(d *UserData) error {
		a.DateModified = s.now().UnixMilli()
		a.UnexportedChanges = true
		for i := range d.Assessments {
			if d.Assessments[i].ID == a.ID {
				d.Assessments[i] = a.Clone()
				return nil
			}
		}
		d.Assessments = append(d.Assessments, a.Clone())
		return nil
	})
}

// DeleteAssessment removes the assessment. If it was active, the selection
// clears and the UI drops back to reading mode.
func (s *Store) DeleteAssessment(id int) error {
	return s.mutate(Changes{"assessments": []string{"delete"}}, func(d *UserData) error {
		idx := -1
		for i := range d.Assessments {
			if d.Assessments[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("assessment %d: %w", id, ErrNoAssessment)
		}
		d.Assessments = append(d.Assessments[:idx], d.Assessments[idx+1:]...)
		if d.UIState.ActiveAssessmentID == id {
			d.UIState.ActiveAssessmentID = 0
			d.UIState.Mode = ModeReading
		}
		return nil
	})
}

// EstablishConsideration records tag as established on the active list of
// the given assessment and folds it into the completion rollup. A tag
// already present is a no-op mutation but still touches the record.
func (s *Store) EstablishConsideration(id int, tag string) error {
	return s.considerationChange(id, tag, true)
}

// RetractConsideration removes tag from the established list.
func (s *Store) RetractConsideration(id int, tag string) error {
	return s.considerationChange(id, tag, false)
}

func (s *Store) considerationChange(id int, tag string, establish bool) error {
	if !considerationTagRe.MatchString(tag) {
		return fmt.Errorf("%q: %w", tag, ErrBadTag)
	}
	return s.mutate(Changes{"assessments": []string{"update"}}, func(d *UserData) error {
		a := findAssessment(d, id)
		if a == nil {
			return fmt.Errorf("assessment %d: %w", id, ErrNoAssessment)
		}
		s.ensureCompletion(a)
		if establish {
			for _, t := range a.ConsiderationsEstablished {
				if t == tag {
					s.touch(a, a.ActiveAssessor)
					return nil
				}
			}
			a.ConsiderationsEstablished = append(a.ConsiderationsEstablished, tag)
			updateCompletion(a, s.countMap(), tag, 1)
			s.logChange(a, fmt.Sprintf("Established consideration %s.", tag))
		} else {
			idx := -1
			for i, t := range a.ConsiderationsEstablished {
				if t == tag {
					idx = i
					break
				}
			}
			if idx >= 0 {
				a.ConsiderationsEstablished = append(a.ConsiderationsEstablished[:idx], a.ConsiderationsEstablished[idx+1:]...)
				updateCompletion(a, s.countMap(), tag, -1)
				s.logChange(a, fmt.Sprintf("Removed consideration %s.", tag))
			}
		}
		s.touch(a, a.ActiveAssessor)
		return nil
	})
}

// LogChange appends a change-log line authored by the assessment's active
// assessor.
func (s *Store) LogChange(id int, message string) error {
	return s.mutate(Changes{"assessments": []string{"update"}}, func(d *UserData) error {
		a := findAssessment(d, id)
		if a == nil {
			return fmt.Errorf("assessment %d: %w", id, ErrNoAssessment)
		}
		s.logChange(a, message)
		s.touch(a, a.ActiveAssessor)
		return nil
	})
}

// MarkExported stamps the export time and clears the unexported flag.
func (s *Store) MarkExported(id int) error {
	return s.mutate(Changes{"assessments": []string{"update"}}, func(d *UserData) error {
		a := findAssessment(d, id)
		if a == nil {
			return fmt.Errorf("assessment %d: %w", id, ErrNoAssessment)
		}
		a.DateExported = s.now().UnixMilli()
		a.UnexportedChanges = false
		return nil
	})
}

// touch marks the record dirty after any substantive edit.
func (s *Store) touch(a *Assessment, assessor string) {
	a.DateModified = s.now().UnixMilli()
	if assessor != "" {
		a.LastModifiedBy = assessor
	}
	a.UnexportedChanges = true
}

func (s *Store) logChange(a *Assessment, message string) {
	a.ChangeLog = append(a.ChangeLog, ChangeEntry{
		Date:     s.now().UnixMilli(),
		Assessor: a.ActiveAssessor,
		Message:  message,
	})
	if n := len(a.ChangeLog) - ChangeLogCap; n > 0 {
		a.ChangeLog = a.ChangeLog[n:]
	}
}

// ensureCompletion regenerates the rollup from scratch when the continuum
// the assessment was built against has changed shape.
func (s *Store) ensureCompletion(a *Assessment) {
	v := s.continuumVersion()
	if a.ContinuumVersion == v && a.ContinuumCompletion != nil {
		return
	}
	a.ContinuumVersion = v
	generateCompletion(a, s.countMap())
}

func (s *Store) countMap() *api.CountMap {
	if s.counts == nil {
		return api.NewCountMap()
	}
	if m := s.counts.Counts(); m != nil {
		return m
	}
	return api.NewCountMap()
}

func (s *Store) continuumVersion() string {
	return s.countMap().Version
}

func findAssessment(d *UserData, id int) *Assessment {
	for i := range d.Assessments {
		if d.Assessments[i].ID == id {
			return &d.Assessments[i]
		}
	}
	return nil
}
