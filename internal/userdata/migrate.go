package userdata

import "fmt"

// Migration steps run in order on load until each section reaches its
// current schema version. A blob with a version newer than this build
// understands is an error; downgrade is not supported.

type migration struct {
	from, to string
	apply    func(*UserData)
}

var preferenceMigrations = []migration{
	{
		// theme was introduced with a light default.
		from: "0.1", to: "0.2",
		apply: func(d *UserData) {
			if d.Preferences.Theme == "" {
				d.Preferences.Theme = "light"
			}
		},
	},
}

var uiStateMigrations = []migration{
	{
		// reading/assessment mode split out of a boolean flag.
		from: "0.1", to: "0.2",
		apply: func(d *UserData) {
			if d.UIState.Mode == "" {
				d.UIState.Mode = ModeReading
			}
		},
	},
	{
		// onboarding flag added; existing profiles have seen it.
		from: "0.2", to: "0.3",
		apply: func(d *UserData) {
			if len(d.Assessments) > 0 {
				d.UIState.OnboardingCompleted = true
			}
		},
	},
	{
		// last-visited tracking added alongside last-modified.
		from: "0.3", to: "0.4",
		apply: func(d *UserData) {
			if d.UIState.LastVisitedPage == nil {
				d.UIState.LastVisitedPage = d.UIState.LastModifiedPage
			}
		},
	},
}

var assessmentMigrations = []migration{
	{
		// per-assessment active assessor added; the first listed
		// assessor is the best available guess.
		from: "0.1", to: "0.2",
		apply: func(d *UserData) {
			for i := range d.Assessments {
				a := &d.Assessments[i]
				if a.ActiveAssessor == "" && len(a.Assessors) > 0 {
					a.ActiveAssessor = a.Assessors[0]
				}
			}
		},
	},
}

// Migrate brings every section of d up to the current schema versions.
// It reports whether any step ran.
func Migrate(d *UserData) (bool, error) {
	migrated := false

	run := func(section, current, target string, steps []migration, set func(string)) error {
		v := current
		if v == "" {
			v = "0.1"
		}
		for v != target {
			step, ok := findStep(steps, v)
			if !ok {
				return fmt.Errorf("%s schema %q: no migration path to %q", section, v, target)
			}
			step.apply(d)
			v = step.to
			migrated = true
		}
		set(target)
		return nil
	}

	if err := run("uiPreferences", d.Preferences.SchemaVersion, PreferencesSchemaVersion,
		preferenceMigrations, func(v string) { d.Preferences.SchemaVersion = v }); err != nil {
		return migrated, err
	}
	if err := run("uiState", d.UIState.SchemaVersion, UIStateSchemaVersion,
		uiStateMigrations, func(v string) { d.UIState.SchemaVersion = v }); err != nil {
		return migrated, err
	}

	// Assessments migrate as a set: the steps scan every record, and the
	// stamped version is per record.
	for i := range d.Assessments {
		a := &d.Assessments[i]
		v := a.SchemaVersion
		if v == "" {
			v = "0.1"
		}
		for v != AssessmentSchemaVersion {
			step, ok := findStep(assessmentMigrations, v)
			if !ok {
				return migrated, fmt.Errorf("assessment %d schema %q: no migration path to %q",
					a.ID, v, AssessmentSchemaVersion)
			}
			step.apply(d)
			v = step.to
			migrated = true
		}
		a.SchemaVersion = AssessmentSchemaVersion
	}
	return migrated, nil
}

func findStep(steps []migration, from string) (migration, bool) {
	for _, s := range steps {
		if s.from == from {
			return s, true
		}
	}
	return migration{}, false
}
