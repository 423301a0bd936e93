// Package export converts assessments to and from their CSV interchange
// form. A file holds two sections separated by a blank line: the
// assessment record itself, then its change log.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nbed-digital/continuum/internal/userdata"
)

// dateLayout is the human-readable timestamp form used in CSV cells,
// millisecond precision.
const dateLayout = "2006-01-02 15:04:05.000"

// assessmentHeader is the first section's column set, in order.
var assessmentHeader = []string{
	"Id",
	"School",
	"District",
	"Reporting Year",
	"Status",
	"Date Completed",
	"Date Created",
	"Date Modified",
	"Date Exported",
	"Last Modified By",
	"Assessors",
	"Considerations Established",
	"Continuum Version",
	"Schema Version",
}

// changeLogHeader is the second section's column set.
var changeLogHeader = []string{"Date", "Message", "Assessor"}

// noChangeLogNote is the placeholder row written when an assessment has an
// empty change log, so the second section is never ambiguous.
const noChangeLogNote = "Note: No change log"

// Marshal renders one assessment as CSV. The two sections are written
// separately because the blank separator line is not itself a CSV record.
func Marshal(a userdata.Assessment) ([]byte, error) {
	record := [][]string{
		assessmentHeader,
		{
			fmt.Sprintf("%d", a.ID),
			a.School,
			a.District,
			a.ReportingYear,
			a.Status,
			formatDate(a.DateCompleted),
			formatDate(a.DateCreated),
			formatDate(a.DateModified),
			formatDate(a.DateExported),
			a.LastModifiedBy,
			strings.Join(a.Assessors, ","),
			strings.Join(a.ConsiderationsEstablished, ","),
			a.ContinuumVersion,
			a.SchemaVersion,
		},
	}

	changeLog := [][]string{changeLogHeader}
	if len(a.ChangeLog) == 0 {
		changeLog = append(changeLog, []string{noChangeLogNote})
	}
	for _, c := range a.ChangeLog {
		changeLog = append(changeLog, []string{formatDate(c.Date), c.Message, c.Assessor})
	}

	var buf bytes.Buffer
	for i, section := range [][][]string{record, changeLog} {
		if i > 0 {
			buf.WriteByte('\n')
		}
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(section); err != nil {
			return nil, fmt.Errorf("writing csv: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("writing csv: %w", err)
		}
	}
	return buf.Bytes(), nil
}

var nonKebab = regexp.MustCompile(`[^a-z0-9]+`)

// Filename derives the suggested export file name, e.g.
// assessment_park-street-school_2025-2026_export-2026-08-30.csv.
func Filename(a userdata.Assessment, now time.Time) string {
	school := nonKebab.ReplaceAllString(strings.ToLower(a.School), "-")
	school = strings.Trim(school, "-")
	if school == "" {
		school = "assessment"
	}
	return fmt.Sprintf("assessment_%s_%s_export-%s.csv",
		school, a.ReportingYear, now.Format("2006-01-02"))
}

// formatDate renders a ms-epoch timestamp, or empty for the zero value so
// never-completed and never-exported dates stay blank cells.
func formatDate(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Format(dateLayout)
}
