package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nbed-digital/continuum/internal/userdata"
)

// excelEpoch is day zero of spreadsheet serial dates. Files that round-trip
// through a spreadsheet editor come back with date cells rewritten as day
// counts from this epoch.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.Local)

// msEpochFloor separates spreadsheet serial dates from ms-epoch numbers:
// any plausible serial is far below it, any plausible epoch far above.
const msEpochFloor = 1_000_000_000

// Unmarshal parses one exported assessment. It tolerates the cell
// rewrites a spreadsheet round-trip introduces (serial dates, trimmed
// blank cells) but rejects structurally broken files.
func Unmarshal(raw []byte) (userdata.Assessment, error) {
	sections, err := splitSections(raw)
	if err != nil {
		return userdata.Assessment{}, err
	}
	if len(sections) == 0 {
		return userdata.Assessment{}, fmt.Errorf("parsing csv: no assessment section")
	}

	a, err := parseAssessment(sections[0])
	if err != nil {
		return userdata.Assessment{}, err
	}
	if len(sections) > 1 {
		a.ChangeLog, err = parseChangeLog(sections[1])
		if err != nil {
			return userdata.Assessment{}, err
		}
	}
	return a, nil
}

// splitSections divides the file on blank lines before CSV parsing, since
// the CSV reader itself silently swallows blank lines. Quoted fields in
// this format never span lines, so a line-level split is safe.
func splitSections(raw []byte) ([][][]string, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")

	var sections [][][]string
	for _, chunk := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		r := csv.NewReader(strings.NewReader(chunk))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parsing csv: %w", err)
		}
		if len(rows) > 0 {
			sections = append(sections, rows)
		}
	}
	return sections, nil
}

func parseAssessment(section [][]string) (userdata.Assessment, error) {
	if len(section) < 2 {
		return userdata.Assessment{}, fmt.Errorf("parsing csv: assessment section needs a header and a record row")
	}
	cols := indexHeader(section[0])
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(section[1]) {
			return ""
		}
		return strings.TrimSpace(section[1][i])
	}

	id, err := strconv.Atoi(get("Id"))
	if err != nil {
		return userdata.Assessment{}, fmt.Errorf("parsing csv: bad Id %q: %w", get("Id"), err)
	}

	a := userdata.Assessment{
		ID:                        id,
		School:                    get("School"),
		District:                  get("District"),
		ReportingYear:             get("Reporting Year"),
		Status:                    get("Status"),
		DateCompleted:             parseDate(get("Date Completed")),
		DateCreated:               parseDate(get("Date Created")),
		DateModified:              parseDate(get("Date Modified")),
		DateExported:              parseDate(get("Date Exported")),
		LastModifiedBy:            get("Last Modified By"),
		Assessors:                 splitList(get("Assessors")),
		ConsiderationsEstablished: splitList(get("Considerations Established")),
		ContinuumVersion:          get("Continuum Version"),
		SchemaVersion:             get("Schema Version"),
		ChangeLog:                 []userdata.ChangeEntry{},
		ContinuumCompletion:       userdata.CompletionMap{},
	}
	if a.SchemaVersion == "" {
		a.SchemaVersion = userdata.AssessmentSchemaVersion
	}
	if len(a.Assessors) > 0 {
		a.ActiveAssessor = a.Assessors[0]
	}
	return a, nil
}

func parseChangeLog(section [][]string) ([]userdata.ChangeEntry, error) {
	cols := indexHeader(section[0])
	var out []userdata.ChangeEntry
	for _, row := range section[1:] {
		if len(row) > 0 && strings.TrimSpace(row[0]) == noChangeLogNote {
			continue
		}
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		out = append(out, userdata.ChangeEntry{
			Date:     parseDate(get("Date")),
			Message:  get("Message"),
			Assessor: get("Assessor"),
		})
	}
	return out, nil
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

// parseDate normalizes the three forms a date cell can arrive in: the
// canonical timestamp string, a raw ms-epoch number, or a spreadsheet
// serial date. Anything else, including blank, is treated as unset.
func parseDate(cell string) int64 {
	if cell == "" {
		return 0
	}
	if t, err := time.ParseInLocation(dateLayout, cell, time.Local); err == nil {
		return t.UnixMilli()
	}
	if n, err := strconv.ParseFloat(cell, 64); err == nil {
		if n > msEpochFloor {
			return int64(n)
		}
		days := time.Duration(n * 24 * float64(time.Hour))
		return excelEpoch.Add(days).UnixMilli()
	}
	return 0
}

func splitList(cell string) []string {
	if cell == "" {
		return []string{}
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
