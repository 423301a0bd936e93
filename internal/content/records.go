package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

// Content records live one-per-file under the content directory, as YAML or
// JSON. The YAML path unmarshals straight into the record structs; the JSON
// path goes through ojg with JSONPath field selectors so loosely-shaped
// exports from the CMS still load.

// ConsiderationRecord is one leaf checklist item inside a component phase.
type ConsiderationRecord struct {
	Tag   string `yaml:"tag" json:"tag"`
	Title string `yaml:"title" json:"title"`
}

// PhaseBlock groups the considerations of one phase within a component.
type PhaseBlock struct {
	Considerations []ConsiderationRecord `yaml:"considerations" json:"considerations"`
}

// IndicatorRecord is a top-level rubric indicator ("1", "2", ...).
type IndicatorRecord struct {
	Tag   string `yaml:"tag" json:"tag"`
	Title string `yaml:"title" json:"title"`
}

// ComponentRecord is a second-level rubric component ("1.2") carrying the
// four phase blocks of considerations.
type ComponentRecord struct {
	Tag          string     `yaml:"tag" json:"tag"`
	Title        string     `yaml:"title" json:"title"`
	Initiating   PhaseBlock `yaml:"initiating" json:"initiating"`
	Implementing PhaseBlock `yaml:"implementing" json:"implementing"`
	Developing   PhaseBlock `yaml:"developing" json:"developing"`
	Sustaining   PhaseBlock `yaml:"sustaining" json:"sustaining"`
}

// Phase returns the phase block by lowercase phase name.
func (c *ComponentRecord) Phase(name string) *PhaseBlock {
	switch name {
	case "initiating":
		return &c.Initiating
	case "implementing":
		return &c.Implementing
	case "developing":
		return &c.Developing
	case "sustaining":
		return &c.Sustaining
	}
	return nil
}

// ResourceRecord is an external resource linked into the rubric.
type ResourceRecord struct {
	Title                string   `yaml:"title" json:"title"`
	Description          string   `yaml:"description" json:"description"`
	Type                 string   `yaml:"type" json:"type"`
	DateAdded            string   `yaml:"dateAdded" json:"dateAdded"`
	Published            bool     `yaml:"published" json:"published"`
	LinkedIndicators     []string `yaml:"linkedIndicators" json:"linkedIndicators"`
	LinkedComponents     []string `yaml:"linkedComponents" json:"linkedComponents"`
	LinkedConsiderations []string `yaml:"linkedConsiderations" json:"linkedConsiderations"`
}

func loadRecord(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse yaml %s: %w", path, err)
		}
	case ".json":
		root, err := oj.Parse(data)
		if err != nil {
			return fmt.Errorf("parse json %s: %w", path, err)
		}
		if err := fillFromJSON(root, out); err != nil {
			return fmt.Errorf("extract json %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported content file %s", path)
	}
	return nil
}

// fillFromJSON populates a record struct from a parsed JSON value using
// JSONPath selectors, tolerating missing fields.
func fillFromJSON(root any, out any) error {
	switch rec := out.(type) {
	case *IndicatorRecord:
		rec.Tag = jsonString(root, "$.tag")
		rec.Title = jsonString(root, "$.title")
	case *ComponentRecord:
		rec.Tag = jsonString(root, "$.tag")
		rec.Title = jsonString(root, "$.title")
		for _, phase := range []string{"initiating", "implementing", "developing", "sustaining"} {
			block := rec.Phase(phase)
			tags := jsonStrings(root, "$."+phase+".considerations[*].tag")
			titles := jsonStrings(root, "$."+phase+".considerations[*].title")
			for i, tag := range tags {
				c := ConsiderationRecord{Tag: tag}
				if i < len(titles) {
					c.Title = titles[i]
				}
				block.Considerations = append(block.Considerations, c)
			}
		}
	case *ResourceRecord:
		rec.Title = jsonString(root, "$.title")
		rec.Description = jsonString(root, "$.description")
		rec.Type = jsonString(root, "$.type")
		rec.DateAdded = jsonString(root, "$.dateAdded")
		rec.Published = jsonBool(root, "$.published")
		rec.LinkedIndicators = jsonStrings(root, "$.linkedIndicators[*]")
		rec.LinkedComponents = jsonStrings(root, "$.linkedComponents[*]")
		rec.LinkedConsiderations = jsonStrings(root, "$.linkedConsiderations[*]")
	default:
		return fmt.Errorf("unknown record type %T", out)
	}
	return nil
}

func jsonQuery(root any, selector string) []any {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil
	}
	return x.Get(root)
}

func jsonString(root any, selector string) string {
	for _, v := range jsonQuery(root, selector) {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func jsonBool(root any, selector string) bool {
	for _, v := range jsonQuery(root, selector) {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func jsonStrings(root any, selector string) []string {
	var out []string
	for _, v := range jsonQuery(root, selector) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// tagLess orders dotted numeric tags numerically per segment, so "1.2"
// sorts before "1.10".
func tagLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			if ai != bi {
				return ai < bi
			}
			continue
		}
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

func sortByTag[T any](records []T, tag func(T) string) {
	sort.SliceStable(records, func(i, j int) bool {
		return tagLess(tag(records[i]), tag(records[j]))
	})
}
