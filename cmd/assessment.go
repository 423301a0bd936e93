package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/nbed-digital/continuum/internal/export"
	"github.com/nbed-digital/continuum/internal/userdata"
)

var (
	createSchool   string
	createDistrict string
	createYear     string
	createAssessor string

	exportDir string

	importOnConflict string
)

func init() {
	createAssessmentCmd.Flags().StringVar(&createSchool, "school", "", "School name")
	createAssessmentCmd.Flags().StringVar(&createDistrict, "district", "", "School district")
	createAssessmentCmd.Flags().StringVar(&createYear, "year", "", "Reporting year, e.g. 2025-2026")
	createAssessmentCmd.Flags().StringVar(&createAssessor, "assessor", "", "Assessor name")
	_ = createAssessmentCmd.MarkFlagRequired("school")
	_ = createAssessmentCmd.MarkFlagRequired("year")

	exportAssessmentCmd.Flags().StringVar(&exportDir, "out", ".", "Directory to write the CSV into")
	importAssessmentCmd.Flags().StringVar(&importOnConflict, "on-conflict", "",
		"Conflict resolution: replace, keep-both or skip")

	assessmentCmd.AddCommand(listAssessmentsCmd)
	assessmentCmd.AddCommand(createAssessmentCmd)
	assessmentCmd.AddCommand(deleteAssessmentCmd)
	assessmentCmd.AddCommand(exportAssessmentCmd)
	assessmentCmd.AddCommand(importAssessmentCmd)
	rootCmd.AddCommand(assessmentCmd)
}

var assessmentCmd = &cobra.Command{
	Use:   "assessment",
	Short: "Manage stored assessments",
}

func openUserData() (*userdata.Store, error) {
	path, err := resolveUserDataPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return userdata.Open(osfs.New(filepath.Dir(path)), filepath.Base(path), nil)
}

var listAssessmentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored assessments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openUserData()
		if err != nil {
			return err
		}
		assessments := store.Assessments()
		if len(assessments) == 0 {
			fmt.Println("No assessments.")
			return nil
		}
		for _, a := range assessments {
			modified := time.UnixMilli(a.DateModified).Format("2006-01-02")
			fmt.Printf("%3d  %-30s %-10s %-12s modified %s\n",
				a.ID, a.School, a.ReportingYear, a.Status, modified)
		}
		return nil
	},
}

var createAssessmentCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new assessment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openUserData()
		if err != nil {
			return err
		}
		a, err := store.CreateAssessment(createSchool, createDistrict, createYear, createAssessor)
		if err != nil {
			return err
		}
		fmt.Printf("Created assessment %d for %s (%s)\n", a.ID, a.School, a.ReportingYear)
		return nil
	},
}

var deleteAssessmentCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad id %q: %w", args[0], err)
		}
		store, err := openUserData()
		if err != nil {
			return err
		}
		if err := store.DeleteAssessment(id); err != nil {
			return err
		}
		fmt.Printf("Deleted assessment %d\n", id)
		return nil
	},
}

var exportAssessmentCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export an assessment to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad id %q: %w", args[0], err)
		}
		store, err := openUserData()
		if err != nil {
			return err
		}
		a, err := store.Assessment(id)
		if err != nil {
			return err
		}
		raw, err := export.Marshal(a)
		if err != nil {
			return err
		}
		path := filepath.Join(exportDir, export.Filename(a, time.Now()))
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := store.MarkExported(id); err != nil {
			return err
		}
		fmt.Printf("Exported assessment %d to %s\n", id, path)
		return nil
	},
}

var importAssessmentCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import an assessment from CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		incoming, err := export.Unmarshal(raw)
		if err != nil {
			return err
		}
		store, err := openUserData()
		if err != nil {
			return err
		}

		conflict := export.DetectConflict(store.Assessments(), incoming)
		res := export.ResolveReplace
		if conflict.Any() {
			switch importOnConflict {
			case "replace":
				res = export.ResolveReplace
			case "keep-both":
				res = export.ResolveKeepBoth
			case "skip":
				res = export.ResolveSkip
			default:
				if conflict.SameID != nil {
					fmt.Printf("Conflict: assessment %d (%s) already uses this id\n",
						conflict.SameID.ID, conflict.SameID.School)
				}
				if conflict.SameSchoolYear != nil {
					fmt.Printf("Conflict: assessment %d already covers %s %s\n",
						conflict.SameSchoolYear.ID, incoming.School, incoming.ReportingYear)
				}
				return fmt.Errorf("resolve with --on-conflict replace|keep-both|skip")
			}
		}
		if err := export.Apply(store, incoming, res); err != nil {
			return err
		}
		if res == export.ResolveSkip {
			fmt.Println("Skipped import.")
			return nil
		}
		fmt.Printf("Imported assessment for %s (%s)\n", incoming.School, incoming.ReportingYear)
		return nil
	},
}
