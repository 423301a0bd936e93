package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nbed-digital/continuum/internal/content"
	"github.com/nbed-digital/continuum/internal/index"
)

var buildCmd = &cobra.Command{
	Use:   "build [content-dir] [output.db]",
	Short: "Build the search index artifact from a content directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentDir := args[0]
		output := args[1]

		entries, counts, err := content.NewEngine(contentDir).Build()
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		if err := index.WriteSQLite(output, entries, counts); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Printf("Wrote %d entries, %d scopes (continuum %s) to %s\n",
			len(entries), len(counts.Scopes), counts.Version, output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
