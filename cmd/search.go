package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nbed-digital/continuum/api"
	"github.com/nbed-digital/continuum/internal/content"
	"github.com/nbed-digital/continuum/internal/index"
	"github.com/nbed-digital/continuum/internal/rank"
	"github.com/nbed-digital/continuum/internal/search"
)

var (
	searchIndexPath  string
	searchContentDir string
	searchFilters    search.Filters
	searchSort       string
	searchLimit      int
)

func init() {
	searchCmd.Flags().StringVar(&searchIndexPath, "index", "", "Prebuilt index artifact")
	searchCmd.Flags().StringVar(&searchContentDir, "content", "", "Content directory to index on the fly")
	searchCmd.Flags().StringSliceVar(&searchFilters.Types, "types", nil, "Filter by resource type")
	searchCmd.Flags().StringSliceVar(&searchFilters.Indicators, "indicators", nil, "Filter by indicator tag")
	searchCmd.Flags().StringSliceVar(&searchFilters.Components, "components", nil, "Filter by component tag")
	searchCmd.Flags().StringSliceVar(&searchFilters.Considerations, "considerations", nil, "Filter by consideration tag")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "Sort order: title, date or relevance (default follows the query)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum results to print")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the search index from the command line",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		var text string
		if len(args) > 0 {
			text = strings.ToLower(strings.TrimSpace(args[0]))
		}
		engine := search.New(store, api.Categories...)
		out := engine.Match(search.Query{
			Text:            text,
			Filters:         searchFilters,
			EmptyVisibility: search.VisibilityShown,
		})

		primary, tie := searchOrder(text, out.TagMatched)
		rank.Sort(out.Results, primary, tie)

		results := out.Results
		if searchLimit >= 0 && searchLimit < len(results) {
			results = results[:searchLimit]
		}
		for _, r := range results {
			tag := r.Entry.Tag
			if tag == "" {
				tag = string(r.Entry.Category)
			}
			fmt.Printf("%3d. [%-6s] %s (%.0f)\n", r.Position, tag, r.Entry.Title, r.Relevance)
		}
		fmt.Printf("%d of %d results\n", len(results), len(out.Results))
		return nil
	},
}

func openStore() (index.Store, error) {
	switch {
	case searchIndexPath != "":
		return index.OpenSQLite(searchIndexPath)
	case searchContentDir != "":
		entries, counts, err := content.NewEngine(searchContentDir).Build()
		if err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
		return index.NewMemoryStoreWith(entries, counts), nil
	}
	return nil, fmt.Errorf("need --index or --content")
}

func searchOrder(text string, tagMatched bool) (rank.Primary, rank.TieBreaker) {
	switch searchSort {
	case "title":
		return rank.ByTitle, rank.TieNone
	case "date":
		return rank.ByDate, rank.TieNone
	case "relevance":
		return rank.ByRelevance, rank.TieNone
	}
	if text == "" {
		return rank.ByTitle, rank.TieNone
	}
	if tagMatched {
		return rank.ByRelevance, rank.TieTag
	}
	return rank.ByRelevance, rank.TieTitle
}
