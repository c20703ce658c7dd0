package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/aggregate"
	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/server/endpoints"
	"github.com/jackzampolin/paperpulse/internal/types"
)

var (
	searchDays  int
	searchLimit int
)

// searchResult is the output of the search command.
type searchResult struct {
	Stats  aggregate.Stats `json:"stats" yaml:"stats"`
	Papers []types.Paper   `json:"papers" yaml:"papers"`
}

func (r searchResult) Table() ([]string, [][]string) {
	return endpoints.PaperRows(r.Papers)
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>...",
	Short: "Search arXiv for recent papers matching keywords",
	Long: `Search arXiv for each keyword and merge the results.

Papers found by several keywords appear once, with every matching keyword
listed. Quote multi-word keywords.

Examples:
  paperpulse search "graph neural networks" transformer
  paperpulse search llm --days 3 --limit 20 -o table`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()

		papers, stats, err := services.Aggregator.AggregateWithStats(cmd.Context(), args, searchDays, searchLimit)
		if err != nil {
			return err
		}
		if papers == nil {
			papers = []types.Paper{}
		}
		return api.Output(searchResult{Stats: stats, Papers: papers})
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchDays, "days", endpoints.DefaultSearchDays, "Days back to search")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results per keyword")
	rootCmd.AddCommand(searchCmd)
}
