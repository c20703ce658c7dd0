package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/digest"
	"github.com/jackzampolin/paperpulse/internal/server/endpoints"
)

var runDryRun bool

// reportView renders a run report as a per-subscriber table.
type reportView struct {
	digest.Report `yaml:",inline"`
}

func (v reportView) Table() ([]string, [][]string) {
	return endpoints.ReportRows(&v.Report)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily digest for all active subscribers",
	Long: `Run the daily digest.

Loads active subscribers, searches arXiv once per distinct keyword, saves
the day's papers, then summarizes and emails each subscriber's matches.
Only one run can hold ~/.paperpulse/run.lock at a time.

Examples:
  paperpulse run              # Full run
  paperpulse run --dry-run    # Search only, send and save nothing
  paperpulse run -o table     # Per-subscriber results as a table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()

		report, err := services.Runner.Run(cmd.Context(), runDryRun)
		if errors.Is(err, digest.ErrRunInProgress) {
			return fmt.Errorf("another digest run is in progress")
		}
		if err != nil {
			return err
		}
		return api.Output(reportView{*report})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Search only, send and save nothing")
	rootCmd.AddCommand(runCmd)
}
