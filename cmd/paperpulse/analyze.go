package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/types"
)

var (
	analyzeTitle    string
	analyzeAbstract string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paper-id]",
	Short: "Generate a structured analysis of a paper",
	Long: `Generate a detailed structured analysis of a paper using the model
configured under analysis.model.

The paper is read from the store by id, or given inline with --title and
--abstract. When the model is unavailable or returns invalid output, a
deterministic fallback analysis is printed instead (generated: false).

Examples:
  paperpulse analyze 2401.00001v1
  paperpulse analyze --title "Attention Is All You Need" --abstract "..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && analyzeTitle == "" && analyzeAbstract == "" {
			return fmt.Errorf("a paper id or --title/--abstract is required")
		}

		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()

		paper := types.Paper{
			Title:    strings.TrimSpace(analyzeTitle),
			Abstract: strings.TrimSpace(analyzeAbstract),
		}
		if len(args) == 1 {
			if err := requireStore(services); err != nil {
				return err
			}
			paper, err = services.Store.Paper(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}

		return api.Output(services.Analyzer.Analyze(cmd.Context(), paper))
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "Paper title (instead of a stored paper id)")
	analyzeCmd.Flags().StringVar(&analyzeAbstract, "abstract", "", "Paper abstract (instead of a stored paper id)")
	rootCmd.AddCommand(analyzeCmd)
}
