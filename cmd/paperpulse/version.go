package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if cmd.Flags().Changed("output") {
			return api.Output(info)
		}
		fmt.Printf("paperpulse %s\n", info.Release)
		fmt.Printf("  Go:     %s\n", info.Go)
		fmt.Printf("  Commit: %s\n", info.Commit)
		fmt.Printf("  Date:   %s\n", info.CommitDate)
		return nil
	},
}
