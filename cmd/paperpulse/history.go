package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/types"
)

var (
	historyDays int
	historyDate string
)

type digestHistory []types.UserDigest

func (h digestHistory) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(h))
	for _, d := range h {
		status := "sent"
		if !d.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			d.Date,
			strconv.Itoa(d.PapersCount),
			strings.Join(d.Keywords, ", "),
			status,
			d.SentAt.Local().Format(time.DateTime),
			d.ErrorMessage,
		})
	}
	return []string{"Date", "Papers", "Keywords", "Status", "Sent At", "Error"}, rows
}

// datePapers lists the paper ids a subscriber received on one date.
type datePapers struct {
	Email  string   `json:"email" yaml:"email"`
	Date   string   `json:"date" yaml:"date"`
	Papers []string `json:"papers" yaml:"papers"`
}

func (p datePapers) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(p.Papers))
	for _, id := range p.Papers {
		rows = append(rows, []string{id})
	}
	return []string{"Paper ID"}, rows
}

var historyCmd = &cobra.Command{
	Use:   "history <email>",
	Short: "Show digests sent to a subscriber",
	Long: `Show a subscriber's recent digests, newest first.

With --date, list the paper ids sent on that day instead.

Examples:
  paperpulse history ada@example.com
  paperpulse history ada@example.com --days 7 -o table
  paperpulse history ada@example.com --date 2024-03-15`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()
		if err := requireStore(services); err != nil {
			return err
		}

		email := args[0]
		if historyDate != "" {
			if _, err := time.Parse(time.DateOnly, historyDate); err != nil {
				return err
			}
			ids, err := services.Store.UserPapersForDate(cmd.Context(), email, historyDate)
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return api.Output(datePapers{Email: email, Date: historyDate, Papers: ids})
		}

		digests, err := services.Store.UserDigestHistory(cmd.Context(), email, historyDays)
		if err != nil {
			return err
		}
		if digests == nil {
			digests = []types.UserDigest{}
		}
		return api.Output(digestHistory(digests))
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 30, "Days of history to show")
	historyCmd.Flags().StringVar(&historyDate, "date", "", "List papers sent on this date (YYYY-MM-DD)")
	rootCmd.AddCommand(historyCmd)
}
