package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/types"
)

// subscriptionList renders subscriptions for output.
type subscriptionList []types.Subscription

func (l subscriptionList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{
			s.ID,
			s.Email,
			strings.Join(s.Keywords, ", "),
			strconv.Itoa(s.MaxPapers),
			s.SummaryModel,
			s.DigestTime,
		})
	}
	return []string{"ID", "Email", "Keywords", "Max #", "Model", "Digest Time"}, rows
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage digest subscriptions",
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active subscriptions",
	Long: `List active subscriptions with a resolvable email.

Reads the configured store, or the subscriber file when no store is
available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()

		subs, err := services.Subscribers.ActiveSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		return api.Output(subscriptionList(subs))
	},
}

var (
	addKeywords  []string
	addMaxPapers int
	addModel     string
	addTone      string
	addNoPDF     bool
)

var subscribersAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create or update a subscription",
	Example: `  paperpulse subscribers add ada@example.com -k "graph neural networks" -k transformer
  paperpulse subscribers add ada@example.com -k llm --model gpt-4o-mini --max-papers 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(addKeywords) == 0 {
			return fmt.Errorf("at least one --keyword is required")
		}
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()
		if err := requireStore(services); err != nil {
			return err
		}

		sub, err := services.Store.UpsertSubscription(cmd.Context(), types.Subscription{
			Email:          args[0],
			Keywords:       addKeywords,
			MaxPapers:      addMaxPapers,
			SummaryModel:   addModel,
			Tone:           addTone,
			IncludePDFLink: !addNoPDF,
			Active:         true,
		})
		if err != nil {
			return err
		}
		return api.Output(subscriptionList{sub})
	},
}

var subscribersSetActiveCmd = &cobra.Command{
	Use:   "set-active <id> <true|false>",
	Short: "Activate or deactivate a subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid active value %q: %w", args[1], err)
		}
		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()
		if err := requireStore(services); err != nil {
			return err
		}

		if err := services.Store.SetSubscriptionActive(cmd.Context(), args[0], active); err != nil {
			return err
		}
		fmt.Printf("Subscription %s active=%t\n", args[0], active)
		return nil
	},
}

func init() {
	subscribersAddCmd.Flags().StringArrayVarP(&addKeywords, "keyword", "k", nil, "Keyword to match (repeatable)")
	subscribersAddCmd.Flags().IntVar(&addMaxPapers, "max-papers", types.DefaultMaxPapers, "Papers per digest")
	subscribersAddCmd.Flags().StringVar(&addModel, "model", types.DefaultSummaryModel, "Summary model")
	subscribersAddCmd.Flags().StringVar(&addTone, "tone", types.ToneConcise, "Summary tone: concise, detailed or simple")
	subscribersAddCmd.Flags().BoolVar(&addNoPDF, "no-pdf-link", false, "Omit PDF links from the digest")

	subscribersCmd.AddCommand(subscribersListCmd)
	subscribersCmd.AddCommand(subscribersAddCmd)
	subscribersCmd.AddCommand(subscribersSetActiveCmd)
	rootCmd.AddCommand(subscribersCmd)
}
