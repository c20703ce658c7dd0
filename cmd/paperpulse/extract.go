package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/structure"
)

var extractConcurrency int

// extraction pairs a source with its result.
type extraction struct {
	Source string            `json:"source" yaml:"source"`
	Result *structure.Result `json:"result" yaml:"result"`
}

type extractions []extraction

func (e extractions) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(e))
	for _, x := range e {
		r := x.Result
		rows = append(rows, []string{
			x.Source,
			strconv.FormatBool(r.Success),
			strconv.Itoa(r.TotalPages),
			strconv.Itoa(len(r.Sections)),
			strconv.Itoa(len(r.Figures)),
			r.ExtractionMethod,
			r.Error,
		})
	}
	return []string{"Source", "Success", "Pages", "Sections count", "Figures count", "Method", "Error"}, rows
}

var extractCmd = &cobra.Command{
	Use:   "extract <pdf-url-or-path>...",
	Short: "Extract sections and figures from PDFs",
	Long: `Extract document structure from one or more PDFs.

Sources may be http(s) URLs, file:// URIs, local paths, or - to read one
PDF from standard input. Each document
is decoded with the first decoder that succeeds, then segmented into
sections and scanned for figures and tables. A failed document is
reported in its result and does not stop the others.

Examples:
  paperpulse extract https://arxiv.org/pdf/2401.00001
  paperpulse extract paper1.pdf paper2.pdf --concurrency 2 -o table
  curl -sL https://arxiv.org/pdf/2401.00001 | paperpulse extract -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stdin := 0
		for _, src := range args {
			if src == "-" {
				stdin++
			}
		}
		if stdin > 1 {
			return fmt.Errorf("standard input can only be read once")
		}

		services, err := loadServices(cmd)
		if err != nil {
			return err
		}
		defer services.Close()

		results := make(extractions, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(extractConcurrency, 1))
		for i, src := range args {
			g.Go(func() error {
				var res *structure.Result
				if src == "-" {
					res = services.Extractor.ExtractReader(ctx, os.Stdin)
				} else {
					res = services.Extractor.ExtractURL(ctx, src)
				}
				results[i] = extraction{Source: src, Result: res}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if len(results) == 1 && api.IsStructuredOutput() {
			return api.Output(results[0].Result)
		}
		return api.Output(results)
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 4, "Documents processed at once")
	rootCmd.AddCommand(extractCmd)
}
