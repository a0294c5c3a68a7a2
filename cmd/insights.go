package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvinsights/internal/analysis"
	httpH "github.com/KaramelBytes/csvinsights/internal/http/handlers"
	"github.com/KaramelBytes/csvinsights/internal/insights"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/store"
	"github.com/KaramelBytes/csvinsights/internal/utils"
)

var (
	insJSON        bool
	insPrintPrompt bool
	insMaxRows     int
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Profile a CSV, generate LLM insights and save the report",
	Example: `  csvinsights insights sales.csv
  csvinsights insights sales.csv --json
  csvinsights insights sales.csv --print-prompt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := analysis.DefaultOptions()
		opt.MaxRows = insMaxRows
		p, err := profileFile(args[0], opt)
		if err != nil {
			return err
		}
		req, err := insights.RequestFromProfile(p)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if insPrintPrompt {
			req.Normalize()
			fmt.Fprintln(out, insights.BuildPrompt(req))
			return nil
		}

		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := providerNeedsKey(c); err != nil {
			return err
		}
		log, err := newLogger(c, true)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()
		db, err := openStore(c, log)
		if err != nil {
			return err
		}
		defer closeStore(db)

		svc := services.NewReportService(db, log, store.NewReportRepo(db, log), newRequester(c, log))
		row, res, err := svc.GenerateReport(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("generate insights: %w", err)
		}
		if insJSON {
			b, err := utils.PrettyJSON(httpH.NewReportDetail(row))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "✓ Saved report %d for %s (%d rows, %d columns)\n\n", row.ID, row.Filename, row.Rows, row.Columns)
		printInsights(out, res)
		return nil
	},
}

func printInsights(w io.Writer, in insights.Insights) {
	sections := []struct {
		title string
		items []string
	}{
		{"Trends", in.Trends},
		{"Outliers", in.Outliers},
		{"Data Quality", in.DataQuality},
		{"Recommendations", in.Recommendations},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "%s:\n", s.title)
		if len(s.items) == 0 {
			fmt.Fprintln(w, "  (none)")
			continue
		}
		for _, it := range s.items {
			fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(it))
		}
	}
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().BoolVar(&insJSON, "json", false, "print the saved report as JSON")
	insightsCmd.Flags().BoolVar(&insPrintPrompt, "print-prompt", false, "print the prompt and exit without calling the LLM")
	insightsCmd.Flags().IntVar(&insMaxRows, "max-rows", 0, "maximum data rows to read (0 = unlimited)")
}
