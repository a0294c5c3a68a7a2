package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	httpH "github.com/KaramelBytes/csvinsights/internal/http/handlers"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/store"
	"github.com/KaramelBytes/csvinsights/internal/utils"
)

var reportsLimit int

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List, show or delete saved reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(func(svc services.ReportService) error {
			rows, err := svc.ListRecent(cmd.Context(), reportsLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "(no reports)")
				return nil
			}
			for _, r := range rows {
				fmt.Fprintf(out, "- %d: %s (%d rows, %d columns) %s\n",
					r.ID, r.Filename, r.Rows, r.Columns, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseReportID(args[0])
		if err != nil {
			return err
		}
		return withReports(func(svc services.ReportService) error {
			r, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return reportErr(id, err)
			}
			b, err := utils.PrettyJSON(httpH.NewReportDetail(r))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		})
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseReportID(args[0])
		if err != nil {
			return err
		}
		return withReports(func(svc services.ReportService) error {
			if err := svc.Delete(cmd.Context(), id); err != nil {
				return reportErr(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted report %d\n", id)
			return nil
		})
	},
}

// withReports opens the store for one command. Listing and reading never
// touch the LLM, so no runtime is built.
func withReports(fn func(services.ReportService) error) error {
	c, err := requireConfig()
	if err != nil {
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
	return fn(services.NewReportService(db, log, store.NewReportRepo(db, log), nil))
}

func parseReportID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid report id: %s", s)
	}
	return id, nil
}

func reportErr(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("report %d not found", id)
	}
	return err
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsDeleteCmd)
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", store.DefaultRecentLimit, "number of reports to list")
}
