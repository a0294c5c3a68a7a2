package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the reports table",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(c, true)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		db, err := openStore(c, log)
		if err != nil {
			return err
		}
		closeStore(db)
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
