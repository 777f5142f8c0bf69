package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/internal/legacy"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import data from other systems",
}

var legacySource string

func init() {
	legacyCmd := &cobra.Command{
		Use:   "legacy",
		Short: "Import keys and access logs from the sqlite database of the previous key server",
		Args:  cobra.NoArgs,
		RunE: withApp(
			func(cmd *cobra.Command, a *app, _ []string) error {
				if legacySource == "" {
					return errors.New("--source is required")
				}
				src, err := legacy.Open(legacySource)
				if err != nil {
					return err
				}
				if db, err := src.DB(); err == nil {
					defer db.Close()
				}
				report, err := legacy.Import(cmd.Context(), src, a.store)
				if err != nil {
					return err
				}
				_ = cache.Delete(cache.KeyStats)
				if jsonOutput {
					return a.printJSON(report)
				}
				_, _ = fmt.Fprintf(
					a.out, "imported %d keys and %d log entries, skipped %d existing and %d invalid keys\n",
					report.KeysImported, report.EventsImported, report.KeysSkipped, report.KeysInvalid,
				)
				return nil
			},
		),
	}
	legacyCmd.Flags().StringVar(&legacySource, "source", "", "path of the legacy sqlite database")
	migrateCmd.AddCommand(legacyCmd)
}
