package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show key and login statistics",
	Args:  cobra.NoArgs,
	RunE: withApp(
		func(cmd *cobra.Command, a *app, _ []string) error {
			stats, err := a.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return a.printJSON(stats)
			}
			w := a.table()
			k, l := stats.Keys, stats.Logins
			_, _ = fmt.Fprintf(w, "Keys:\t%d\n", k.Total)
			_, _ = fmt.Fprintf(w, "  active\t%d\n", k.Active)
			_, _ = fmt.Fprintf(w, "  paused\t%d\n", k.Paused)
			_, _ = fmt.Fprintf(w, "  inactive\t%d\n", k.Inactive)
			_, _ = fmt.Fprintf(w, "  unused\t%d\n", k.Unused)
			_, _ = fmt.Fprintf(w, "  expired\t%d\n", k.Expired)
			_, _ = fmt.Fprintf(w, "  used\t%d\n", k.Used)
			_, _ = fmt.Fprintf(w, "Logins:\t%d\n", l.Total)
			_, _ = fmt.Fprintf(w, "  successful\t%d\n", l.Successful)
			_, _ = fmt.Fprintf(w, "  failed\t%d\n", l.Failed)
			_, _ = fmt.Fprintf(w, "  success rate\t%.2f%%\n", l.SuccessRate)
			return w.Flush()
		},
	),
}
