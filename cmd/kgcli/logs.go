package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage/model"
)

var logsReq service.ListLogsRequest

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List audit logs, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(
		func(cmd *cobra.Command, a *app, _ []string) error {
			res, err := a.svc.ListLogs(cmd.Context(), logsReq)
			if err != nil {
				return err
			}
			if jsonOutput {
				return a.printJSON(res)
			}
			if err = printEvents(a, res.Logs); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "page %d/%d, %d entries\n", res.Page, res.Pages, res.Total)
			return nil
		},
	),
}

func init() {
	logsCmd.Flags().StringVarP(&logsReq.KeySearch, "key", "k", "", "substring of the key")
	logsCmd.Flags().BoolVar(&logsReq.SuccessOnly, "success-only", false, "only successful entries")
	logsCmd.Flags().StringVar(&logsReq.Action, "action", "", "only entries with this action, e.g. LOGIN_FAILED")
	logsCmd.Flags().IntVar(&logsReq.Page, "page", 1, "page")
	logsCmd.Flags().IntVar(&logsReq.PerPage, "per-page", service.DefaultLogsPerPage, "entries per page")
}

func printEvents(a *app, events []model.AuditEvent) error {
	w := a.table()
	_, _ = fmt.Fprintln(w, "TIME\tKEY\tACTION\tOK\tREASON\tIP\tCOUNTRY")
	for _, e := range events {
		_, _ = fmt.Fprintf(
			w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			formatTime(&e.Timestamp), e.KeyID, e.Action, e.Success, e.Reason, e.IPAddress, e.Country,
		)
	}
	return w.Flush()
}
