package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/service"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage license keys",
}

var (
	createQuantity int
	createDays     int
	listSearch     string
	listStatus     string
	listPage       int
	listPerPage    int
	deleteAll      bool
)

func init() {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Generate new keys",
		Args:  cobra.NoArgs,
		RunE: withApp(
			func(cmd *cobra.Command, a *app, _ []string) error {
				req := service.CreateKeysRequest{}
				if cmd.Flags().Changed("quantity") {
					req.Quantity = &createQuantity
				}
				if cmd.Flags().Changed("days") {
					req.ExpirationDays = &createDays
				}
				res, err := a.svc.CreateKeys(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return a.printJSON(res)
				}
				for _, id := range res.Keys {
					_, _ = fmt.Fprintln(a.out, id)
				}
				return nil
			},
		),
	}
	createCmd.Flags().IntVarP(&createQuantity, "quantity", "n", 1, "number of keys")
	createCmd.Flags().IntVarP(&createDays, "days", "d", 0, "validity after the first login in days")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List keys, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(
			func(cmd *cobra.Command, a *app, _ []string) error {
				res, err := a.svc.ListKeys(
					cmd.Context(), service.ListKeysRequest{
						Search:  listSearch,
						Status:  listStatus,
						Page:    listPage,
						PerPage: listPerPage,
					},
				)
				if err != nil {
					return err
				}
				if jsonOutput {
					return a.printJSON(res)
				}
				w := a.table()
				_, _ = fmt.Fprintln(w, "KEY\tSTATUS\tHWID\tDAYS\tEXPIRES\tLOGINS")
				for _, k := range res.Keys {
					_, _ = fmt.Fprintf(
						w, "%s\t%s\t%s\t%d\t%s\t%d\n",
						k.KeyID, k.Status, k.BoundHWID(), k.ExpirationDays, formatTime(k.ExpiresAt), k.LoginCount,
					)
				}
				if err = w.Flush(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "page %d/%d, %d keys\n", res.Page, res.Pages, res.Total)
				return nil
			},
		),
	}
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "substring of the key")
	listCmd.Flags().StringVar(&listStatus, "status", "", "active, paused, inactive, unused, expired or used")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page")
	listCmd.Flags().IntVar(&listPerPage, "per-page", service.DefaultKeysPerPage, "keys per page")

	showCmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show a key with its recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(
			func(cmd *cobra.Command, a *app, args []string) error {
				res, err := a.svc.GetKey(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return a.printJSON(res)
				}
				printKey(a, &res.Key)
				if len(res.RecentLogs) > 0 {
					_, _ = fmt.Fprintln(a.out)
					return printEvents(a, res.RecentLogs)
				}
				return nil
			},
		),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a key or, with --all, all keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(
			func(cmd *cobra.Command, a *app, args []string) error {
				if deleteAll {
					n, err := a.svc.DeleteAllKeys(cmd.Context())
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(a.out, "deleted %d keys\n", n)
					return nil
				}
				if len(args) != 1 {
					return fmt.Errorf("either a key or --all is required")
				}
				if err := a.svc.DeleteKey(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			},
		),
	}
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "delete all keys and all audit logs")

	keysCmd.AddCommand(
		createCmd, listCmd, showCmd, deleteCmd,
		keyActionCmd(
			"reset-hwid", "Remove the hardware binding of a key", "",
			func(ctx context.Context, a *app, id string) (*service.KeyView, error) {
				return a.svc.ResetHWID(ctx, id)
			},
		),
		keyActionCmd(
			"pause", "Pause a key, or all active keys with --all", "paused",
			func(ctx context.Context, a *app, id string) (*service.KeyView, error) {
				return a.svc.SetPaused(ctx, id, true)
			},
		),
		keyActionCmd(
			"resume", "Resume a key, or all active keys with --all", "resumed",
			func(ctx context.Context, a *app, id string) (*service.KeyView, error) {
				return a.svc.SetPaused(ctx, id, false)
			},
		),
		keyActionCmd(
			"deactivate", "Deactivate a key", "",
			func(ctx context.Context, a *app, id string) (*service.KeyView, error) {
				return a.svc.SetActive(ctx, id, false)
			},
		),
		keyActionCmd(
			"reactivate", "Reactivate a key", "",
			func(ctx context.Context, a *app, id string) (*service.KeyView, error) {
				return a.svc.SetActive(ctx, id, true)
			},
		),
	)
}

// keyActionCmd builds a command changing one key. If bulk is set, the
// command also accepts --all and changes the pause state of all keys.
func keyActionCmd(
	use, short, bulk string, op func(ctx context.Context, a *app, id string) (*service.KeyView, error),
) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   use + " <key>",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(
			func(cmd *cobra.Command, a *app, args []string) error {
				if all {
					n, err := a.svc.SetAllPaused(cmd.Context(), use == "pause")
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(a.out, "%s %d keys\n", bulk, n)
					return nil
				}
				if len(args) != 1 {
					return fmt.Errorf("a key is required")
				}
				key, err := op(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return a.printJSON(key)
				}
				printKey(a, key)
				return nil
			},
		),
	}
	if bulk != "" {
		cmd.Flags().BoolVar(&all, "all", false, "apply to all active keys")
	}
	return cmd
}

func printKey(a *app, k *service.KeyView) {
	w := a.table()
	_, _ = fmt.Fprintf(w, "Key:\t%s\n", k.KeyID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", k.Status)
	_, _ = fmt.Fprintf(w, "HWID:\t%s\n", k.BoundHWID())
	_, _ = fmt.Fprintf(w, "Validity:\t%d days\n", k.ExpirationDays)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", formatTime(&k.CreatedAt))
	_, _ = fmt.Fprintf(w, "First login:\t%s\n", formatTime(k.FirstLoginAt))
	_, _ = fmt.Fprintf(w, "Expires:\t%s\n", formatTime(k.ExpiresAt))
	_, _ = fmt.Fprintf(w, "Last login:\t%s\n", formatTime(k.LastLoginAt))
	_, _ = fmt.Fprintf(w, "Logins:\t%d\n", k.LoginCount)
	_ = w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
