package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage admin API users",
}

var userDisplayName string

func init() {
	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add an admin user; the password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(
			func(cmd *cobra.Command, a *app, args []string) error {
				password, err := readPassword(cmd)
				if err != nil {
					return err
				}
				u, err := a.store.UsersStorage().Create(args[0], password, userDisplayName)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "added user %s\n", u.Username)
				return nil
			},
		),
	}
	addCmd.Flags().StringVar(&userDisplayName, "display-name", "", "display name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List admin users",
		Args:  cobra.NoArgs,
		RunE: withApp(
			func(cmd *cobra.Command, a *app, _ []string) error {
				users, err := a.store.UsersStorage().List()
				if err != nil {
					return err
				}
				if jsonOutput {
					return a.printJSON(users)
				}
				w := a.table()
				_, _ = fmt.Fprintln(w, "USERNAME\tDISPLAY NAME\tDISABLED")
				for _, u := range users {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", u.Username, u.DisplayName, u.Disabled)
				}
				return w.Flush()
			},
		),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an admin user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(
			func(cmd *cobra.Command, a *app, args []string) error {
				if err := a.store.UsersStorage().Delete(args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "deleted user %s\n", args[0])
				return nil
			},
		),
	}

	usersCmd.AddCommand(addCmd, listCmd, deleteCmd)
}

// readPassword reads the first line of stdin
func readPassword(cmd *cobra.Command) (string, error) {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("could not read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}
