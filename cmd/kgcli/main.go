package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/keygate/keygate/cmd/keygate/config"
	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage"
)

var rootCmd = &cobra.Command{
	Use:           "kgcli",
	Short:         "kgcli can help you manage your keygate license keys",
	Long:          "kgcli can help you manage your keygate license keys",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
		return nil
	},
}

var (
	configFile string
	jsonOutput bool
	verbose    bool
)

// app bundles what the commands work on
type app struct {
	store *storage.Storage
	svc   *service.Service
	out   io.Writer
}

// openApp loads the configuration and opens the storage
func openApp(cmd *cobra.Command) (*app, error) {
	if err := config.Load(configFile); err != nil {
		return nil, err
	}
	c := config.Get()
	switch {
	case c.Caching.Disabled:
		cache.Disable()
	case c.Caching.RedisOptions() != nil:
		// shares the cache with the server, so that changes invalidate its
		// statistics
		if err := cache.UseRedisCache(c.Caching.RedisOptions()); err != nil {
			return nil, err
		}
	}
	store, err := storage.NewStorage(c.StorageConfig())
	if err != nil {
		return nil, err
	}
	svc := service.New(store, c.ServiceConfig())
	if err = svc.LoadSettings(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{
		store: store,
		svc:   svc,
		out:   cmd.OutOrStdout(),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("could not close storage")
	}
}

// withApp wraps a command implementation with opening and closing the app
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

// printJSON writes v as indented JSON
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table returns a tabwriter on the output; callers must Flush it
func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "the config file to use")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(keysCmd, logsCmd, statsCmd, usersCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
