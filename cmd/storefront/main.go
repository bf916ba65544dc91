// Command storefront operates the storefront persistence and sync engine
// from a terminal: it runs contexts, inspects and edits the shared data,
// and takes and restores backups.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/system"
)

var (
	// Global flags
	configPath string
	verbose    bool
	backend    string
	dataPath   string

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront persistence and sync engine",
	Long: `storefront keeps a grocery storefront's catalog, orders, cart and
preferences in durable key-value storage and keeps every running context
in sync with it.

Run "storefront serve" in several terminals against the same storage to
watch changes propagate between them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if backend != "" {
			loaded.Storage.Backend = backend
		}
		if dataPath != "" {
			loaded.Storage.Path = dataPath
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		lc := loaded.Logging
		if err := logging.Initialize(logging.Options{
			Level:      lc.Level,
			Format:     lc.Format,
			File:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Categories: lc.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "storefront.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Storage backend override (dir, bolt, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Storage path override")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContext builds a context over the configured storage. One-shot
// commands use it without Start.
func openContext(ctx context.Context) (*system.Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return system.New(ctx, cfg, system.Options{})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
