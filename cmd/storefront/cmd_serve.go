package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
	"storefront/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a context until interrupted, logging every change it takes in",
	Long: `Starts a context over the configured storage: the change bridge, the
reconcile loop and, when a schedule is configured, periodic backups.
Start a second serve (or watch) on the same storage to see writes travel.`,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the catalog, orders and storage usage",
	RunE:  runWatch,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	c, err := openContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	log := logging.Get(logging.CategoryCLI)
	c.State.SetOnUpdate(func(keys []string) {
		log.Infow("state updated", "keys", keys)
		if w := c.State.Warning(); w != "" {
			log.Warn(w)
		}
	})
	if err := c.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "serving context %s on %s storage (durable: %v)\n",
		c.ID, cfg.Storage.Backend, c.Durable())

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	// keep log lines off the alternate screen
	if !verbose && cfg.Logging.File == "" {
		_ = logging.Initialize(logging.Options{Level: "error", Format: cfg.Logging.Format})
	}

	c, err := openContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return err
	}

	model := ui.NewWatchModel(c.State, c.Advisor.UsageEstimate)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
