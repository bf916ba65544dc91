package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
	"storefront/internal/domain"
	"storefront/internal/system"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	exportOut  string
	estPersist bool
	statsDay   string
)

var getCmd = &cobra.Command{
	Use:   "get [collection]",
	Short: "Print a collection as JSON",
	Long: `Prints one collection as the running storefront sees it, seed data
included. Collections: ` + strings.Join(collectionNames(), ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: collectionNames(),
	RunE:      runGet,
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys present in storage",
	RunE:  runKeys,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a backup of the shared collections",
	Long: `Writes a backup file named <prefix>_Backup_<date>.json into the backup
directory, or into the directory given with --out. Use --out - for stdout.`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Restore a backup file",
	Long: `Validates the whole file before writing anything. Collections absent
from the backup are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show storage usage and quota",
	RunE:  runEstimate,
}

func init() {
	getCmd.Flags().StringVar(&statsDay, "day", "", "For stats: summarize orders of this day (YYYY-MM-DD, local time)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output directory, or - for stdout")
	estimateCmd.Flags().BoolVar(&estPersist, "persist", false, "Also ask the backend for durable storage")
	rootCmd.AddCommand(keysCmd)
}

type collectionGetter func(c *system.Context) (any, error)

var collections = map[string]collectionGetter{
	"products":   func(c *system.Context) (any, error) { return c.State.Products(), nil },
	"categories": func(c *system.Context) (any, error) { return c.State.Categories(), nil },
	"orders":     func(c *system.Context) (any, error) { return c.State.Orders(), nil },
	"users":      func(c *system.Context) (any, error) { return c.Auth.Users(), nil },
	"addresses":  func(c *system.Context) (any, error) { return c.State.Addresses(), nil },
	"settings":   func(c *system.Context) (any, error) { return c.State.Settings(), nil },
	"cart":       func(c *system.Context) (any, error) { return c.State.Cart(), nil },
	"favorites":  func(c *system.Context) (any, error) { return c.State.Favorites(), nil },
	"recent":     func(c *system.Context) (any, error) { return c.State.RecentlyViewed(), nil },
	"session": func(c *system.Context) (any, error) {
		return map[string]any{
			"user":          c.State.CurrentUser(),
			"screen":        c.State.Screen(),
			"product":       c.State.SelectedProduct(),
			"order":         c.State.SelectedOrder(),
			"theme":         c.State.Theme(),
			"lang":          c.State.Language(),
			"notifications": c.State.NotificationsEnabled(),
			"sounds":        c.State.SoundsEnabled(),
		}, nil
	},
	"stats": func(c *system.Context) (any, error) {
		if statsDay == "" {
			return c.State.AdminStats(), nil
		}
		day, err := time.ParseInLocation(time.DateOnly, statsDay, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid --day: %w", err)
		}
		return domain.DayStats(c.State.Orders(), day, time.Local), nil
	},
}

func collectionNames() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func runGet(cmd *cobra.Command, args []string) error {
	get, ok := collections[args[0]]
	if !ok {
		return fmt.Errorf("unknown collection %q (valid: %s)", args[0], strings.Join(collectionNames(), ", "))
	}
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	v, err := get(c)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}

func runKeys(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	keys, err := c.Store.Keys()
	if err != nil {
		return err
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if exportOut == "-" {
		return c.Backup.Export(cmd.OutOrStdout())
	}
	dir := exportOut
	if dir == "" {
		dir = cfg.Backup.Dir
	}
	path, err := c.Backup.ExportFile(dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Restore(cmd.Context(), f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "restored %s from %s", strings.Join(res.Restored, ", "), res.Timestamp)
	if res.DeviceInfo != "" {
		fmt.Fprintf(out, " (%s)", res.DeviceInfo)
	}
	fmt.Fprintln(out)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "not in backup: %s\n", strings.Join(res.Skipped, ", "))
	}
	return nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	if estPersist {
		fmt.Fprintf(out, "durable: %v\n", c.Advisor.RequestDurability(cmd.Context()))
	}
	est, ok := c.Advisor.UsageEstimate(cmd.Context())
	if !ok {
		fmt.Fprintln(out, ui.UsageBar(nil, 0))
		return nil
	}
	fmt.Fprintln(out, ui.UsageBar(est, 30))
	fmt.Fprintf(out, "source: %s\n", est.Source)
	return nil
}
