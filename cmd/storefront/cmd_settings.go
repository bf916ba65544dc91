package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit the storewide settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings record",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [field=value]...",
	Short: "Change settings fields",
	Long: `Changes one or more fields and saves the record once. Every running
context picks the change up.

Fields: ` + strings.Join(settingFields(), ", ") + `

Example:
  storefront settings set discount=10 discount-enabled=true`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsSet,
}

var settingsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Stamp the settings with the current time",
	RunE:  runSettingsSync,
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [field=value]...",
	Short: "Change device preferences: theme, lang, notifications, sounds",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrefs,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSyncCmd)
	rootCmd.AddCommand(prefsCmd)
}

type setter func(s *domain.SystemSettings, v string) error

func boolField(dst func(*domain.SystemSettings) *bool) setter {
	return func(s *domain.SystemSettings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(s) = b
		return nil
	}
}

func numberField(dst func(*domain.SystemSettings) *float64) setter {
	return func(s *domain.SystemSettings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(s) = f
		return nil
	}
}

func textField(dst func(*domain.SystemSettings) *string) setter {
	return func(s *domain.SystemSettings, v string) error {
		*dst(s) = v
		return nil
	}
}

var settingSetters = map[string]setter{
	"open":             boolField(func(s *domain.SystemSettings) *bool { return &s.IsStoreOpen }),
	"maintenance":      boolField(func(s *domain.SystemSettings) *bool { return &s.MaintenanceMode }),
	"ai":               boolField(func(s *domain.SystemSettings) *bool { return &s.AIAssistantEnabled }),
	"autosync":         boolField(func(s *domain.SystemSettings) *bool { return &s.AutoSyncEnabled }),
	"discount-enabled": boolField(func(s *domain.SystemSettings) *bool { return &s.GlobalDiscountEnabled }),
	"discount":         numberField(func(s *domain.SystemSettings) *float64 { return &s.GlobalDiscountPercentage }),
	"delivery":         numberField(func(s *domain.SystemSettings) *float64 { return &s.DeliveryCharge }),
	"min-order":        numberField(func(s *domain.SystemSettings) *float64 { return &s.MinOrderAmount }),
	"broadcast":        textField(func(s *domain.SystemSettings) *string { return &s.BroadcastMessage }),
	"name":             textField(func(s *domain.SystemSettings) *string { return &s.StoreName }),
	"slogan":           textField(func(s *domain.SystemSettings) *string { return &s.StoreSlogan }),
	"logo":             textField(func(s *domain.SystemSettings) *string { return &s.StoreLogo }),
	"support-phone":    textField(func(s *domain.SystemSettings) *string { return &s.SupportPhone }),
}

func settingFields() []string {
	return []string{"open", "maintenance", "ai", "autosync", "discount-enabled", "discount",
		"delivery", "min-order", "broadcast", "name", "slogan", "logo", "support-phone"}
}

// applySettings edits a copy; nothing is saved when any pair is bad.
func applySettings(s domain.SystemSettings, pairs []string) (domain.SystemSettings, error) {
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok {
			return s, fmt.Errorf("expected field=value, got %q", pair)
		}
		set, ok := settingSetters[field]
		if !ok {
			return s, fmt.Errorf("unknown settings field %q", field)
		}
		if err := set(&s, value); err != nil {
			return s, fmt.Errorf("%s: %w", field, err)
		}
	}
	return s, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return printJSON(cmd.OutOrStdout(), c.State.Settings())
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	next, err := applySettings(c.State.Settings(), args)
	if err != nil {
		return err
	}
	if err := c.State.UpdateSettings(next); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), c.State.Settings())
}

func runSettingsSync(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.State.MarkSynced(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), c.State.Settings().LastSyncTimestamp)
	return nil
}

func runPrefs(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	for _, pair := range args {
		field, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", pair)
		}
		switch field {
		case "theme":
			if value != string(domain.ThemeLight) && value != string(domain.ThemeDark) {
				return fmt.Errorf("theme must be light or dark")
			}
			err = c.State.SetTheme(domain.Theme(value))
		case "lang":
			if value != string(domain.LangBengali) && value != string(domain.LangEnglish) {
				return fmt.Errorf("lang must be bn or en")
			}
			err = c.State.SetLanguage(domain.Language(value))
		case "notifications", "sounds":
			on, perr := strconv.ParseBool(value)
			if perr != nil {
				return fmt.Errorf("%s: %w", field, perr)
			}
			if field == "sounds" {
				err = c.State.SetSounds(on)
			} else {
				err = c.State.SetNotifications(on)
			}
		default:
			return fmt.Errorf("unknown preference %q", field)
		}
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "theme=%s lang=%s notifications=%v sounds=%v\n",
		c.State.Theme(), c.State.Language(), c.State.NotificationsEnabled(), c.State.SoundsEnabled())
	return nil
}
