package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
	"storefront/internal/appstate"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/system"
)

var (
	addressLabel   string
	addressName    string
	addressPhone   string
	addressDetails string
	addressDefault bool
	categoryIcon   string
	categoryColor  string
	forceInit      bool
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show and edit the cart",
	RunE:  runCartShow,
}

var cartAddCmd = &cobra.Command{
	Use:   "add [product-id[=qty]]...",
	Short: "Add products to the cart",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			if err := fillCart(c, args); err != nil {
				return err
			}
			return printCart(cmd, c)
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove [product-id]",
	Short: "Remove a product from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			if err := c.State.RemoveFromCart(args[0]); err != nil {
				return err
			}
			return printCart(cmd, c)
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error { return c.State.ClearCart() })
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite [product-id]",
	Short: "Toggle a product in the favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			on, err := c.State.ToggleFavorite(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s favorite: %v\n", args[0], on)
			return nil
		})
	},
}

var viewCmd = &cobra.Command{
	Use:   "view [product-id]",
	Short: "Open a product; it moves to the front of recently viewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			for _, p := range c.State.Products() {
				if p.ID == args[0] {
					if err := c.State.ViewProduct(p); err != nil {
						return err
					}
					s := ui.NewStyles(c.State.Theme())
					fmt.Fprintln(cmd.OutOrStdout(), s.ProductLine(p, c.State.Settings()))
					if p.Description != "" {
						fmt.Fprintln(cmd.OutOrStdout(), s.Muted.Render(p.Description))
					}
					return nil
				}
			}
			return fmt.Errorf("product %s: %w", args[0], appstate.ErrNotFound)
		})
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Delivery addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			for _, a := range c.State.Addresses() {
				mark := " "
				if a.IsDefault {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s: %s, %s (%s)\n", mark, a.ID, a.Label, a.ReceiverName, a.Details, a.Phone)
			}
			return nil
		})
	},
}

var addressAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			a, err := c.State.AddAddress(domain.Address{
				Label:        addressLabel,
				ReceiverName: addressName,
				Phone:        addressPhone,
				Details:      addressDetails,
				IsDefault:    addressDefault,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.ID)
			return nil
		})
	},
}

var addressDefaultCmd = &cobra.Command{
	Use:   "default [address-id]",
	Short: "Make an address the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error { return c.State.SetDefaultAddress(args[0]) })
	},
}

var addressDeleteCmd = &cobra.Command{
	Use:   "delete [address-id]",
	Short: "Delete an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error { return c.State.DeleteAddress(args[0]) })
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Product categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			for _, cat := range c.State.Categories() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", cat.Icon, cat.ID, cat.Name)
			}
			return nil
		})
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error {
			cat, err := c.State.AddCategory(domain.Category{Name: args[0], Icon: categoryIcon, Color: categoryColor})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cat.ID)
			return nil
		})
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete [category-id]",
	Short: "Delete a category; its products become uncategorized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd, func(c *system.Context) error { return c.State.DeleteCategory(args[0]) })
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
		return nil
	},
}

func init() {
	f := addressAddCmd.Flags()
	f.StringVar(&addressLabel, "label", "Home", "Short label")
	f.StringVar(&addressName, "receiver", "", "Receiver name")
	f.StringVar(&addressPhone, "phone", "", "Receiver phone")
	f.StringVar(&addressDetails, "details", "", "Street, area, city")
	f.BoolVar(&addressDefault, "default", false, "Make it the default address")
	_ = addressAddCmd.MarkFlagRequired("details")

	categoryAddCmd.Flags().StringVar(&categoryIcon, "icon", "", "Emoji icon")
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "Accent color name")
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")

	cartCmd.AddCommand(cartAddCmd)
	cartCmd.AddCommand(cartRemoveCmd)
	cartCmd.AddCommand(cartClearCmd)
	addressCmd.AddCommand(addressAddCmd)
	addressCmd.AddCommand(addressDefaultCmd)
	addressCmd.AddCommand(addressDeleteCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryDeleteCmd)

	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(initCmd)
}

// withContext runs fn against a one-shot context.
func withContext(cmd *cobra.Command, fn func(*system.Context) error) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func runCartShow(cmd *cobra.Command, args []string) error {
	return withContext(cmd, func(c *system.Context) error { return printCart(cmd, c) })
}

func printCart(cmd *cobra.Command, c *system.Context) error {
	out := cmd.OutOrStdout()
	cart := c.State.Cart()
	if len(cart) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return nil
	}
	s := ui.NewStyles(c.State.Theme())
	for _, it := range cart {
		fmt.Fprintf(out, "%3dx %-4s %s  %s\n", it.Quantity, it.ID, it.Name, ui.Taka(it.LineTotal()))
	}
	settings := c.State.Settings()
	sub := c.State.CartSubtotal()
	fmt.Fprintf(out, "subtotal %s, delivery %s, total %s\n",
		ui.Taka(sub), ui.Taka(settings.DeliveryCharge), s.Price.Render(ui.Taka(sub+settings.DeliveryCharge)))
	if sub < settings.MinOrderAmount {
		fmt.Fprintln(out, s.Warning.Render(fmt.Sprintf("minimum order is %s", ui.Taka(settings.MinOrderAmount))))
	}
	return nil
}
