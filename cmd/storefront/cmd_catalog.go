package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
	"storefront/internal/domain"
)

var (
	productAll bool
	newProduct domain.Product
	newOld     float64
	stockSet   int
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the catalog",
}

var productListCmd = &cobra.Command{
	Use:   "list [category-id]",
	Short: "List products at their display price",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProductList,
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product",
	RunE:  runProductAdd,
}

var productStockCmd = &cobra.Command{
	Use:   "stock [product-id]",
	Short: "Set the stock of a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runProductStock,
}

var productToggleCmd = &cobra.Command{
	Use:   "toggle [product-id]",
	Short: "Show or hide a product in the storefront",
	Args:  cobra.ExactArgs(1),
	RunE:  runProductToggle,
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete [product-id]",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runProductDelete,
}

func init() {
	productListCmd.Flags().BoolVarP(&productAll, "all", "a", false, "Include hidden products")

	f := productAddCmd.Flags()
	f.StringVar(&newProduct.ID, "id", "", "Product id (generated when empty)")
	f.StringVar(&newProduct.Name, "name", "", "Product name")
	f.Float64Var(&newProduct.Price, "price", 0, "Price in taka")
	f.Float64Var(&newOld, "old-price", 0, "Previous price shown struck through")
	f.StringVar(&newProduct.Category, "category", "", "Category id")
	f.StringVar(&newProduct.Unit, "unit", "", "Selling unit, e.g. kg")
	f.IntVar(&newProduct.Stock, "stock", 0, "Units in stock")
	f.StringVar(&newProduct.Image, "image", "", "Image URL")
	f.StringVar(&newProduct.Description, "description", "", "Description")
	_ = productAddCmd.MarkFlagRequired("name")
	_ = productAddCmd.MarkFlagRequired("price")

	productStockCmd.Flags().IntVar(&stockSet, "set", 0, "New stock level")
	_ = productStockCmd.MarkFlagRequired("set")

	productCmd.AddCommand(productListCmd)
	productCmd.AddCommand(productAddCmd)
	productCmd.AddCommand(productStockCmd)
	productCmd.AddCommand(productToggleCmd)
	productCmd.AddCommand(productDeleteCmd)
}

func runProductList(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	category := ""
	if len(args) == 1 {
		category = args[0]
	}
	products := c.State.VisibleProducts(category)
	if productAll {
		products = products[:0]
		for _, p := range c.State.Products() {
			if category == "" || p.Category == category {
				products = append(products, p)
			}
		}
	}
	s := ui.NewStyles(c.State.Theme())
	settings := c.State.Settings()
	for _, p := range products {
		fmt.Fprintln(cmd.OutOrStdout(), s.ProductLine(p, settings))
	}
	return nil
}

func runProductAdd(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	p := newProduct
	p.IsActive = true
	if newOld > 0 {
		old := newOld
		p.OldPrice = &old
	}
	added, err := c.State.AddProduct(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.NewStyles(c.State.Theme()).ProductLine(added, c.State.Settings()))
	return nil
}

func editProduct(cmd *cobra.Command, id string, edit func(*domain.Product)) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	for _, p := range c.State.Products() {
		if p.ID != id {
			continue
		}
		edit(&p)
		if err := c.State.UpdateProduct(p); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.NewStyles(c.State.Theme()).ProductLine(p, c.State.Settings()))
		return nil
	}
	return fmt.Errorf("unknown product %s", id)
}

func runProductStock(cmd *cobra.Command, args []string) error {
	return editProduct(cmd, args[0], func(p *domain.Product) { p.Stock = stockSet })
}

func runProductToggle(cmd *cobra.Command, args []string) error {
	return editProduct(cmd, args[0], func(p *domain.Product) { p.IsActive = !p.IsActive })
}

func runProductDelete(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return c.State.DeleteProduct(args[0])
}
