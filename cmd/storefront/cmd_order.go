package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
	"storefront/internal/appstate"
	"storefront/internal/domain"
	"storefront/internal/system"
)

var (
	orderItems   []string
	orderMethod  string
	orderPhone   string
	orderTrx     string
	orderAddress string
	cancelReason string
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "List, place and move orders along their lifecycle",
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders, newest first",
	RunE:  runOrderList,
}

var orderPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Place an order from the cart",
	Long: `Adds the given items to the cart and checks out. Without --item the
current cart is ordered as is.

Example:
  storefront order place --item p1=2 --item p3 --method BKASH --phone 01700000000 --trx TX1234`,
	RunE: runOrderPlace,
}

var orderAdvanceCmd = &cobra.Command{
	Use:   "advance [order-id]",
	Short: "Move an order one step: PENDING, ACCEPTED, SHIPPED, DELIVERED",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderAdvance,
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel [order-id]",
	Short: "Cancel an order that has not been delivered",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderCancel,
}

var orderTrackCmd = &cobra.Command{
	Use:   "track [order-id]",
	Short: "Open the tracking screen for an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderTrack,
}

func init() {
	orderPlaceCmd.Flags().StringSliceVarP(&orderItems, "item", "i", nil, "Product to add, as id or id=quantity")
	orderPlaceCmd.Flags().StringVarP(&orderMethod, "method", "m", string(domain.PaymentCOD), "Payment method (COD, BKASH, NAGAD)")
	orderPlaceCmd.Flags().StringVar(&orderPhone, "phone", "", "Sender number for mobile payments")
	orderPlaceCmd.Flags().StringVar(&orderTrx, "trx", "", "Transaction id for mobile payments")
	orderPlaceCmd.Flags().StringVar(&orderAddress, "address", "", "Delivery address id (default address when empty)")
	orderCancelCmd.Flags().StringVarP(&cancelReason, "reason", "r", "", "Why the order is canceled (required)")
	_ = orderCancelCmd.MarkFlagRequired("reason")

	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderPlaceCmd)
	orderCmd.AddCommand(orderAdvanceCmd)
	orderCmd.AddCommand(orderCancelCmd)
	orderCmd.AddCommand(orderTrackCmd)
}

func runOrderList(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	s := ui.NewStyles(c.State.Theme())
	out := cmd.OutOrStdout()
	orders := c.State.Orders()
	if len(orders) == 0 {
		fmt.Fprintln(out, "no orders")
		return nil
	}
	for _, o := range orders {
		fmt.Fprintln(out, s.OrderLine(o))
	}
	return nil
}

// parseItem reads "id" or "id=qty".
func parseItem(spec string) (string, int, error) {
	id, qty, found := strings.Cut(spec, "=")
	if !found {
		return id, 1, nil
	}
	n, err := strconv.Atoi(qty)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid quantity in %q", spec)
	}
	return id, n, nil
}

func fillCart(c *system.Context, specs []string) error {
	byID := make(map[string]domain.Product)
	for _, p := range c.State.VisibleProducts("") {
		byID[p.ID] = p
	}
	for _, spec := range specs {
		id, qty, err := parseItem(spec)
		if err != nil {
			return err
		}
		p, ok := byID[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, appstate.ErrNotFound)
		}
		if err := c.State.AddToCart(p); err != nil {
			return err
		}
		if qty > 1 {
			if err := c.State.UpdateCartQuantity(id, qty-1); err != nil {
				return err
			}
		}
	}
	return nil
}

func runOrderPlace(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := fillCart(c, orderItems); err != nil {
		return err
	}
	req := appstate.Checkout{
		Method:    domain.PaymentMethod(strings.ToUpper(orderMethod)),
		AddressID: orderAddress,
	}
	if req.Method != domain.PaymentCOD {
		req.Payment = &domain.PaymentDetails{Phone: orderPhone, TrxID: orderTrx}
	}
	o, err := c.State.PlaceOrder(req)
	if err != nil {
		return err
	}
	s := ui.NewStyles(c.State.Theme())
	fmt.Fprintln(cmd.OutOrStdout(), s.OrderLine(o))
	if w := c.State.Warning(); w != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), s.Error.Render(w))
	}
	return nil
}

func runOrderAdvance(cmd *cobra.Command, args []string) error {
	return updateOrder(cmd, func(c *system.Context) (domain.Order, error) {
		return c.State.AdvanceOrder(args[0])
	})
}

func runOrderCancel(cmd *cobra.Command, args []string) error {
	return updateOrder(cmd, func(c *system.Context) (domain.Order, error) {
		return c.State.CancelOrder(args[0], cancelReason)
	})
}

func updateOrder(cmd *cobra.Command, apply func(*system.Context) (domain.Order, error)) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	o, err := apply(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.NewStyles(c.State.Theme()).OrderLine(o))
	return nil
}

func runOrderTrack(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.State.TrackOrder(args[0]); err != nil {
		return err
	}
	o := c.State.SelectedOrder()
	s := ui.NewStyles(c.State.Theme())
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.OrderLine(*o))
	for _, it := range o.Items {
		fmt.Fprintf(out, "  %dx %s  %s\n", it.Quantity, it.Name, ui.Taka(it.Price*float64(it.Quantity)))
	}
	if a := o.DeliveryAddress; a != nil {
		fmt.Fprintf(out, "  deliver to %s, %s (%s)\n", a.ReceiverName, a.Details, a.Phone)
	}
	return nil
}
