package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusAccepted  OrderStatus = "ACCEPTED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Next returns the following step of the fulfilment chain, if any.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case StatusPending:
		return StatusAccepted, true
	case StatusAccepted:
		return StatusShipped, true
	case StatusShipped:
		return StatusDelivered, true
	}
	return "", false
}

// CanTransition allows one step forward along PENDING, ACCEPTED, SHIPPED,
// DELIVERED, or a jump to CANCELED from any state before DELIVERED.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() || !from.Valid() {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// PaymentMethod is how the shopper pays.
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "COD"
	PaymentBkash PaymentMethod = "BKASH"
	PaymentNagad PaymentMethod = "NAGAD"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentBkash || m == PaymentNagad
}

// PaymentDetails identifies a mobile-money payment.
type PaymentDetails struct {
	Phone string `json:"phone,omitempty"`
	TrxID string `json:"trxId,omitempty"`
}

// Complete applies the checkout form rule: an 11 digit sender number and a transaction id of six or more characters.
func (d *PaymentDetails) Complete() bool {
	return d != nil && len(strings.TrimSpace(d.Phone)) >= 11 && len(strings.TrimSpace(d.TrxID)) >= 6
}

// OrderItem is a name, quantity and price snapshot taken at checkout.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a placed order. Items and address are copies, so later catalog
// edits never rewrite history.
type Order struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"`
	Total           float64         `json:"total"`
	Status          OrderStatus     `json:"status"`
	ItemsCount      int             `json:"itemsCount"`
	Items           []OrderItem     `json:"items"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentDetails  *PaymentDetails `json:"paymentDetails,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	CancelReason    string          `json:"cancelReason,omitempty"`
}

const orderIDPrefix = "ORD-"

// NewOrderID encodes the creation instant. Day statistics parse it back out.
func NewOrderID(t time.Time) string {
	return orderIDPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseOrderTime extracts the creation instant from an order id.
func ParseOrderTime(id string) (time.Time, error) {
	rest, ok := strings.CutPrefix(id, orderIDPrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("order id %q: missing %s prefix", id, orderIDPrefix)
	}
	ms, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("order id %q: bad timestamp", id)
	}
	return time.UnixMilli(ms), nil
}

// CreatedAt is the instant embedded in the id, or the zero time for foreign ids.
func (o Order) CreatedAt() time.Time {
	t, err := ParseOrderTime(o.ID)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Transition moves the order to status to. Canceling requires a reason.
func (o *Order) Transition(to OrderStatus, reason string) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if to == StatusCanceled {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return ErrReasonRequired
		}
		o.CancelReason = reason
	}
	o.Status = to
	return nil
}

// Cancel reasons offered by the order screens.
var (
	CancelReasonsEN = []string{
		"Ordered by mistake",
		"Delivery delay",
		"Payment issue",
		"Out of stock (Admin)",
		"Other reason",
	}
	CancelReasonsBN = []string{
		"ভুল করে অর্ডার করেছি",
		"ডেলিভারি দেরি হচ্ছে",
		"পেমেন্ট পদ্ধতিতে সমস্যা",
		"পণ্যটি স্টকে নেই (Admin)",
		"অন্য কোনো কারণ",
	}
)
