// Package domain defines the storefront's records and the rules that belong
// to them. Records are plain serializable values with the JSON field names
// used on disk; nothing here touches storage.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrReasonRequired    = errors.New("cancel reason required")
	ErrInvalidSettings   = errors.New("invalid settings")
)

// =============================================================================
// CATALOG
// =============================================================================

// Product is one sellable item.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	OldPrice    *float64 `json:"oldPrice,omitempty"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	Unit        string   `json:"unit"`
	Stock       int      `json:"stock"`
	Description string   `json:"description"`
	IsActive    bool     `json:"isActive"`
}

// Validate checks the product invariants: a name, a positive price and non-negative stock.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id required", ErrInvalidProduct)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	case !(p.Price > 0):
		return fmt.Errorf("%w: price must be positive, got %v", ErrInvalidProduct, p.Price)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative, got %d", ErrInvalidProduct, p.Stock)
	}
	return nil
}

// Category groups products. A product whose category no longer exists is uncategorized.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// DisplayPrice is what the shopper sees: the price less the global discount
// when one is running, rounded to whole taka.
func DisplayPrice(p Product, s SystemSettings) float64 {
	discount := 0.0
	if s.GlobalDiscountEnabled {
		discount = s.GlobalDiscountPercentage
	}
	return math.Round(p.Price * (1 - discount/100))
}

// HasGlobalOffer reports whether a storewide discount is running.
func (s SystemSettings) HasGlobalOffer() bool {
	return s.GlobalDiscountEnabled && s.GlobalDiscountPercentage > 0
}

// CartItem is a product snapshot plus a quantity of at least one.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// LineTotal is price times quantity.
func (c CartItem) LineTotal() float64 {
	return c.Price * float64(c.Quantity)
}

// =============================================================================
// PEOPLE AND PLACES
// =============================================================================

// Address is a delivery destination. At most one address is the default.
type Address struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`
	Details      string `json:"details"`
	IsDefault    bool   `json:"isDefault"`
}

// SetDefaultAddress marks id as the default and clears the flag everywhere
// else in the same pass. It returns false when id is not in the list, in
// which case the list is returned unchanged.
func SetDefaultAddress(list []Address, id string) ([]Address, bool) {
	found := false
	for _, a := range list {
		if a.ID == id {
			found = true
			break
		}
	}
	if !found {
		return list, false
	}
	out := make([]Address, len(list))
	for i, a := range list {
		a.IsDefault = a.ID == id
		out[i] = a
	}
	return out, true
}

// DefaultAddress returns the default address, or the first one when none is flagged.
func DefaultAddress(list []Address) (Address, bool) {
	for _, a := range list {
		if a.IsDefault {
			return a, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Address{}, false
}

// User is a shopper or administrator account. Phone doubles as the login handle.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Password     string `json:"password,omitempty"` // legacy plaintext, migrated on first login
	PasswordHash string `json:"passwordHash,omitempty"`
	Address      string `json:"address,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	IsAdmin      bool   `json:"isAdmin"`
}

// Public returns a copy without credentials, suitable for the session key.
func (u User) Public() User {
	u.Password = ""
	u.PasswordHash = ""
	return u
}

// =============================================================================
// SETTINGS
// =============================================================================

// SystemSettings is the storewide singleton, edited only by administrators.
type SystemSettings struct {
	IsStoreOpen              bool    `json:"isStoreOpen"`
	MaintenanceMode          bool    `json:"maintenanceMode"`
	DeliveryCharge           float64 `json:"deliveryCharge"`
	MinOrderAmount           float64 `json:"minOrderAmount"`
	AIAssistantEnabled       bool    `json:"aiAssistantEnabled"`
	BroadcastMessage         string  `json:"broadcastMessage"`
	StoreName                string  `json:"storeName"`
	StoreSlogan              string  `json:"storeSlogan"`
	StoreLogo                string  `json:"storeLogo"`
	SupportPhone             string  `json:"supportPhone"`
	GlobalDiscountEnabled    bool    `json:"globalDiscountEnabled"`
	GlobalDiscountPercentage float64 `json:"globalDiscountPercentage"`
	AutoSyncEnabled          bool    `json:"autoSyncEnabled"`
	LastSyncTimestamp        string  `json:"lastSyncTimestamp"`
}

// Validate rejects values no admin form would produce.
func (s SystemSettings) Validate() error {
	switch {
	case s.DeliveryCharge < 0:
		return fmt.Errorf("%w: delivery charge must not be negative", ErrInvalidSettings)
	case s.MinOrderAmount < 0:
		return fmt.Errorf("%w: minimum order must not be negative", ErrInvalidSettings)
	case s.GlobalDiscountPercentage < 0 || s.GlobalDiscountPercentage > 100:
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidSettings)
	}
	return nil
}

// =============================================================================
// SESSION AND PREFERENCES
// =============================================================================

// Screen names a top-level view of the storefront.
type Screen string

const (
	ScreenAuth               Screen = "AUTH"
	ScreenHome               Screen = "HOME"
	ScreenCategories         Screen = "CATEGORIES"
	ScreenCart               Screen = "CART"
	ScreenProfile            Screen = "PROFILE"
	ScreenGuide              Screen = "GUIDE"
	ScreenProductDetail      Screen = "PRODUCT_DETAIL"
	ScreenOrders             Screen = "ORDERS"
	ScreenTracking           Screen = "TRACKING"
	ScreenSettings           Screen = "SETTINGS"
	ScreenCoupons            Screen = "COUPONS"
	ScreenAddressList        Screen = "ADDRESS_LIST"
	ScreenMessages           Screen = "MESSAGES"
	ScreenProductManagement  Screen = "PRODUCT_MANAGEMENT"
	ScreenUserManagement     Screen = "USER_MANAGEMENT"
	ScreenAdminControl       Screen = "ADMIN_CONTROL"
	ScreenCategoryManagement Screen = "CATEGORY_MANAGEMENT"
)

// IsAdminOnly reports whether only administrators may open the screen.
func (s Screen) IsAdminOnly() bool {
	switch s {
	case ScreenAdminControl, ScreenProductManagement, ScreenCategoryManagement, ScreenUserManagement:
		return true
	}
	return false
}

// Language is the UI language.
type Language string

const (
	LangBengali Language = "bn"
	LangEnglish Language = "en"
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser    Sender = "user"
	SenderSupport Sender = "support"
)

// ChatMessage is one line of the support conversation. Messages live in memory only.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
