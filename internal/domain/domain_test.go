package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []OrderStatus{StatusPending, StatusAccepted, StatusShipped, StatusDelivered, StatusCanceled}
	allowed := map[[2]OrderStatus]bool{
		{StatusPending, StatusAccepted}:  true,
		{StatusAccepted, StatusShipped}:  true,
		{StatusShipped, StatusDelivered}: true,
		{StatusPending, StatusCanceled}:  true,
		{StatusAccepted, StatusCanceled}: true,
		{StatusShipped, StatusCanceled}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("LOST", StatusCanceled))
}

func TestOrderTransition(t *testing.T) {
	o := Order{ID: NewOrderID(time.Now()), Status: StatusPending}

	require.NoError(t, o.Transition(StatusAccepted, ""))
	assert.ErrorIs(t, o.Transition(StatusDelivered, ""), ErrInvalidTransition, "no skipping steps")
	assert.ErrorIs(t, o.Transition(StatusCanceled, "  "), ErrReasonRequired)
	assert.Equal(t, StatusAccepted, o.Status, "failed transitions leave the order untouched")

	require.NoError(t, o.Transition(StatusCanceled, "Delivery delay"))
	assert.Equal(t, StatusCanceled, o.Status)
	assert.Equal(t, "Delivery delay", o.CancelReason)
	assert.ErrorIs(t, o.Transition(StatusPending, ""), ErrInvalidTransition)
}

func TestOrderIDEmbedsCreationTime(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 30, 0, 123e6, time.UTC)
	id := NewOrderID(at)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d+$`), id)

	got, err := ParseOrderTime(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
	assert.True(t, Order{ID: id}.CreatedAt().Equal(at))

	for _, bad := range []string{"", "ORD-", "ORD-abc", "INV-1717228800000", "ORD--5"} {
		_, err := ParseOrderTime(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, Order{ID: "legacy"}.CreatedAt().IsZero())
}

func TestProductValidate(t *testing.T) {
	ok := Product{ID: "p1", Name: "চাল", Price: 75, Stock: 0}
	require.NoError(t, ok.Validate())

	for name, p := range map[string]Product{
		"no id":          {Name: "x", Price: 1},
		"no name":        {ID: "p", Price: 1},
		"zero price":     {ID: "p", Name: "x"},
		"negative stock": {ID: "p", Name: "x", Price: 1, Stock: -1},
	} {
		assert.ErrorIs(t, p.Validate(), ErrInvalidProduct, name)
	}
}

func TestDisplayPrice(t *testing.T) {
	p := Product{Price: 175}
	s := DefaultSettings(time.Now())
	assert.Equal(t, 175.0, DisplayPrice(p, s))
	assert.False(t, s.HasGlobalOffer())

	s.GlobalDiscountEnabled = true
	s.GlobalDiscountPercentage = 10
	assert.Equal(t, 158.0, DisplayPrice(p, s)) // 157.5 rounds up
	assert.True(t, s.HasGlobalOffer())
}

func TestSetDefaultAddress(t *testing.T) {
	starts := map[string][]Address{
		"none":     {{ID: "a"}, {ID: "b"}, {ID: "c"}},
		"one":      {{ID: "a", IsDefault: true}, {ID: "b"}, {ID: "c"}},
		"multiple": {{ID: "a", IsDefault: true}, {ID: "b", IsDefault: true}, {ID: "c", IsDefault: true}},
	}
	for name, list := range starts {
		t.Run(name, func(t *testing.T) {
			out, ok := SetDefaultAddress(list, "b")
			require.True(t, ok)
			defaults := 0
			for _, a := range out {
				if a.IsDefault {
					defaults++
					assert.Equal(t, "b", a.ID)
				}
			}
			assert.Equal(t, 1, defaults)
		})
	}

	list := []Address{{ID: "a", IsDefault: true}}
	out, ok := SetDefaultAddress(list, "missing")
	assert.False(t, ok)
	assert.Equal(t, list, out)
}

func TestDefaultAddress(t *testing.T) {
	_, ok := DefaultAddress(nil)
	assert.False(t, ok)

	a, ok := DefaultAddress([]Address{{ID: "x"}, {ID: "y", IsDefault: true}})
	require.True(t, ok)
	assert.Equal(t, "y", a.ID)

	a, _ = DefaultAddress([]Address{{ID: "x"}, {ID: "y"}})
	assert.Equal(t, "x", a.ID)
}

func TestComputeAdminStats(t *testing.T) {
	orders := []Order{
		{Status: StatusDelivered, Total: 400},
		{Status: StatusDelivered, Total: 100},
		{Status: StatusPending, Total: 999},
		{Status: StatusCanceled, Total: 50},
	}
	products := []Product{
		{Stock: 5, IsActive: true},
		{Stock: 10, IsActive: false},
		{Stock: 0, IsActive: true},
	}
	assert.Equal(t, AdminStats{Revenue: 500, PendingCount: 1, LowStockCount: 2, ActiveProducts: 2},
		ComputeAdminStats(orders, products))
}

func TestDayStats(t *testing.T) {
	loc := time.FixedZone("BST", 6*3600)
	day := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	orders := []Order{
		{ID: NewOrderID(time.Date(2024, 6, 1, 0, 0, 0, 0, loc)), Status: StatusDelivered, Total: 300},
		{ID: NewOrderID(time.Date(2024, 6, 1, 23, 59, 0, 0, loc)), Status: StatusCanceled, Total: 80},
		{ID: NewOrderID(time.Date(2024, 6, 2, 0, 0, 0, 0, loc)), Status: StatusDelivered, Total: 999},
		{ID: "manual-entry", Status: StatusDelivered, Total: 999},
	}
	sum := DayStats(orders, day, loc)
	assert.Equal(t, 2, sum.Orders)
	assert.Equal(t, 1, sum.Delivered)
	assert.Equal(t, 1, sum.Canceled)
	assert.Equal(t, 300.0, sum.Revenue)
}

func TestSeedData(t *testing.T) {
	products := SeedProducts()
	require.NotEmpty(t, products)
	cats := map[string]bool{}
	for _, c := range SeedCategories() {
		cats[c.ID] = true
	}
	for _, p := range products {
		assert.True(t, p.IsActive, p.ID)
		assert.NoError(t, p.Validate())
		assert.True(t, cats[p.Category], "product %s has a seeded category", p.ID)
	}
	for _, o := range SeedOrders() {
		_, err := ParseOrderTime(o.ID)
		assert.NoError(t, err)
		assert.True(t, o.Status.Valid())
	}
	addrs := SeedAddresses()
	_, ok := SetDefaultAddress(addrs, "a1")
	assert.True(t, ok)

	s := DefaultSettings(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Validate())
	assert.Equal(t, 50.0, s.DeliveryCharge)
	assert.Equal(t, "2024-01-01T00:00:00Z", s.LastSyncTimestamp)
}

func TestPaymentDetailsComplete(t *testing.T) {
	var nilDetails *PaymentDetails
	assert.False(t, nilDetails.Complete())
	assert.False(t, (&PaymentDetails{Phone: "0171", TrxID: "ABCDEF"}).Complete())
	assert.False(t, (&PaymentDetails{Phone: "01711000000", TrxID: "ABC"}).Complete())
	assert.True(t, (&PaymentDetails{Phone: "01711000000", TrxID: "ABCDEF"}).Complete())
}

func TestUserPublicStripsCredentials(t *testing.T) {
	u := User{ID: "u1", Phone: "01711000000", Password: "secret", PasswordHash: "$2a$..."}
	pub := u.Public()
	assert.Empty(t, pub.Password)
	assert.Empty(t, pub.PasswordHash)
	assert.Equal(t, "u1", pub.ID)
}
