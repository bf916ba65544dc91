package domain

import "time"

// LowStockThreshold is the stock level under which a product counts as running low.
const LowStockThreshold = 10

// AdminStats is the back-office summary.
type AdminStats struct {
	Revenue        float64 `json:"revenue"`
	PendingCount   int     `json:"pendingCount"`
	LowStockCount  int     `json:"lowStockCount"`
	ActiveProducts int     `json:"activeProducts"`
}

// ComputeAdminStats counts revenue from delivered orders only.
func ComputeAdminStats(orders []Order, products []Product) AdminStats {
	var s AdminStats
	for _, o := range orders {
		switch o.Status {
		case StatusDelivered:
			s.Revenue += o.Total
		case StatusPending:
			s.PendingCount++
		}
	}
	for _, p := range products {
		if p.Stock < LowStockThreshold {
			s.LowStockCount++
		}
		if p.IsActive {
			s.ActiveProducts++
		}
	}
	return s
}

// DaySummary aggregates the orders created on one calendar day.
type DaySummary struct {
	Day       time.Time `json:"day"`
	Orders    int       `json:"orders"`
	Delivered int       `json:"delivered"`
	Canceled  int       `json:"canceled"`
	Revenue   float64   `json:"revenue"` // delivered orders only
}

// DayStats buckets orders by the creation day encoded in their ids, in loc.
// Orders whose id carries no timestamp are ignored.
func DayStats(orders []Order, day time.Time, loc *time.Location) DaySummary {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	sum := DaySummary{Day: start}
	for _, o := range orders {
		created, err := ParseOrderTime(o.ID)
		if err != nil || created.Before(start) || !created.Before(end) {
			continue
		}
		sum.Orders++
		switch o.Status {
		case StatusDelivered:
			sum.Delivered++
			sum.Revenue += o.Total
		case StatusCanceled:
			sum.Canceled++
		}
	}
	return sum
}
