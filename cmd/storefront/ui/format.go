package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/glamour"

	"storefront/internal/capacity"
	"storefront/internal/domain"
)

// Taka formats an amount in whole taka.
func Taka(v float64) string {
	return fmt.Sprintf("৳%.0f", v)
}

// ProductLine renders one catalog entry with the discounted price when an
// offer is running.
func (s Styles) ProductLine(p domain.Product, settings domain.SystemSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %s", p.ID, s.Title.Render(p.Name))
	if p.Unit != "" {
		b.WriteString(s.Muted.Render(" / " + p.Unit))
	}
	shown := domain.DisplayPrice(p, settings)
	b.WriteString("  " + s.Price.Render(Taka(shown)))
	switch {
	case settings.HasGlobalOffer():
		b.WriteString(" " + s.Strike.Render(Taka(p.Price)))
		b.WriteString(" " + s.Badge.Render(fmt.Sprintf("%.0f%% OFF", settings.GlobalDiscountPercentage)))
	case p.OldPrice != nil && *p.OldPrice > p.Price:
		b.WriteString(" " + s.Strike.Render(Taka(*p.OldPrice)))
	}
	if p.Stock < domain.LowStockThreshold {
		b.WriteString(" " + s.Warning.Render(fmt.Sprintf("(%d left)", p.Stock)))
	}
	if !p.IsActive {
		b.WriteString(" " + s.Muted.Render("[hidden]"))
	}
	return b.String()
}

// OrderLine renders an order summary row.
func (s Styles) OrderLine(o domain.Order) string {
	line := fmt.Sprintf("%-16s %-22s %3d items  %8s  %s  %s",
		o.ID, o.Date, o.ItemsCount, Taka(o.Total), o.PaymentMethod,
		s.StatusStyle(o.Status).Render(string(o.Status)))
	if o.CancelReason != "" {
		line += s.Muted.Render("  (" + o.CancelReason + ")")
	}
	return line
}

// UsageBar renders a storage estimate as a progress bar.
func UsageBar(est *capacity.Estimate, width int) string {
	if est == nil {
		return "storage usage unavailable"
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = width
	return fmt.Sprintf("%s %s of %s (%.1f%%)",
		bar.ViewAs(est.Percent()/100), Bytes(est.UsedBytes), Bytes(est.QuotaBytes), est.Percent())
}

// Bytes formats a byte count with a binary unit.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Markdown renders assistant text for the terminal, falling back to the
// plain text when rendering fails.
func Markdown(text string, width int, theme domain.Theme) string {
	style := "light"
	if theme == domain.ThemeDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
