package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"storefront/internal/capacity"
	"storefront/internal/domain"
)

// Source is the live view of one context's state.
type Source interface {
	Settings() domain.SystemSettings
	VisibleProducts(categoryID string) []domain.Product
	AdminStats() domain.AdminStats
	Orders() []domain.Order
	Theme() domain.Theme
	JustSynced() bool
	LastUpdate() time.Time
	Warning() string
}

// Estimator reports storage usage.
type Estimator func(ctx context.Context) (*capacity.Estimate, bool)

const (
	refreshEvery  = 200 * time.Millisecond
	estimateEvery = 5 * time.Second
	recentOrders  = 5
)

type refreshMsg time.Time

type estimateMsg struct{ est *capacity.Estimate }

// WatchModel is a live dashboard that lights "Updated" whenever another
// context's change lands in this one.
type WatchModel struct {
	src      Source
	estimate Estimator
	styles   Styles

	width        int
	warning      string
	est          *capacity.Estimate
	lastEstimate time.Time
	quitting     bool
}

// NewWatchModel creates the dashboard. estimate may be nil.
func NewWatchModel(src Source, estimate Estimator) WatchModel {
	return WatchModel{
		src:      src,
		estimate: estimate,
		styles:   NewStyles(src.Theme()),
		width:    80,
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m WatchModel) measure() tea.Cmd {
	if m.estimate == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		est, _ := m.estimate(ctx)
		return estimateMsg{est: est}
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(refresh(), m.measure())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case refreshMsg:
		m.styles = NewStyles(m.src.Theme())
		if w := m.src.Warning(); w != "" {
			m.warning = w
		}
		cmds := []tea.Cmd{refresh()}
		if time.Time(msg).Sub(m.lastEstimate) >= estimateEvery {
			m.lastEstimate = time.Time(msg)
			cmds = append(cmds, m.measure())
		}
		return m, tea.Batch(cmds...)
	case estimateMsg:
		m.est = msg.est
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles
	settings := m.src.Settings()

	var b strings.Builder
	name := settings.StoreName
	if name == "" {
		name = "Storefront"
	}
	b.WriteString(s.Header.Render(name))
	if m.src.JustSynced() {
		b.WriteString(" " + s.Synced.Render("● Updated"))
	} else if t := m.src.LastUpdate(); !t.IsZero() {
		b.WriteString(" " + s.Muted.Render("last update "+t.Format("15:04:05")))
	}
	b.WriteString("\n")
	if !settings.IsStoreOpen {
		b.WriteString(s.Error.Render("Store is closed") + "\n")
	}
	if settings.BroadcastMessage != "" {
		b.WriteString(s.Warning.Render(settings.BroadcastMessage) + "\n")
	}
	b.WriteString("\n")

	for _, p := range m.src.VisibleProducts("") {
		b.WriteString(s.ProductLine(p, settings) + "\n")
	}

	stats := m.src.AdminStats()
	b.WriteString("\n" + s.Bold.Render("Orders") + s.Muted.Render(fmt.Sprintf("  %d pending, revenue %s", stats.PendingCount, Taka(stats.Revenue))) + "\n")
	orders := m.src.Orders()
	if len(orders) > recentOrders {
		orders = orders[:recentOrders]
	}
	for _, o := range orders {
		b.WriteString(s.OrderLine(o) + "\n")
	}

	if m.warning != "" {
		b.WriteString("\n" + s.Error.Render(m.warning) + "\n")
	}
	if m.est != nil {
		b.WriteString("\n" + UsageBar(m.est, min(40, max(10, m.width/3))) + "\n")
	}
	b.WriteString("\n" + s.Muted.Render("q to quit"))
	return b.String()
}
