package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
)

// View renders the whole screen from current state.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	var body string
	switch m.screen {
	case ScreenStartup:
		body = m.spinner.View() + " Restoring session…"
	case ScreenSignIn:
		body = m.viewSignIn()
	case ScreenDashboard:
		body = m.viewDashboard()
	case ScreenSearch:
		body = m.viewSearch()
	case ScreenDetail:
		body = m.viewDetail()
	}

	sections := []string{m.viewHeader()}
	if banner := m.viewBanner(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, "", lipgloss.NewStyle().MaxWidth(m.width).Render(body))
	if msg := m.screenError(); msg != "" {
		sections = append(sections, errorStyle.Render(fit(msg, m.width)))
	}
	if t, ok := m.c.root.Toasts().Active(); ok {
		sections = append(sections, toastStyle(t.Kind).Render(t.Message))
	}

	top := lipgloss.JoinVertical(lipgloss.Left, sections...)
	bar := m.viewStatusBar()
	if m.screen == ScreenSearch {
		bar = renderSearchBar(m.query, m.width)
	}

	// Pin the status bar to the last row.
	if pad := m.height - lipgloss.Height(top) - 1; pad > 0 {
		top += strings.Repeat("\n", pad)
	}
	return top + "\n" + bar
}

func (m Model) viewHeader() string {
	left := titleStyle.Render("research-pulse")
	if u, ok := m.c.root.User(); ok {
		left += dimStyle.Render(fmt.Sprintf("  %s  %d credits", u.Email, u.Credits))
	}
	online := upStyle.Render("● online")
	if !m.c.root.IsOnline() {
		online = downStyle.Render("● offline")
	}
	right := online
	if m.loading() {
		right = m.spinner.View() + " " + right
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// viewBanner shows the global error, if any, above the page.
func (m Model) viewBanner() string {
	e, ok := m.c.root.ActiveError()
	if !ok {
		return ""
	}
	v := state.NewErrorView(e)
	return bannerStyle.Render(fit(v.Title+": "+v.Message, m.width-2))
}

func (m Model) viewSignIn() string {
	lines := []string{
		titleStyle.Render("Sign in"),
		"",
		renderField("Email", m.email, false, m.field == 0, m.width),
		renderField("Password", m.password, true, m.field == 1, m.width),
	}
	if m.c.signIn.IsLoading() {
		lines = append(lines, "", m.spinner.View()+" Signing in…")
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewDashboard() string {
	var lines []string
	if sum, ok := m.c.dashboard.Summary(); ok {
		var idx []string
		for _, q := range sum.Indices {
			idx = append(idx, fmt.Sprintf("%s %.2f %s", q.Symbol, q.Price, changeStyle(q.Change).Render(fmt.Sprintf("%+.2f%%", q.ChangePercent))))
		}
		lines = append(lines, strings.Join(idx, "   "))
	} else {
		lines = append(lines, dimStyle.Render("Loading market summary…"))
	}
	if mv, ok := m.c.dashboard.Movers(); ok {
		lines = append(lines, dimStyle.Render("Gainers ")+quoteList(mv.Gainers), dimStyle.Render("Losers  ")+quoteList(mv.Losers))
	}

	lines = append(lines, "", titleStyle.Render("Watchlist"))
	items := m.c.dashboard.Watchlist()
	if len(items) == 0 {
		lines = append(lines, dimStyle.Render("  Nothing here yet. Press / to search."))
	}
	for i, it := range items {
		row := fmt.Sprintf("%-6s %-28s %10.2f", it.Symbol, it.Name, it.Price)
		lines = append(lines, cursorRow(row, i == m.cursor, m.width))
	}
	return strings.Join(lines, "\n")
}

func quoteList(qs []research.Quote) string {
	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		parts = append(parts, q.Symbol+" "+changeStyle(q.Change).Render(fmt.Sprintf("%+.1f%%", q.ChangePercent)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewSearch() string {
	lines := []string{titleStyle.Render("Search")}
	results := m.c.search.Results()
	if len(results) == 0 && len([]rune(strings.TrimSpace(m.query))) >= 2 && !m.c.search.IsLoading() {
		lines = append(lines, dimStyle.Render("  No matches."))
	}
	for i, r := range results {
		row := fmt.Sprintf("%-6s %-32s %s", r.Symbol, r.Name, r.Exchange)
		lines = append(lines, cursorRow(row, i == m.cursor, m.width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewDetail() string {
	q := m.c.series.Query()
	lines := []string{
		titleStyle.Render(q.Symbol) + dimStyle.Render(fmt.Sprintf("  %s · %s", q.Metric, q.Period)),
	}
	if s, ok := m.c.series.Current(); ok && len(s.Points) > 0 {
		values := make([]float64, len(s.Points))
		for i, p := range s.Points {
			values[i] = p.Value
		}
		last := values[len(values)-1]
		lines = append(lines, sparkStyle.Render(sparkline(values, m.width-12))+fmt.Sprintf(" %10.2f", last))
	} else if m.c.series.IsLoading() {
		lines = append(lines, m.spinner.View()+" Loading series…")
	}

	lines = append(lines, "", titleStyle.Render("Reports"))
	reports := m.c.reports.Current()
	if len(reports) == 0 && !m.c.reports.IsLoading() {
		lines = append(lines, dimStyle.Render("  No reports."))
	}
	for _, r := range reports {
		lines = append(lines, fit(fmt.Sprintf("  %s  %-5s %s", r.PublishedAt.Format("2006-01-02"), r.Rating, r.Title), m.width))
	}
	return strings.Join(lines, "\n")
}

func cursorRow(row string, selected bool, width int) string {
	if selected {
		return selectedStyle.Render(fit("> "+row, width))
	}
	return fit("  "+row, width)
}

// viewStatusBar renders key hints for the current page, padded or truncated
// to exactly the terminal width.
func (m Model) viewStatusBar() string {
	var hints string
	switch m.screen {
	case ScreenSignIn:
		hints = "Tab:field  Enter:submit  Esc:dismiss  Ctrl+C:quit"
	case ScreenDashboard:
		hints = "↑↓:select  Enter:open  /:search  d:remove  r:refresh  x:sign out  q:quit"
	case ScreenDetail:
		hints = "m:metric  p:period  a:watch  r:refresh  Esc:back  q:quit"
	default:
		hints = "Ctrl+C:quit"
	}
	return dimStyle.Render(fit(hints, m.width))
}
