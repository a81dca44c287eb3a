package ui

import (
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"trackdash/internal/format"
	"trackdash/internal/util/logx"
	"trackdash/internal/view"
)

func (m *Model) View() string {
	v := m.renderMain()
	if m.modalActive {
		// Dim the background content while keeping it visible
		dimmed := lipgloss.NewStyle().Faint(true).Render(v)
		v = overlay(dimmed, m.renderModal())
	}
	return v
}

func (m *Model) renderMain() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.tbl.View(),
		m.bottomLine(),
		m.styles.Status.Render(m.statusLine()),
	)
}

func (m *Model) renderHeader() string {
	s := m.summary
	card := func(title, value string) string {
		return m.styles.Card.Render(m.styles.Muted.Render(title) + "\n" + m.styles.CardValue.Render(value))
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Unique IDs", s.Unique),
		card("Opens", s.Opens),
		card("Clicks", s.Clicks),
		card("Avg opens", s.Avg),
	)
	w := m.termWidth
	if w <= 0 {
		w = 100
	}
	cw := (w - 2) / 3
	if cw < 20 {
		return cards
	}
	charts := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderChart("Top countries", s.Countries, cw),
		m.renderChart("Devices", s.Devices, cw),
		m.renderChart("Browsers", s.Browsers, cw),
	)
	return lipgloss.JoinVertical(lipgloss.Left, cards, charts)
}

// renderChart always returns view.TopN+1 lines so the layout does not jump
// between refreshes.
func (m *Model) renderChart(title string, rows []view.ChartRow, width int) string {
	lines := []string{m.styles.ChartTitle.Render(title)}
	if len(rows) == 0 {
		lines = append(lines, m.styles.Muted.Render(view.EmptyChartText))
	}
	labelW, countW := 12, 6
	barW := width - labelW - countW - 3
	if barW < 1 {
		barW = 1
	}
	for _, r := range rows {
		label := padRight(format.Truncate(r.Label, labelW), labelW)
		bar := colorBar(m.styles.Bar, r.Cells(barW))
		lines = append(lines, fmt.Sprintf("%s %s %s", label, padRight(bar, barW), format.Count(r.Count)))
	}
	for len(lines) < view.TopN+1 {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).PaddingRight(1).Render(strings.Join(lines, "\n"))
}

func (m *Model) bottomLine() string {
	var line string
	switch {
	case m.inlineMode == inlineSearch:
		line = fmt.Sprintf("search: %s    [enter]=apply [esc]=cancel", m.search.View())
	case m.inlineMode == inlineFilter:
		line = fmt.Sprintf("filter: %s    [enter]=apply [esc]=cancel", m.search.View())
	default:
		var parts []string
		if m.query != "" {
			parts = append(parts, fmt.Sprintf("search: %s [esc]=clear", format.Escape(m.query)))
		}
		if m.eval != nil {
			parts = append(parts, fmt.Sprintf("filter: %s [F]=clear", format.Escape(m.criteria.String())))
		}
		line = strings.Join(parts, "  |  ")
	}
	if line == "" && m.termWidth > 0 {
		// keep layout stable
		line = strings.Repeat(" ", m.termWidth)
	}
	return line
}

func (m *Model) statusLine() string {
	c := m.engine.Stats()
	synced := "never"
	if !c.LastSync.IsZero() {
		synced = format.TimeAgo(c.LastSync, m.now())
	}
	mark := ""
	if m.syncing > 0 {
		mark = m.spin.View() + " "
	}
	status := fmt.Sprintf("%s%s | synced %s | #%d ok:%d stale:%d err:%d | rows %d/%d",
		mark, m.hostBadge(), synced, c.LastSeq, c.Applied, c.Dropped, c.Failed, len(m.rows), m.store.Len())
	if m.lastEvt != "" {
		status += " | last hit: " + m.lastEvt
	}
	if m.lastErr != nil {
		status += " | " + m.styles.Error.Render("sync failed: "+format.Escape(m.lastErr.Error()))
	}
	status += " | [?]=help"
	if m.lastMsg != "" {
		status += " | " + format.Escape(m.lastMsg)
	}
	return status
}

// hostBadge tells a local development server apart from a live one.
func (m *Model) hostBadge() string {
	if m.links == nil {
		return "offline"
	}
	u := m.links.Base()
	host := u.Hostname()
	if isLocalHost(host) {
		return "LOCAL " + format.Escape(u.Host)
	}
	return m.styles.Live.Render("LIVE") + " " + format.Escape(u.Host)
}

func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (m *Model) renderHelp() string {
	if len(m.helpItems) == 0 {
		m.helpItems = m.buildHelpItems()
	}
	if m.helpSel < 0 {
		m.helpSel = 0
	}
	if m.helpSel >= len(m.helpItems) {
		m.helpSel = len(m.helpItems) - 1
	}
	lines := []string{"Shortcuts:"}
	group, selLine := "", 0
	for i, it := range m.helpItems {
		if it.group != group {
			group = it.group
			lines = append(lines, "", group+":")
		}
		prefix := "  "
		if i == m.helpSel {
			prefix = "> "
			selLine = len(lines)
		}
		lines = append(lines, fmt.Sprintf("%s[%s] %s", prefix, keyLabel(it.key), it.text))
	}
	// Keep the selection visible
	if h := m.modalVP.Height; h > 0 {
		top := m.modalVP.YOffset
		if selLine <= top {
			m.modalVP.YOffset = max(selLine-1, 0)
		} else if selLine >= top+h-1 {
			m.modalVP.YOffset = max(selLine-h+2, 0)
		}
	}
	return m.styles.Help.Render(strings.Join(lines, "\n"))
}

func (m *Model) openHelpModal() {
	m.modalActive = true
	m.modalKind = modalHelp
	m.modalTitle = "Help"
	m.helpItems = m.buildHelpItems()
	m.helpSel = 0
	m.modalBody = m.renderHelp()
	m.resizeModal()
}

func (m *Model) openAppLogsModal() {
	m.modalActive = true
	m.modalKind = modalLogs
	m.modalTitle = "Application Logs"
	m.modalBody = logx.Dump()
	m.resizeModal()
	m.modalVP.GotoBottom()
}

func (m *Model) resizeModal() {
	w := m.termWidth - 6
	h := m.termHeight - 6
	if w < 20 {
		w = 20
	}
	if h < 5 {
		h = 5
	}
	m.modalVP = viewport.New(w-4, h-4)
	if m.modalKind == modalDetail {
		m.setDetailBody()
		return
	}
	m.modalVP.SetContent(m.modalBody)
}

func (m *Model) renderModal() string {
	var content string
	switch m.modalKind {
	case modalHelp:
		m.modalVP.SetContent(m.renderHelp())
		content = m.modalVP.View() + "\n[esc]=close  [enter]=run"
	case modalDetail:
		hint := "[esc/enter]=close  [c]=copy pixel URL"
		if m.describer != nil {
			hint += "  [i]=AI summary"
		}
		content = m.modalVP.View() + "\n" + hint
	case modalLogs:
		c := m.engine.Stats()
		header := []string{
			"Status:",
			fmt.Sprintf("ordering: %s  issued: %d  applied: %d  dropped: %d  failed: %d", m.engine.Ordering(), c.Issued, c.Applied, c.Dropped, c.Failed),
			fmt.Sprintf("api: %s  records: %d  store version: %d", m.hostBadge(), m.store.Len(), m.store.Version()),
		}
		if c.LastErr != nil {
			header = append(header, "last error: "+format.Escape(c.LastErr.Error()))
		}
		h := m.styles.Help.Render(strings.Join(header, "\n"))
		content = h + "\n" + m.modalVP.View() + "\n[esc/enter]=close  [c]=copy"
	case modalFlow:
		content = m.renderFlow()
	default:
		content = m.modalVP.View() + "\n[esc/enter]=close"
	}
	boxW := m.termWidth - 6
	if boxW < 20 {
		boxW = 20
	}
	title := m.styles.PopupTitle.Render(m.modalTitle)
	body := m.styles.PopupBox.Width(boxW).Render(title + "\n" + content)
	return lipgloss.Place(m.termWidth, m.termHeight, lipgloss.Center, lipgloss.Center, body)
}
