package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trackdash/internal/format"
	"trackdash/internal/ingest"
	"trackdash/internal/util/logx"
	"trackdash/internal/view"
)

// refresh issues a new sync ticket for query. Older tickets still in flight
// are not cancelled; the engine decides on arrival whether they apply.
func (m *Model) refresh(query string) tea.Cmd {
	t := m.engine.Begin(query)
	m.syncing++
	ctx, eng := m.ctx, m.engine
	fetch := func() tea.Msg {
		res, err := eng.Fetch(ctx, t)
		return syncedMsg{res: res, err: err}
	}
	if m.spinning {
		return fetch
	}
	m.spinning = true
	return tea.Batch(fetch, m.spin.Tick)
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func waitActivity(ch <-chan ingest.Line) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		l, ok := <-ch
		if !ok {
			return nil
		}
		return activityMsg{line: l}
	}
}

func (m *Model) handleSynced(msg syncedMsg) tea.Cmd {
	if m.syncing > 0 {
		m.syncing--
	}
	if msg.err != nil {
		// The last good snapshot stays on screen.
		m.lastErr = msg.err
		return nil
	}
	if !m.engine.Apply(msg.res) {
		return nil
	}
	m.lastErr = nil
	m.rebuild()
	if m.modalActive && m.modalKind == modalDetail {
		if rec, ok := m.store.FindByID(m.detailID); ok {
			m.detailRec = rec
			m.setDetailBody()
		}
	}
	return nil
}

func (m *Model) handleActivity(msg activityMsg) tea.Cmd {
	cmds := []tea.Cmd{waitActivity(m.activity)}
	if ev, ok := ingest.ParseEvent(msg.line.Text); ok {
		m.lastEvt = fmt.Sprintf("%s %s", ev.Kind, format.Escape(ev.ID))
	} else {
		m.lastEvt = "activity"
	}
	logx.Debugf("activity: %s", msg.line.Text)
	fire, after := m.pacer.Hit(m.now())
	switch {
	case fire:
		cmds = append(cmds, m.refresh(m.query))
	case after > 0:
		cmds = append(cmds, tea.Tick(after, func(time.Time) tea.Msg { return activityFlushMsg{} }))
	}
	return tea.Batch(cmds...)
}

// rebuild derives rows and header from the store. The cursor follows the
// previously selected id when it is still visible.
func (m *Model) rebuild() {
	sel, prev := m.selectedID(), m.tbl.Cursor()
	m.records = m.eval.Apply(m.store.Current())
	m.rows = view.BuildRows(m.records, m.now())
	m.summary = view.BuildSummary(m.store.Summary())

	trows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		trows = append(trows, table.Row{r.Title, r.IDText, r.Location, r.Device, r.Opens, r.Clicks, r.Seen})
	}
	if len(trows) == 0 {
		text := view.EmptyListText
		if m.eval != nil && m.store.Len() > 0 {
			text = "No rows match the filter"
		}
		trows = append(trows, table.Row{text, "", "", "", "", "", ""})
	}
	m.tbl.SetRows(trows)

	cur := -1
	for i, r := range m.rows {
		if sel != "" && r.ID == sel {
			cur = i
			break
		}
	}
	if cur < 0 {
		cur = prev
	}
	if cur >= len(trows) {
		cur = len(trows) - 1
	}
	if cur < 0 {
		cur = 0
	}
	m.tbl.SetCursor(cur)
}

func (m *Model) selectedID() string {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	return m.rows[i].ID
}

func (m *Model) layout(w, h int) {
	m.termWidth, m.termHeight = w, h
	m.tbl.SetColumns(columnsFor(w))
	m.tbl.SetWidth(w)
	// header block, table header, inline line, status line
	th := h - lipgloss.Height(m.renderHeader()) - 3
	if th < 3 {
		th = 3
	}
	m.tbl.SetHeight(th)
	if m.modalActive {
		m.resizeModal()
	}
}

func columnsFor(w int) []table.Column {
	fixed := []table.Column{
		{Title: "ID", Width: 18},
		{Title: "Location", Width: 18},
		{Title: "Device", Width: 18},
		{Title: "Opens", Width: 6},
		{Title: "Clicks", Width: 6},
		{Title: "Seen", Width: 9},
	}
	used := 1
	for _, c := range fixed {
		used += c.Width + 1
	}
	tw := w - used - 1
	if tw < 12 {
		tw = 12
	}
	return append([]table.Column{{Title: "Client", Width: tw}}, fixed...)
}
