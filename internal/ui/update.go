package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"trackdash/internal/export"
	"trackdash/internal/filter"
	"trackdash/internal/model"
	"trackdash/internal/mutate"
	"trackdash/internal/util/logx"
)

func (m *Model) buildHelpItems() []helpItem {
	km := m.keymap
	return []helpItem{
		{group: "Navigation", text: "Previous row", key: tea.Key{Type: tea.KeyUp}},
		{group: "Navigation", text: "Next row", key: tea.Key{Type: tea.KeyDown}},
		{group: "Navigation", text: "Page up", key: tea.Key{Type: tea.KeyPgUp}},
		{group: "Navigation", text: "Page down", key: tea.Key{Type: tea.KeyPgDown}},
		{group: "Navigation", text: "Open details", key: km.Detail},

		{group: "Search", text: "Search on the server", key: km.Search},
		{group: "Search", text: "Filter rows (text, /regex/ or expression)", key: km.Filter},
		{group: "Search", text: "Clear filter", key: km.ClearFilter},

		{group: "Tracks", text: "New tracking id", key: km.Create},
		{group: "Tracks", text: "Edit label", key: km.Label},
		{group: "Tracks", text: "Generate click link", key: km.Generate},
		{group: "Tracks", text: "Delete", key: km.Delete},
		{group: "Tracks", text: "Copy pixel URL", key: km.CopyPixel},

		{group: "Data", text: "Refresh now", key: km.Refresh},
		{group: "Data", text: "Export CSV from the server", key: km.Export},
		{group: "Data", text: "Export visible rows (NDJSON)", key: km.ExportLocal},

		{group: "Views", text: "Application logs", key: km.AppLogs},
		{group: "Views", text: "Help", key: km.Help},
		{group: "Views", text: "Quit", key: km.Quit},
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout(msg.Width, msg.Height)
		return m, nil
	case tickMsg:
		m.rebuild()
		return m, tea.Batch(m.refresh(m.query), m.scheduleTick())
	case syncedMsg:
		return m, m.handleSynced(msg)
	case detailMsg:
		m.handleDetail(msg)
		return m, nil
	case aiMsg:
		m.handleSummary(msg)
		return m, nil
	case mutationMsg:
		return m, m.handleMutation(msg)
	case exportMsg:
		m.handleExport(msg)
		return m, nil
	case activityMsg:
		return m, m.handleActivity(msg)
	case activityFlushMsg:
		m.pacer.Flush()
		return m, m.refresh(m.query)
	case spinner.TickMsg:
		if m.syncing == 0 && m.flow.State() != mutate.InFlight {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.modalActive {
			return m, m.handleModalKey(msg)
		}
		if m.inlineMode != inlineNone {
			return m, m.handleInlineKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := m.keymap
	switch {
	case keyMatches(msg, km.Quit):
		return m, tea.Quit
	case keyMatches(msg, km.Help):
		m.openHelpModal()
	case keyMatches(msg, km.AppLogs):
		m.openAppLogsModal()
	case keyMatches(msg, km.Detail):
		return m, m.openDetail()
	case keyMatches(msg, km.Search):
		m.inlineMode = inlineSearch
		m.search.Prompt = "/"
		m.search.Placeholder = "id, label, recipient, subject, city or country"
		m.search.SetValue(m.query)
		m.search.CursorEnd()
		m.search.Focus()
	case keyMatches(msg, km.Filter):
		m.inlineMode = inlineFilter
		m.search.Prompt = "? "
		m.search.Placeholder = `text, /regex/ or open_count > 2 && country == "US"`
		m.search.SetValue(filterInput(m.criteria))
		m.search.CursorEnd()
		m.search.Focus()
	case keyMatches(msg, km.ClearFilter):
		m.criteria, m.eval = filter.Criteria{}, nil
		m.rebuild()
		m.lastMsg = "filter cleared"
	case msg.Type == tea.KeyEsc:
		if m.query != "" {
			m.query = ""
			return m, m.refresh("")
		}
	case keyMatches(msg, km.Refresh):
		return m, m.refresh(m.query)
	case keyMatches(msg, km.Create):
		m.openFlow(mutate.KindCreate)
	case keyMatches(msg, km.Delete):
		m.openFlow(mutate.KindDelete)
	case keyMatches(msg, km.Label):
		m.openFlow(mutate.KindLabel)
	case keyMatches(msg, km.Generate):
		m.openFlow(mutate.KindGenerate)
	case keyMatches(msg, km.CopyPixel):
		m.copyPixel(m.selectedID())
	case keyMatches(msg, km.Export):
		return m, m.exportRemote()
	case keyMatches(msg, km.ExportLocal):
		return m, m.exportVisible()
	default:
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleInlineKey edits the bottom-line input. Search only reaches the
// server on Enter.
func (m *Model) handleInlineKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.search.Value())
		mode := m.inlineMode
		m.inlineMode = inlineNone
		m.search.Blur()
		if mode == inlineSearch {
			m.query = text
			return m.refresh(text)
		}
		m.applyFilter(text)
		return nil
	case tea.KeyEsc:
		mode := m.inlineMode
		m.inlineMode = inlineNone
		m.search.Blur()
		if mode == inlineSearch && m.query != "" {
			m.query = ""
			return m.refresh("")
		}
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return cmd
}

func (m *Model) handleModalKey(msg tea.KeyMsg) tea.Cmd {
	switch m.modalKind {
	case modalFlow:
		return m.handleFlowKey(msg)
	case modalHelp:
		switch {
		case msg.Type == tea.KeyUp:
			if m.helpSel > 0 {
				m.helpSel--
			}
		case msg.Type == tea.KeyDown:
			if m.helpSel+1 < len(m.helpItems) {
				m.helpSel++
			}
		case msg.Type == tea.KeyEnter:
			m.modalActive = false
			if len(m.helpItems) > 0 {
				return keyCmd(m.helpItems[m.helpSel].key)
			}
		case msg.Type == tea.KeyEsc || msg.String() == "q" || msg.String() == "?":
			m.modalActive = false
		}
		return nil
	}
	if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
		m.modalActive = false
		if m.modalKind == modalDetail {
			m.detailID = ""
		}
		return nil
	}
	switch m.modalKind {
	case modalDetail:
		switch msg.String() {
		case "i":
			return m.requestSummary()
		case "c":
			m.copyPixel(m.detailID)
			return nil
		}
	case modalLogs:
		if msg.String() == "c" {
			clipboard(m.modalBody)
			m.lastMsg = "copied to clipboard"
			return nil
		}
	}
	var cmd tea.Cmd
	m.modalVP, cmd = m.modalVP.Update(msg)
	return cmd
}

// applyFilter narrows the visible rows; the store is untouched.
func (m *Model) applyFilter(text string) {
	c := parseFilterInput(text)
	if c.Empty() {
		m.criteria, m.eval = filter.Criteria{}, nil
		m.rebuild()
		return
	}
	ev, err := filter.NewEvaluator(c)
	if err != nil {
		m.lastMsg = "filter: " + err.Error()
		logx.Warnf("filter %q: %v", text, err)
		return
	}
	m.criteria, m.eval = c, ev
	m.rebuild()
}

var exprMarkers = []string{"==", "!=", ">=", "<=", "&&", "||", "=~", " > ", " < "}

// parseFilterInput treats text containing comparison or boolean operators
// as an expression. A leading "field:" naming a record field scopes the
// query to that field; anything else is a plain or /regex/ query.
func parseFilterInput(text string) filter.Criteria {
	for _, op := range exprMarkers {
		if strings.Contains(text, op) {
			return filter.Criteria{Expr: text}
		}
	}
	if name, q, ok := strings.Cut(text, ":"); ok && !strings.HasPrefix(text, "/") {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, known := (model.TrackRecord{}).Fields()[name]; known {
			return filter.Criteria{Field: name, Query: strings.TrimSpace(q)}
		}
	}
	return filter.Criteria{Query: text}
}

func filterInput(c filter.Criteria) string {
	if c.Expr != "" {
		return c.Expr
	}
	if c.Field != "" {
		return c.Field + ":" + c.Query
	}
	return c.Query
}

func (m *Model) copyPixel(id string) {
	if id == "" || m.links == nil {
		m.lastMsg = "no track selected"
		return
	}
	clipboard(m.links.PixelURL(id))
	m.lastMsg = "copied pixel URL for " + id
}

func (m *Model) exportRemote() tea.Cmd {
	if m.exporter == nil {
		m.lastMsg = "export unavailable"
		return nil
	}
	ctx, d, dir, now := m.ctx, m.exporter, m.cfg.OutDir, m.now()
	m.lastMsg = "exporting…"
	return func() tea.Msg {
		path, n, err := export.Download(ctx, d, "csv", dir, now)
		return exportMsg{path: path, n: n, err: err}
	}
}

func (m *Model) exportVisible() tea.Cmd {
	if len(m.records) == 0 {
		m.lastMsg = "nothing to export"
		return nil
	}
	recs := append([]model.TrackRecord(nil), m.records...)
	now := m.now()
	path := export.LocalPath(m.cfg.OutDir, "ndjson", now)
	csvPath := export.LocalPath(m.cfg.OutDir, "csv", now)
	return func() tea.Msg {
		if err := export.ToNDJSON(path, recs); err != nil {
			return exportMsg{path: path, err: err}
		}
		err := export.ToCSV(csvPath, recs)
		return exportMsg{path: path + " + .csv", n: int64(len(recs)), err: err}
	}
}

func (m *Model) handleExport(msg exportMsg) {
	if msg.err != nil {
		logx.Errorf("export: %v", msg.err)
		m.lastMsg = "export failed: " + msg.err.Error()
		return
	}
	logx.Infof("exported %s", msg.path)
	m.lastMsg = fmt.Sprintf("exported to %s (%d)", msg.path, msg.n)
}
