package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trackdash/internal/format"
	"trackdash/internal/util/logx"
	"trackdash/internal/view"
)

// openDetail shows the selected record as last synced. A row that is no
// longer in the store opens nothing.
func (m *Model) openDetail() tea.Cmd {
	id := m.selectedID()
	rec, ok := m.store.FindByID(id)
	if !ok {
		return nil
	}
	m.modalActive = true
	m.modalKind = modalDetail
	m.modalTitle = "Track " + format.Escape(id)
	m.detailID, m.detailRec, m.detailClicks = id, rec, nil
	m.detailAI, m.aiBusy = "", false
	m.detailLoading = m.details != nil
	m.resizeModal()
	if m.details == nil {
		return nil
	}
	ctx, src := m.ctx, m.details
	return func() tea.Msg {
		r, clicks, err := src.Track(ctx, id)
		return detailMsg{id: id, rec: r, clicks: clicks, err: err}
	}
}

func (m *Model) handleDetail(msg detailMsg) {
	if !m.modalActive || m.modalKind != modalDetail || msg.id != m.detailID {
		return
	}
	m.detailLoading = false
	if msg.err != nil {
		// The clicks section is simply left out.
		logx.Warnf("click history for %s: %v", msg.id, msg.err)
	} else {
		m.detailClicks = msg.clicks
	}
	m.setDetailBody()
}

func (m *Model) requestSummary() tea.Cmd {
	if m.describer == nil {
		m.lastMsg = "AI summaries are off (--offline or no OPENAI_API_KEY)"
		return nil
	}
	if m.aiBusy {
		return nil
	}
	m.aiBusy = true
	m.setDetailBody()
	ctx, d := m.ctx, m.describer
	rec, clicks := m.detailRec, m.detailClicks
	return func() tea.Msg {
		s, err := d.DescribeTrack(ctx, rec, clicks)
		return aiMsg{id: rec.TrackID, text: s.Text(), err: err}
	}
}

func (m *Model) handleSummary(msg aiMsg) {
	if msg.id != m.detailID {
		return
	}
	m.aiBusy = false
	if msg.err != nil {
		logx.Warnf("summary for %s: %v", msg.id, msg.err)
		m.detailAI = "Summary failed: " + msg.err.Error()
	} else {
		m.detailAI = msg.text
	}
	if m.modalActive && m.modalKind == modalDetail {
		m.setDetailBody()
	}
}

func (m *Model) setDetailBody() {
	m.modalBody = m.renderDetail(m.modalVP.Width)
	m.modalVP.SetContent(m.modalBody)
}

func (m *Model) renderDetail(width int) string {
	d := view.BuildDetail(m.detailRec, m.detailClicks)
	st := m.styles
	var b strings.Builder
	b.WriteString(st.Highlight.Render(d.Title) + "\n")
	for _, sec := range d.Sections {
		b.WriteString("\n" + st.ChartTitle.Render(sec.Title) + "\n")
		for _, f := range sec.Fields {
			v := f.Value
			switch {
			case f.Highlight:
				v = st.Highlight.Render(v)
			case f.Mono:
				v = st.Mono.Render(v)
			}
			b.WriteString("  " + padRight(st.Muted.Render(f.Label), 16) + v + "\n")
		}
	}
	if m.detailLoading {
		b.WriteString("\n" + st.Muted.Render("Loading clicks…") + "\n")
	}
	if d.MapURL != "" {
		b.WriteString("\nMap: " + d.MapURL + "\n")
	}
	if m.links != nil {
		b.WriteString("Pixel: " + st.Mono.Render(format.Escape(m.links.PixelURL(d.ID))) + "\n")
	}
	switch {
	case m.aiBusy:
		b.WriteString("\n" + st.Muted.Render("Asking for an engagement summary…") + "\n")
	case m.detailAI != "":
		b.WriteString("\n" + st.ChartTitle.Render("Engagement summary") + "\n")
		for _, l := range strings.Split(m.detailAI, "\n") {
			b.WriteString("  " + format.Escape(l) + "\n")
		}
	}
	out := strings.TrimRight(b.String(), "\n")
	if width > 0 {
		out = lipgloss.NewStyle().Width(width).Render(out)
	}
	return out
}
