package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	qrcode "github.com/skip2/go-qrcode"

	"trackdash/internal/api"
	"trackdash/internal/format"
	"trackdash/internal/mutate"
	"trackdash/internal/util/logx"
)

var flowTitles = map[mutate.Kind]string{
	mutate.KindCreate:   "New tracking id",
	mutate.KindDelete:   "Delete tracking id",
	mutate.KindLabel:    "Edit label",
	mutate.KindGenerate: "Generate click link",
}

// openFlow starts a mutation modal. Everything but create acts on the
// selected row.
func (m *Model) openFlow(k mutate.Kind) {
	if m.gateway == nil {
		m.lastMsg = "read-only session"
		return
	}
	in := mutate.Input{}
	if k == mutate.KindCreate {
		in.ID = mutate.NewID(m.cfg.IDPrefix)
	} else {
		id := m.selectedID()
		if id == "" {
			m.lastMsg = "no track selected"
			return
		}
		in.ID = id
		if rec, ok := m.store.FindByID(id); ok {
			in.Label = rec.Label
		}
		if k == mutate.KindGenerate {
			in.Target = "https://"
		}
	}
	if err := m.flow.Open(k, in); err != nil {
		logx.Debugf("%v", err)
		return
	}
	m.buildInputs()
	m.modalActive = true
	m.modalKind = modalFlow
	m.modalTitle = flowTitles[k]
}

func (m *Model) buildInputs() {
	in := m.flow.Input()
	m.inputs, m.inputNames, m.inputFocus = nil, nil, 0
	add := func(name, value string, limit int) {
		ti := textinput.New()
		ti.CharLimit = limit
		ti.Prompt = ""
		ti.SetValue(value)
		m.inputs = append(m.inputs, ti)
		m.inputNames = append(m.inputNames, name)
	}
	switch m.flow.Kind() {
	case mutate.KindCreate:
		add("Track ID", in.ID, 100)
		add("Label", in.Label, 200)
	case mutate.KindLabel:
		add("Label", in.Label, 200)
	case mutate.KindGenerate:
		add("Target URL", in.Target, 2048)
	}
	m.focusInput(0)
}

func (m *Model) focusInput(i int) {
	if len(m.inputs) == 0 {
		return
	}
	m.inputFocus = (i + len(m.inputs)) % len(m.inputs)
	for j := range m.inputs {
		if j == m.inputFocus {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

// collectInput copies the text fields back into the flow.
func (m *Model) collectInput() mutate.Input {
	in := m.flow.Input()
	for i, name := range m.inputNames {
		v := m.inputs[i].Value()
		switch name {
		case "Track ID":
			in.ID = v
		case "Label":
			in.Label = v
		case "Target URL":
			in.Target = v
		}
	}
	return in
}

func (m *Model) submitFlow() tea.Cmd {
	if err := m.flow.Edit(m.collectInput()); err != nil {
		return nil
	}
	req, err := m.flow.Submit()
	if err != nil {
		logx.Debugf("%v", err)
		return nil
	}
	ctx, gw := m.ctx, m.gateway
	return tea.Batch(func() tea.Msg {
		return mutationMsg{req: req, out: gw.Do(ctx, req)}
	}, m.spin.Tick)
}

func (m *Model) handleMutation(msg mutationMsg) tea.Cmd {
	if err := m.flow.Resolve(msg.req.Seq, msg.out); err != nil {
		logx.Debugf("%v", err)
		return nil
	}
	out := msg.out
	if out.Failed() {
		logx.Warnf("%s %s: %v", msg.req.Kind, msg.req.Input.ID, out.Err)
		if api.IsNotFound(out.Err) {
			// The row is gone on the server; reconcile the list behind the error.
			return m.refresh(m.query)
		}
		return nil
	}
	m.lastMsg = out.Message
	if msg.req.Kind == mutate.KindDelete && m.detailID == out.ID {
		m.detailID = ""
	}
	return m.refresh(m.query)
}

func (m *Model) handleFlowKey(msg tea.KeyMsg) tea.Cmd {
	switch m.flow.State() {
	case mutate.InFlight:
		return nil
	case mutate.Resolved:
		switch {
		case msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc:
			retry, err := m.flow.Dismiss()
			if err != nil {
				return nil
			}
			if retry {
				m.focusInput(m.inputFocus)
				return nil
			}
			m.modalActive = false
		case msg.String() == "c":
			if u := m.flowCopyTarget(); u != "" {
				clipboard(u)
				m.lastMsg = "copied " + u
			}
		}
		return nil
	}

	if m.flow.Kind() == mutate.KindDelete {
		switch {
		case msg.Type == tea.KeyEnter || msg.String() == "y":
			return m.submitFlow()
		case msg.Type == tea.KeyEsc || msg.String() == "n":
			_ = m.flow.Cancel()
			m.modalActive = false
		}
		return nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		_ = m.flow.Cancel()
		m.modalActive = false
		return nil
	case tea.KeyEnter:
		return m.submitFlow()
	case tea.KeyTab, tea.KeyDown:
		m.focusInput(m.inputFocus + 1)
		return nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.focusInput(m.inputFocus - 1)
		return nil
	}
	if len(m.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	m.inputs[m.inputFocus], cmd = m.inputs[m.inputFocus].Update(msg)
	return cmd
}

func (m *Model) flowCopyTarget() string {
	out := m.flow.Outcome()
	if out.Failed() {
		return ""
	}
	if out.URL != "" {
		return out.URL
	}
	if m.flow.Kind() == mutate.KindCreate && m.links != nil {
		return m.links.PixelURL(out.ID)
	}
	return ""
}

func (m *Model) renderFlow() string {
	st := m.styles
	var b strings.Builder
	switch m.flow.State() {
	case mutate.Confirming:
		in := m.flow.Input()
		if m.flow.Kind() == mutate.KindDelete {
			fmt.Fprintf(&b, "Delete %s and all of its opens and clicks?\n\n", st.Highlight.Render(format.Escape(in.ID)))
			b.WriteString("[y/enter]=delete  [n/esc]=cancel")
			return b.String()
		}
		if m.flow.Kind() != mutate.KindCreate {
			fmt.Fprintf(&b, "Track %s\n\n", st.Mono.Render(format.Escape(in.ID)))
		}
		for i, name := range m.inputNames {
			marker := "  "
			if i == m.inputFocus {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%s %s\n", marker, padRight(st.Muted.Render(name+":"), 12), m.inputs[i].View())
		}
		b.WriteString("\n[enter]=submit  [tab]=next field  [esc]=cancel")
	case mutate.InFlight:
		b.WriteString(m.spin.View() + " working…")
	case mutate.Resolved:
		out := m.flow.Outcome()
		if out.Failed() {
			b.WriteString(st.Error.Render("✗ "+describeError(out.Err)) + "\n\n")
			b.WriteString("[enter/esc]=back to edit")
			return b.String()
		}
		b.WriteString(st.Success.Render("✓ "+format.Escape(out.Message)) + "\n")
		b.WriteString(m.renderLinks(out))
		b.WriteString("\n[enter/esc]=close")
		if m.flowCopyTarget() != "" {
			b.WriteString("  [c]=copy link")
		}
	}
	return b.String()
}

func (m *Model) renderLinks(out mutate.Outcome) string {
	if m.links == nil {
		return ""
	}
	st := m.styles
	var b strings.Builder
	var qr string
	switch m.flow.Kind() {
	case mutate.KindCreate:
		pixel := m.links.PixelURL(out.ID)
		b.WriteString("\nPixel URL:\n  " + st.Mono.Render(format.Escape(pixel)) + "\n")
		b.WriteString("Email snippet:\n  " + st.Mono.Render(format.Escape(api.PixelSnippet(pixel))) + "\n")
		b.WriteString("Redirect example:\n  " + st.Mono.Render(format.Escape(m.links.RedirectURL(out.ID, "https://example.com"))) + "\n")
		qr = pixel
	case mutate.KindGenerate:
		b.WriteString("\nClick URL:\n  " + st.Mono.Render(format.Escape(out.URL)) + "\n")
		qr = out.URL
	}
	if qr != "" && m.termHeight >= 40 {
		if code, err := qrcode.New(qr, qrcode.Low); err == nil {
			b.WriteString("\n" + code.ToSmallString(false))
		}
	}
	return b.String()
}

func describeError(err error) string {
	msg := format.Escape(err.Error())
	switch {
	case api.IsNotFound(err):
		return "Not found: " + msg
	case api.IsValidation(err):
		return "Rejected: " + msg
	case api.IsNetwork(err):
		return "Network error: " + msg
	}
	return msg
}
