package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"trackdash/internal/config"
	"trackdash/internal/ingest"
)

// activityPace bounds how often appended event lines may force a refresh.
const activityPace = 2 * time.Second

func newModel(ctx context.Context, cfg *config.Config, d Deps) *Model {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	m := &Model{
		ctx:       ctx,
		cfg:       cfg,
		engine:    d.Engine,
		store:     d.Engine.Store(),
		gateway:   d.Gateway,
		links:     d.Links,
		exporter:  d.Exporter,
		details:   d.Details,
		describer: d.AI,
		activity:  d.Activity,
		pacer:     ingest.NewPacer(activityPace),
		now:       now,
		styles:    NewStyles(cfg.Theme != config.ThemeLight),
		keymap:    DefaultKeyMap(),
		search:    textinput.New(),
		spin:      spinner.New(),
	}
	m.spin.Spinner = spinner.Dot
	m.search.CharLimit = 256

	m.tbl = table.New(table.WithFocused(true), table.WithHeight(10))
	m.tbl.KeyMap = tableKeys()
	ts := table.DefaultStyles()
	ts.Header = m.styles.TableStyles.Header
	ts.Cell = m.styles.TableStyles.Cell
	ts.Selected = m.styles.TableStyles.Selected
	m.tbl.SetStyles(ts)
	m.layout(100, 30)
	m.rebuild()
	return m
}

// Run blocks until the operator quits or ctx ends.
func Run(ctx context.Context, cfg *config.Config, d Deps) error {
	m := newModel(ctx, cfg, d)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(m.query), m.scheduleTick(), waitActivity(m.activity))
}
