package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Base        lipgloss.Style
	Status      lipgloss.Style
	Help        lipgloss.Style
	Card        lipgloss.Style
	CardValue   lipgloss.Style
	ChartTitle  lipgloss.Style
	Bar         lipgloss.Style
	Muted       lipgloss.Style
	Highlight   lipgloss.Style
	Mono        lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Live        lipgloss.Style
	TableStyles TableStyles
	PopupBox    lipgloss.Style
	PopupTitle  lipgloss.Style
}

type TableStyles struct {
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Selected lipgloss.Style
}

func NewStyles(dark bool) Styles {
	s := Styles{}
	accent, muted, border := lipgloss.Color("81"), lipgloss.Color("240"), lipgloss.Color("60")
	if !dark {
		accent, muted, border = lipgloss.Color("27"), lipgloss.Color("8"), lipgloss.Color("12")
	}
	if dark {
		s.Base = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	} else {
		s.Base = lipgloss.NewStyle()
	}
	s.Status = lipgloss.NewStyle().Foreground(muted)
	s.Help = lipgloss.NewStyle().Foreground(muted)
	s.Muted = lipgloss.NewStyle().Foreground(muted)
	s.Card = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(border).Padding(0, 1)
	s.CardValue = lipgloss.NewStyle().Bold(true).Foreground(accent)
	s.ChartTitle = lipgloss.NewStyle().Bold(true)
	s.Bar = lipgloss.NewStyle().Foreground(accent)
	s.Highlight = lipgloss.NewStyle().Bold(true).Foreground(accent)
	s.Mono = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Success = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	s.Live = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(1, 2)
	s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	s.TableStyles = TableStyles{
		Header:   lipgloss.NewStyle().Bold(true).PaddingRight(1),
		Cell:     lipgloss.NewStyle().PaddingRight(1),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")),
	}
	return s
}
