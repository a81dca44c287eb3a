package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyMap struct {
	Search      tea.Key
	Filter      tea.Key
	ClearFilter tea.Key
	Detail      tea.Key
	Create      tea.Key
	Delete      tea.Key
	Label       tea.Key
	Generate    tea.Key
	CopyPixel   tea.Key
	Export      tea.Key
	ExportLocal tea.Key
	Refresh     tea.Key
	Summarize   tea.Key
	AppLogs     tea.Key
	Help        tea.Key
	Quit        tea.Key
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Search:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'/'}},
		Filter:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'f'}},
		ClearFilter: tea.Key{Type: tea.KeyRunes, Runes: []rune{'F'}},
		Detail:      tea.Key{Type: tea.KeyEnter},
		Create:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'n'}},
		Delete:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'d'}},
		Label:       tea.Key{Type: tea.KeyRunes, Runes: []rune{'l'}},
		Generate:    tea.Key{Type: tea.KeyRunes, Runes: []rune{'g'}},
		CopyPixel:   tea.Key{Type: tea.KeyRunes, Runes: []rune{'c'}},
		Export:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'e'}},
		ExportLocal: tea.Key{Type: tea.KeyRunes, Runes: []rune{'E'}},
		Refresh:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'r'}},
		Summarize:   tea.Key{Type: tea.KeyRunes, Runes: []rune{'i'}},
		AppLogs:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'L'}},
		Help:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'?'}},
		Quit:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}
}

func keyMatches(msg tea.KeyMsg, k tea.Key) bool {
	if k.Type != tea.KeyRunes {
		return msg.Type == k.Type
	}
	if len(k.Runes) > 0 {
		return msg.String() == string(k.Runes)
	}
	return false
}

// tableKeys keeps list navigation off the letters used by shortcuts.
func tableKeys() table.KeyMap {
	km := table.DefaultKeyMap()
	km.LineUp = key.NewBinding(key.WithKeys("up", "k"))
	km.LineDown = key.NewBinding(key.WithKeys("down", "j"))
	km.PageUp = key.NewBinding(key.WithKeys("pgup"))
	km.PageDown = key.NewBinding(key.WithKeys("pgdown", " "))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	km.GotoTop = key.NewBinding(key.WithKeys("home"))
	km.GotoBottom = key.NewBinding(key.WithKeys("end"))
	return km
}
