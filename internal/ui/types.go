package ui

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"trackdash/internal/ai"
	"trackdash/internal/config"
	"trackdash/internal/export"
	"trackdash/internal/filter"
	"trackdash/internal/ingest"
	"trackdash/internal/model"
	"trackdash/internal/mutate"
	"trackdash/internal/syncer"
	"trackdash/internal/view"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalHelp
	modalDetail
	modalLogs
	modalFlow
)

type inlineMode int

const (
	inlineNone inlineMode = iota
	inlineSearch
	inlineFilter
)

// Links builds the display-only URLs of a track id.
type Links interface {
	PixelURL(id string) string
	RedirectURL(id, target string) string
	Base() *url.URL
}

// Deps are the collaborators a Model drives. AI and Activity may be nil.
type Deps struct {
	Engine   *syncer.Engine
	Gateway  *mutate.Gateway
	Links    Links
	Exporter export.Downloader
	Details  DetailSource
	AI       ai.Describer
	Activity <-chan ingest.Line
	Now      func() time.Time
}

// DetailSource fetches one record with its click history.
type DetailSource interface {
	Track(ctx context.Context, id string) (model.TrackRecord, []model.ClickEvent, error)
}

type Model struct {
	ctx context.Context
	cfg *config.Config

	engine    *syncer.Engine
	store     *model.Store
	gateway   *mutate.Gateway
	links     Links
	exporter  export.Downloader
	details   DetailSource
	describer ai.Describer
	activity  <-chan ingest.Line
	pacer     *ingest.Pacer
	now       func() time.Time

	// Data
	records []model.TrackRecord // visible records, same order as rows
	rows    []view.Row
	summary view.Summary
	query   string // active server-side search
	syncing int
	lastErr error
	lastEvt string

	// UI
	tbl        table.Model
	styles     Styles
	search     textinput.Model
	spin       spinner.Model
	spinning   bool
	keymap     KeyMap
	termWidth  int
	termHeight int
	inlineMode inlineMode
	lastMsg    string

	// Filter
	criteria filter.Criteria
	eval     *filter.Evaluator

	// Modal popup
	modalActive bool
	modalKind   modalKind
	modalVP     viewport.Model
	modalTitle  string
	modalBody   string

	// Help menu state
	helpItems []helpItem
	helpSel   int

	// Detail modal
	detailID      string
	detailRec     model.TrackRecord
	detailClicks  []model.ClickEvent
	detailLoading bool
	detailAI      string
	aiBusy        bool

	// Mutation modal
	flow       mutate.Flow
	inputs     []textinput.Model
	inputNames []string
	inputFocus int
}

type helpItem struct {
	group string
	text  string
	key   tea.Key
}

type (
	tickMsg   struct{}
	syncedMsg struct {
		res syncer.Result
		err error
	}
	detailMsg struct {
		id     string
		rec    model.TrackRecord
		clicks []model.ClickEvent
		err    error
	}
	mutationMsg struct {
		req mutate.Request
		out mutate.Outcome
	}
	exportMsg struct {
		path string
		n    int64
		err  error
	}
	activityMsg      struct{ line ingest.Line }
	activityFlushMsg struct{}
	aiMsg            struct {
		id   string
		text string
		err  error
	}
)

func keyCmd(k tea.Key) tea.Cmd {
	return func() tea.Msg {
		if k.Type == tea.KeyRunes {
			return tea.KeyMsg{Type: k.Type, Runes: k.Runes}
		}
		return tea.KeyMsg{Type: k.Type}
	}
}

func keyLabel(k tea.Key) string {
	switch k.Type {
	case tea.KeyRunes:
		if len(k.Runes) == 1 {
			r := k.Runes[0]
			if r == ' ' {
				return "space"
			}
			return string(r)
		}
		return strings.ToLower(string(k.Runes))
	case tea.KeyEnter:
		return "enter"
	case tea.KeyEsc:
		return "esc"
	case tea.KeyTab:
		return "tab"
	case tea.KeyUp:
		return "up"
	case tea.KeyDown:
		return "down"
	case tea.KeyPgUp:
		return "pgup"
	case tea.KeyPgDown:
		return "pgdown"
	default:
		return strings.ToLower(k.String())
	}
}
