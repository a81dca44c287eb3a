package ui

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"trackdash/internal/api"
	"trackdash/internal/apitest"
	"trackdash/internal/config"
	"trackdash/internal/ingest"
	"trackdash/internal/model"
	"trackdash/internal/mutate"
	"trackdash/internal/syncer"
)

func newTestModel(t *testing.T, recs ...model.TrackRecord) (*Model, *apitest.Server) {
	t.Helper()
	fake := apitest.New()
	for _, r := range recs {
		fake.Put(r)
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL, api.Options{})
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Interval: time.Millisecond,
		PageSize: 50,
		Theme:    config.ThemeDark,
		OutDir:   t.TempDir(),
		IDPrefix: "client",
	}
	eng := syncer.New(c, model.NewStore(), syncer.Options{})
	m := newModel(context.Background(), cfg, Deps{
		Engine:   eng,
		Gateway:  mutate.NewGateway(c),
		Links:    c,
		Exporter: c,
		Details:  c,
	})
	m.layout(120, 50)
	return m, fake
}

// drain runs cmd and feeds resulting messages back into m until nothing is
// left. Timers are not followed.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("command loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, tickMsg, activityFlushMsg, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(t *testing.T, m *Model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := m.Update(msg)
		drain(t, m, cmd)
	}
}

func sample() []model.TrackRecord {
	return []model.TrackRecord{
		{TrackID: "client-aaaa0001", Label: "Alpha", Country: "US", City: "Austin", OpenCount: 3, LastSeen: "2024-05-02T10:00:00Z"},
		{TrackID: "client-bbbb0002", Label: "Beta", Country: "DE", City: "Berlin", OpenCount: 1, LastSeen: "2024-05-01T10:00:00Z"},
	}
}

func TestInitialRefreshFillsRows(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	if len(m.rows) != 2 || m.rows[0].ID != "client-aaaa0001" {
		t.Fatalf("rows: %+v", m.rows)
	}
	if m.summary.Unique != "2" {
		t.Fatalf("summary: %+v", m.summary)
	}
	v := m.View()
	if !strings.Contains(v, "Alpha") || !strings.Contains(v, "LOCAL") {
		t.Fatalf("view missing content:\n%s", v)
	}
}

func TestEmptyStoreShowsPlaceholder(t *testing.T) {
	m, _ := newTestModel(t)
	drain(t, m, m.Init())
	if !strings.Contains(m.View(), "No recent activity") {
		t.Fatalf("placeholder row missing")
	}
	press(t, m, "enter")
	if m.modalActive {
		t.Fatalf("detail must not open without a record")
	}
}

func TestSearchOnlyOnEnter(t *testing.T) {
	m, fake := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	before := fake.Calls("tracks")
	press(t, m, "/", "b", "e", "t", "a")
	if fake.Calls("tracks") != before {
		t.Fatalf("typing must not query the server")
	}
	press(t, m, "enter")
	if m.query != "beta" || len(m.rows) != 1 || m.rows[0].ID != "client-bbbb0002" {
		t.Fatalf("search: query=%q rows=%+v", m.query, m.rows)
	}
	press(t, m, "esc")
	if m.query != "" || len(m.rows) != 2 {
		t.Fatalf("esc should restore the default page: %q %d", m.query, len(m.rows))
	}
}

func TestDetailShowsRecordAndClicks(t *testing.T) {
	m, fake := newTestModel(t, sample()...)
	fake.Click("client-aaaa0001", "https://example.com/offer")
	drain(t, m, m.Init())
	press(t, m, "enter")
	if !m.modalActive || m.modalKind != modalDetail || m.detailID != "client-aaaa0001" {
		t.Fatalf("detail not open: %v %v %q", m.modalActive, m.modalKind, m.detailID)
	}
	if m.detailLoading || len(m.detailClicks) != 1 {
		t.Fatalf("clicks: loading=%v %+v", m.detailLoading, m.detailClicks)
	}
	for _, want := range []string{"Identity & Context", "Alpha", "/track?id=client-aaaa0001"} {
		if !strings.Contains(m.modalBody, want) {
			t.Fatalf("detail body missing %q:\n%s", want, m.modalBody)
		}
	}
	press(t, m, "i")
	if !strings.Contains(m.lastMsg, "AI summaries are off") {
		t.Fatalf("summary without a describer: %q", m.lastMsg)
	}
	press(t, m, "esc")
	if m.modalActive {
		t.Fatalf("esc should close the detail")
	}
}

func TestCreateFlowForcesRefresh(t *testing.T) {
	m, fake := newTestModel(t)
	drain(t, m, m.Init())
	press(t, m, "n")
	if !m.modalActive || m.modalKind != modalFlow || m.flow.State() != mutate.Confirming {
		t.Fatalf("flow not open")
	}
	if !strings.HasPrefix(m.inputs[0].Value(), "client-") {
		t.Fatalf("suggested id: %q", m.inputs[0].Value())
	}
	m.inputs[0].SetValue("client-test0001")
	m.inputs[1].SetValue("Newsletter")
	press(t, m, "enter")
	if m.flow.State() != mutate.Resolved || m.flow.Outcome().Failed() {
		t.Fatalf("outcome: %s %+v", m.flow.State(), m.flow.Outcome())
	}
	if r, ok := fake.Get("client-test0001"); !ok || r.Label != "Newsletter" {
		t.Fatalf("server record: %+v %v", r, ok)
	}
	if _, ok := m.store.FindByID("client-test0001"); !ok {
		t.Fatalf("refresh after create did not pick up the record")
	}
	if !strings.Contains(m.renderFlow(), "/track?id=client-test0001") {
		t.Fatalf("pixel URL not shown:\n%s", m.renderFlow())
	}
	press(t, m, "enter")
	if m.modalActive || m.flow.Active() {
		t.Fatalf("dismiss should close the modal")
	}
}

func TestCreateFailureKeepsInput(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	press(t, m, "n")
	m.inputs[0].SetValue("client-aaaa0001")
	press(t, m, "enter")
	if !m.flow.Outcome().Failed() || !strings.Contains(m.renderFlow(), "Rejected") {
		t.Fatalf("duplicate should be rejected:\n%s", m.renderFlow())
	}
	press(t, m, "enter")
	if m.flow.State() != mutate.Confirming || m.inputs[0].Value() != "client-aaaa0001" {
		t.Fatalf("input lost: %s %q", m.flow.State(), m.inputs[0].Value())
	}
	press(t, m, "esc")
	if m.modalActive {
		t.Fatalf("cancel should close")
	}
}

func TestLabelNotFoundReconciles(t *testing.T) {
	m, fake := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	before := fake.Calls("tracks")
	press(t, m, "l")
	if m.flow.Kind() != mutate.KindLabel {
		t.Fatalf("label flow not open")
	}
	m.inputs[0].SetValue("Renamed")
	fake.FailNext("update", 404, 1)
	press(t, m, "enter")
	out := m.flow.Outcome()
	if !out.Failed() || !api.IsNotFound(out.Err) || m.flow.State() != mutate.Resolved {
		t.Fatalf("outcome: %s %+v", m.flow.State(), out)
	}
	if fake.Calls("tracks") <= before {
		t.Fatalf("a missing record should trigger a refresh, tracks calls %d -> %d", before, fake.Calls("tracks"))
	}
	if !strings.Contains(m.renderFlow(), "Not found") {
		t.Fatalf("error not shown:\n%s", m.renderFlow())
	}
}

func TestDeleteFlow(t *testing.T) {
	m, fake := newTestModel(t, sample()[0])
	drain(t, m, m.Init())
	press(t, m, "d")
	if m.flow.Kind() != mutate.KindDelete || !strings.Contains(m.renderFlow(), "client-aaaa0001") {
		t.Fatalf("delete confirm:\n%s", m.renderFlow())
	}
	press(t, m, "y")
	if _, ok := fake.Get("client-aaaa0001"); ok {
		t.Fatalf("still on server")
	}
	if m.store.Len() != 0 || len(m.rows) != 0 {
		t.Fatalf("store: %d rows: %d", m.store.Len(), len(m.rows))
	}
	press(t, m, "esc")
	if !strings.Contains(m.View(), "No recent activity") {
		t.Fatalf("placeholder missing after delete")
	}
}

func TestFailedSyncKeepsSnapshot(t *testing.T) {
	m, fake := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	fake.FailNext("stats", 500, 1)
	press(t, m, "r")
	if len(m.rows) != 2 || m.lastErr == nil {
		t.Fatalf("rows=%d err=%v", len(m.rows), m.lastErr)
	}
	if !strings.Contains(m.statusLine(), "sync failed") {
		t.Fatalf("status: %s", m.statusLine())
	}
	press(t, m, "r")
	if m.lastErr != nil {
		t.Fatalf("next sync should clear the error: %v", m.lastErr)
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	m, fake := newTestModel(t, sample()[0])
	ctx := context.Background()
	t1 := m.engine.Begin("")
	old, err := m.engine.Fetch(ctx, t1)
	if err != nil {
		t.Fatal(err)
	}
	fake.Put(sample()[1])
	t2 := m.engine.Begin("")
	fresh, err := m.engine.Fetch(ctx, t2)
	if err != nil {
		t.Fatal(err)
	}
	m.Update(syncedMsg{res: fresh})
	m.Update(syncedMsg{res: old})
	if len(m.rows) != 2 {
		t.Fatalf("older result replaced newer rows: %d", len(m.rows))
	}
	if m.engine.Stats().Dropped != 1 {
		t.Fatalf("counters: %+v", m.engine.Stats())
	}
}

func TestFilterNarrowsVisibleRowsOnly(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	press(t, m, "f")
	m.search.SetValue(`country == "US"`)
	press(t, m, "enter")
	if len(m.rows) != 1 || m.rows[0].ID != "client-aaaa0001" || m.store.Len() != 2 {
		t.Fatalf("rows=%+v store=%d", m.rows, m.store.Len())
	}
	press(t, m, "f")
	m.search.SetValue(`(open_count > 1`)
	press(t, m, "enter")
	if !strings.HasPrefix(m.lastMsg, "filter:") || len(m.rows) != 1 {
		t.Fatalf("bad expression should keep the previous filter: %q %d", m.lastMsg, len(m.rows))
	}
	press(t, m, "F")
	if len(m.rows) != 2 {
		t.Fatalf("clear: %d", len(m.rows))
	}
}

func TestParseFilterInput(t *testing.T) {
	cases := []struct {
		in   string
		expr bool
	}{
		{"berlin", false},
		{"/^client-a/", false},
		{`country == "US"`, true},
		{"open_count > 2", true},
		{"a && b", true},
	}
	for _, c := range cases {
		got := parseFilterInput(c.in)
		if (got.Expr != "") != c.expr {
			t.Fatalf("%q: %+v", c.in, got)
		}
	}

	got := parseFilterInput("City: berlin")
	if got.Field != "city" || got.Query != "berlin" || got.Expr != "" {
		t.Fatalf("field scope: %+v", got)
	}
	if in := filterInput(got); in != "city:berlin" {
		t.Fatalf("round trip: %q", in)
	}
	for _, in := range []string{"https://x.test/a", "/^a:b/", "nosuch:thing"} {
		if got := parseFilterInput(in); got.Field != "" || got.Query != in {
			t.Fatalf("%q should stay a plain query: %+v", in, got)
		}
	}
}

func TestFieldFilterNarrowsRows(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	// "Austin" appears only in client-aaaa0001's city; "Beta" only in a label.
	m.applyFilter("label:beta")
	if len(m.rows) != 1 || m.rows[0].ID != "client-bbbb0002" {
		t.Fatalf("label scope: %+v", m.rows)
	}
	m.applyFilter("country:austin")
	if len(m.rows) != 0 {
		t.Fatalf("city text must not match a country scope: %+v", m.rows)
	}
}

func TestCopyPixelURL(t *testing.T) {
	var copied string
	old := clipboard
	clipboard = func(s string) { copied = s }
	t.Cleanup(func() { clipboard = old })

	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	press(t, m, "c")
	if !strings.HasSuffix(copied, "/track?id=client-aaaa0001") {
		t.Fatalf("copied %q", copied)
	}
}

func TestExportVisibleRows(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	press(t, m, "E")
	if !strings.HasPrefix(m.lastMsg, "exported") {
		t.Fatalf("export: %q", m.lastMsg)
	}
	files, _ := filepath.Glob(filepath.Join(m.cfg.OutDir, "*.ndjson"))
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
	b, err := os.ReadFile(files[0])
	if err != nil || strings.Count(string(b), "\n") != 2 {
		t.Fatalf("content: %q %v", b, err)
	}
	local, _ := filepath.Glob(filepath.Join(m.cfg.OutDir, "visible-*.csv"))
	if len(local) != 1 {
		t.Fatalf("visible csv: %v", local)
	}
	b, err = os.ReadFile(local[0])
	if err != nil || strings.Count(string(b), "\n") != 3 || !strings.HasPrefix(string(b), "track_id,label,") {
		t.Fatalf("csv content: %q %v", b, err)
	}
	press(t, m, "e")
	csvs, _ := filepath.Glob(filepath.Join(m.cfg.OutDir, "tracks-*.csv"))
	if len(csvs) != 1 {
		t.Fatalf("server export: %v (%s)", csvs, m.lastMsg)
	}
}

func TestServerExportWithNoRowsIsCSV(t *testing.T) {
	m, _ := newTestModel(t)
	drain(t, m, m.Init())
	press(t, m, "e")
	csvs, _ := filepath.Glob(filepath.Join(m.cfg.OutDir, "tracks-*.csv"))
	if len(csvs) != 1 {
		t.Fatalf("server export: %v (%s)", csvs, m.lastMsg)
	}
	b, _ := os.ReadFile(csvs[0])
	if strings.Contains(string(b), "{") || !strings.HasPrefix(string(b), "track_id,") {
		t.Fatalf("expected header-only csv, got %q", b)
	}
}

func TestActivityIsPaced(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	line := activityMsg{line: ingest.Line{Text: "2024-05-02T12:00:00Z open client-aaaa0001"}}

	m.Update(line)
	if got := m.engine.Stats().Issued; got != 1 {
		t.Fatalf("first hit should refresh, issued=%d", got)
	}
	if m.lastEvt != "open client-aaaa0001" {
		t.Fatalf("last event %q", m.lastEvt)
	}
	m.Update(line)
	m.Update(line)
	if got := m.engine.Stats().Issued; got != 1 || !m.pacer.Pending() {
		t.Fatalf("burst should be deferred, issued=%d pending=%v", got, m.pacer.Pending())
	}
	m.Update(activityFlushMsg{})
	if got := m.engine.Stats().Issued; got != 2 || m.pacer.Pending() {
		t.Fatalf("flush: issued=%d", got)
	}
}

func TestHelpRunsSelectedShortcut(t *testing.T) {
	m, _ := newTestModel(t, sample()...)
	drain(t, m, m.Init())
	press(t, m, "?")
	if m.modalKind != modalHelp || !strings.Contains(m.renderHelp(), "New tracking id") {
		t.Fatalf("help not open")
	}
	for i, it := range m.helpItems {
		if it.text == "New tracking id" {
			m.helpSel = i
		}
	}
	press(t, m, "enter")
	if !m.modalActive || m.modalKind != modalFlow || m.flow.Kind() != mutate.KindCreate {
		t.Fatalf("shortcut not run: %v %v", m.modalActive, m.modalKind)
	}
}

func TestIsLocalHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":         true,
		"127.0.0.1":         true,
		"::1":               true,
		"app.localhost":     true,
		"track.example.com": false,
		"10.0.0.5":          false,
	} {
		if got := isLocalHost(host); got != want {
			t.Fatalf("%s: got %v", host, got)
		}
	}
}
