// Package apitest is an in-memory implementation of the tracking service's
// analytics API. Tests and the fakeapi demo command serve it over HTTP.
package apitest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"trackdash/internal/model"
)

const maxLimit = 500

// Server holds tracks keyed by id. The zero value is not usable; call New.
type Server struct {
	mu     sync.Mutex
	tracks map[string]*model.TrackRecord
	clicks map[string][]model.ClickEvent
	now    func() time.Time
	fail   map[string]int
	delay  map[string]time.Duration
	calls  map[string]int
	events io.Writer
	router *mux.Router
}

func New() *Server {
	s := &Server{
		tracks: map[string]*model.TrackRecord{},
		clicks: map[string][]model.ClickEvent{},
		now:    time.Now,
		fail:   map[string]int{},
		delay:  map[string]time.Duration{},
		calls:  map[string]int{},
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet).Name("stats")
	api.HandleFunc("/tracks", s.handleTracks).Methods(http.MethodGet).Name("tracks")
	api.HandleFunc("/track", s.handleCreate).Methods(http.MethodPost).Name("create")
	api.HandleFunc("/track/{id}", s.handleGet).Methods(http.MethodGet).Name("get")
	api.HandleFunc("/track/{id}", s.handleUpdate).Methods(http.MethodPut).Name("update")
	api.HandleFunc("/track/{id}", s.handleDelete).Methods(http.MethodDelete).Name("delete")
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost).Name("generate")
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet).Name("export")
	r.HandleFunc("/track", s.handlePixel).Methods(http.MethodGet).Name("pixel")
	r.Use(s.middleware)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// SetClock replaces the time source used for timestamps.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetEventLog makes every recorded open append one line to w.
func (s *Server) SetEventLog(w io.Writer) {
	s.mu.Lock()
	s.events = w
	s.mu.Unlock()
}

// FailNext makes the next n requests to the named route answer status.
// Route names: stats, tracks, create, get, update, delete, generate, export.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[route+"#"+strconv.Itoa(status)] = n
}

// Delay holds responses on the named route for d.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[route] = d
}

// Calls reports how many requests reached the named route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Put inserts or replaces a record.
func (s *Server) Put(r model.TrackRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.tracks[r.TrackID] = &cp
}

// Get returns a copy of a stored record.
func (s *Server) Get(id string) (model.TrackRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return model.TrackRecord{}, false
	}
	return *t, true
}

// Open records an email open for id, creating the record on first sight.
func (s *Server) Open(id string, enrich func(*model.TrackRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Format(time.RFC3339)
	t, ok := s.tracks[id]
	if !ok {
		t = &model.TrackRecord{TrackID: id, FirstSeen: ts}
		s.tracks[id] = t
	}
	t.OpenCount++
	t.LastSeen = ts
	if enrich != nil {
		enrich(t)
	}
	if s.events != nil {
		fmt.Fprintf(s.events, "%s open %s\n", ts, id)
	}
}

// Click records a redirect through id to target.
func (s *Server) Click(id, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Format(time.RFC3339)
	t, ok := s.tracks[id]
	if !ok {
		t = &model.TrackRecord{TrackID: id, FirstSeen: ts}
		s.tracks[id] = t
	}
	t.ClickCount++
	t.LastSeen = ts
	s.clicks[id] = append([]model.ClickEvent{{Timestamp: ts, TargetURL: target, Country: t.Country, City: t.City,
		Browser: t.Browser, OS: t.OS, DeviceType: t.DeviceType}}, s.clicks[id]...)
	if s.events != nil {
		fmt.Fprintf(s.events, "%s click %s %s\n", ts, id, target)
	}
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if rt := mux.CurrentRoute(r); rt != nil {
			name = rt.GetName()
		}
		s.mu.Lock()
		s.calls[name]++
		d := s.delay[name]
		status := 0
		for k, n := range s.fail {
			if n > 0 && strings.HasPrefix(k, name+"#") {
				status, _ = strconv.Atoi(strings.TrimPrefix(k, name+"#"))
				s.fail[k] = n - 1
				break
			}
		}
		s.mu.Unlock()
		if d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sorted() []model.TrackRecord {
	out := make([]model.TrackRecord, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastSeen != out[j].LastSeen {
			return out[i].LastSeen > out[j].LastSeen
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	all := s.sorted()
	s.mu.Unlock()
	opens, clicks := 0, 0
	for _, t := range all {
		opens += t.OpenCount
		clicks += t.ClickCount
	}
	avg := 0.0
	if len(all) > 0 {
		avg = float64(int(float64(opens)/float64(len(all))*100+0.5)) / 100
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"total_unique": len(all),
			"total_opens":  opens,
			"total_clicks": clicks,
			"avg_opens":    avg,
		},
		"geographic": breakdown(all, "country", func(t model.TrackRecord) string { return t.Country }, 10),
		"devices":    breakdown(all, "device_type", func(t model.TrackRecord) string { return t.DeviceType }, 0),
		"browsers":   breakdown(all, "browser", func(t model.TrackRecord) string { return t.Browser }, 0),
	})
}

func breakdown(all []model.TrackRecord, key string, val func(model.TrackRecord) string, limit int) []map[string]any {
	counts := map[string]int{}
	order := []string{}
	for _, t := range all {
		v := val(t)
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]map[string]any, 0, len(order))
	for _, v := range order {
		var dim any = v
		if v == "" {
			dim = nil
		}
		out = append(out, map[string]any{key: dim, "count": counts[v]})
	}
	return out
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	s.mu.Lock()
	all := s.sorted()
	s.mu.Unlock()
	out := make([]model.TrackRecord, 0, len(all))
	for _, t := range all {
		if q != "" && !matches(t, q) {
			continue
		}
		out = append(out, t)
		if q == "" && len(out) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out, "total": len(all)})
}

func matches(t model.TrackRecord, q string) bool {
	for _, f := range []string{t.TrackID, t.Label, t.Recipient, t.Subject, t.City, t.Country} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	t, ok := s.tracks[id]
	var rec model.TrackRecord
	var clicks []model.ClickEvent
	if ok {
		rec = *t
		clicks = append([]model.ClickEvent{}, s.clicks[id]...)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"track": rec, "clicks": clicks})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackID string `json:"track_id"`
		Label   string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	id := sanitizeID(body.TrackID)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "track_id required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tracks[id]; dup {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Track ID already exists"})
		return
	}
	ts := s.now().UTC().Format(time.RFC3339)
	s.tracks[id] = &model.TrackRecord{TrackID: id, Label: body.Label, FirstSeen: ts, LastSeen: ts}
	writeJSON(w, http.StatusCreated, map[string]string{"track_id": id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Label *string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Label == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	t.Label = *body.Label
	writeJSON(w, http.StatusOK, map[string]string{"track_id": id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	delete(s.tracks, id)
	delete(s.clicks, id)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackID string `json:"track_id"`
		URL     string `json:"url"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL required"})
		return
	}
	id := sanitizeID(body.TrackID)
	if id == "" {
		id = "unknown"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"pixel_url": "/track?id=" + id,
		"click_url": "/click/" + id + "/" + url.QueryEscape(body.URL),
		"track_id":  id,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := s.sorted()
	s.mu.Unlock()
	// Like the real service, an empty export is JSON whatever the format.
	if r.URL.Query().Get("format") != "csv" || len(all) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"tracks": all})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=export.csv")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"track_id", "label", "open_count", "click_count", "country", "last_seen"})
	for _, t := range all {
		_ = cw.Write([]string{t.TrackID, t.Label, strconv.Itoa(t.OpenCount), strconv.Itoa(t.ClickCount), t.Country, t.LastSeen})
	}
	cw.Flush()
}

func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	id := sanitizeID(r.URL.Query().Get("id"))
	if id == "" {
		id = "unknown"
	}
	s.Open(id, nil)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusNoContent)
}

// sanitizeID keeps letters, digits and -_@.+ and caps the length at 100.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r == '-' || r == '_' || r == '@' || r == '.' || r == '+' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
