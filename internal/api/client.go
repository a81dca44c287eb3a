// Package api is the HTTP/JSON client for the tracking service's analytics
// API. It classifies every failure into NetworkError, ValidationError or
// NotFoundError and never retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trackdash/internal/model"
	"trackdash/internal/util/logx"
	"trackdash/internal/version"
)

const DefaultTimeout = 10 * time.Second

type Options struct {
	APIKey  string
	Timeout time.Duration
	// MaxRPS paces outgoing requests; zero disables pacing.
	MaxRPS     float64
	HTTPClient *http.Client
}

type Client struct {
	base    *url.URL
	hc      *http.Client
	apiKey  string
	limiter *rate.Limiter
}

func New(baseURL string, opt Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api url %q: missing host", baseURL)
	}
	u.RawQuery, u.Fragment = "", ""
	hc := opt.HTTPClient
	if hc == nil {
		t := opt.Timeout
		if t <= 0 {
			t = DefaultTimeout
		}
		hc = &http.Client{Timeout: t}
	}
	c := &Client{base: u, hc: hc, apiKey: opt.APIKey}
	if opt.MaxRPS > 0 {
		burst := int(opt.MaxRPS * 2)
		if burst < 2 {
			burst = 2
		}
		c.limiter = rate.NewLimiter(rate.Limit(opt.MaxRPS), burst)
	}
	return c, nil
}

// Base returns a copy of the API base URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

type statsResponse struct {
	Summary struct {
		TotalUnique int     `json:"total_unique"`
		TotalOpens  int     `json:"total_opens"`
		TotalClicks int     `json:"total_clicks"`
		AvgOpens    float64 `json:"avg_opens"`
	} `json:"summary"`
	Geographic []model.RankedCount `json:"geographic"`
	Devices    []model.RankedCount `json:"devices"`
	Browsers   []model.RankedCount `json:"browsers"`
}

// Stats fetches GET /api/stats.
func (c *Client) Stats(ctx context.Context) (model.SummaryStats, error) {
	var out statsResponse
	if err := c.do(ctx, "stats", http.MethodGet, []string{"api", "stats"}, nil, nil, &out); err != nil {
		return model.SummaryStats{}, err
	}
	return model.SummaryStats{
		TotalUnique: out.Summary.TotalUnique,
		TotalOpens:  out.Summary.TotalOpens,
		TotalClicks: out.Summary.TotalClicks,
		AvgOpens:    out.Summary.AvgOpens,
		Geographic:  out.Geographic,
		Devices:     out.Devices,
		Browsers:    out.Browsers,
	}, nil
}

// TracksQuery selects either a text search or a bounded default page.
type TracksQuery struct {
	Q     string
	Limit int
}

func (q TracksQuery) values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Q); s != "" {
		v.Set("q", s)
		return v
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Tracks fetches GET /api/tracks.
func (c *Client) Tracks(ctx context.Context, q TracksQuery) ([]model.TrackRecord, error) {
	var out struct {
		Tracks []model.TrackRecord `json:"tracks"`
	}
	if err := c.do(ctx, "list tracks", http.MethodGet, []string{"api", "tracks"}, q.values(), nil, &out); err != nil {
		return nil, err
	}
	if out.Tracks == nil {
		out.Tracks = []model.TrackRecord{}
	}
	return out.Tracks, nil
}

// Track fetches GET /api/track/{id} with its click history.
func (c *Client) Track(ctx context.Context, id string) (model.TrackRecord, []model.ClickEvent, error) {
	var out struct {
		Track  model.TrackRecord  `json:"track"`
		Clicks []model.ClickEvent `json:"clicks"`
	}
	err := c.do(ctx, "get track", http.MethodGet, []string{"api", "track", id}, nil, nil, &out)
	if err != nil {
		return model.TrackRecord{}, nil, withID(err, id)
	}
	return out.Track, out.Clicks, nil
}

type mutationResponse struct {
	TrackID string `json:"track_id"`
	Error   string `json:"error"`
}

// CreateTrack registers id with an optional label and returns the id the
// server assigned.
func (c *Client) CreateTrack(ctx context.Context, id, label string) (string, error) {
	const op = "create track"
	var out mutationResponse
	body := map[string]string{"track_id": id, "label": label}
	if err := c.do(ctx, op, http.MethodPost, []string{"api", "track"}, nil, body, &out); err != nil {
		return "", withID(err, id)
	}
	if out.Error != "" {
		return "", &ValidationError{Op: op, Message: out.Error}
	}
	if out.TrackID == "" {
		out.TrackID = id
	}
	return out.TrackID, nil
}

// UpdateLabel sends PUT /api/track/{id}.
func (c *Client) UpdateLabel(ctx context.Context, id, label string) error {
	const op = "update label"
	var out mutationResponse
	if err := c.do(ctx, op, http.MethodPut, []string{"api", "track", id}, nil, map[string]string{"label": label}, &out); err != nil {
		return withID(err, id)
	}
	if out.Error != "" {
		return &ValidationError{Op: op, Message: out.Error}
	}
	return nil
}

// DeleteTrack sends DELETE /api/track/{id}.
func (c *Client) DeleteTrack(ctx context.Context, id string) error {
	return withID(c.do(ctx, "delete track", http.MethodDelete, []string{"api", "track", id}, nil, nil, nil), id)
}

// GeneratedLink is the answer of POST /api/generate with URLs made absolute.
type GeneratedLink struct {
	TrackID  string
	ClickURL string
	PixelURL string
}

// GenerateLink asks the server for a click-tracking redirect to target.
func (c *Client) GenerateLink(ctx context.Context, id, target string) (GeneratedLink, error) {
	const op = "generate link"
	var out struct {
		ClickURL string `json:"click_url"`
		PixelURL string `json:"pixel_url"`
		TrackID  string `json:"track_id"`
		Error    string `json:"error"`
	}
	body := map[string]string{"track_id": id, "url": target}
	if err := c.do(ctx, op, http.MethodPost, []string{"api", "generate"}, nil, body, &out); err != nil {
		return GeneratedLink{}, err
	}
	if out.Error != "" {
		return GeneratedLink{}, &ValidationError{Op: op, Message: out.Error}
	}
	if out.ClickURL == "" {
		return GeneratedLink{}, &NetworkError{Op: op, Err: errors.New("response has no click_url")}
	}
	l := GeneratedLink{TrackID: out.TrackID, ClickURL: c.Resolve(out.ClickURL)}
	if out.PixelURL != "" {
		l.PixelURL = c.Resolve(out.PixelURL)
	}
	if l.TrackID == "" {
		l.TrackID = id
	}
	return l, nil
}

// Export streams GET /api/export?format=... into w.
func (c *Client) Export(ctx context.Context, format string, w io.Writer) (int64, error) {
	const op = "export"
	resp, err := c.send(ctx, op, http.MethodGet, []string{"api", "export"}, url.Values{"format": {format}}, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &NetworkError{Op: op, Err: err}
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, op, method string, segs []string, q url.Values, body, out any) error {
	resp, err := c.send(ctx, op, method, segs, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// send performs one request and maps non-2xx statuses to typed errors. The
// caller owns the body of a successful response.
func (c *Client) send(ctx context.Context, op, method string, segs []string, q url.Values, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}
	esc := make([]string, len(segs))
	for i, s := range segs {
		esc[i] = url.PathEscape(s)
	}
	u := c.base.JoinPath(esc...)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rid := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", rid)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		logx.L().Debug().Str("op", op).Str("request_id", rid).Err(err).Msg("api request failed")
		return nil, &NetworkError{Op: op, Err: err}
	}
	logx.L().Debug().Str("op", op).Str("method", method).Str("path", u.Path).Str("request_id", rid).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("api request")
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg := errorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Op: op}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ValidationError{Op: op, Message: msg}
	default:
		return nil, &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
}

func errorMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	if s := strings.TrimSpace(string(b)); s != "" && len(s) < 200 {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

func withID(err error, id string) error {
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.ID == "" {
		nf.ID = id
	}
	return err
}
