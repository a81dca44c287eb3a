package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TrackRecord is one tracked identifier and its accumulated telemetry, as
// returned by /api/tracks. Every field except TrackID may be absent.
type TrackRecord struct {
	TrackID    string `json:"track_id"`
	Label      string `json:"label,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Sender     string `json:"sender,omitempty"`

	OpenCount  int `json:"open_count"`
	ClickCount int `json:"click_count"`

	FirstSeen string `json:"first_seen,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
	SentAt    string `json:"sent_at,omitempty"`

	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
	Region    string   `json:"region,omitempty"`
	IPAddress string   `json:"ip_address,omitempty"`
	ISP       string   `json:"isp,omitempty"`
	Org       string   `json:"org,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	DeviceType     string `json:"device_type,omitempty"`
	DeviceBrand    string `json:"device_brand,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	IsMobile       Flag   `json:"is_mobile,omitempty"`
	IsBot          Flag   `json:"is_bot,omitempty"`
	Referer        string `json:"referer,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
// The service writes 0 for addresses it cannot place, so 0 counts as absent.
func (t TrackRecord) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil && *t.Latitude != 0 && *t.Longitude != 0
}

// LastSeenTime parses LastSeen; ok is false when absent or unparseable.
func (t TrackRecord) LastSeenTime() (time.Time, bool) { return ParseTime(t.LastSeen) }

// FirstSeenTime parses FirstSeen.
func (t TrackRecord) FirstSeenTime() (time.Time, bool) { return ParseTime(t.FirstSeen) }

// Fields flattens the record for expression evaluation and exports.
func (t TrackRecord) Fields() map[string]any {
	f := map[string]any{
		"track_id":        t.TrackID,
		"label":           t.Label,
		"campaign_id":     t.CampaignID,
		"recipient":       t.Recipient,
		"subject":         t.Subject,
		"sender":          t.Sender,
		"open_count":      float64(t.OpenCount),
		"click_count":     float64(t.ClickCount),
		"first_seen":      t.FirstSeen,
		"last_seen":       t.LastSeen,
		"sent_at":         t.SentAt,
		"city":            t.City,
		"country":         t.Country,
		"region":          t.Region,
		"ip_address":      t.IPAddress,
		"isp":             t.ISP,
		"org":             t.Org,
		"timezone":        t.Timezone,
		"browser":         t.Browser,
		"browser_version": t.BrowserVersion,
		"os":              t.OS,
		"os_version":      t.OSVersion,
		"device_type":     t.DeviceType,
		"device_brand":    t.DeviceBrand,
		"user_agent":      t.UserAgent,
		"is_mobile":       bool(t.IsMobile),
		"is_bot":          bool(t.IsBot),
		"referer":         t.Referer,
	}
	if t.HasCoordinates() {
		f["latitude"] = *t.Latitude
		f["longitude"] = *t.Longitude
	}
	return f
}

// Flag is a boolean the service may send as true/false, 0/1 or null.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1", `"1"`, `"true"`:
		*f = true
		return nil
	case "false", "0", "null", `""`, `"0"`, `"false"`:
		*f = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flag: unexpected %s", b)
	}
	*f = n != 0
	return nil
}

// RankedCount is one entry of a ranked breakdown such as countries or browsers.
type RankedCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// UnmarshalJSON accepts the server's per-dimension shapes ({"country": ..},
// {"device_type": ..}, {"browser": ..}) as well as a generic {"value": ..}.
func (r *RankedCount) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = RankedCount{}
	if c, ok := raw["count"]; ok {
		var n float64
		if err := json.Unmarshal(c, &n); err == nil {
			r.Count = int(n)
		}
	}
	for _, k := range []string{"country", "device_type", "browser", "value"} {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s *string
		if err := json.Unmarshal(v, &s); err == nil && s != nil {
			r.Value = *s
		}
		return nil
	}
	return nil
}

// SummaryStats holds the aggregate counters and ranked breakdowns of /api/stats.
type SummaryStats struct {
	TotalUnique int     `json:"total_unique"`
	TotalOpens  int     `json:"total_opens"`
	TotalClicks int     `json:"total_clicks"`
	AvgOpens    float64 `json:"avg_opens"`

	Geographic []RankedCount `json:"geographic"`
	Devices    []RankedCount `json:"devices"`
	Browsers   []RankedCount `json:"browsers"`
}

// ClickEvent is one recorded redirect for a track id.
type ClickEvent struct {
	Timestamp  string `json:"timestamp"`
	TargetURL  string `json:"target_url"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Referer    string `json:"referer,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses the ISO-8601 variants the API emits. Values without a
// zone are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
