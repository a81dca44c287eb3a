// Package view builds the structured, already-escaped view models the
// terminal UI paints: list rows, ranked bar charts and the detail layout.
// Nothing outside this package formats record fields for display.
package view

import (
	"fmt"
	"math"
	"time"

	"trackdash/internal/format"
	"trackdash/internal/model"
)

const (
	EmptyListText  = "No recent activity"
	EmptyChartText = "No data"
	UnknownClient  = "Unknown Client"
	// TopN is how many ranked entries a chart shows.
	TopN = 5
)

// Row summarizes one record in the event list.
type Row struct {
	ID       string // raw track id, used only for lookups
	Title    string
	IDText   string
	Location string
	Device   string
	Opens    string
	Clicks   string
	Seen     string
}

// BuildRows renders records in the order given.
func BuildRows(records []model.TrackRecord, now time.Time) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			ID:       r.TrackID,
			Title:    format.Or(r.Label, UnknownClient),
			IDText:   format.Escape(r.TrackID),
			Location: format.Location(r.City, r.Country),
			Device:   format.Or(r.DeviceType, "Desktop") + " • " + format.Dash(r.OS),
			Opens:    format.Count(r.OpenCount),
			Clicks:   format.Count(r.ClickCount),
			Seen:     format.SinceISO(r.LastSeen, now),
		})
	}
	return rows
}

// ChartRow is one bar of a ranked chart. Width is relative to the largest
// count, in [0,100].
type ChartRow struct {
	Label string
	Count int
	Width float64
}

// Cells scales the bar width to a number of terminal cells.
func (c ChartRow) Cells(total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(c.Width / 100 * float64(total)))
}

// BuildChart takes the first n entries in server order and sizes each bar
// against the largest count among them. An empty result means the caller
// should render EmptyChartText.
func BuildChart(items []model.RankedCount, n int) []ChartRow {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) > n {
		items = items[:n]
	}
	maxc := 0
	for _, it := range items {
		if it.Count > maxc {
			maxc = it.Count
		}
	}
	out := make([]ChartRow, 0, len(items))
	for _, it := range items {
		c := it.Count
		if c < 0 {
			c = 0
		}
		w := 0.0
		if maxc > 0 {
			w = float64(c) / float64(maxc) * 100
		}
		out = append(out, ChartRow{Label: format.Dash(it.Value), Count: c, Width: w})
	}
	return out
}

// Summary is the header block: counters plus three ranked charts.
type Summary struct {
	Unique    string
	Opens     string
	Clicks    string
	Avg       string
	Countries []ChartRow
	Devices   []ChartRow
	Browsers  []ChartRow
}

func BuildSummary(s model.SummaryStats) Summary {
	return Summary{
		Unique:    format.Count(s.TotalUnique),
		Opens:     format.Count(s.TotalOpens),
		Clicks:    format.Count(s.TotalClicks),
		Avg:       format.Decimal(s.AvgOpens),
		Countries: BuildChart(s.Geographic, TopN),
		Devices:   BuildChart(s.Devices, TopN),
		Browsers:  BuildChart(s.Browsers, TopN),
	}
}

// Field is one labelled value in the detail layout.
type Field struct {
	Label     string
	Value     string
	Mono      bool
	Highlight bool
	Full      bool
}

type Section struct {
	Title  string
	Fields []Field
}

// Detail is the read-only layout of one record.
type Detail struct {
	ID       string
	Title    string
	Sections []Section
	MapURL   string
}

// MapURL links to a map search for the record's coordinates, or "".
func MapURL(r model.TrackRecord) string {
	if !r.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v", *r.Latitude, *r.Longitude)
}

// BuildDetail lays out r in identity, location, device and timeline
// sections, plus a clicks section when history is available.
func BuildDetail(r model.TrackRecord, clicks []model.ClickEvent) Detail {
	isp := r.ISP
	if isp == "" {
		isp = r.Org
	}
	d := Detail{
		ID:     r.TrackID,
		Title:  format.Or(r.Label, UnknownClient),
		MapURL: MapURL(r),
		Sections: []Section{
			{Title: "Identity & Context", Fields: []Field{
				{Label: "Label", Value: format.Dash(r.Label), Highlight: true},
				{Label: "Event ID", Value: format.Dash(r.TrackID), Mono: true},
				{Label: "Recipient", Value: format.Dash(r.Recipient)},
				{Label: "Sender", Value: format.Dash(r.Sender)},
				{Label: "Campaign", Value: format.Dash(r.CampaignID)},
				{Label: "Subject", Value: format.Dash(r.Subject), Full: true},
			}},
			{Title: "Location & Network", Fields: []Field{
				{Label: "IP Address", Value: format.Dash(r.IPAddress), Mono: true},
				{Label: "ISP / Org", Value: format.Dash(isp)},
				{Label: "Location", Value: format.Dash(r.City) + ", " + format.Dash(r.Country)},
				{Label: "Region", Value: format.Dash(r.Region)},
				{Label: "Timezone", Value: format.Dash(r.Timezone)},
				{Label: "Coordinates", Value: format.Coordinates(r.Latitude, r.Longitude), Mono: true},
			}},
			{Title: "Device Fingerprint", Fields: []Field{
				{Label: "Browser", Value: format.Join(" ", r.Browser, r.BrowserVersion)},
				{Label: "Platform", Value: format.Join(" ", r.OS, r.OSVersion)},
				{Label: "Device", Value: format.Join(" ", r.DeviceBrand, r.DeviceType)},
				{Label: "User Agent", Value: format.Dash(r.UserAgent), Full: true, Mono: true},
			}},
			{Title: "Timeline", Fields: []Field{
				{Label: "First Seen", Value: format.Timestamp(r.FirstSeen)},
				{Label: "Last Activity", Value: format.Timestamp(r.LastSeen)},
				{Label: "Sent At", Value: format.Timestamp(r.SentAt)},
				{Label: "Total Opens", Value: format.Count(r.OpenCount), Highlight: true},
				{Label: "Total Clicks", Value: format.Count(r.ClickCount), Highlight: true},
			}},
		},
	}
	if len(clicks) > 0 {
		s := Section{Title: "Clicks"}
		for _, c := range clicks {
			s.Fields = append(s.Fields, Field{
				Label: format.Timestamp(c.Timestamp),
				Value: format.Dash(c.TargetURL) + " (" + format.Location(c.City, c.Country) + ")",
				Full:  true,
			})
		}
		d.Sections = append(d.Sections, s)
	}
	return d
}
