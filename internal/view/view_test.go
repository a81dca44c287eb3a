package view

import (
	"strings"
	"testing"
	"time"

	"trackdash/internal/model"
)

func TestBuildChartBounds(t *testing.T) {
	cases := [][]model.RankedCount{
		{{Value: "US", Count: 10}, {Value: "FR", Count: 5}, {Value: "DE", Count: 1}},
		{{Value: "a", Count: 3}, {Value: "b", Count: 7}},
		{{Value: "", Count: 1}},
		{{Value: "a", Count: 9}, {Value: "b", Count: 8}, {Value: "c", Count: 7}, {Value: "d", Count: 6},
			{Value: "e", Count: 5}, {Value: "f", Count: 100}},
	}
	for i, in := range cases {
		rows := BuildChart(in, TopN)
		if len(rows) == 0 || len(rows) > TopN {
			t.Fatalf("case %d: %d rows", i, len(rows))
		}
		maxc := 0
		for _, r := range rows {
			if r.Count > maxc {
				maxc = r.Count
			}
		}
		for _, r := range rows {
			if r.Width < 0 || r.Width > 100 {
				t.Fatalf("case %d: width %v out of range", i, r.Width)
			}
			if r.Count == maxc && r.Width != 100 {
				t.Fatalf("case %d: max entry width %v", i, r.Width)
			}
		}
	}
}

func TestBuildChartTruncatesInServerOrder(t *testing.T) {
	in := []model.RankedCount{{Value: "a", Count: 1}, {Value: "b", Count: 9}, {Value: "c", Count: 4},
		{Value: "d", Count: 4}, {Value: "e", Count: 2}, {Value: "f", Count: 50}}
	rows := BuildChart(in, TopN)
	got := []string{}
	for _, r := range rows {
		got = append(got, r.Label)
	}
	if strings.Join(got, ",") != "a,b,c,d,e" {
		t.Fatalf("order/truncation: %v", got)
	}
	if rows[1].Width != 100 {
		t.Fatalf("b is the max among shown entries: %v", rows[1].Width)
	}
}

func TestBuildChartEdgeCases(t *testing.T) {
	if BuildChart(nil, TopN) != nil {
		t.Fatalf("empty input should produce no rows")
	}
	rows := BuildChart([]model.RankedCount{{Value: "x", Count: 0}, {Value: "y", Count: -2}}, TopN)
	for _, r := range rows {
		if r.Width != 0 {
			t.Fatalf("all-zero input should render zero width, got %v", r.Width)
		}
	}
	if rows[0].Label != "x" || BuildChart([]model.RankedCount{{Count: 1}}, TopN)[0].Label != "-" {
		t.Fatalf("labels: %+v", rows)
	}
	if (ChartRow{Width: 50}).Cells(20) != 10 {
		t.Fatalf("cells scaling")
	}
}

func TestBuildRows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := BuildRows([]model.TrackRecord{
		{TrackID: "client-1", Label: "<script>x</script>", City: "Paris", Country: "FR", OS: "iOS",
			DeviceType: "Mobile", OpenCount: 3, ClickCount: 1, LastSeen: "2025-06-01T09:00:00Z"},
		{TrackID: "client-2"},
	}, now)
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}
	r := rows[0]
	if r.Title != "<script>x</script>" {
		t.Fatalf("label must stay literal: %q", r.Title)
	}
	if r.Location != "Paris, FR" || r.Device != "Mobile • iOS" || r.Seen != "3h" || r.Opens != "3" {
		t.Fatalf("row 0: %+v", r)
	}
	e := rows[1]
	if e.Title != UnknownClient || e.Location != "Unknown" || e.Device != "Desktop • -" || e.Seen != "-" || e.Clicks != "0" {
		t.Fatalf("row 1 placeholders: %+v", e)
	}
}

func TestBuildDetail(t *testing.T) {
	lat, lon := 40.7, -74.0
	r := model.TrackRecord{TrackID: "client-x", Label: "Q3 \x1b[2Jlaunch", Latitude: &lat, Longitude: &lon,
		Org: "ACME", Browser: "Firefox", UserAgent: "Mozilla/5.0\n<b>"}
	d := BuildDetail(r, []model.ClickEvent{{Timestamp: "2025-01-01T00:00:00Z", TargetURL: "https://example.com", Country: "US"}})
	if len(d.Sections) != 5 || d.Sections[4].Title != "Clicks" {
		t.Fatalf("sections: %+v", d.Sections)
	}
	if d.MapURL != "https://www.google.com/maps/search/?api=1&query=40.7,-74" {
		t.Fatalf("map url: %q", d.MapURL)
	}
	find := func(label string) string {
		for _, s := range d.Sections {
			for _, f := range s.Fields {
				if f.Label == label {
					return f.Value
				}
			}
		}
		return "<missing>"
	}
	if find("Label") != "Q3 launch" {
		t.Fatalf("label not escaped: %q", find("Label"))
	}
	if find("ISP / Org") != "ACME" || find("Browser") != "Firefox" || find("Recipient") != "-" {
		t.Fatalf("fields: isp=%q browser=%q recipient=%q", find("ISP / Org"), find("Browser"), find("Recipient"))
	}
	if find("User Agent") != "Mozilla/5.0 <b>" {
		t.Fatalf("user agent: %q", find("User Agent"))
	}
	if BuildDetail(model.TrackRecord{TrackID: "a"}, nil).MapURL != "" {
		t.Fatalf("no coordinates, no map link")
	}
	zero := 0.0
	if MapURL(model.TrackRecord{TrackID: "local", City: "Local", Latitude: &zero, Longitude: &zero}) != "" {
		t.Fatalf("local rows at 0,0 get no map link")
	}
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(model.SummaryStats{TotalUnique: 4, TotalOpens: 10, AvgOpens: 2.5,
		Geographic: []model.RankedCount{{Value: "US", Count: 3}}})
	if s.Unique != "4" || s.Opens != "10" || s.Avg != "2.5" || len(s.Countries) != 1 || s.Devices != nil {
		t.Fatalf("summary: %+v", s)
	}
}
