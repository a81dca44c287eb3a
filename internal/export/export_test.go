package export

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trackdash/internal/model"
)

func TestToCSV(t *testing.T) {
	lat, lon := 48.85, 2.35
	recs := []model.TrackRecord{
		{TrackID: "a", Label: "x,y", OpenCount: 2, Country: "FR", Latitude: &lat, Longitude: &lon},
		{TrackID: "b"},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := ToCSV(path, recs); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: %q", lines)
	}
	if !strings.HasPrefix(lines[0], strings.Join(Columns, ",")+",") || !strings.Contains(lines[0], "latitude") {
		t.Fatalf("header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `a,"x,y",2,0,FR,,`) || !strings.Contains(lines[1], "48.85") {
		t.Fatalf("row: %s", lines[1])
	}
	if err := ToCSV(path, nil); err == nil {
		t.Fatalf("empty export should fail")
	}
}

func TestToNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	if err := ToNDJSON(path, []model.TrackRecord{{TrackID: "a"}, {TrackID: "b", Label: "<b>"}}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		if !strings.HasPrefix(sc.Text(), `{"track_id":`) {
			t.Fatalf("line %d: %s", n, sc.Text())
		}
	}
	if n != 2 {
		t.Fatalf("lines: %d", n)
	}
}

type fakeDownloader struct {
	body string
	err  error
}

func (f fakeDownloader) Export(_ context.Context, format string, w io.Writer) (int64, error) {
	n, _ := io.WriteString(w, f.body)
	return int64(n), f.err
}

func TestDownload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	path, n, err := Download(context.Background(), fakeDownloader{body: "track_id\na\n"}, "csv", dir, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "tracks-20250304-050607.csv" || n != 11 {
		t.Fatalf("path=%s n=%d", path, n)
	}
	if b, _ := os.ReadFile(path); string(b) != "track_id\na\n" {
		t.Fatalf("content: %q", b)
	}

	_, _, err = Download(context.Background(), fakeDownloader{body: "partial", err: errors.New("reset")}, "csv", dir, now.Add(time.Second))
	if err == nil {
		t.Fatalf("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("failed download must not leave files: %v", entries)
	}
}

func TestDownloadJSONFallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	path, n, err := Download(context.Background(), fakeDownloader{body: `{"tracks":[]}`}, "csv", dir, now)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	want := strings.Join(Columns, ",") + "\n"
	if string(b) != want || n != int64(len(want)) {
		t.Fatalf("empty export: n=%d %q", n, b)
	}

	body := `{"tracks":[{"track_id":"a","label":"promo","open_count":3,"is_mobile":1}]}`
	path, _, err = Download(context.Background(), fakeDownloader{body: body}, "csv", dir, now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "a,promo,3,") {
		t.Fatalf("rows: %q", lines)
	}

	if _, _, err := Download(context.Background(), fakeDownloader{body: `{"tracks":`}, "csv", dir, now.Add(2*time.Second)); err == nil {
		t.Fatalf("truncated json must fail")
	}
	if _, _, err := Download(context.Background(), fakeDownloader{body: `{"tracks":[]}`}, "json", dir, now.Add(3*time.Second)); err != nil {
		t.Fatalf("json format is saved as is: %v", err)
	}
}
