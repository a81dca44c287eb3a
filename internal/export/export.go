// Package export writes track records to local files.
package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"trackdash/internal/model"
)

// Columns leads every CSV export; the remaining fields follow sorted.
var Columns = []string{"track_id", "label", "open_count", "click_count", "country", "city", "last_seen"}

func ToCSV(path string, records []model.TrackRecord) error {
	if len(records) == 0 {
		return errors.New("no records")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

func WriteCSV(w io.Writer, records []model.TrackRecord) error {
	cw := csv.NewWriter(w)
	cols := columns(records)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, r := range records {
		fields := r.Fields()
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cell(fields[c])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func ToNDJSON(path string, records []model.TrackRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func columns(records []model.TrackRecord) []string {
	lead := map[string]bool{}
	for _, c := range Columns {
		lead[c] = true
	}
	set := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Fields() {
			if !lead[k] {
				set[k] = struct{}{}
			}
		}
	}
	rest := make([]string, 0, len(set))
	for k := range set {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(append([]string{}, Columns...), rest...)
}

// Downloader streams a server-side export, for example api.Client.Export.
type Downloader interface {
	Export(ctx context.Context, format string, w io.Writer) (int64, error)
}

// Download saves the server's export in format under dir as
// tracks-<timestamp>.<format> and returns the path written. A failed
// download leaves no partial file behind.
func Download(ctx context.Context, d Downloader, format, dir string, now time.Time) (string, int64, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, "tracks-"+now.Format("20060102-150405")+"."+format)
	tmp, err := os.CreateTemp(dir, ".tracks-*.part")
	if err != nil {
		return "", 0, err
	}
	n, err := d.Export(ctx, format, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && format == "csv" {
		n, err = jsonToCSV(tmp.Name(), n)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", n, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", n, err
	}
	return path, n, nil
}

// jsonToCSV rewrites a CSV download that came back as JSON, which the
// service sends as {"tracks":[]} when it has no rows. Real CSV is left as is.
func jsonToCSV(path string, n int64) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return n, err
	}
	body := bytes.TrimSpace(b)
	if len(body) == 0 || (body[0] != '{' && body[0] != '[') {
		return n, nil
	}
	var records []model.TrackRecord
	if body[0] == '[' {
		err = json.Unmarshal(body, &records)
	} else {
		var env struct {
			Tracks []model.TrackRecord `json:"tracks"`
		}
		err = json.Unmarshal(body, &env)
		records = env.Tracks
	}
	if err != nil {
		return n, fmt.Errorf("export: expected csv, got undecodable json: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return n, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return n, err
	}
	return int64(buf.Len()), nil
}

// LocalPath names a client-side export of visible rows.
func LocalPath(dir, ext string, now time.Time) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "visible-"+now.Format("20060102-150405")+"."+ext)
}
