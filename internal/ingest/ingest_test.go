package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	ev, ok := ParseEvent("2025-05-01T10:00:00Z click client-1 https://example.com")
	if !ok || ev.Kind != "click" || ev.ID != "client-1" || ev.Target != "https://example.com" || ev.When.Hour() != 10 {
		t.Fatalf("event: %+v %v", ev, ok)
	}
	if _, ok := ParseEvent("garbage"); ok {
		t.Fatalf("short line should not parse")
	}
	if _, ok := ParseEvent("yesterday open x"); ok {
		t.Fatalf("bad timestamp should not parse")
	}
}

func TestPacerCollapsesBursts(t *testing.T) {
	p := NewPacer(2 * time.Second)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if fire, _ := p.Hit(t0); !fire {
		t.Fatalf("first hit fires")
	}
	fire, after := p.Hit(t0.Add(100 * time.Millisecond))
	if fire || after <= 0 || after > 2*time.Second {
		t.Fatalf("second hit should be deferred: %v %v", fire, after)
	}
	for i := 0; i < 10; i++ {
		if fire, after := p.Hit(t0.Add(200 * time.Millisecond)); fire || after != 0 {
			t.Fatalf("hits while pending are absorbed")
		}
	}
	if !p.Pending() {
		t.Fatalf("pending")
	}
	p.Flush()
	if fire, _ := p.Hit(t0.Add(10 * time.Second)); !fire {
		t.Fatalf("after a quiet period hits fire again")
	}
}

func TestWatchFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := Watch(ctx, Options{Path: path, Poll: true})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case l := <-lines:
			if l.Text == "old line" {
				t.Fatalf("existing content must be skipped")
			}
			if l.Source != path {
				t.Fatalf("source: %q", l.Source)
			}
			return
		case <-tick.C:
			fmt.Fprintf(f, "2025-01-01T00:00:00Z open client-%d\n", i)
		case <-deadline:
			t.Fatalf("no line received")
		}
	}
}

func TestWatchFromStartReplays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := Watch(ctx, Options{Path: path, Poll: true, FromStart: true})
	select {
	case l := <-lines:
		if l.Text != "old line" {
			t.Fatalf("first line: %q", l.Text)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("existing content was not replayed")
	}
}
