package main

import (
	"bytes"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"trackdash/internal/apitest"
	"trackdash/internal/ingest"
)

func TestSeedCreatesDistinctIDs(t *testing.T) {
	srv := apitest.New()
	g := newGenerator(srv, rand.New(rand.NewSource(1)))
	g.seed(20)
	re := regexp.MustCompile(`^client-[0-9a-f]{8}$`)
	seen := map[string]bool{}
	for _, id := range g.ids {
		if !re.MatchString(id) {
			t.Fatalf("id shape %q", id)
		}
		if _, ok := srv.Get(id); !ok {
			t.Fatalf("%s not stored", id)
		}
		seen[id] = true
	}
	if len(seen) != 20 {
		t.Fatalf("duplicates: %d", len(seen))
	}
}

func TestHitsAppendEventLines(t *testing.T) {
	srv := apitest.New()
	var buf bytes.Buffer
	srv.SetEventLog(&buf)
	g := newGenerator(srv, rand.New(rand.NewSource(2)))
	g.seed(3)
	for i := 0; i < 10; i++ {
		g.hit(0.5)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Fatalf("lines: %d\n%s", len(lines), buf.String())
	}
	for _, l := range lines {
		ev, ok := ingest.ParseEvent(l)
		if !ok || (ev.Kind != "open" && ev.Kind != "click") {
			t.Fatalf("unparseable event %q", l)
		}
		if ev.Kind == "click" && ev.Target == "" {
			t.Fatalf("click without target %q", l)
		}
	}
}
