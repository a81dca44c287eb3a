package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trackdash/internal/syncer"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadArgs(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Interval != 30*time.Second || cfg.PageSize != 50 || cfg.Ordering != syncer.LatestIssued || cfg.Theme != ThemeDark {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestFlagsWinOverEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "trackdash.yaml")
	if err := os.WriteFile(file, []byte("page-size: 25\ntheme: light\napi-key: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACKDASH_PAGE_SIZE", "40")
	t.Setenv("TRACKDASH_ORDERING", "last-completed")
	cfg, err := LoadArgs([]string{"--config", file, "--interval", "5s", "--api", "https://t.example.com"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageSize != 40 {
		t.Fatalf("env should beat the file: %d", cfg.PageSize)
	}
	if cfg.Theme != ThemeLight || cfg.APIKey != "from-file" {
		t.Fatalf("file values: %+v", cfg)
	}
	if cfg.Ordering != syncer.LastCompleted || cfg.Interval != 5*time.Second || cfg.APIBase != "https://t.example.com" {
		t.Fatalf("flags/env: %+v", cfg)
	}
	if strings.Contains(cfg.String(), "from-file") {
		t.Fatalf("String leaks the api key: %s", cfg)
	}
}

func TestEventsFileOptions(t *testing.T) {
	cfg, err := LoadArgs([]string{"--events-file", "/var/log/pixel.log"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EventsPoll || cfg.EventsFromStart {
		t.Fatalf("follow from the end with inotify by default: %+v", cfg)
	}
	t.Setenv("TRACKDASH_EVENTS_POLL", "true")
	cfg, err = LoadArgs([]string{"--events-file", "/var/log/pixel.log", "--events-from-start"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.EventsPoll || !cfg.EventsFromStart {
		t.Fatalf("events options: %+v", cfg)
	}
}

func TestValidation(t *testing.T) {
	bad := [][]string{
		{"--api", "localhost:8080"},
		{"--interval", "10ms"},
		{"--page-size", "0"},
		{"--theme", "neon"},
		{"--ordering", "random"},
		{"--max-rps", "-1"},
		{"--config", "/does/not/exist.yaml"},
	}
	for _, args := range bad {
		if _, err := LoadArgs(args, io.Discard); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
	t.Setenv("TRACKDASH_PAGE_SIZE", "lots")
	if _, err := LoadArgs(nil, io.Discard); err == nil {
		t.Fatalf("bad env value should fail")
	}
}
