package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trackdash/internal/ai"
	"trackdash/internal/api"
	"trackdash/internal/config"
	"trackdash/internal/ingest"
	"trackdash/internal/model"
	"trackdash/internal/mutate"
	"trackdash/internal/syncer"
	"trackdash/internal/ui"
	"trackdash/internal/util/logx"
	"trackdash/internal/version"
)

func main() {
	logx.SetLevelFromEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println("trackdash", version.String())
		return
	}
	if cfg.LogFile != "" {
		if err := logx.SetFile(cfg.LogFile); err != nil {
			fmt.Fprintln(os.Stderr, "log file:", err)
			os.Exit(1)
		}
	}

	// Setup cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := api.New(cfg.APIBase, api.Options{APIKey: cfg.APIKey, Timeout: cfg.Timeout, MaxRPS: cfg.MaxRPS})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	engine := syncer.New(client, model.NewStore(), syncer.Options{PageSize: cfg.PageSize, Ordering: cfg.Ordering})

	if cfg.JSON {
		if err := printJSON(ctx, engine); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	engine.Subscribe(syncer.Arrivals(func(ids []string) {
		logx.Infof("new tracks: %s", strings.Join(ids, ", "))
	}))

	deps := ui.Deps{
		Engine:   engine,
		Gateway:  mutate.NewGateway(client),
		Links:    client,
		Exporter: client,
		Details:  client,
	}
	if cfg.AIEnabled() {
		oc := ai.NewOpenAIClient(cfg.OpenAIKey(), cfg.OpenAIBase, cfg.OpenAIModel, time.Duration(cfg.OpenAITimeoutSec)*time.Second)
		cache, err := ai.NewCache(oc, time.Hour)
		if err != nil {
			logx.Warnf("summary cache disabled: %v", err)
			deps.AI = oc
		} else {
			defer cache.Close()
			deps.AI = cache
		}
	}
	if cfg.EventsFile != "" {
		lines, errs := ingest.Watch(ctx, ingest.Options{Path: cfg.EventsFile, Poll: cfg.EventsPoll, FromStart: cfg.EventsFromStart})
		go func() {
			for err := range errs {
				logx.Warnf("events file %s: %v", cfg.EventsFile, err)
			}
		}()
		deps.Activity = lines
	}

	logx.Infof("starting trackdash %s: %s", version.String(), cfg.String())
	if err := ui.Run(ctx, cfg, deps); err != nil {
		logx.Errorf("trackdash exited with error: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printJSON runs a single refresh and writes the snapshot to stdout.
func printJSON(ctx context.Context, engine *syncer.Engine) error {
	if err := engine.Refresh(ctx, ""); err != nil {
		return err
	}
	st := engine.Store()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary model.SummaryStats  `json:"summary"`
		Tracks  []model.TrackRecord `json:"tracks"`
	}{st.Summary(), st.Current()})
}
