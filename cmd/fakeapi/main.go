// Command fakeapi serves the tracking analytics API from memory and keeps
// generating synthetic opens and clicks, for demos of trackdash.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackdash/internal/apitest"
)

func main() {
	var (
		addr        string
		seed        int
		rate        float64
		clickRatio  float64
		eventsPath  string
		durationStr string
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	flag.IntVar(&seed, "seed", 25, "tracking ids created at start")
	flag.Float64Var(&rate, "rate", 0.5, "synthetic hits per second (0 = none)")
	flag.Float64Var(&clickRatio, "click-ratio", 0.25, "share of hits that are clicks")
	flag.StringVar(&eventsPath, "events-file", "", "append one line per hit to this file")
	flag.StringVar(&durationStr, "duration", "", "optional run duration (e.g. 30s, 2m); empty runs until interrupted")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if durationStr != "" {
		d, err := time.ParseDuration(durationStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid duration: %v\n", err)
			os.Exit(2)
		}
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d)
		defer stop()
	}

	srv := apitest.New()
	if eventsPath != "" {
		f, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "events file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		srv.SetEventLog(f)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	gen := newGenerator(srv, rng)
	gen.seed(seed)

	hs := &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = hs.Shutdown(sctx)
	}()
	if rate > 0 {
		go gen.run(ctx, rate, clickRatio)
	}

	fmt.Fprintf(os.Stderr, "fake tracking API on http://%s with %d ids, %.2f hits/s\n", addr, seed, rate)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
