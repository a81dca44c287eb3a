package main

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackdash/internal/apitest"
	"trackdash/internal/model"
)

type place struct {
	city, region, country, tz string
	lat, lon                  float64
}

var (
	places = []place{
		{"Austin", "Texas", "US", "America/Chicago", 30.27, -97.74},
		{"Berlin", "Berlin", "DE", "Europe/Berlin", 52.52, 13.40},
		{"São Paulo", "São Paulo", "BR", "America/Sao_Paulo", -23.55, -46.63},
		{"Tokyo", "Tokyo", "JP", "Asia/Tokyo", 35.68, 139.69},
		{"London", "England", "GB", "Europe/London", 51.51, -0.13},
		{"Toronto", "Ontario", "CA", "America/Toronto", 43.65, -79.38},
	}
	agents = []struct {
		browser, version, os, osVersion, device, brand string
		mobile                                         bool
	}{
		{"Chrome", "124.0", "Windows", "10", "Desktop", "", false},
		{"Safari", "17.4", "iOS", "17.4", "Mobile", "Apple", true},
		{"Firefox", "125.0", "Linux", "", "Desktop", "", false},
		{"Chrome Mobile", "124.0", "Android", "14", "Mobile", "Samsung", true},
		{"Outlook", "16.0", "Windows", "11", "Desktop", "", false},
	}
	subjects = []string{"Spring launch", "Invoice #2211", "Your weekly digest", "Welcome aboard", "Renewal reminder"}
	targets  = []string{"https://example.com/pricing", "https://example.com/blog/launch", "https://example.com/signup"}
)

type generator struct {
	srv *apitest.Server
	rng *rand.Rand
	ids []string
}

func newGenerator(srv *apitest.Server, rng *rand.Rand) *generator {
	return &generator{srv: srv, rng: rng}
}

// newID mirrors the client-side id shape: "client-" plus 8 lowercase
// hex characters.
func newID() string {
	return "client-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (g *generator) seed(n int) {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		id := newID()
		g.ids = append(g.ids, id)
		sent := now.Add(-time.Duration(g.rng.Intn(72*60)) * time.Minute)
		r := model.TrackRecord{
			TrackID:   id,
			Label:     subjects[g.rng.Intn(len(subjects))],
			Subject:   subjects[g.rng.Intn(len(subjects))],
			Recipient: "user" + id[len(id)-4:] + "@example.org",
			Sender:    "news@example.com",
			SentAt:    sent.Format(time.RFC3339),
		}
		if g.rng.Intn(4) > 0 {
			seen := sent.Add(time.Duration(g.rng.Intn(int(now.Sub(sent)/time.Minute)+1)) * time.Minute)
			r.FirstSeen = seen.Format(time.RFC3339)
			r.LastSeen = r.FirstSeen
			r.OpenCount = 1 + g.rng.Intn(6)
			g.enrich(&r)
			if g.rng.Intn(3) == 0 {
				r.ClickCount = 1 + g.rng.Intn(3)
			}
		}
		g.srv.Put(r)
	}
}

func (g *generator) enrich(r *model.TrackRecord) {
	p := places[g.rng.Intn(len(places))]
	a := agents[g.rng.Intn(len(agents))]
	lat, lon := p.lat, p.lon
	r.City, r.Region, r.Country, r.Timezone = p.city, p.region, p.country, p.tz
	r.Latitude, r.Longitude = &lat, &lon
	r.IPAddress = "203.0.113." + strconv.Itoa(1+g.rng.Intn(254))
	r.ISP = "Example Networks"
	r.Browser, r.BrowserVersion, r.OS, r.OSVersion = a.browser, a.version, a.os, a.osVersion
	r.DeviceType, r.DeviceBrand, r.IsMobile = a.device, a.brand, model.Flag(a.mobile)
	r.UserAgent = a.browser + "/" + a.version + " (" + a.os + ")"
}

// hit records one synthetic open or click on a random seeded id.
func (g *generator) hit(clickRatio float64) {
	if len(g.ids) == 0 {
		return
	}
	id := g.ids[g.rng.Intn(len(g.ids))]
	if g.rng.Float64() < clickRatio {
		g.srv.Click(id, targets[g.rng.Intn(len(targets))])
		return
	}
	g.srv.Open(id, func(r *model.TrackRecord) {
		if r.Country == "" {
			g.enrich(r)
		}
	})
}

func (g *generator) run(ctx context.Context, rate, clickRatio float64) {
	t := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.hit(clickRatio)
		}
	}
}
