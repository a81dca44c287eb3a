// Package mutate issues create, label, delete and link-generation commands
// against the API and models the confirmation modal around each of them.
package mutate

import (
	"context"
	"fmt"
	"strings"

	"trackdash/internal/api"
	"trackdash/internal/util/logx"
)

// Backend is the write side of the API.
type Backend interface {
	CreateTrack(ctx context.Context, id, label string) (string, error)
	UpdateLabel(ctx context.Context, id, label string) error
	DeleteTrack(ctx context.Context, id string) error
	GenerateLink(ctx context.Context, id, target string) (api.GeneratedLink, error)
}

type Gateway struct {
	be Backend
}

func NewGateway(be Backend) *Gateway { return &Gateway{be: be} }

// Create registers id and returns the id the server stored.
func (g *Gateway) Create(ctx context.Context, id, label string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &api.ValidationError{Op: "create track", Message: "track id is required"}
	}
	got, err := g.be.CreateTrack(ctx, id, strings.TrimSpace(label))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", id, err)
	}
	logx.Infof("mutate: created %s", got)
	return got, nil
}

func (g *Gateway) UpdateLabel(ctx context.Context, id, label string) error {
	if err := g.be.UpdateLabel(ctx, id, strings.TrimSpace(label)); err != nil {
		return fmt.Errorf("label %s: %w", id, err)
	}
	logx.Infof("mutate: relabelled %s", id)
	return nil
}

// Delete removes id. A track that is already gone counts as deleted.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	err := g.be.DeleteTrack(ctx, id)
	if api.IsNotFound(err) {
		logx.Infof("mutate: %s already absent, treating delete as done", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	logx.Infof("mutate: deleted %s", id)
	return nil
}

// GenerateLink returns an absolute click-tracking URL that redirects to target.
func (g *Gateway) GenerateLink(ctx context.Context, id, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", &api.ValidationError{Op: "generate link", Message: "target URL is required"}
	}
	l, err := g.be.GenerateLink(ctx, strings.TrimSpace(id), target)
	if err != nil {
		return "", fmt.Errorf("generate link for %s: %w", id, err)
	}
	return l.ClickURL, nil
}
