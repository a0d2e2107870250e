// Package resolver turns an episode watch URL into an episode.Record by trying
// independent metadata sources in priority order.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"thirdcoast.systems/vodarchive/internal/episode"
)

var (
	// ErrNoData means a source had nothing for the URL. The chain moves on.
	ErrNoData = errors.New("resolver: no data")

	// ErrFatal means resolution must stop without trying later sources.
	ErrFatal = errors.New("resolver: fatal")

	// ErrUnresolved means every source missed.
	ErrUnresolved = errors.New("resolver: episode unresolvable")
)

// Source is one metadata tier.
type Source interface {
	Name() string
	Resolve(ctx context.Context, watchURL string) (episode.Record, error)
}

// Result is a resolved record plus the tier that produced it.
type Result struct {
	Record episode.Record
	Source string
}

// Chain tries each source in order and returns the first record produced.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{sources: sources, logger: logger}
}

// Resolve returns the first record any source produces. A source error
// wrapping ErrFatal stops the chain and is returned as is; every other error
// is logged and treated as a miss. When every source misses the error is
// ErrUnresolved.
func (c *Chain) Resolve(ctx context.Context, watchURL string) (Result, error) {
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		rec, err := src.Resolve(ctx, watchURL)
		if err == nil {
			c.logger.Info("episode resolved", "source", src.Name(), "url", watchURL, "id", rec.NumericID)
			return Result{Record: rec, Source: src.Name()}, nil
		}
		if errors.Is(err, ErrFatal) {
			return Result{}, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		if errors.Is(err, ErrNoData) {
			c.logger.Info("metadata source empty", "source", src.Name(), "url", watchURL)
		} else {
			c.logger.Warn("metadata source failed", "source", src.Name(), "url", watchURL, "error", err)
		}
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnresolved, watchURL)
}

// SlugFromURL returns the final non-empty path segment of a watch URL.
func SlugFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return strings.TrimSpace(p)
}
