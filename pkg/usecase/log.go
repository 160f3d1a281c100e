package usecase

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Limits of a log listing. DefaultLogLimit applies when no limit is given,
// FallbackLogLimit when a given one is zero or not a number.
const (
	DefaultLogLimit  = 30
	FallbackLogLimit = 20
	MaxLogLimit      = 50
)

// ParseLimit reads a limit query value for Logs. An empty value keeps the
// default, fractions are truncated.
func ParseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f == 0 {
		return FallbackLogLimit
	}
	switch {
	case f < 1:
		return -1
	case f > MaxLogLimit:
		return MaxLogLimit
	}
	return int(f)
}

// clampLimit maps an unset limit to the default and bounds the rest to
// [1, MaxLogLimit].
func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLogLimit
	case limit < 1:
		return 1
	case limit > MaxLogLimit:
		return MaxLogLimit
	}
	return limit
}

// Logs returns the newest entries of the log, oldest first.
func (u *UseCases) Logs(ctx context.Context, limit int) ([]logentry.Entry, error) {
	limit = clampLimit(limit)

	entries, err := u.store.Range(ctx, u.logKey, -int64(limit), -1)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read log", goerr.V("limit", limit))
	}
	return entries, nil
}

// Export returns the whole log.
func (u *UseCases) Export(ctx context.Context) ([]logentry.Entry, error) {
	entries, err := u.store.Range(ctx, u.logKey, 0, -1)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read log")
	}

	size := 0
	for _, e := range entries {
		size += len(e.Content)
	}
	logging.From(ctx).Info("log exported",
		"entries", len(entries),
		"content_size", humanize.Bytes(uint64(size)),
	)
	return entries, nil
}

// Reset deletes the log. The maintenance lock is left alone.
func (u *UseCases) Reset(ctx context.Context) error {
	if err := u.store.DeleteAll(ctx, u.logKey); err != nil {
		return goerr.Wrap(err, "failed to delete log")
	}
	logging.From(ctx).Info("log cleared", "log_key", u.logKey)
	return nil
}

// Seed appends every foundational marker of the persona that the log does
// not hold yet and returns how many were added.
func (u *UseCases) Seed(ctx context.Context) (int, error) {
	entries, err := u.store.Range(ctx, u.logKey, 0, -1)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read log")
	}

	present := make(map[string]struct{})
	for _, e := range entries {
		if e.IsFoundational() {
			present[e.Content] = struct{}{}
		}
	}

	var seeds []logentry.Entry
	for _, m := range u.persona.Foundational {
		if _, ok := present[m.Content]; ok {
			continue
		}
		present[m.Content] = struct{}{}
		seeds = append(seeds, logentry.NewFoundational(ctx, m.Content, m.TS))
	}

	if err := u.store.Append(ctx, u.logKey, seeds...); err != nil {
		return 0, goerr.Wrap(err, "failed to append foundational markers")
	}

	logging.From(ctx).Info("log seeded", "added", len(seeds), "markers", len(u.persona.Foundational))
	return len(seeds), nil
}
