package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/service"
	"dealwatcher/internal/storage"
)

// loadHistory returns observations ordered by time, either from the
// database or from a glob of CSV snapshots.
func (a *App) loadHistory(ctx context.Context, opts HistoryOptions) ([]analysis.Observation, error) {
	filter := opts.filter(a.Config.App.Country, time.Now().UTC())

	var (
		obs []analysis.Observation
		err error
	)
	if opts.Snapshots != "" {
		obs, err = a.readSnapshots(ctx, opts.Snapshots)
		if err != nil {
			return nil, err
		}
		filter.Country = ""
		obs = filterObservations(obs, filter)
	} else {
		store, closeStore, openErr := a.openStore(ctx)
		if openErr != nil {
			return nil, openErr
		}
		if store == nil {
			return nil, errors.New("database not configured; pass --snapshots to analyse CSV files")
		}
		defer closeStore()

		obs, err = store.ListObservations(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	if len(obs) == 0 {
		return nil, ErrNoHistory
	}
	return obs, nil
}

func (a *App) readSnapshots(ctx context.Context, pattern string) ([]analysis.Observation, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob snapshots: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshot matches %s", pattern)
	}
	sort.Strings(files)

	rules := a.Config.Ruleset()
	out := make([]analysis.Observation, 0)
	for _, file := range files {
		rows, err := a.newSource(file).Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", file, err)
		}
		out = append(out, service.Classify(rows, time.Time{}, rules)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	a.Logger.Debug().Int("files", len(files)).Int("observations", len(out)).Msg("snapshots loaded")
	return out, nil
}

// filterObservations applies a storage filter in memory.
func filterObservations(obs []analysis.Observation, f storage.ObservationFilter) []analysis.Observation {
	sizes := toSet(f.Sizes, strings.ToUpper)
	tiers := toSet(f.Tiers, strings.ToUpper)

	out := make([]analysis.Observation, 0, len(obs))
	for _, o := range obs {
		switch {
		case f.ProductID != "" && o.EntityID != f.ProductID:
		case f.Gender != "" && !strings.EqualFold(o.Gender, f.Gender):
		case len(sizes) > 0 && !has(sizes, strings.ToUpper(o.Size)):
		case len(tiers) > 0 && !has(tiers, strings.ToUpper(o.Tier)):
		case !f.Since.IsZero() && o.ObservedAt.Before(f.Since):
		case !f.Until.IsZero() && !o.ObservedAt.Before(f.Until):
		default:
			out = append(out, o)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[norm(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func has(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}
