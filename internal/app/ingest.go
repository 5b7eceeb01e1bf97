package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"dealwatcher/internal/alerting"
	"dealwatcher/internal/analysis"
	"dealwatcher/internal/digest"
	"dealwatcher/internal/service"
)

// Ingest processes snapshot files once, outside the scheduler. In dry-run
// mode nothing is written or sent; a tier summary is printed instead.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{a.Config.Snapshot.Path}
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("ingest dry-run：不会写入数据库")
		return a.summarise(ctx, paths)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法导入")
	}
	defer closeStore()

	var notifier alerting.Notifier
	blocklist := digest.Blocklist{}
	if opts.Notify {
		notifier = a.newNotifier()
		if notifier == nil {
			return errors.New("alerting 未启用")
		}
		if blocklist, err = a.loadBlocklist(); err != nil {
			return err
		}
	}

	processed := 0
	failed := 0
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		svc := service.New(a.Config, nil, a.newSource(path), store, store, blocklist, notifier, a.Logger)
		bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
		if err := svc.ProcessBucket(ctx, bucket); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("path", path).Msg("导入失败")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("导入完成")
	if failed > 0 {
		return errors.New("部分快照导入失败，请检查日志")
	}
	return nil
}

func (a *App) summarise(ctx context.Context, paths []string) error {
	rules := a.Config.Ruleset()
	obs := make([]analysis.Observation, 0)
	for _, path := range paths {
		rows, err := a.newSource(path).Fetch(ctx)
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", path, err)
		}
		obs = append(obs, service.Classify(rows, time.Now().UTC(), rules)...)
	}
	return WriteTierSummary(a.Out, obs, rules)
}

// WriteTierSummary prints how many observations fall in each tier.
func WriteTierSummary(out io.Writer, obs []analysis.Observation, rules analysis.Ruleset) error {
	counts := make(map[string]int)
	products := make(map[string]struct{})
	for _, o := range obs {
		counts[o.Tier]++
		products[o.EntityID] = struct{}{}
	}

	tiers := make([]string, 0, len(counts))
	for t := range counts {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		if counts[tiers[i]] != counts[tiers[j]] {
			return counts[tiers[i]] > counts[tiers[j]]
		}
		return tiers[i] < tiers[j]
	})

	fmt.Fprintf(out, "Products: %d  Observations: %d\n", len(products), len(obs))
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Tier\tCount\tGood")
	for _, t := range tiers {
		good := ""
		if rules.IsGood(t) {
			good = "yes"
		}
		fmt.Fprintf(writer, "%s\t%d\t%s\n", t, counts[t], good)
	}
	return writer.Flush()
}
