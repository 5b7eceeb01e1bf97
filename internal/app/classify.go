package app

import (
	"context"
	"fmt"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/service"
)

// Classify 对单个价格组合打分并打印结果。
// 分位规则下会与当前快照一起排名。
func (a *App) Classify(ctx context.Context, in analysis.ClassifierInput) error {
	rules := a.Config.Ruleset()

	if rules.Strategy != analysis.StrategyQuantile {
		c := analysis.Classify(in, rules)
		fmt.Fprintf(a.Out, "Tier: %s (good deal: %t)\n", c.Tier, rules.IsGood(c.Tier))
		fmt.Fprintf(a.Out, "Points: price %d + discount %d + quality %d = %d\n", c.Price, c.Discount, c.Quality, c.Total)
		return nil
	}

	batch := []analysis.ClassifierInput{}
	if path := a.Config.Snapshot.Path; path != "" {
		rows, err := a.newSource(path).Fetch(ctx)
		if err != nil {
			a.Logger.Warn().Err(err).Str("path", path).Msg("快照不可用，单独排名")
		}
		for _, row := range rows {
			batch = append(batch, service.RowInput(row))
		}
	}
	batch = append(batch, in)

	c := analysis.ClassifyBatch(batch, rules)[len(batch)-1]
	fmt.Fprintf(a.Out, "Tier: %s (good deal: %t)\n", c.Tier, rules.IsGood(c.Tier))
	fmt.Fprintf(a.Out, "Quantiles: review %.2f (score %.2f) discount %.2f among %d products\n",
		c.ReviewQuantile, c.ReviewScore, c.DiscountQuantile, len(batch))
	return nil
}
