package analysis

import (
	"math"
	"sort"
	"time"
)

// DropEvent compares one observation with its predecessor in the same variant.
type DropEvent struct {
	Key        VariantKey
	ObservedAt time.Time
	PrevPrice  float64
	Price      float64
	Dropped    bool
	// DropPct is NaN unless Dropped.
	DropPct   float64
	DayOfWeek int
	Hour      int
}

// DropSurfaces aggregates drop events by the current observation's day and hour.
type DropSurfaces struct {
	Rate       Surface
	AvgDropPct Surface
	Events     []DropEvent
}

// AnalyzeDrops diffs each variant series against its own previous
// observation and aggregates the result.
func AnalyzeDrops(obs []Observation) DropSurfaces {
	events := SequentialDrops(obs)

	var rate cellCounter
	var pctSum [7][24]float64
	var pctCount [7][24]int
	for _, e := range events {
		hit := 0.0
		if e.Dropped {
			hit = 1
			if !math.IsNaN(e.DropPct) {
				pctSum[e.DayOfWeek][e.Hour] += e.DropPct
				pctCount[e.DayOfWeek][e.Hour]++
			}
		}
		rate.add(e.DayOfWeek, e.Hour, hit)
	}

	out := DropSurfaces{Rate: rate.ratio(), Events: events}
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			if pctCount[d][h] > 0 {
				out.AvgDropPct[d][h] = pctSum[d][h] / float64(pctCount[d][h])
			}
		}
	}
	return out
}

// SequentialDrops returns one event per observation that has a predecessor
// in its own variant series. Lookups never cross variant boundaries, and a
// transition with a missing price on either side is skipped. Events are
// bucketed by the UTC day and hour.
func SequentialDrops(obs []Observation) []DropEvent {
	keys, groups := GroupByVariant(obs)

	events := make([]DropEvent, 0, len(obs))
	for _, k := range keys {
		series := groups[k]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].ObservedAt.Before(series[j].ObservedAt)
		})

		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1].PromoPrice, series[i].PromoPrice
			if math.IsNaN(prev) || math.IsNaN(cur) {
				continue
			}
			at := series[i].ObservedAt.UTC()
			e := DropEvent{
				Key:        k,
				ObservedAt: series[i].ObservedAt,
				PrevPrice:  prev,
				Price:      cur,
				DropPct:    math.NaN(),
				DayOfWeek:  int(at.Weekday()),
				Hour:       at.Hour(),
			}
			if cur < prev {
				e.Dropped = true
				if prev > 0 {
					e.DropPct = (prev - cur) / prev * 100
				}
			}
			events = append(events, e)
		}
	}
	return events
}
