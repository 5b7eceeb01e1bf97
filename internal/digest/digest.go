package digest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealwatcher/internal/analysis"
)

// Criteria selects the observations worth notifying about.
type Criteria struct {
	MinDiscount float64
	// Sizes lists wanted sizes; empty accepts any size.
	Sizes     []string
	GoodOnly  bool
	Rules     analysis.Ruleset
	Blocklist Blocklist
	// Sent holds product ids already included in a recent digest.
	Sent map[string]struct{}
}

// Filter keeps observations that pass the blocklist, size, discount, tier
// and resend checks.
func Filter(obs []analysis.Observation, c Criteria) []analysis.Observation {
	wanted := make(map[string]struct{}, len(c.Sizes))
	for _, s := range c.Sizes {
		wanted[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}

	blockedSizes := make(map[string]map[string]struct{})
	out := make([]analysis.Observation, 0, len(obs))
	for _, o := range obs {
		if _, sent := c.Sent[o.EntityID]; sent {
			continue
		}
		if c.Blocklist.IsBlocked(o.EntityID, o.Color) {
			continue
		}
		if math.IsNaN(o.DiscountPercent) || o.DiscountPercent < c.MinDiscount {
			continue
		}
		if c.GoodOnly && !c.Rules.IsGood(o.Tier) {
			continue
		}

		size := strings.ToUpper(strings.TrimSpace(o.Size))
		blocked, ok := blockedSizes[o.EntityID]
		if !ok {
			blocked = c.Blocklist.BlockedSizes(o.EntityID)
			blockedSizes[o.EntityID] = blocked
		}
		if _, no := blocked[size]; no {
			continue
		}
		if len(wanted) > 0 {
			if _, yes := wanted[size]; !yes {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// Item is one product line of a digest.
type Item struct {
	ProductID  string
	Name       string
	URL        string
	PromoPrice float64
	Discount   float64
	Rating     *float64
	Reviews    *int
	Tier       string
	// Sizes maps colour code to available wanted sizes.
	Sizes map[string][]string
}

// Digest is a rendered-ready set of deals from one snapshot.
type Digest struct {
	FetchedAt time.Time
	Items     []Item
}

// ProductIDs lists the products contained in the digest.
func (d Digest) ProductIDs() []string {
	ids := make([]string, len(d.Items))
	for i, it := range d.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// Build groups observations per product, keeps each product's cheapest
// variant as headline, orders by discount (highest first, then name) and
// caps the result at maxItems.
func Build(obs []analysis.Observation, maxItems int) Digest {
	var d Digest
	byID := make(map[string]*Item)
	order := make([]string, 0)

	for _, o := range obs {
		if o.ObservedAt.After(d.FetchedAt) {
			d.FetchedAt = o.ObservedAt
		}

		it, ok := byID[o.EntityID]
		if !ok {
			it = &Item{ProductID: o.EntityID, PromoPrice: math.Inf(1), Sizes: make(map[string][]string)}
			byID[o.EntityID] = it
			order = append(order, o.EntityID)
		}
		if o.PromoPrice < it.PromoPrice {
			it.Name = o.Name
			it.URL = o.URL
			it.PromoPrice = o.PromoPrice
			it.Discount = o.DiscountPercent
			it.Rating = o.Rating
			it.Reviews = o.ReviewCount
			it.Tier = o.Tier
		}
		if !contains(it.Sizes[o.Color], o.Size) {
			it.Sizes[o.Color] = append(it.Sizes[o.Color], o.Size)
		}
	}

	d.Items = make([]Item, 0, len(order))
	for _, id := range order {
		d.Items = append(d.Items, *byID[id])
	}
	sort.SliceStable(d.Items, func(i, j int) bool {
		if d.Items[i].Discount != d.Items[j].Discount {
			return d.Items[i].Discount > d.Items[j].Discount
		}
		return d.Items[i].Name < d.Items[j].Name
	})
	if maxItems > 0 && len(d.Items) > maxItems {
		d.Items = d.Items[:maxItems]
	}
	return d
}

// Render formats the digest as Telegram Markdown.
func Render(d Digest) string {
	if len(d.Items) == 0 {
		return "ℹ️ No interesting products to report."
	}

	var b strings.Builder
	when := "Unknown Time"
	if !d.FetchedAt.IsZero() {
		when = d.FetchedAt.UTC().Format("02 Jan 2006 • 15:04")
	}
	fmt.Fprintf(&b, "*🛍️ Deal Digest (%s)*\n", when)

	for _, it := range d.Items {
		name := strings.NewReplacer("[", "(", "]", ")").Replace(it.Name)
		if name == "" {
			name = it.ProductID
		}
		if it.URL != "" {
			fmt.Fprintf(&b, "\n🔗 [%s](%s)", name, it.URL)
		} else {
			fmt.Fprintf(&b, "\n🔗 %s", name)
		}

		fmt.Fprintf(&b, "\n💸 *-%d%%* | 🪙 %s", int(it.Discount), decimal.NewFromFloat(it.PromoPrice).StringFixed(2))
		if it.Rating != nil {
			reviews := 0
			if it.Reviews != nil {
				reviews = *it.Reviews
			}
			fmt.Fprintf(&b, " | ⭐ %s (%d reviews)", decimal.NewFromFloat(*it.Rating).StringFixed(1), reviews)
		}
		if sizes := formatSizes(it.Sizes); sizes != "" {
			fmt.Fprintf(&b, "\n🧵 Sizes: `%s`", sizes)
		}
		if it.Tier != "" {
			fmt.Fprintf(&b, "\n🎯 _%s_", it.Tier)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatSizes(sizes map[string][]string) string {
	colors := make([]string, 0, len(sizes))
	for c := range sizes {
		colors = append(colors, c)
	}
	sort.Strings(colors)

	parts := make([]string, 0, len(colors))
	for _, c := range colors {
		list := strings.Join(sizes[c], ", ")
		if c == "" {
			parts = append(parts, list)
			continue
		}
		parts = append(parts, c+": "+list)
	}
	return strings.Join(parts, " | ")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
