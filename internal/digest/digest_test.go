package digest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealwatcher/internal/analysis"
)

var fetched = time.Date(2025, time.March, 3, 10, 15, 0, 0, time.UTC)

func obs(id, color, size string, price, discount float64, tier string) analysis.Observation {
	return analysis.Observation{
		EntityID:        id,
		Name:            "Item " + id,
		URL:             "https://example.com/" + id,
		Color:           color,
		Size:            size,
		ObservedAt:      fetched,
		PromoPrice:      price,
		DiscountPercent: discount,
		Tier:            tier,
	}
}

const blocklistJSON = `{
  "A": true,
  "B": ["09"],
  "C": {"colors": ["69"], "sizes": ["xl"]},
  "D": false,
  "global_blocked_sizes": ["XXS"]
}`

func TestBlocklistDecode(t *testing.T) {
	var bl Blocklist
	require.NoError(t, json.Unmarshal([]byte(blocklistJSON), &bl))

	assert.True(t, bl.IsBlocked("A", "01"))
	assert.True(t, bl.IsBlocked("B", "09"))
	assert.False(t, bl.IsBlocked("B", "01"))
	assert.True(t, bl.IsBlocked("C", "69"))
	assert.False(t, bl.IsBlocked("D", "01"))
	assert.False(t, bl.IsBlocked("Z", "01"))

	sizes := bl.BlockedSizes("C")
	assert.Contains(t, sizes, "XL")
	assert.Contains(t, sizes, "XXS")
	assert.NotContains(t, bl.BlockedSizes("B"), "XL")
}

func TestLoadBlocklist(t *testing.T) {
	bl, err := LoadBlocklist(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, bl.Rules)

	path := filepath.Join(t.TempDir(), "blocked.json")
	require.NoError(t, os.WriteFile(path, []byte(blocklistJSON), 0o600))
	bl, err = LoadBlocklist(path)
	require.NoError(t, err)
	assert.Len(t, bl.Rules, 3)

	require.NoError(t, os.WriteFile(path, []byte(`{"A": 3}`), 0o600))
	_, err = LoadBlocklist(path)
	assert.Error(t, err)
}

func TestBlocklistMerge(t *testing.T) {
	file := Blocklist{Rules: map[string]Rule{"A": {All: true}, "B": {Colors: []string{"09"}}}}
	db := Blocklist{Rules: map[string]Rule{"B": {All: true}}, GlobalSizes: []string{"XXL"}}

	merged := file.Merge(db)
	assert.True(t, merged.IsBlocked("A", ""))
	assert.True(t, merged.IsBlocked("B", "01"))
	assert.Contains(t, merged.BlockedSizes("Q"), "XXL")
}

func TestFilter(t *testing.T) {
	var bl Blocklist
	require.NoError(t, json.Unmarshal([]byte(blocklistJSON), &bl))

	in := []analysis.Observation{
		obs("A", "01", "M", 9.9, 60, analysis.TierSteal),
		obs("B", "09", "M", 9.9, 60, analysis.TierSteal),
		obs("B", "01", "m", 9.9, 60, analysis.TierSteal),
		obs("C", "01", "XL", 9.9, 60, analysis.TierSteal),
		obs("E", "01", "M", 9.9, 20, analysis.TierSteal),
		obs("F", "01", "3XL", 9.9, 60, analysis.TierSteal),
		obs("G", "01", "S", 9.9, 60, analysis.TierOK),
		obs("H", "01", "L", 9.9, 60, analysis.TierGoodDeal),
	}

	got := Filter(in, Criteria{
		MinDiscount: 35,
		Sizes:       []string{"S", "M", "L", "XL"},
		GoodOnly:    true,
		Rules:       analysis.DefaultRuleset(),
		Blocklist:   bl,
		Sent:        map[string]struct{}{"H": {}},
	})

	ids := make([]string, 0, len(got))
	for _, o := range got {
		ids = append(ids, o.EntityID+"/"+o.Color+"/"+o.Size)
	}
	assert.Equal(t, []string{"B/01/m"}, ids)
}

func TestBuildAndRender(t *testing.T) {
	rating := 4.5
	reviews := 120
	cheap := obs("A", "09", "M", 9.9, 67, analysis.TierSteal)
	cheap.Rating = &rating
	cheap.ReviewCount = &reviews

	in := []analysis.Observation{
		obs("A", "09", "S", 14.9, 50, analysis.TierGoodDeal),
		cheap,
		obs("A", "09", "M", 9.9, 67, analysis.TierSteal),
		obs("B", "01", "L", 19.9, 40, analysis.TierOK),
		obs("C", "01", "L", 29.9, 70, analysis.TierGoodDeal),
	}

	d := Build(in, 2)
	require.Len(t, d.Items, 2)
	assert.Equal(t, fetched, d.FetchedAt)
	assert.Equal(t, []string{"C", "A"}, d.ProductIDs())
	assert.Equal(t, 9.9, d.Items[1].PromoPrice)
	assert.Equal(t, analysis.TierSteal, d.Items[1].Tier)
	assert.Equal(t, []string{"S", "M"}, d.Items[1].Sizes["09"])

	msg := Render(d)
	assert.True(t, strings.HasPrefix(msg, "*🛍️ Deal Digest (03 Mar 2025 • 10:15)*"))
	assert.Contains(t, msg, "[Item A](https://example.com/A)")
	assert.Contains(t, msg, "*-67%* | 🪙 9.90 | ⭐ 4.5 (120 reviews)")
	assert.Contains(t, msg, "Sizes: `09: S, M`")
	assert.Contains(t, msg, "_STEAL_")
	assert.Less(t, strings.Index(msg, "Item C"), strings.Index(msg, "Item A"))
}

func TestRenderEmpty(t *testing.T) {
	assert.Contains(t, Render(Digest{}), "No interesting products")
}
