package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const globalSizesKey = "global_blocked_sizes"

// Rule blocks a whole product or some of its colours and sizes.
type Rule struct {
	All    bool
	Colors []string
	Sizes  []string
}

// Blocklist maps product ids to block rules.
//
// JSON form: a product id maps to true (fully blocked), a list of colours,
// or {"colors": [...], "sizes": [...]}; "global_blocked_sizes" lists sizes
// blocked for every product.
type Blocklist struct {
	Rules       map[string]Rule
	GlobalSizes []string
}

// LoadBlocklist reads a blocklist file. A missing file yields an empty list.
func LoadBlocklist(path string) (Blocklist, error) {
	if path == "" {
		return Blocklist{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Blocklist{}, nil
		}
		return Blocklist{}, fmt.Errorf("read blocklist: %w", err)
	}

	var bl Blocklist
	if err := json.Unmarshal(data, &bl); err != nil {
		return Blocklist{}, fmt.Errorf("decode blocklist: %w", err)
	}
	return bl, nil
}

// UnmarshalJSON decodes the mixed-shape blocklist document.
func (b *Blocklist) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Rules = make(map[string]Rule, len(raw))
	for key, value := range raw {
		if key == globalSizesKey {
			if err := json.Unmarshal(value, &b.GlobalSizes); err != nil {
				return fmt.Errorf("%s: %w", globalSizesKey, err)
			}
			continue
		}

		rule, ok, err := decodeRule(value)
		if err != nil {
			return fmt.Errorf("rule %s: %w", key, err)
		}
		if ok {
			b.Rules[key] = rule
		}
	}
	return nil
}

func decodeRule(value json.RawMessage) (Rule, bool, error) {
	var flag bool
	if err := json.Unmarshal(value, &flag); err == nil {
		return Rule{All: flag}, flag, nil
	}

	var colors []string
	if err := json.Unmarshal(value, &colors); err == nil {
		return Rule{Colors: colors}, true, nil
	}

	var obj struct {
		Colors []string `json:"colors"`
		Sizes  []string `json:"sizes"`
	}
	if err := json.Unmarshal(value, &obj); err != nil {
		return Rule{}, false, err
	}
	return Rule{Colors: obj.Colors, Sizes: obj.Sizes}, true, nil
}

// Merge adds the rules of other, which take precedence.
func (b Blocklist) Merge(other Blocklist) Blocklist {
	out := Blocklist{Rules: make(map[string]Rule, len(b.Rules)+len(other.Rules))}
	for k, v := range b.Rules {
		out.Rules[k] = v
	}
	for k, v := range other.Rules {
		out.Rules[k] = v
	}
	out.GlobalSizes = append(append([]string(nil), b.GlobalSizes...), other.GlobalSizes...)
	return out
}

// IsBlocked reports whether the product, or the given colour of it, is blocked.
func (b Blocklist) IsBlocked(productID, color string) bool {
	rule, ok := b.Rules[productID]
	if !ok {
		return false
	}
	if rule.All {
		return true
	}
	for _, c := range rule.Colors {
		if color != "" && strings.EqualFold(strings.TrimSpace(c), color) {
			return true
		}
	}
	return false
}

// BlockedSizes returns the upper-cased sizes blocked for productID.
func (b Blocklist) BlockedSizes(productID string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range b.GlobalSizes {
		out[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	if rule, ok := b.Rules[productID]; ok {
		for _, s := range rule.Sizes {
			out[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
		}
	}
	return out
}
