package matcher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatch is wrapped by every UnresolvedError.
var ErrNoMatch = errors.New("no confident variant match")

// Strategy names the rule that produced a match.
type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyCombined Strategy = "combined"
	StrategySize     Strategy = "size"
	StrategyColor    Strategy = "color"
	StrategyPartial  Strategy = "partial"
)

// Variant is a supplier variant as the matcher sees it. Size and Color are optional
// explicit fields; when empty they are parsed out of Key, then DisplayName.
type Variant struct {
	ID          string `json:"id"`
	SKU         string `json:"sku,omitempty"`
	Key         string `json:"key,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Size        string `json:"size,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Result identifies the chosen variant.
type Result struct {
	VariantID string   `json:"variant_id"`
	SKU       string   `json:"sku,omitempty"`
	Index     int      `json:"index"`
	Strategy  Strategy `json:"strategy"`
}

// UnresolvedError describes why a label could not be matched.
type UnresolvedError struct {
	Label      string
	Attributes Attributes
	Candidates int
	Reason     string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("variant %q unresolved among %d candidates: %s", e.Label, e.Candidates, e.Reason)
}

func (e *UnresolvedError) Unwrap() error { return ErrNoMatch }

type prepared struct {
	index  int
	v      Variant
	labels []string
	tokens [][]string
	attrs  Attributes
}

func prepare(variants []Variant) []prepared {
	out := make([]prepared, 0, len(variants))
	for i, v := range variants {
		p := prepared{index: i, v: v}
		for _, l := range []string{v.Key, v.DisplayName} {
			n := Normalize(l)
			if n == "" {
				continue
			}
			p.labels = append(p.labels, n)
			p.tokens = append(p.tokens, tokenize(n))
		}

		source := v.Key
		if source == "" {
			source = v.DisplayName
		}
		p.attrs = Parse(source)
		if v.Size != "" {
			p.attrs.Size = normalizeSize(v.Size)
		}
		if v.Color != "" {
			p.attrs.Color = normalizeColor(v.Color)
		}
		out = append(out, p)
	}
	return out
}

// Match resolves a free-text customer label against the supplier variants. Strategies are
// tried in order and a strategy only wins with exactly one distinct hit; an ambiguous
// strategy falls through to the next one. When nothing is confident the returned error is
// an *UnresolvedError wrapping ErrNoMatch.
func Match(label string, variants []Variant) (Result, error) {
	attrs := Parse(label)
	unresolved := func(reason string) (Result, error) {
		return Result{}, &UnresolvedError{Label: label, Attributes: attrs, Candidates: len(variants), Reason: reason}
	}

	norm := Normalize(label)
	if norm == "" {
		return unresolved("empty label")
	}
	if len(variants) == 0 {
		return unresolved("no variants")
	}

	pv := prepare(variants)

	if r, ok := unique(pv, StrategyExact, func(p prepared) bool {
		for _, l := range p.labels {
			if l == norm {
				return true
			}
		}
		return false
	}); ok {
		return r, nil
	}

	switch {
	case attrs.HasSize() && attrs.HasColor():
		if r, ok := unique(pv, StrategyCombined, func(p prepared) bool {
			return p.attrs.Size == attrs.Size && sameColor(p.attrs.Color, attrs.Color)
		}); ok {
			return r, nil
		}
	case attrs.HasSize():
		if r, ok := unique(pv, StrategySize, func(p prepared) bool {
			return p.attrs.Size == attrs.Size
		}); ok {
			return r, nil
		}
	case attrs.HasColor():
		if r, ok := unique(pv, StrategyColor, func(p prepared) bool {
			return sameColor(p.attrs.Color, attrs.Color)
		}); ok {
			return r, nil
		}
	}

	labelTokens := tokenize(norm)
	if r, ok := unique(pv, StrategyPartial, func(p prepared) bool {
		if !compatible(attrs, p.attrs) {
			return false
		}
		for _, vt := range p.tokens {
			if containsRun(vt, labelTokens) || containsRun(labelTokens, vt) {
				return true
			}
		}
		return false
	}); ok {
		return r, nil
	}

	return unresolved(fmt.Sprintf("no single variant matches size %q color %q", attrs.Size, attrs.Color))
}

// compatible rejects partial hits whose recognised attributes contradict the label.
func compatible(label, variant Attributes) bool {
	if label.HasSize() && variant.HasSize() && label.Size != variant.Size {
		return false
	}
	if label.HasColor() && variant.HasColor() && !compatibleColor(label.Color, variant.Color) {
		return false
	}
	return true
}

// unique returns the single variant satisfying pred. Duplicate entries with the same
// variant ID count as one hit.
func unique(pv []prepared, s Strategy, pred func(prepared) bool) (Result, bool) {
	var hit *prepared
	for i := range pv {
		if !pred(pv[i]) {
			continue
		}
		if hit != nil && !strings.EqualFold(hit.v.ID, pv[i].v.ID) {
			return Result{}, false
		}
		if hit == nil {
			hit = &pv[i]
		}
	}
	if hit == nil {
		return Result{}, false
	}
	return Result{VariantID: hit.v.ID, SKU: hit.v.SKU, Index: hit.index, Strategy: s}, true
}
