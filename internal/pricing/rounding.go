package pricing

import "math"

// ladderUsable reports whether targets can be used for smart rounding:
// non-empty and strictly ascending.
func ladderUsable(targets []float64) bool {
	if len(targets) == 0 {
		return false
	}
	for i := 1; i < len(targets); i++ {
		if targets[i] <= targets[i-1] {
			return false
		}
	}
	return true
}

// SnapToLadder returns the smallest ladder value >= price, or the largest value when price
// exceeds all of them. targets must be usable.
func SnapToLadder(price float64, targets []float64) float64 {
	for _, t := range targets {
		if t >= price {
			return t
		}
	}
	return targets[len(targets)-1]
}

// roundPrice applies the rule's rounding: ladder snapping when enabled and usable,
// ceiling to a whole unit otherwise.
func roundPrice(price float64, rule Rule) float64 {
	if rule.SmartRounding && ladderUsable(rule.RoundingTargets) {
		return SnapToLadder(price, rule.RoundingTargets)
	}
	// Strip float noise such as 101.00000000001 before taking the ceiling.
	return math.Ceil(math.Round(price*1e6) / 1e6)
}
