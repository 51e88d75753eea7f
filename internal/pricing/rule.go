package pricing

import "github.com/timmy/dropcart/internal/domain"

// RuleSource tells which level of the rule cascade produced a rule.
type RuleSource string

const (
	SourceCategory RuleSource = "category"
	SourceDefault  RuleSource = "default"
	SourceBuiltin  RuleSource = "builtin"
)

// Rule holds the business parameters of one price computation.
// Percent fields are percentages (40 means 40%).
type Rule struct {
	MarginPercent     float64   `json:"margin_percent"`
	MinProfit         float64   `json:"min_profit"`
	VATPercent        float64   `json:"vat_percent"`
	PaymentFeePercent float64   `json:"payment_fee_percent"`
	SmartRounding     bool      `json:"smart_rounding"`
	RoundingTargets   []float64 `json:"rounding_targets"`
}

// BuiltinRule is used when neither a category rule nor a default rule exists.
var BuiltinRule = Rule{
	MarginPercent:     40,
	MinProfit:         35,
	VATPercent:        15,
	PaymentFeePercent: 2.9,
	SmartRounding:     true,
	RoundingTargets:   []float64{49, 79, 99, 149, 199, 249, 299},
}

// RuleFromModel converts a persisted rule.
func RuleFromModel(m domain.PricingRule) Rule {
	targets := make([]float64, len(m.RoundingTargets))
	copy(targets, m.RoundingTargets)
	return Rule{
		MarginPercent:     m.MarginPercent,
		MinProfit:         m.MinProfit,
		VATPercent:        m.VATPercent,
		PaymentFeePercent: m.PaymentFeePercent,
		SmartRounding:     m.SmartRounding,
		RoundingTargets:   targets,
	}
}

// RuleSet is a snapshot of the rule store used for a batch of computations.
type RuleSet struct {
	Default    *Rule
	Categories map[string]Rule
}

// Resolve picks the rule for category: exact category rule, then default, then BuiltinRule.
func (rs RuleSet) Resolve(category string) (Rule, RuleSource) {
	if category != "" {
		if r, ok := rs.Categories[category]; ok {
			return r, SourceCategory
		}
	}
	if rs.Default != nil {
		return *rs.Default, SourceDefault
	}
	return BuiltinRule, SourceBuiltin
}
