package pricing

import (
	"errors"
	"math"
)

const (
	// DefaultExchangeRate converts supplier currency into local currency.
	DefaultExchangeRate = 3.75
	// DefaultShippingForeign is charged when the supplier gives no shipping price.
	DefaultShippingForeign = 5.0
)

// ErrFloorUnreachable is returned with the quote when the rounding ladder tops out below
// landed cost plus minimum profit.
var ErrFloorUnreachable = errors.New("minimum profit not reachable on rounding ladder")

// Breakdown exposes every intermediate of a computation in local currency.
type Breakdown struct {
	ExchangeRate  float64 `json:"exchange_rate"`
	BaseLocal     float64 `json:"base_local"`
	ShippingLocal float64 `json:"shipping_local"`
	Subtotal      float64 `json:"subtotal"`
	VAT           float64 `json:"vat"`
	AfterVAT      float64 `json:"after_vat"`
	PaymentFee    float64 `json:"payment_fee"`
	Landed        float64 `json:"landed"`
	Margin        float64 `json:"margin"`
	PreRounding   float64 `json:"pre_rounding"`
	FloorApplied  bool    `json:"floor_applied"`
}

// Quote is the result of ComputeRetail.
type Quote struct {
	RetailLocal   float64    `json:"retail_local"`
	MarginApplied float64    `json:"margin_applied"`
	Rule          Rule       `json:"rule"`
	RuleSource    RuleSource `json:"rule_source"`
	Breakdown     Breakdown  `json:"breakdown"`
}

// Profit returns retail minus landed cost.
func (q Quote) Profit() float64 {
	return q.RetailLocal - q.Breakdown.Landed
}

// Engine converts supplier cost into a localized retail price. It is stateless and safe
// for concurrent use.
type Engine struct {
	ExchangeRate    float64
	DefaultShipping float64
	Shipping        ShippingTable
}

// DefaultEngine returns an engine carrying the built-in constants.
func DefaultEngine() *Engine {
	return &Engine{
		ExchangeRate:    DefaultExchangeRate,
		DefaultShipping: DefaultShippingForeign,
		Shipping:        DefaultShippingTable,
	}
}

// ComputeRetail prices costForeign plus shipping for category under rules.
// A nil shipping uses the engine default. cost <= 0 yields a zero quote; callers validate input.
// When the ladder cannot satisfy the profit floor the quote is returned with ErrFloorUnreachable.
func (e *Engine) ComputeRetail(costForeign float64, shippingForeign *float64, category string, rules RuleSet) (Quote, error) {
	rule, source := rules.Resolve(category)
	q := Quote{
		Rule:       rule,
		RuleSource: source,
		Breakdown:  Breakdown{ExchangeRate: e.ExchangeRate},
	}
	if costForeign <= 0 {
		return q, nil
	}

	shipping := e.DefaultShipping
	if shippingForeign != nil {
		shipping = *shippingForeign
	}

	b := &q.Breakdown
	b.BaseLocal = costForeign * e.ExchangeRate
	b.ShippingLocal = shipping * e.ExchangeRate
	b.Subtotal = b.BaseLocal + b.ShippingLocal
	b.VAT = b.Subtotal * rule.VATPercent / 100
	b.AfterVAT = b.Subtotal + b.VAT
	b.PaymentFee = b.AfterVAT * rule.PaymentFeePercent / 100
	b.Landed = b.AfterVAT + b.PaymentFee
	b.Margin = b.Landed * rule.MarginPercent / 100
	b.PreRounding = b.Landed + b.Margin

	retail := roundPrice(b.PreRounding, rule)
	if retail-b.Landed < rule.MinProfit {
		// Rounding may land below the floor even when the raw price was above it,
		// so the floor is checked after rounding and the result rounded again.
		retail = roundPrice(b.Landed+rule.MinProfit, rule)
		b.FloorApplied = true
	}

	q.RetailLocal = math.Round(retail)
	q.MarginApplied = q.RetailLocal - b.Landed

	if q.RetailLocal-b.Landed < rule.MinProfit-1 {
		return q, ErrFloorUnreachable
	}
	return q, nil
}

// ComputeRetail prices with DefaultEngine.
func ComputeRetail(costForeign float64, shippingForeign *float64, category string, rules RuleSet) (Quote, error) {
	return DefaultEngine().ComputeRetail(costForeign, shippingForeign, category, rules)
}
