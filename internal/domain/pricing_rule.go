package domain

import (
	"database/sql/driver"
	"time"
)

// RuleScope tells whether a pricing rule applies to one category or is the default.
type RuleScope string

const (
	RuleScopeCategory RuleScope = "category"
	RuleScopeDefault  RuleScope = "default"
)

// PriceLadder is a custom type for storing rounding targets as JSON in the database.
type PriceLadder []float64

// Value implements the driver.Valuer interface for database serialization.
func (l PriceLadder) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue(l, "[]")
}

// Scan implements the sql.Scanner interface for database deserialization.
func (l *PriceLadder) Scan(value interface{}) error {
	*l = PriceLadder{}
	return scanJSON(value, l, "PriceLadder")
}

// PricingRule is a persisted margin/fee rule. Percent fields hold percentages, e.g. 40 for 40%.
type PricingRule struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	Scope             RuleScope   `gorm:"type:text;not null;uniqueIndex:idx_pricing_rules_scope,priority:1" json:"scope"`
	Category          string      `gorm:"type:text;not null;default:'';uniqueIndex:idx_pricing_rules_scope,priority:2" json:"category,omitempty"`
	MarginPercent     float64     `json:"margin_percent"`
	MinProfit         float64     `json:"min_profit"`
	VATPercent        float64     `gorm:"column:vat_percent" json:"vat_percent"`
	PaymentFeePercent float64     `json:"payment_fee_percent"`
	SmartRounding     bool        `json:"smart_rounding"`
	RoundingTargets   PriceLadder `gorm:"type:text" json:"rounding_targets"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName returns the database table name for PricingRule.
func (PricingRule) TableName() string {
	return "pricing_rules"
}
