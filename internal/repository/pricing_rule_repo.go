package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/pricing"
)

// PricingRuleRepository stores category and default pricing rules.
type PricingRuleRepository struct {
	db *gorm.DB
}

// NewPricingRuleRepository creates a new PricingRuleRepository.
func NewPricingRuleRepository(db *gorm.DB) *PricingRuleRepository {
	return &PricingRuleRepository{db: db}
}

// GetRule returns the rule for category, or nil when none exists.
func (r *PricingRuleRepository) GetRule(ctx context.Context, category string) (*domain.PricingRule, error) {
	return r.first(ctx, domain.RuleScopeCategory, category)
}

// GetDefaultRule returns the default rule, or nil when none exists.
func (r *PricingRuleRepository) GetDefaultRule(ctx context.Context) (*domain.PricingRule, error) {
	return r.first(ctx, domain.RuleScopeDefault, "")
}

func (r *PricingRuleRepository) first(ctx context.Context, scope domain.RuleScope, category string) (*domain.PricingRule, error) {
	var rule domain.PricingRule
	err := r.db.WithContext(ctx).First(&rule, "scope = ? AND category = ?", scope, category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s pricing rule %q: %w", scope, category, err)
	}
	return &rule, nil
}

// List returns every stored rule, default first.
func (r *PricingRuleRepository) List(ctx context.Context) ([]domain.PricingRule, error) {
	var rules []domain.PricingRule
	err := r.db.WithContext(ctx).Order("scope DESC, category ASC").Find(&rules).Error
	return rules, err
}

// RuleSet snapshots all stored rules for the pricing engine.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - pricing.RuleSet: category rules plus the default rule if present.
//   - error: non-nil if the query fails.
func (r *PricingRuleRepository) RuleSet(ctx context.Context) (pricing.RuleSet, error) {
	rules, err := r.List(ctx)
	if err != nil {
		return pricing.RuleSet{}, fmt.Errorf("failed to load pricing rules: %w", err)
	}
	rs := pricing.RuleSet{Categories: make(map[string]pricing.Rule)}
	for _, m := range rules {
		rule := pricing.RuleFromModel(m)
		switch m.Scope {
		case domain.RuleScopeDefault:
			rs.Default = &rule
		case domain.RuleScopeCategory:
			rs.Categories[m.Category] = rule
		}
	}
	return rs, nil
}

// Upsert creates or replaces the rule keyed by scope and category.
func (r *PricingRuleRepository) Upsert(ctx context.Context, rule *domain.PricingRule) error {
	if rule.Scope == domain.RuleScopeDefault {
		rule.Category = ""
	}
	if rule.Scope == domain.RuleScopeCategory && rule.Category == "" {
		return fmt.Errorf("category rule requires a category")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"margin_percent", "min_profit", "vat_percent", "payment_fee_percent",
			"smart_rounding", "rounding_targets", "updated_at",
		}),
	}).Create(rule).Error
}
