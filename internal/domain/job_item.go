package domain

import (
	"database/sql/driver"
	"time"
)

// VariantCandidate is one priced supplier variant of a discovered product.
type VariantCandidate struct {
	VariantID    string  `json:"variant_id"`
	SKU          string  `json:"sku"`
	Key          string  `json:"key"`
	DisplayName  string  `json:"display_name,omitempty"`
	Size         string  `json:"size,omitempty"`
	Color        string  `json:"color,omitempty"`
	CostForeign  float64 `json:"cost_foreign"`
	RetailLocal  float64 `json:"retail_local"`
	Stock        int     `json:"stock"`
	PricingError string  `json:"pricing_error,omitempty"`
}

// VariantCandidates is a custom type for storing variant lists as JSON in the database.
type VariantCandidates []VariantCandidate

// Value implements the driver.Valuer interface for database serialization.
func (v VariantCandidates) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	return jsonValue(v, "[]")
}

// Scan implements the sql.Scanner interface for database deserialization.
func (v *VariantCandidates) Scan(value interface{}) error {
	*v = VariantCandidates{}
	return scanJSON(value, v, "VariantCandidates")
}

// ItemMetrics are economics computed for a candidate at discovery time.
type ItemMetrics struct {
	StockSum       int     `json:"stock_sum"`
	MinRetail      float64 `json:"min_retail"`
	MaxRetail      float64 `json:"max_retail"`
	PricedVariants int     `json:"priced_variants"`
}

// JobItem is one supplier product discovered by a job. SupplierID is unique within a job.
type JobItem struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	JobID      string            `gorm:"type:text;not null;uniqueIndex:idx_job_items_supplier,priority:1" json:"job_id"`
	SupplierID string            `gorm:"type:text;not null;uniqueIndex:idx_job_items_supplier,priority:2" json:"supplier_id"`
	Title      string            `gorm:"type:text" json:"title"`
	Category   string            `gorm:"type:text;index" json:"category"`
	Unit       string            `gorm:"type:text" json:"unit"`
	Page       int               `json:"page"`
	Currency   string            `gorm:"type:text" json:"currency"`
	Metrics    ItemMetrics       `gorm:"embedded;embeddedPrefix:metric_" json:"metrics"`
	Variants   VariantCandidates `gorm:"type:text" json:"variants"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TableName returns the database table name for JobItem.
func (JobItem) TableName() string {
	return "catalog_job_items"
}
