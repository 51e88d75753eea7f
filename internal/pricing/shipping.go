package pricing

import "math"

// ShippingTable prices a parcel in the supplier currency.
type ShippingTable struct {
	BaseFee float64 `json:"base_fee"`
	PerKg   float64 `json:"per_kg"`
	// VolumetricDivisor converts cubic centimetres into volumetric kilograms.
	VolumetricDivisor float64 `json:"volumetric_divisor"`
}

// DefaultShippingTable mirrors common air parcel tariffs.
var DefaultShippingTable = ShippingTable{
	BaseFee:           2.5,
	PerKg:             6,
	VolumetricDivisor: 5000,
}

// Parcel is the physical description of a shipped item.
type Parcel struct {
	WeightGrams float64 `json:"weight_grams"`
	LengthCm    float64 `json:"length_cm"`
	WidthCm     float64 `json:"width_cm"`
	HeightCm    float64 `json:"height_cm"`
}

// ActualKg returns the actual weight in kilograms.
func (p Parcel) ActualKg() float64 {
	return math.Max(p.WeightGrams, 0) / 1000
}

// VolumetricKg returns the dimensional weight for divisor.
func (p Parcel) VolumetricKg(divisor float64) float64 {
	if divisor <= 0 || p.LengthCm <= 0 || p.WidthCm <= 0 || p.HeightCm <= 0 {
		return 0
	}
	return p.LengthCm * p.WidthCm * p.HeightCm / divisor
}

// Known reports whether the parcel carries enough data to be priced.
func (p Parcel) Known() bool {
	return p.WeightGrams > 0 || (p.LengthCm > 0 && p.WidthCm > 0 && p.HeightCm > 0)
}

// EstimateShipping prices a parcel on its chargeable weight, the larger of actual and
// volumetric weight. ok is false when the parcel is unknown and the caller should fall
// back to the default shipping constant.
func (e *Engine) EstimateShipping(p Parcel) (cost float64, ok bool) {
	if !p.Known() {
		return 0, false
	}
	t := e.Shipping
	chargeable := math.Max(p.ActualKg(), p.VolumetricKg(t.VolumetricDivisor))
	cost = t.BaseFee + t.PerKg*chargeable
	return math.Round(cost*100) / 100, true
}
