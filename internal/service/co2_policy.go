package service

import "github.com/yuqie6/ecopulse/internal/schema"

// SavingsPolicy 减碳估算策略（可替换）
type SavingsPolicy interface {
	EstimateSavings(modes []string, distanceKm float64) float64
}

// 每公里碳排放系数（千克/公里）
var modeEmissionFactors = map[string]float64{
	schema.ModeWalking:         0,
	schema.ModeCycling:         0,
	schema.ModePublicTransport: 0.05,
	schema.ModeCarpooling:      0.1,
	schema.ModeElectricVehicle: 0.02,
}

// soloCarFactor 独自驾车的基准排放系数（千克/公里）
const soloCarFactor = 0.21

// DefaultSavingsPolicy 默认策略：相对独自驾车的差值，
// 多方式取排放最低者，结果不为负
type DefaultSavingsPolicy struct{}

// EstimateSavings 估算一次出行相对独自驾车节省的 CO₂（千克）
func (DefaultSavingsPolicy) EstimateSavings(modes []string, distanceKm float64) float64 {
	if distanceKm <= 0 || len(modes) == 0 {
		return 0
	}

	best := soloCarFactor
	known := false
	for _, mode := range modes {
		factor, ok := modeEmissionFactors[mode]
		if !ok {
			continue
		}
		known = true
		if factor < best {
			best = factor
		}
	}
	if !known {
		return 0
	}

	saved := (soloCarFactor - best) * distanceKm
	if saved < 0 {
		return 0
	}
	return saved
}
