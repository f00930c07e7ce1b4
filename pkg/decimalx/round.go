package decimalx

import "github.com/shopspring/decimal"

// RoundTo 把 value 四舍五入到 target 的整数倍，target 为 0 时原样返回
func RoundTo(value, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		return value
	}
	return value.Div(target).Round(0).Mul(target)
}

// FloorTo 把 value 向下取整到 target 的整数倍
func FloorTo(value, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		return value
	}
	return value.Div(target).Floor().Mul(target)
}
