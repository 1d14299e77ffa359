package service

import "github.com/shopspring/decimal"

// maxAmount is the largest value a decimal(18,2) column can hold
var maxAmount = decimal.RequireFromString("9999999999999999.99")

// toCents rounds an incoming amount to the precision it is stored with.
// Every bound check must run on the rounded value.
func toCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func exceedsMaxAmount(d decimal.Decimal) bool {
	return d.GreaterThan(maxAmount)
}
