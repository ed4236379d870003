// Package currency holds the supported donation currencies and the conversion
// from major units (what donors type) to the minor units the gateway charges.
package currency

import (
	"sort"

	errors "github.com/sonlife/sonlife-giving/internal"

	"github.com/shopspring/decimal"
)

type Code string

const (
	GHS Code = "GHS"
	USD Code = "USD"
)

type Policy struct {
	Code                Code    `json:"code"`
	Label               string  `json:"label"`
	Symbol              string  `json:"symbol"`
	MinorUnitMultiplier int64   `json:"minor_unit_multiplier"`
	QuickAmounts        []int64 `json:"quick_amounts"`
}

var policies = map[Code]Policy{
	GHS: {
		Code:                GHS,
		Label:               "Ghana Cedis",
		Symbol:              "₵",
		MinorUnitMultiplier: 100,
		QuickAmounts:        []int64{20, 50, 100, 200, 500, 1000},
	},
	USD: {
		Code:                USD,
		Label:               "US Dollars",
		Symbol:              "$",
		MinorUnitMultiplier: 100,
		QuickAmounts:        []int64{5, 10, 20, 50, 100, 200},
	},
}

// Default is preselected on the giving form.
const Default = GHS

func Lookup(code Code) (Policy, error) {
	p, ok := policies[code]
	if !ok {
		return Policy{}, errors.ErrUnsupportedCurrency.WithMessage("Unsupported currency: " + string(code))
	}
	return p, nil
}

func IsSupported(code string) bool {
	_, ok := policies[Code(code)]
	return ok
}

// Codes lists supported codes in a stable order.
func Codes() []string {
	codes := make([]string, 0, len(policies))
	for c := range policies {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	return codes
}

func All() []Policy {
	out := make([]Policy, 0, len(policies))
	for _, c := range Codes() {
		out = append(out, policies[Code(c)])
	}
	return out
}

// ToMinorUnits rounds half away from zero, so 10.005 GHS becomes 1001 pesewas.
func ToMinorUnits(amount decimal.Decimal, code Code) (int64, error) {
	p, err := Lookup(code)
	if err != nil {
		return 0, err
	}
	return amount.Mul(decimal.NewFromInt(p.MinorUnitMultiplier)).Round(0).IntPart(), nil
}

func FromMinorUnits(minor int64, code Code) (decimal.Decimal, error) {
	p, err := Lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(p.MinorUnitMultiplier)), nil
}

// Format renders an amount for receipts, e.g. "₵100.00". Unknown codes fall
// back to the code itself as prefix.
func Format(amount decimal.Decimal, code Code) string {
	p, err := Lookup(code)
	if err != nil {
		return string(code) + " " + amount.StringFixed(2)
	}
	return p.Symbol + amount.StringFixed(2)
}

func QuickAmounts(code Code) []int64 {
	p, err := Lookup(code)
	if err != nil {
		return nil
	}
	out := make([]int64, len(p.QuickAmounts))
	copy(out, p.QuickAmounts)
	return out
}
