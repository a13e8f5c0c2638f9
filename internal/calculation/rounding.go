package calculation

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits every monetary step is rounded to
const Scale int32 = 10

var one = decimal.NewFromInt(1)

// round applies half-up rounding at Scale
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// div divides and rounds half-up at Scale
func div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, Scale)
}

// ratioOf returns num/den rounded at Scale, or zero when den is not positive
func ratioOf(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return div(decimal.NewFromInt(int64(num)), decimal.NewFromInt(int64(den)))
}

// exactRatioOf returns num/den at wide precision, or zero when den is not positive
func exactRatioOf(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).DivRound(decimal.NewFromInt(int64(den)), widePrecision)
}
