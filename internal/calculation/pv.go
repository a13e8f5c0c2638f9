package calculation

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// RateSource yields the forward periodic rate for a 1-based term index
type RateSource interface {
	Rate(term int) (decimal.Decimal, bool)
}

// Discounted is the output of one discounting pass
type Discounted struct {
	PV           decimal.Decimal
	Rows         []domain.WorkRow
	MissingTerms []int
}

// DiscountRule selects where a discounting pass rounds
type DiscountRule int

const (
	// DiscountDivide rounds the compound factor each period and divides each cash flow by it.
	DiscountDivide DiscountRule = iota
	// DiscountReciprocal carries the compound factor at wide precision and rounds only
	// cash flow × 1/compound.
	DiscountReciprocal
)

// widePrecision is the working precision of the unrounded compound factor
const widePrecision int32 = 28

// Discount discounts cashFlows[k] through the forward curve, reading the rate at term startTerm+k.
// Row k is labelled baseMonth+k+1 and carries the discount factor rounded at Scale for display.
// Missing rates count as zero and are reported in MissingTerms.
func Discount(cashFlows []decimal.Decimal, rates RateSource, startTerm int, baseMonth string, rule DiscountRule) Discounted {
	out := Discounted{PV: decimal.Zero, Rows: make([]domain.WorkRow, 0, len(cashFlows))}
	compound := one
	for k, cf := range cashFlows {
		term := startTerm + k
		rate, ok := rates.Rate(term)
		if !ok {
			rate = decimal.Zero
			out.MissingTerms = append(out.MissingTerms, term)
		}

		var pv, factor decimal.Decimal
		switch rule {
		case DiscountReciprocal:
			compound = compound.Mul(one.Add(rate)).Round(widePrecision)
			wide := one.DivRound(compound, widePrecision)
			pv = round(cf.Mul(wide))
			factor = round(wide)
		default:
			compound = round(compound.Mul(one.Add(rate)))
			pv = div(cf, compound)
			factor = div(one, compound)
		}

		out.PV = out.PV.Add(pv)
		out.Rows = append(out.Rows, domain.WorkRow{
			Month:          dateutil.AddMonths(baseMonth, k+1),
			Term:           term,
			CashFlow:       cf,
			Rate:           rate,
			DiscountFactor: factor,
			PresentValue:   pv,
		})
	}
	return out
}

// SpreadEven splits amount into n equal rounded instalments
func SpreadEven(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 || amount.IsZero() {
		return nil
	}
	per := div(amount, decimal.NewFromInt(int64(n)))
	flows := make([]decimal.Decimal, n)
	for i := range flows {
		flows[i] = per
	}
	return flows
}

// SpreadWeighted distributes amount over weights relative to total: round(amount*w/total)
func SpreadWeighted(amount decimal.Decimal, weights []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	if total.IsZero() {
		return nil
	}
	flows := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		flows[i] = div(amount.Mul(w), total)
	}
	return flows
}

// SpreadConvolved spreads amount evenly over n future months of exposure and develops each
// month's share through the payout pattern. The result has len(pattern)+n-1 entries: entry j
// sums the pattern contributions of every exposure month still paying at offset j.
func SpreadConvolved(amount decimal.Decimal, n int, pattern []decimal.Decimal) []decimal.Decimal {
	if n <= 0 || amount.IsZero() {
		return nil
	}
	avg := div(amount, decimal.NewFromInt(int64(n)))
	applied := make([]decimal.Decimal, len(pattern))
	prefix := make([]decimal.Decimal, len(pattern)+1)
	prefix[0] = decimal.Zero
	for i, w := range pattern {
		applied[i] = round(avg.Mul(w))
		prefix[i+1] = prefix[i].Add(applied[i])
	}

	window := n - 1
	length := len(applied) + n - 1
	if length <= 0 {
		return nil
	}
	flows := make([]decimal.Decimal, length)
	for j := 0; j < length; j++ {
		lo := j - window
		if lo < 0 {
			lo = 0
		}
		hi := j
		if hi > len(applied)-1 {
			hi = len(applied) - 1
		}
		if hi < lo {
			flows[j] = decimal.Zero
			continue
		}
		flows[j] = prefix[hi+1].Sub(prefix[lo])
	}
	return flows
}

// formatTerms renders missing terms compactly as runs, e.g. "3-5,9"
func formatTerms(terms []int) string {
	if len(terms) == 0 {
		return ""
	}
	var parts []string
	start, prev := terms[0], terms[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprintf("%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, t := range terms[1:] {
		if t == prev+1 {
			prev = t
			continue
		}
		flush()
		start, prev = t, t
	}
	flush()
	return strings.Join(parts, ",")
}
