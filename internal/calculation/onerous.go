package calculation

import (
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
)

// OnerousInput is the terminal state the loss test reads
type OnerousInput struct {
	ValMonth        string
	Premium         decimal.Decimal
	Closing         decimal.Decimal
	CumReceived     decimal.Decimal
	ServedDays      int
	TermDays        int
	RemainingMonths int
	Assumption      domain.Assumption
	AssumptionMonth string
	Pattern         []decimal.Decimal
	Curve           RateSource
}

// OnerousTest projects the unexpired cash flows, discounts them on the current curve and
// derives the loss top-up against the closing balance.
func OnerousTest(in OnerousInput, rec *recorder) domain.LossTestResult {
	a := in.Assumption
	futureRatio := FutureRatio(in.ServedDays, in.TermDays)
	unexpired := round(in.Premium.Mul(futureRatio))
	receivable := in.Premium.Sub(in.CumReceived)
	claims := round(unexpired.Mul(a.LossRatio).Mul(one.Add(a.IndirectClaimsRatio)))
	maintenance := round(unexpired.Mul(a.MaintenanceRatio))

	n := in.RemainingMonths
	claimFlows := SpreadConvolved(claims, n, in.Pattern)
	maintenanceFlows := SpreadEven(maintenance, n)

	claimsPV := Discount(claimFlows, in.Curve, 1, in.ValMonth, DiscountReciprocal)
	maintenancePV := Discount(maintenanceFlows, in.Curve, 1, in.ValMonth, DiscountReciprocal)
	missing := mergeTerms(claimsPV.MissingTerms, maintenancePV.MissingTerms)
	if len(missing) > 0 && rec != nil {
		rec.note(domain.KindMissingRate, in.ValMonth,
			"current curve %s has no rate for terms %s, treated as 0", in.ValMonth, formatTerms(missing))
	}

	ra := round(claimsPV.PV.Add(maintenancePV.PV).Mul(a.RiskAdjustmentRatio))
	fcf := claimsPV.PV.Add(maintenancePV.PV).Add(ra).Sub(receivable)
	shortfall := fcf.Sub(in.Closing)

	loss := decimal.Max(decimal.Zero, shortfall)
	if in.Premium.IsNegative() {
		loss = decimal.Min(decimal.Zero, shortfall)
	}

	return domain.LossTestResult{
		AssumptionMonth:   in.AssumptionMonth,
		FutureRatio:       futureRatio,
		UnexpiredPremium:  unexpired,
		FutureReceivable:  receivable,
		FutureClaims:      claims,
		FutureMaintenance: maintenance,
		RemainingMonths:   n,
		PVClaims:          claimsPV.PV,
		PVMaintenance:     maintenancePV.PV,
		RiskAdjustment:    ra,
		FutureCashFlow:    fcf,
		LossAmount:        loss,
		ClaimsTable:       claimsPV.Rows,
		MaintenanceTable:  maintenancePV.Rows,
	}
}

// FutureRatio is the unserved share of cover, 1 - served/term, at wide precision.
// A contract without term days has nothing unexpired.
func FutureRatio(served, term int) decimal.Decimal {
	if term <= 0 {
		return decimal.Zero
	}
	return one.Sub(exactRatioOf(served, term))
}

// UnderlyingLoss scales the loss measured on the underlying contract by the ceded share
func UnderlyingLoss(underlying, share decimal.Decimal) domain.LossTestResult {
	return domain.LossTestResult{
		FromUnderlying: true,
		UnderlyingLoss: underlying,
		LossAmount:     round(underlying.Mul(share)),
	}
}

// mergeTerms returns the sorted union of two ascending term lists
func mergeTerms(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
