package calculation

import (
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// CohortInput is what one cohort measurement reads
type CohortInput struct {
	Cohort        domain.ClaimCohort
	ValMonth      string
	Pattern       domain.Pattern
	CurrentCurve  RateSource
	AccidentCurve RateSource
	RARatio       decimal.Decimal
	Prior         *domain.CohortSnapshot
	Epsilon       decimal.Decimal
}

// cohortSchedule is the undiscounted future payment schedule of one amount
type cohortSchedule struct {
	flows         []decimal.Decimal
	accidentStart int
}

// scheduleFor spreads amount over the unpaid part of the pattern. When development is
// exhausted the whole amount falls due one period ahead.
func scheduleFor(amount decimal.Decimal, pattern domain.Pattern, age int, unpaid, epsilon decimal.Decimal) cohortSchedule {
	remaining := pattern.Remaining(age)
	positive := false
	for _, w := range remaining {
		if w.IsPositive() {
			positive = true
			break
		}
	}
	if unpaid.LessThanOrEqual(epsilon) || !positive {
		return cohortSchedule{flows: []decimal.Decimal{amount}, accidentStart: age}
	}
	return cohortSchedule{flows: SpreadWeighted(amount, remaining, unpaid), accidentStart: age}
}

// MeasureCohort values one cohort under the current and accident-month curves and splits
// the period-over-period movement into accounting components.
func MeasureCohort(in CohortInput, rec *recorder) (domain.CohortResult, error) {
	key := in.Cohort.Key
	accident, err := dateutil.ParseMonth(key.AccidentMonth)
	if err != nil {
		return domain.CohortResult{}, domain.NewMeasurementError(domain.KindInvalidInput,
			cohortLabel(key), "bad accident month", err)
	}
	val, err := dateutil.ParseMonth(in.ValMonth)
	if err != nil {
		return domain.CohortResult{}, domain.NewMeasurementError(domain.KindInvalidInput,
			cohortLabel(key), "bad evaluation month", err)
	}
	age := dateutil.MonthsBetween(accident, val) + 1
	if age < 1 {
		return domain.CohortResult{}, domain.NewMeasurementError(domain.KindInvalidDateOrdering,
			cohortLabel(key), "accident month "+key.AccidentMonth+" after evaluation month "+in.ValMonth, nil)
	}

	unpaid := one.Sub(in.Pattern.Paid(age))
	result := domain.CohortResult{
		Key:         key,
		Month:       in.ValMonth,
		Age:         age,
		CurrentYear: accident.Year() == val.Year(),
		UnpaidRatio: unpaid,
	}

	var missingCurrent, missingAccident []int
	for _, t := range domain.AmountTypes {
		amount := in.Cohort.Amount(t)
		sched := scheduleFor(amount, in.Pattern, age, unpaid, in.Epsilon)

		cur := Discount(sched.flows, in.CurrentCurve, 1, in.ValMonth, DiscountDivide)
		acc := Discount(sched.flows, in.AccidentCurve, sched.accidentStart, in.ValMonth, DiscountDivide)
		missingCurrent = mergeTerms(missingCurrent, cur.MissingTerms)
		missingAccident = mergeTerms(missingAccident, acc.MissingTerms)

		apv := domain.AmountPV{
			Type:          t,
			Amount:        amount,
			Current:       withRA(cur.PV, in.RARatio),
			Accident:      withRA(acc.PV, in.RARatio),
			CurrentTable:  cur.Rows,
			AccidentTable: acc.Rows,
		}
		result.Amounts = append(result.Amounts, apv)
		result.Current = result.Current.Add(apv.Current)
		result.Accident = result.Accident.Add(apv.Accident)
	}

	accRate, ok := in.AccidentCurve.Rate(age)
	if !ok {
		accRate = decimal.Zero
		missingAccident = mergeTerms(missingAccident, []int{age})
	}
	if rec != nil {
		if len(missingCurrent) > 0 {
			rec.note(domain.KindMissingRate, in.ValMonth, "cohort %s current curve missing terms %s, treated as 0",
				cohortLabel(key), formatTerms(missingCurrent))
		}
		if len(missingAccident) > 0 {
			rec.note(domain.KindMissingRate, in.ValMonth, "cohort %s accident curve %s missing terms %s, treated as 0",
				cohortLabel(key), key.AccidentMonth, formatTerms(missingAccident))
		}
	}

	result.Values = domain.PresentValues{
		Current:  result.Current.Total,
		Accident: result.Accident.Total,
		Accreted: round(result.Accident.Total.Mul(one.Add(accRate))),
	}
	if in.Prior != nil {
		result.Values.PriorCurrent = in.Prior.CurrentTotal
		result.Values.PriorAccident = in.Prior.AccidentTotal
		result.Values.PriorAccreted = in.Prior.AccretedAccident
	}
	result.Movements = Movements(result.Values)
	return result, nil
}

// SettleCohort releases a cohort that was carried last period and has no reserve now
func SettleCohort(prior domain.CohortSnapshot, valMonth string) domain.CohortResult {
	values := domain.PresentValues{
		PriorCurrent:  prior.CurrentTotal,
		PriorAccident: prior.AccidentTotal,
		PriorAccreted: prior.AccretedAccident,
	}
	return domain.CohortResult{
		Key:       prior.Key,
		Month:     valMonth,
		Settled:   true,
		Values:    values,
		Movements: Movements(values),
	}
}

// Movements derives the accounting split from the six present values:
// paid claims = C - Cp, service cost = A - Aa, financing = Aa - Ap, OCI = (C - Cp) - A + Ap.
func Movements(v domain.PresentValues) domain.Movements {
	paid := v.Current.Sub(v.PriorCurrent)
	return domain.Movements{
		PaidClaim:   paid,
		ServiceCost: v.Accident.Sub(v.PriorAccreted),
		Financing:   v.PriorAccreted.Sub(v.PriorAccident),
		OCI:         paid.Sub(v.Accident).Add(v.PriorAccident),
	}
}

func withRA(bel, ratio decimal.Decimal) domain.RegimePV {
	ra := round(bel.Mul(ratio))
	return domain.RegimePV{BEL: bel, RA: ra, Total: bel.Add(ra)}
}

func cohortLabel(k domain.CohortKey) string {
	return k.ClassCode + "@" + k.AccidentMonth
}
