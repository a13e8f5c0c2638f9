package calculation

import (
	"context"
	"testing"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cohortInput() CohortInput {
	return CohortInput{
		Cohort: domain.ClaimCohort{
			Key:  domain.CohortKey{AccidentMonth: "202401", ClassCode: "M"},
			Case: dec("300"),
		},
		ValMonth:      "202402",
		Pattern:       domain.Pattern{ClassCode: "M", Ratios: []decimal.Decimal{dec("0.4"), dec("0.3"), dec("0.2"), dec("0.1")}},
		CurrentCurve:  rateMap{1: decimal.Zero, 2: decimal.Zero},
		AccidentCurve: rateMap{2: dec("0.01"), 3: dec("0.01")},
		RARatio:       dec("0.1"),
		Epsilon:       dec("0.0000000001"),
	}
}

func TestMeasureCohort_PresentValues(t *testing.T) {
	res, err := MeasureCohort(cohortInput(), newRecorder(nil, "k"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Age)
	assert.True(t, res.CurrentYear, "Accident and evaluation in the same year")
	assertDecimal(t, "0.3", res.UnpaidRatio, "Unpaid share of the pattern")
	require.Len(t, res.Amounts, 3, "One entry per amount type")

	caseAmt := res.Amounts[0]
	assert.Equal(t, domain.AmountCase, caseAmt.Type)
	require.Len(t, caseAmt.CurrentTable, 2)
	assertDecimal(t, "200", caseAmt.CurrentTable[0].CashFlow, "Weighted by the remaining pattern")
	assert.Equal(t, 1, caseAmt.CurrentTable[0].Term, "Current curve starts at term 1")
	assert.Equal(t, 2, caseAmt.AccidentTable[0].Term, "Accident curve starts at the cohort age")

	assertDecimal(t, "330", res.Current.Total, "Current BEL plus RA")
	assertDecimal(t, "296.0494069209", res.Accident.BEL, "Accident BEL")
	assertDecimal(t, "325.654347613", res.Accident.Total, "Accident BEL plus RA")
	assertDecimal(t, "328.9108910891", res.Values.Accreted, "Accident total accreted one month")
	assert.False(t, res.Settled)
}

func TestMeasureCohort_Movements(t *testing.T) {
	in := cohortInput()
	in.Prior = &domain.CohortSnapshot{
		Key:              in.Cohort.Key,
		Month:            "202401",
		CurrentTotal:     dec("400"),
		AccidentTotal:    dec("390"),
		AccretedAccident: dec("393.9"),
	}

	res, err := MeasureCohort(in, nil)
	require.NoError(t, err)

	assertDecimal(t, "-70", res.Movements.PaidClaim, "C - Cp")
	assertDecimal(t, "-68.245652387", res.Movements.ServiceCost, "A - Aa")
	assertDecimal(t, "3.9", res.Movements.Financing, "Aa - Ap")
	assertDecimal(t, "-5.654347613", res.Movements.OCI, "(C - Cp) - A + Ap")
}

func TestMeasureCohort_ExhaustedPatternRoutesToSingleFlow(t *testing.T) {
	exhausted := cohortInput()
	exhausted.Pattern.Ratios = []decimal.Decimal{dec("0.5"), dec("0.5")}

	res, err := MeasureCohort(exhausted, nil)
	require.NoError(t, err)

	assertDecimal(t, "0", res.UnpaidRatio, "Development is exhausted")
	caseAmt := res.Amounts[0]
	require.Len(t, caseAmt.CurrentTable, 1, "Whole amount falls due one period ahead")
	assertDecimal(t, "300", caseAmt.CurrentTable[0].CashFlow, "Undivided amount")
	assert.Equal(t, 1, caseAmt.CurrentTable[0].Term)
	assert.Equal(t, 2, caseAmt.AccidentTable[0].Term)

	// the weighted branch with a single remaining weight converges on the same schedule
	nearly := cohortInput()
	nearly.Pattern.Ratios = []decimal.Decimal{dec("0.5"), dec("0.5").Sub(dec("0.000001")), dec("0.000001")}
	limit, err := MeasureCohort(nearly, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Current.Total.String(), limit.Current.Total.String())
	assert.Equal(t, res.Accident.Total.String(), limit.Accident.Total.String())
}

func TestMeasureCohort_UnpaidWithinEpsilon(t *testing.T) {
	in := cohortInput()
	in.Pattern.Ratios = []decimal.Decimal{dec("0.5"), dec("0.49999999999"), dec("0.00000000001")}

	res, err := MeasureCohort(in, nil)
	require.NoError(t, err)

	assert.Len(t, res.Amounts[0].CurrentTable, 1, "Unpaid below epsilon takes the single-flow route")
}

func TestMeasureCohort_AccidentAfterValuation(t *testing.T) {
	in := cohortInput()
	in.ValMonth = "202312"

	_, err := MeasureCohort(in, nil)

	assert.True(t, domain.IsKind(err, domain.KindInvalidDateOrdering))
}

func TestMeasureCohort_MissingRatesAggregated(t *testing.T) {
	in := cohortInput()
	in.Cohort.IBNR = dec("50")
	in.CurrentCurve = rateMap{}
	rec := newRecorder(nil, "k")

	_, err := MeasureCohort(in, rec)
	require.NoError(t, err)

	diags := rec.diagnostics()
	require.Len(t, diags, 1, "One note per curve, not per amount or term")
	assert.Contains(t, diags[0].Message, "current curve missing terms 1-2")
}

func TestSettleCohort(t *testing.T) {
	prior := domain.CohortSnapshot{
		Key:              domain.CohortKey{AccidentMonth: "202301", ClassCode: "M"},
		Month:            "202312",
		CurrentTotal:     dec("100"),
		AccidentTotal:    dec("95"),
		AccretedAccident: dec("96"),
	}

	res := SettleCohort(prior, "202401")

	assert.True(t, res.Settled)
	assertDecimal(t, "-100", res.Movements.PaidClaim, "Paid is -Cp")
	assertDecimal(t, "-96", res.Movements.ServiceCost, "Service is -Aa")
	assertDecimal(t, "1", res.Movements.Financing, "Financing is Aa - Ap")
	assertDecimal(t, "-5", res.Movements.OCI, "OCI is Ap - Cp")
}

func claimsStore() *memory.Store {
	s := memory.New()
	for _, m := range []string{"202401", "202402", "202403"} {
		s.AddCurvePoints(flatCurve(m, 24, "0.002")...)
		s.PutAssumption(domain.Assumption{Month: m, ClassCode: "M", Method: "8", LossRatio: dec("0.6"), ClaimsRiskAdjustment: dec("0.05")})
	}
	s.PutPattern(domain.Pattern{ClassCode: "M", Ratios: []decimal.Decimal{dec("0.4"), dec("0.3"), dec("0.2"), dec("0.1")}})
	s.AddCohorts("202402",
		domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202402", ClassCode: "M"}, Case: dec("500"), IBNR: dec("200")},
		domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202401", ClassCode: "M"}, Case: dec("300"), ULAE: dec("20")},
	)
	s.AddCohorts("202403",
		domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202402", ClassCode: "M"}, Case: dec("350"), IBNR: dec("150")},
	)
	return s
}

func TestIncurredEngine_RollsSnapshotsForward(t *testing.T) {
	s := claimsStore()
	engine := NewIncurredEngine(s)
	engine.Results = s

	feb, err := engine.Measure(context.Background(), "202402")
	require.NoError(t, err)
	require.Len(t, feb.Cohorts, 2)
	assert.Equal(t, "202401", feb.Cohorts[0].Key.AccidentMonth, "Sorted by class then accident month")
	assert.True(t, feb.Cohorts[0].Values.PriorCurrent.IsZero(), "No prior period")

	mar, err := engine.Measure(context.Background(), "202403")
	require.NoError(t, err)
	require.Len(t, mar.Cohorts, 2, "One carried cohort and one settled cohort")

	settled := mar.Cohorts[0]
	assert.True(t, settled.Settled, "202401 cohort is gone in March")
	assert.True(t, settled.Values.PriorCurrent.Equal(feb.Cohorts[0].Values.Current))
	assert.True(t, settled.Movements.PaidClaim.Equal(feb.Cohorts[0].Values.Current.Neg()))

	carried := mar.Cohorts[1]
	assert.False(t, carried.Settled)
	assert.True(t, carried.Values.PriorAccreted.Equal(feb.Cohorts[1].Values.Accreted), "Prior accreted value read back")
	assert.True(t, carried.Values.PriorAccident.Equal(feb.Cohorts[1].Values.Accident))

	total := domain.Movements{}
	for _, c := range mar.Cohorts {
		total = total.Add(c.Movements)
	}
	assert.Equal(t, total, mar.Totals, "Totals sum every cohort")
}

func TestIncurredEngine_MissingRiskAdjustmentAssumption(t *testing.T) {
	s := claimsStore()
	s.AddCohorts("202404", domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202403", ClassCode: "M"}, Case: dec("10")})

	_, err := NewIncurredEngine(s).Measure(context.Background(), "202404")

	assert.True(t, domain.IsKind(err, domain.KindMissingAssumption))
}

func TestIncurredEngine_MissingPatternIsDiagnostic(t *testing.T) {
	s := claimsStore()
	s.AddCohorts("202403", domain.ClaimCohort{Key: domain.CohortKey{AccidentMonth: "202403", ClassCode: "Q"}, Case: dec("10")})
	s.PutAssumption(domain.Assumption{Month: "202403", ClassCode: "Q", Method: "8", ClaimsRiskAdjustment: dec("0.05")})

	res, err := NewIncurredEngine(s).Measure(context.Background(), "202403")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Diagnostics.Count(domain.KindMissingPattern))
	for _, c := range res.Cohorts {
		if c.Key.ClassCode == "Q" {
			assert.Len(t, c.Amounts[0].CurrentTable, 1, "Without a pattern the reserve falls due next period")
		}
	}
}

func TestIncurredEngine_InvalidMonth(t *testing.T) {
	_, err := NewIncurredEngine(memory.New()).Measure(context.Background(), "24-03")

	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
}
