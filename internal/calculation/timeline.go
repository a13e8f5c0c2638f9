package calculation

import (
	"sort"
	"time"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// AssumptionLookup resolves an actuarial assumption by (month, class)
type AssumptionLookup func(month, classCode string) (domain.Assumption, bool)

// TimelineOptions are the business boundaries the builder applies
type TimelineOptions struct {
	StartMonth   string    // bucket receiving every collapsed amount
	CutoverMonth string    // last month of the legacy ledger
	EraBoundary  time.Time // contracts confirmed before this date carry an assumption cost
}

// monthAmounts is the per-month aggregate of raw rows
type monthAmounts struct {
	amounts      map[domain.CashFlowType]decimal.Decimal
	hasNonFollow bool
}

// BuildTimeline buckets raw cash-flow rows into evaluation months.
//
// Premium, commission and brokerage recorded at or before the start month collapse into the
// start bucket. Acquisition costs recorded at or before max(cutover, start) collapse into the
// start bucket as historical cost; every non-follow figure recorded at or before the cutover is
// added to it. After the cutover non-follow costs arrive cumulative-to-date and are converted to
// increments against the last recorded cumulative figure; the first post-cutover figure is its
// own increment. Negative increments are floored at zero with one diagnostic each.
func BuildTimeline(
	contract *domain.Contract,
	spec domain.VariantSpec,
	rows []domain.CashFlowRow,
	opts TimelineOptions,
	lookup AssumptionLookup,
	rec *recorder,
) (domain.Timeline, error) {
	key := contract.Key.String()
	if !dateutil.ValidMonth(opts.StartMonth) {
		return domain.Timeline{}, domain.NewMeasurementError(domain.KindInvalidInput, key,
			"invalid start month "+opts.StartMonth, nil)
	}

	byMonth, err := aggregateRows(key, rows)
	if err != nil {
		return domain.Timeline{}, err
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	start := opts.StartMonth
	cutover := opts.CutoverMonth
	if cutover == "" {
		cutover = start
	}
	acqBoundary := dateutil.MaxMonth(cutover, start)

	buckets := make(map[string]domain.CashFlow)
	var lastCumulative *decimal.Decimal
	increment := func(m string, cumulative decimal.Decimal) decimal.Decimal {
		previous := decimal.Zero
		if lastCumulative != nil {
			previous = *lastCumulative
		}
		c := cumulative
		lastCumulative = &c
		inc := cumulative.Sub(previous)
		if inc.IsNegative() {
			rec.note(domain.KindNegativeIncrement, m,
				"non-follow cumulative %s below previous %s, increment floored to 0",
				cumulative.String(), previous.String())
			return decimal.Zero
		}
		return inc
	}

	for _, m := range months {
		agg := byMonth[m]

		target := m
		if m <= start {
			target = start
		}
		cf := buckets[target]
		cf.Premium = cf.Premium.Add(agg.amounts[domain.FlowPremium])
		cf.Commission = cf.Commission.Add(agg.amounts[domain.FlowCommission])
		cf.Brokerage = cf.Brokerage.Add(agg.amounts[domain.FlowBrokerage])
		buckets[target] = cf

		if !spec.Acquisition {
			continue
		}

		follow := agg.amounts[domain.FlowAcqFollow]
		cumulative := agg.amounts[domain.FlowAcqNonFollow]

		if m <= acqBoundary {
			first := buckets[start]
			first.AcqHistorical = first.AcqHistorical.Add(follow)
			if agg.hasNonFollow {
				if m <= cutover {
					first.AcqHistorical = first.AcqHistorical.Add(cumulative)
				} else {
					first.AcqHistorical = first.AcqHistorical.Add(increment(m, cumulative))
				}
			}
			buckets[start] = first
			continue
		}

		cur := buckets[m]
		cur.AcqFollow = cur.AcqFollow.Add(follow)
		if agg.hasNonFollow {
			cur.AcqNonFollow = cur.AcqNonFollow.Add(increment(m, cumulative))
		}
		buckets[m] = cur
	}

	if spec.Acquisition && spec.LegacyAssumptionCost && contract.IsLegacy(opts.EraBoundary) {
		confirmMonth := dateutil.MonthKey(contract.ConfirmDate)
		var assumption domain.Assumption
		ok := false
		if lookup != nil {
			assumption, ok = lookup(confirmMonth, contract.ClassCode)
		}
		if !ok {
			return domain.Timeline{}, domain.NewMeasurementError(domain.KindMissingAssumption,
				confirmMonth+"/"+contract.ClassCode, "no assumption for legacy acquisition cost", nil)
		}
		first := buckets[start]
		first.AcqAssumption = round(contract.Premium.Mul(assumption.AcquisitionExpenseRatio))
		buckets[start] = first
	}

	return domain.NewTimeline(buckets), nil
}

// aggregateRows sums rows that share a month and type, rejecting malformed rows
func aggregateRows(key string, rows []domain.CashFlowRow) (map[string]*monthAmounts, error) {
	byMonth := make(map[string]*monthAmounts, len(rows))
	for _, r := range rows {
		if !dateutil.ValidMonth(r.Month) {
			return nil, domain.NewMeasurementError(domain.KindInvalidInput, key,
				"malformed cash-flow month "+r.Month, nil)
		}
		if !r.Type.Valid() {
			return nil, domain.NewMeasurementError(domain.KindInvalidInput, key,
				"unknown cash-flow type "+string(r.Type), nil)
		}
		agg, ok := byMonth[r.Month]
		if !ok {
			agg = &monthAmounts{amounts: make(map[domain.CashFlowType]decimal.Decimal)}
			byMonth[r.Month] = agg
		}
		agg.amounts[r.Type] = agg.amounts[r.Type].Add(r.Amount)
		if r.Type == domain.FlowAcqNonFollow {
			agg.hasNonFollow = true
		}
	}
	return byMonth, nil
}
