package calculation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/rgehrsitz/lrcm/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// IncurredEngine values every claim cohort of an evaluation month
type IncurredEngine struct {
	Source   store.ClaimSource
	Results  store.ResultWriter // optional; receives the cohort snapshots
	Settings domain.Settings
	Logger   Logger
}

// NewIncurredEngine creates an incurred-claims engine with default settings
func NewIncurredEngine(source store.ClaimSource) *IncurredEngine {
	return &IncurredEngine{
		Source:   source,
		Settings: domain.DefaultSettings(),
		Logger:   NopLogger{},
	}
}

// SetLogger sets the logger; nil restores the no-op logger
func (e *IncurredEngine) SetLogger(l Logger) {
	if l == nil {
		e.Logger = NopLogger{}
		return
	}
	e.Logger = l
}

// Measure values the cohorts carried at month against the snapshots of the previous month.
// Cohorts carried last month but absent now are released as settled.
func (e *IncurredEngine) Measure(ctx context.Context, month string) (*domain.IncurredResult, error) {
	if !dateutil.ValidMonth(month) {
		return nil, domain.NewMeasurementError(domain.KindInvalidInput, month, "invalid evaluation month", nil)
	}
	rec := newRecorder(e.Logger, "incurred/"+month)

	cohorts, err := e.Source.Cohorts(ctx, month)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load cohorts for %s: %w", month, err)
	}
	priorMonth := dateutil.PrevMonth(month)
	priors, err := e.Source.Snapshots(ctx, priorMonth)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load snapshots for %s: %w", priorMonth, err)
	}
	priorByKey := make(map[domain.CohortKey]domain.CohortSnapshot, len(priors))
	for _, p := range priors {
		priorByKey[p.Key] = p
	}

	current, err := curve(ctx, e.Source, e.Logger, month)
	if err != nil {
		return nil, err
	}
	curves := map[string]domain.Curve{month: current}
	patterns := map[string]domain.Pattern{}
	ratios := map[string]decimal.Decimal{}

	e.Logger.Infof("measuring %d cohort(s) at %s against %d prior snapshot(s)", len(cohorts), month, len(priors))

	result := &domain.IncurredResult{
		RunID: uuid.New().String(),
		Month: month,
	}
	seen := make(map[domain.CohortKey]bool, len(cohorts))
	for _, cohort := range cohorts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := cohort.Key
		if seen[key] {
			return nil, domain.NewMeasurementError(domain.KindInvalidInput, cohortLabel(key), "duplicate cohort", nil)
		}
		seen[key] = true

		pattern, ok := patterns[key.ClassCode]
		if !ok {
			pattern, err = e.Source.Pattern(ctx, key.ClassCode)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("failed to load pattern %s: %w", key.ClassCode, err)
				}
				rec.note(domain.KindMissingPattern, month, "no claim pattern for class %s, reserves fall due next period", key.ClassCode)
				pattern = domain.Pattern{ClassCode: key.ClassCode}
			}
			patterns[key.ClassCode] = pattern
		}

		ra, ok := ratios[key.ClassCode]
		if !ok {
			a, err := e.Source.Assumption(ctx, month, key.ClassCode, e.Settings.Methods.Direct)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, domain.NewMeasurementError(domain.KindMissingAssumption, month+"/"+key.ClassCode,
						"no claims risk adjustment ratio", err)
				}
				return nil, fmt.Errorf("failed to load assumption %s/%s: %w", month, key.ClassCode, err)
			}
			ra = a.ClaimsRiskAdjustment
			ratios[key.ClassCode] = ra
		}

		accident, ok := curves[key.AccidentMonth]
		if !ok {
			accident, err = curve(ctx, e.Source, e.Logger, key.AccidentMonth)
			if err != nil {
				return nil, err
			}
			curves[key.AccidentMonth] = accident
		}

		in := CohortInput{
			Cohort:        cohort,
			ValMonth:      month,
			Pattern:       pattern,
			CurrentCurve:  current,
			AccidentCurve: accident,
			RARatio:       ra,
			Epsilon:       e.Settings.UnpaidEpsilon,
		}
		if p, ok := priorByKey[key]; ok {
			in.Prior = &p
		}
		cr, err := MeasureCohort(in, rec)
		if err != nil {
			return nil, err
		}
		result.Cohorts = append(result.Cohorts, cr)
	}

	for _, p := range priors {
		if !seen[p.Key] {
			e.Logger.Debugf("cohort %s settled at %s", cohortLabel(p.Key), month)
			result.Cohorts = append(result.Cohorts, SettleCohort(p, month))
		}
	}

	sort.SliceStable(result.Cohorts, func(i, j int) bool {
		a, b := result.Cohorts[i].Key, result.Cohorts[j].Key
		if a.ClassCode != b.ClassCode {
			return a.ClassCode < b.ClassCode
		}
		return a.AccidentMonth < b.AccidentMonth
	})
	for _, c := range result.Cohorts {
		result.Totals = result.Totals.Add(c.Movements)
	}
	result.Diagnostics = rec.diagnostics()

	if e.Results != nil {
		snaps := make([]domain.CohortSnapshot, 0, len(result.Cohorts))
		for i := range result.Cohorts {
			if !result.Cohorts[i].Settled {
				snaps = append(snaps, result.Cohorts[i].Snapshot())
			}
		}
		if err := e.Results.SaveSnapshots(ctx, snaps); err != nil {
			return nil, fmt.Errorf("failed to save snapshots for %s: %w", month, err)
		}
	}
	return result, nil
}
