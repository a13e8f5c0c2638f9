// Package postgres reads the measurement source tables from PostgreSQL and writes run results back.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/shopspring/decimal"
)

// Compile-time interface checks.
var (
	_ store.Source       = (*Repo)(nil)
	_ store.ClaimSource  = (*Repo)(nil)
	_ store.ResultWriter = (*Repo)(nil)
)

//go:embed schema.sql
var schema string

// Repo implements the store ports using PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates a new Repo.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables the repo reads and writes.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Contract retrieves a contract by key.
func (r *Repo) Contract(ctx context.Context, key domain.ContractKey) (domain.Contract, error) {
	k := key.Normalize()
	var (
		c                                   domain.Contract
		variant                             string
		start, end, underwrite, endorsement *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT policy_no, endorsement_no, variant, class_code, premium, commission, brokerage,
		       confirm_date, start_date, end_date, term_days, underwrite_date, endorsement_date,
		       investment_ratio, share_rate, underlying_policy_no, underlying_endorsement_no
		FROM contracts
		WHERE policy_no = $1 AND endorsement_no = $2
	`, k.PolicyNo, k.EndorsementNo).Scan(
		&c.Key.PolicyNo, &c.Key.EndorsementNo, &variant, &c.ClassCode, &c.Premium, &c.Commission, &c.Brokerage,
		&c.ConfirmDate, &start, &end, &c.TermDays, &underwrite, &endorsement,
		&c.InvestmentRatio, &c.ShareRate, &c.Underlying.PolicyNo, &c.Underlying.EndorsementNo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contract{}, fmt.Errorf("contract %s: %w", k, store.ErrNotFound)
	}
	if err != nil {
		return domain.Contract{}, fmt.Errorf("query contract: %w", err)
	}
	c.Variant = domain.Variant(variant)
	c.StartDate = deref(start)
	c.EndDate = deref(end)
	c.UnderwriteDate = deref(underwrite)
	c.EndorsementDate = deref(endorsement)
	return c, nil
}

// ContractKeys lists every contract in insertion order.
func (r *Repo) ContractKeys(ctx context.Context) ([]domain.ContractKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT policy_no, endorsement_no FROM contracts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query contract keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.ContractKey
	for rows.Next() {
		var k domain.ContractKey
		if err := rows.Scan(&k.PolicyNo, &k.EndorsementNo); err != nil {
			return nil, fmt.Errorf("scan contract key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CashFlows retrieves the raw cash-flow rows of a contract.
func (r *Repo) CashFlows(ctx context.Context, key domain.ContractKey) ([]domain.CashFlowRow, error) {
	k := key.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT month, flow_type, amount
		FROM cash_flows
		WHERE policy_no = $1 AND endorsement_no = $2
		ORDER BY id
	`, k.PolicyNo, k.EndorsementNo)
	if err != nil {
		return nil, fmt.Errorf("query cash flows: %w", err)
	}
	defer rows.Close()

	var result []domain.CashFlowRow
	for rows.Next() {
		var row domain.CashFlowRow
		var typ string
		if err := rows.Scan(&row.Month, &typ, &row.Amount); err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		row.Type = domain.CashFlowType(typ)
		result = append(result, row)
	}
	return result, rows.Err()
}

// Assumption retrieves the first assumption row for (month, class, method).
func (r *Repo) Assumption(ctx context.Context, month, classCode, method string) (domain.Assumption, error) {
	a := domain.Assumption{Month: month, ClassCode: classCode, Method: method}
	err := r.pool.QueryRow(ctx, `
		SELECT loss_ratio, indirect_claims_ratio, maintenance_ratio, ra_ratio,
		       acquisition_expense_ratio, lic_ra_ratio
		FROM assumptions
		WHERE month = $1 AND class_code = $2 AND method = $3
		ORDER BY id
		LIMIT 1
	`, month, classCode, method).Scan(
		&a.LossRatio, &a.IndirectClaimsRatio, &a.MaintenanceRatio, &a.RiskAdjustmentRatio,
		&a.AcquisitionExpenseRatio, &a.ClaimsRiskAdjustment,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assumption{}, fmt.Errorf("assumption %s/%s/%s: %w", month, classCode, method, store.ErrNotFound)
	}
	if err != nil {
		return domain.Assumption{}, fmt.Errorf("query assumption: %w", err)
	}
	return a, nil
}

// Curve retrieves the curve published for a month. Rows are read in insertion order so the
// first row per term wins.
func (r *Repo) Curve(ctx context.Context, month string) (domain.Curve, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT term, rate FROM discount_curves WHERE month = $1 ORDER BY id
	`, month)
	if err != nil {
		return domain.Curve{}, fmt.Errorf("query curve: %w", err)
	}
	defer rows.Close()

	var points []domain.CurvePoint
	for rows.Next() {
		pt := domain.CurvePoint{Month: month}
		if err := rows.Scan(&pt.Term, &pt.Rate); err != nil {
			return domain.Curve{}, fmt.Errorf("scan curve point: %w", err)
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return domain.Curve{}, err
	}
	if len(points) == 0 {
		return domain.Curve{}, fmt.Errorf("curve %s: %w", month, store.ErrNotFound)
	}
	return domain.NewCurve(month, points), nil
}

// Pattern retrieves the development ratios of a class ordered by age.
func (r *Repo) Pattern(ctx context.Context, classCode string) (domain.Pattern, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ratio FROM claim_patterns WHERE class_code = $1 ORDER BY age
	`, classCode)
	if err != nil {
		return domain.Pattern{}, fmt.Errorf("query pattern: %w", err)
	}
	defer rows.Close()

	p := domain.Pattern{ClassCode: classCode}
	for rows.Next() {
		var ratio decimal.Decimal
		if err := rows.Scan(&ratio); err != nil {
			return domain.Pattern{}, fmt.Errorf("scan pattern ratio: %w", err)
		}
		p.Ratios = append(p.Ratios, ratio)
	}
	if err := rows.Err(); err != nil {
		return domain.Pattern{}, err
	}
	if len(p.Ratios) == 0 {
		return domain.Pattern{}, fmt.Errorf("pattern %s: %w", classCode, store.ErrNotFound)
	}
	return p, nil
}

// Cohorts retrieves the claim cohorts carried at a month.
func (r *Repo) Cohorts(ctx context.Context, month string) ([]domain.ClaimCohort, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT accident_month, class_code, case_amount, ibnr_amount, ulae_amount
		FROM claim_cohorts
		WHERE month = $1
		ORDER BY class_code, accident_month
	`, month)
	if err != nil {
		return nil, fmt.Errorf("query cohorts: %w", err)
	}
	defer rows.Close()

	var result []domain.ClaimCohort
	for rows.Next() {
		var c domain.ClaimCohort
		if err := rows.Scan(&c.Key.AccidentMonth, &c.Key.ClassCode, &c.Case, &c.IBNR, &c.ULAE); err != nil {
			return nil, fmt.Errorf("scan cohort: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Snapshots retrieves the cohort values saved for a month.
func (r *Repo) Snapshots(ctx context.Context, month string) ([]domain.CohortSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT accident_month, class_code, current_total, accident_total, accreted_accident
		FROM cohort_snapshots
		WHERE month = $1
		ORDER BY class_code, accident_month
	`, month)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []domain.CohortSnapshot
	for rows.Next() {
		s := domain.CohortSnapshot{Month: month}
		if err := rows.Scan(&s.Key.AccidentMonth, &s.Key.ClassCode, &s.CurrentTotal, &s.AccidentTotal, &s.AccretedAccident); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UnderlyingLoss retrieves the loss recorded for a contract and month.
func (r *Repo) UnderlyingLoss(ctx context.Context, key domain.ContractKey, month string) (decimal.Decimal, error) {
	k := key.Normalize()
	var amount decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT amount FROM underlying_losses
		WHERE policy_no = $1 AND endorsement_no = $2 AND month = $3
	`, k.PolicyNo, k.EndorsementNo, month).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("loss %s@%s: %w", k, month, store.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query loss: %w", err)
	}
	return amount, nil
}

// SaveMeasurement persists a run result and its loss in one transaction.
func (r *Repo) SaveMeasurement(ctx context.Context, result *domain.MeasurementResult) error {
	if result == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	k := result.Contract.Normalize()
	_, err = tx.Exec(ctx, `
		INSERT INTO lrc_results (run_id, policy_no, endorsement_no, target_month, closing, loss_amount, lrc_debt, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.RunID, k.PolicyNo, k.EndorsementNo, result.TargetMonth,
		result.Closing, result.LossAmount, result.LRCDebt, payload)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO underlying_losses (policy_no, endorsement_no, month, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (policy_no, endorsement_no, month) DO UPDATE SET amount = EXCLUDED.amount
	`, k.PolicyNo, k.EndorsementNo, result.TargetMonth, result.LossAmount)
	if err != nil {
		return fmt.Errorf("upsert loss: %w", err)
	}

	return tx.Commit(ctx)
}

// SaveSnapshots upserts cohort snapshots in one batch.
func (r *Repo) SaveSnapshots(ctx context.Context, snapshots []domain.CohortSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(`
			INSERT INTO cohort_snapshots (month, accident_month, class_code, current_total, accident_total, accreted_accident)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (month, accident_month, class_code) DO UPDATE SET
				current_total = EXCLUDED.current_total,
				accident_total = EXCLUDED.accident_total,
				accreted_accident = EXCLUDED.accreted_accident
		`, s.Month, s.Key.AccidentMonth, s.Key.ClassCode, s.CurrentTotal, s.AccidentTotal, s.AccretedAccident)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	return nil
}

// Load inserts a portfolio into the source tables in one transaction.
func (r *Repo) Load(ctx context.Context, p *domain.Portfolio) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range p.Contracts {
		k := c.Key.Normalize()
		u := c.Underlying.Normalize()
		variant := c.Variant
		if variant == "" {
			variant = domain.VariantDirect
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO contracts (policy_no, endorsement_no, variant, class_code, premium, commission, brokerage,
				confirm_date, start_date, end_date, term_days, underwrite_date, endorsement_date,
				investment_ratio, share_rate, underlying_policy_no, underlying_endorsement_no)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, k.PolicyNo, k.EndorsementNo, string(variant), c.ClassCode, c.Premium, c.Commission, c.Brokerage,
			c.ConfirmDate, nullable(c.StartDate), nullable(c.EndDate), c.TermDays,
			nullable(c.UnderwriteDate), nullable(c.EndorsementDate),
			c.InvestmentRatio, c.ShareRate, u.PolicyNo, u.EndorsementNo)
		if err != nil {
			return fmt.Errorf("insert contract %s: %w", k, err)
		}
	}
	for _, cf := range p.CashFlows {
		k := cf.Key.Normalize()
		if _, err := tx.Exec(ctx, `
			INSERT INTO cash_flows (policy_no, endorsement_no, month, flow_type, amount) VALUES ($1, $2, $3, $4, $5)
		`, k.PolicyNo, k.EndorsementNo, cf.Month, string(cf.Type), cf.Amount); err != nil {
			return fmt.Errorf("insert cash flow: %w", err)
		}
	}
	for _, a := range p.Assumptions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assumptions (month, class_code, method, loss_ratio, indirect_claims_ratio, maintenance_ratio,
				ra_ratio, acquisition_expense_ratio, lic_ra_ratio)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.Month, a.ClassCode, a.Method, a.LossRatio, a.IndirectClaimsRatio, a.MaintenanceRatio,
			a.RiskAdjustmentRatio, a.AcquisitionExpenseRatio, a.ClaimsRiskAdjustment); err != nil {
			return fmt.Errorf("insert assumption: %w", err)
		}
	}
	for _, pt := range p.Curves {
		if _, err := tx.Exec(ctx, `
			INSERT INTO discount_curves (month, term, rate) VALUES ($1, $2, $3)
		`, pt.Month, pt.Term, pt.Rate); err != nil {
			return fmt.Errorf("insert curve point: %w", err)
		}
	}
	for _, pat := range p.Patterns {
		for i, ratio := range pat.Ratios {
			if _, err := tx.Exec(ctx, `
				INSERT INTO claim_patterns (class_code, age, ratio) VALUES ($1, $2, $3)
				ON CONFLICT (class_code, age) DO UPDATE SET ratio = EXCLUDED.ratio
			`, pat.ClassCode, i+1, ratio); err != nil {
				return fmt.Errorf("insert pattern ratio: %w", err)
			}
		}
	}
	for _, c := range p.Cohorts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO claim_cohorts (month, accident_month, class_code, case_amount, ibnr_amount, ulae_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.Month, c.Key.AccidentMonth, c.Key.ClassCode, c.Case, c.IBNR, c.ULAE); err != nil {
			return fmt.Errorf("insert cohort: %w", err)
		}
	}
	for _, s := range p.Snapshots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cohort_snapshots (month, accident_month, class_code, current_total, accident_total, accreted_accident)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.Month, s.Key.AccidentMonth, s.Key.ClassCode, s.CurrentTotal, s.AccidentTotal, s.AccretedAccident); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	for _, l := range p.UnderlyingLosses {
		k := l.Key.Normalize()
		if _, err := tx.Exec(ctx, `
			INSERT INTO underlying_losses (policy_no, endorsement_no, month, amount) VALUES ($1, $2, $3, $4)
		`, k.PolicyNo, k.EndorsementNo, l.Month, l.Amount); err != nil {
			return fmt.Errorf("insert underlying loss: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullable(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
