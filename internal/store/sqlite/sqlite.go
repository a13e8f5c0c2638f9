/*
Package sqlite provides a SQLite-backed implementation of the store ports.

PURPOSE:
  Persists the source tables a measurement run reads (contracts, cash flows,
  assumptions, curves, patterns, claim cohorts) together with the run outputs
  that later runs read back (measurement results, underlying losses, cohort
  snapshots). The CLI and HTTP server use it when settings select the
  "sqlite" driver.

INTERFACES IMPLEMENTED:
  store.Source:       contract measurement inputs
  store.ClaimSource:  incurred-claims inputs
  store.ResultWriter: run outputs

KEY TABLES:
  contracts:          one row per (policy_no, endorsement_no)
  cash_flows:         raw transactional rows, appended
  assumptions:        first row per (month, class_code, method) wins
  curve_points:       first row per (month, term) wins, by insertion order
  pattern_ratios:     development ratios by (class_code, age)
  claim_cohorts:      reserves by (month, accident_month, class_code)
  cohort_snapshots:   values carried to the next evaluation month
  measurements:       run results as JSON, keyed by run id
  underlying_losses:  loss per (contract, month) referenced by ceded business

AMOUNTS:
  Decimals are stored as TEXT and parsed with shopspring/decimal so that no
  value passes through a float.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The database is opened in WAL mode so
  readers don't block each other.

USAGE:
  st, err := sqlite.New("./data/lrcm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  engine := calculation.NewMeasurementEngine(st)
  engine.Results = st
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/shopspring/decimal"
)

var (
	_ store.Source       = (*Store)(nil)
	_ store.ClaimSource  = (*Store)(nil)
	_ store.ResultWriter = (*Store)(nil)
)

const dateLayout = "2006-01-02"

// Store implements the store ports using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_no TEXT NOT NULL,
		endorsement_no TEXT NOT NULL DEFAULT '',
		variant TEXT NOT NULL DEFAULT '',
		class_code TEXT NOT NULL,
		premium TEXT NOT NULL,
		commission TEXT NOT NULL DEFAULT '0',
		brokerage TEXT NOT NULL DEFAULT '0',
		confirm_date TEXT NOT NULL,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		term_days INTEGER NOT NULL DEFAULT 0,
		underwrite_date TEXT NOT NULL DEFAULT '',
		endorsement_date TEXT NOT NULL DEFAULT '',
		investment_ratio TEXT NOT NULL DEFAULT '0',
		share_rate TEXT NOT NULL DEFAULT '0',
		underlying_policy_no TEXT NOT NULL DEFAULT '',
		underlying_endorsement_no TEXT NOT NULL DEFAULT '',
		UNIQUE(policy_no, endorsement_no)
	);

	CREATE TABLE IF NOT EXISTS cash_flows (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_no TEXT NOT NULL,
		endorsement_no TEXT NOT NULL DEFAULT '',
		month TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_flows_contract
		ON cash_flows(policy_no, endorsement_no);

	CREATE TABLE IF NOT EXISTS assumptions (
		month TEXT NOT NULL,
		class_code TEXT NOT NULL,
		method TEXT NOT NULL,
		loss_ratio TEXT NOT NULL,
		indirect_claims_ratio TEXT NOT NULL DEFAULT '0',
		maintenance_ratio TEXT NOT NULL DEFAULT '0',
		ra_ratio TEXT NOT NULL DEFAULT '0',
		acquisition_expense_ratio TEXT NOT NULL DEFAULT '0',
		lic_ra_ratio TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (month, class_code, method)
	);

	CREATE TABLE IF NOT EXISTS curve_points (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		month TEXT NOT NULL,
		term INTEGER NOT NULL,
		rate TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_curve_points_month
		ON curve_points(month, term);

	CREATE TABLE IF NOT EXISTS pattern_ratios (
		class_code TEXT NOT NULL,
		age INTEGER NOT NULL,
		ratio TEXT NOT NULL,
		PRIMARY KEY (class_code, age)
	);

	CREATE TABLE IF NOT EXISTS claim_cohorts (
		month TEXT NOT NULL,
		accident_month TEXT NOT NULL,
		class_code TEXT NOT NULL,
		case_amount TEXT NOT NULL DEFAULT '0',
		ibnr_amount TEXT NOT NULL DEFAULT '0',
		ulae_amount TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (month, accident_month, class_code)
	);

	CREATE TABLE IF NOT EXISTS cohort_snapshots (
		month TEXT NOT NULL,
		accident_month TEXT NOT NULL,
		class_code TEXT NOT NULL,
		current_total TEXT NOT NULL,
		accident_total TEXT NOT NULL,
		accreted_accident TEXT NOT NULL,
		PRIMARY KEY (month, accident_month, class_code)
	);

	CREATE TABLE IF NOT EXISTS measurements (
		run_id TEXT PRIMARY KEY,
		policy_no TEXT NOT NULL,
		endorsement_no TEXT NOT NULL DEFAULT '',
		target_month TEXT NOT NULL,
		closing TEXT NOT NULL,
		loss_amount TEXT NOT NULL,
		lrc_debt TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_contract_month
		ON measurements(policy_no, endorsement_no, target_month);

	CREATE TABLE IF NOT EXISTS underlying_losses (
		policy_no TEXT NOT NULL,
		endorsement_no TEXT NOT NULL DEFAULT '',
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (policy_no, endorsement_no, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOADING
// =============================================================================

// Load writes every table of a portfolio in one transaction.
func (s *Store) Load(ctx context.Context, p *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range p.Contracts {
		if err := putContract(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, cf := range p.CashFlows {
		k := cf.Key.Normalize()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_flows (policy_no, endorsement_no, month, flow_type, amount) VALUES (?, ?, ?, ?, ?)`,
			k.PolicyNo, k.EndorsementNo, cf.Month, string(cf.Type), cf.Amount.String(),
		); err != nil {
			return fmt.Errorf("failed to insert cash flow: %w", err)
		}
	}
	for _, a := range p.Assumptions {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO assumptions
			(month, class_code, method, loss_ratio, indirect_claims_ratio, maintenance_ratio,
			 ra_ratio, acquisition_expense_ratio, lic_ra_ratio)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Month, a.ClassCode, a.Method, a.LossRatio.String(), a.IndirectClaimsRatio.String(),
			a.MaintenanceRatio.String(), a.RiskAdjustmentRatio.String(),
			a.AcquisitionExpenseRatio.String(), a.ClaimsRiskAdjustment.String(),
		); err != nil {
			return fmt.Errorf("failed to insert assumption: %w", err)
		}
	}
	for _, pt := range p.Curves {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO curve_points (month, term, rate) VALUES (?, ?, ?)`,
			pt.Month, pt.Term, pt.Rate.String(),
		); err != nil {
			return fmt.Errorf("failed to insert curve point: %w", err)
		}
	}
	for _, pat := range p.Patterns {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_ratios WHERE class_code = ?`, pat.ClassCode); err != nil {
			return fmt.Errorf("failed to replace pattern: %w", err)
		}
		for i, r := range pat.Ratios {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pattern_ratios (class_code, age, ratio) VALUES (?, ?, ?)`,
				pat.ClassCode, i+1, r.String(),
			); err != nil {
				return fmt.Errorf("failed to insert pattern ratio: %w", err)
			}
		}
	}
	for _, c := range p.Cohorts {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO claim_cohorts
			(month, accident_month, class_code, case_amount, ibnr_amount, ulae_amount)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.Month, c.Key.AccidentMonth, c.Key.ClassCode, c.Case.String(), c.IBNR.String(), c.ULAE.String(),
		); err != nil {
			return fmt.Errorf("failed to insert cohort: %w", err)
		}
	}
	if err := saveSnapshots(ctx, tx, p.Snapshots); err != nil {
		return err
	}
	for _, l := range p.UnderlyingLosses {
		if err := putLoss(ctx, tx, l.Key, l.Month, l.Amount); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putContract(ctx context.Context, db execer, c domain.Contract) error {
	k := c.Key.Normalize()
	u := c.Underlying.Normalize()
	_, err := db.ExecContext(ctx, `
		INSERT INTO contracts
		(policy_no, endorsement_no, variant, class_code, premium, commission, brokerage,
		 confirm_date, start_date, end_date, term_days, underwrite_date, endorsement_date,
		 investment_ratio, share_rate, underlying_policy_no, underlying_endorsement_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(policy_no, endorsement_no) DO UPDATE SET
			variant = excluded.variant,
			class_code = excluded.class_code,
			premium = excluded.premium,
			commission = excluded.commission,
			brokerage = excluded.brokerage,
			confirm_date = excluded.confirm_date,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			term_days = excluded.term_days,
			underwrite_date = excluded.underwrite_date,
			endorsement_date = excluded.endorsement_date,
			investment_ratio = excluded.investment_ratio,
			share_rate = excluded.share_rate,
			underlying_policy_no = excluded.underlying_policy_no,
			underlying_endorsement_no = excluded.underlying_endorsement_no
	`,
		k.PolicyNo, k.EndorsementNo, string(c.Variant), c.ClassCode,
		c.Premium.String(), c.Commission.String(), c.Brokerage.String(),
		formatDate(c.ConfirmDate), formatDate(c.StartDate), formatDate(c.EndDate), c.TermDays,
		formatDate(c.UnderwriteDate), formatDate(c.EndorsementDate),
		c.InvestmentRatio.String(), c.ShareRate.String(), u.PolicyNo, u.EndorsementNo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert contract %s: %w", k, err)
	}
	return nil
}

func putLoss(ctx context.Context, db execer, key domain.ContractKey, month string, amount decimal.Decimal) error {
	k := key.Normalize()
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO underlying_losses (policy_no, endorsement_no, month, amount)
		VALUES (?, ?, ?, ?)`,
		k.PolicyNo, k.EndorsementNo, month, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save loss for %s: %w", k, err)
	}
	return nil
}

func saveSnapshots(ctx context.Context, db execer, snapshots []domain.CohortSnapshot) error {
	for _, snap := range snapshots {
		if _, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO cohort_snapshots
			(month, accident_month, class_code, current_total, accident_total, accreted_accident)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snap.Month, snap.Key.AccidentMonth, snap.Key.ClassCode,
			snap.CurrentTotal.String(), snap.AccidentTotal.String(), snap.AccretedAccident.String(),
		); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SOURCE (store.Source and store.ClaimSource)
// =============================================================================

// Contract returns one contract record.
func (s *Store) Contract(ctx context.Context, key domain.ContractKey) (domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key.Normalize()
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_no, endorsement_no, variant, class_code, premium, commission, brokerage,
		       confirm_date, start_date, end_date, term_days, underwrite_date, endorsement_date,
		       investment_ratio, share_rate, underlying_policy_no, underlying_endorsement_no
		FROM contracts
		WHERE policy_no = ? AND endorsement_no = ?`,
		k.PolicyNo, k.EndorsementNo,
	)

	var (
		c                                              domain.Contract
		variant                                        string
		premium, commission, brokerage                 string
		confirm, start, end, underwrite, endorsementAt string
		investment, share                              string
	)
	err := row.Scan(
		&c.Key.PolicyNo, &c.Key.EndorsementNo, &variant, &c.ClassCode, &premium, &commission, &brokerage,
		&confirm, &start, &end, &c.TermDays, &underwrite, &endorsementAt,
		&investment, &share, &c.Underlying.PolicyNo, &c.Underlying.EndorsementNo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Contract{}, fmt.Errorf("contract %s: %w", k, store.ErrNotFound)
	}
	if err != nil {
		return domain.Contract{}, fmt.Errorf("failed to query contract %s: %w", k, err)
	}

	c.Variant = domain.Variant(variant)
	p := &parser{}
	c.Premium = p.decimal(premium)
	c.Commission = p.decimal(commission)
	c.Brokerage = p.decimal(brokerage)
	c.InvestmentRatio = p.decimal(investment)
	c.ShareRate = p.decimal(share)
	c.ConfirmDate = p.date(confirm)
	c.StartDate = p.date(start)
	c.EndDate = p.date(end)
	c.UnderwriteDate = p.date(underwrite)
	c.EndorsementDate = p.date(endorsementAt)
	if p.err != nil {
		return domain.Contract{}, fmt.Errorf("contract %s: %w", k, p.err)
	}
	return c, nil
}

// ContractKeys returns every contract key in insertion order.
func (s *Store) ContractKeys(ctx context.Context) ([]domain.ContractKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT policy_no, endorsement_no FROM contracts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var keys []domain.ContractKey
	for rows.Next() {
		var k domain.ContractKey
		if err := rows.Scan(&k.PolicyNo, &k.EndorsementNo); err != nil {
			return nil, fmt.Errorf("failed to scan contract key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CashFlows returns the raw rows of a contract in insertion order.
func (s *Store) CashFlows(ctx context.Context, key domain.ContractKey) ([]domain.CashFlowRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, flow_type, amount FROM cash_flows
		WHERE policy_no = ? AND endorsement_no = ?
		ORDER BY seq`,
		k.PolicyNo, k.EndorsementNo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows: %w", err)
	}
	defer rows.Close()

	var result []domain.CashFlowRow
	p := &parser{}
	for rows.Next() {
		var r domain.CashFlowRow
		var typ, amount string
		if err := rows.Scan(&r.Month, &typ, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		r.Type = domain.CashFlowType(typ)
		r.Amount = p.decimal(amount)
		result = append(result, r)
	}
	if p.err != nil {
		return nil, fmt.Errorf("cash flows of %s: %w", k, p.err)
	}
	return result, rows.Err()
}

// Assumption returns one assumption row.
func (s *Store) Assumption(ctx context.Context, month, classCode, method string) (domain.Assumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loss, indirect, maintenance, ra, acquisition, licRA string
	err := s.db.QueryRowContext(ctx, `
		SELECT loss_ratio, indirect_claims_ratio, maintenance_ratio, ra_ratio,
		       acquisition_expense_ratio, lic_ra_ratio
		FROM assumptions
		WHERE month = ? AND class_code = ? AND method = ?`,
		month, classCode, method,
	).Scan(&loss, &indirect, &maintenance, &ra, &acquisition, &licRA)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assumption{}, fmt.Errorf("assumption %s/%s/%s: %w", month, classCode, method, store.ErrNotFound)
	}
	if err != nil {
		return domain.Assumption{}, fmt.Errorf("failed to query assumption: %w", err)
	}

	p := &parser{}
	a := domain.Assumption{
		Month:                   month,
		ClassCode:               classCode,
		Method:                  method,
		LossRatio:               p.decimal(loss),
		IndirectClaimsRatio:     p.decimal(indirect),
		MaintenanceRatio:        p.decimal(maintenance),
		RiskAdjustmentRatio:     p.decimal(ra),
		AcquisitionExpenseRatio: p.decimal(acquisition),
		ClaimsRiskAdjustment:    p.decimal(licRA),
	}
	return a, p.err
}

// Curve returns the curve published for a month.
func (s *Store) Curve(ctx context.Context, month string) (domain.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT term, rate FROM curve_points WHERE month = ? ORDER BY seq`, month)
	if err != nil {
		return domain.Curve{}, fmt.Errorf("failed to query curve: %w", err)
	}
	defer rows.Close()

	var points []domain.CurvePoint
	p := &parser{}
	for rows.Next() {
		pt := domain.CurvePoint{Month: month}
		var rate string
		if err := rows.Scan(&pt.Term, &rate); err != nil {
			return domain.Curve{}, fmt.Errorf("failed to scan curve point: %w", err)
		}
		pt.Rate = p.decimal(rate)
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return domain.Curve{}, err
	}
	if p.err != nil {
		return domain.Curve{}, fmt.Errorf("curve %s: %w", month, p.err)
	}
	if len(points) == 0 {
		return domain.Curve{}, fmt.Errorf("curve %s: %w", month, store.ErrNotFound)
	}
	return domain.NewCurve(month, points), nil
}

// Pattern returns the development pattern of a class.
func (s *Store) Pattern(ctx context.Context, classCode string) (domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT ratio FROM pattern_ratios WHERE class_code = ? ORDER BY age`, classCode)
	if err != nil {
		return domain.Pattern{}, fmt.Errorf("failed to query pattern: %w", err)
	}
	defer rows.Close()

	pat := domain.Pattern{ClassCode: classCode}
	p := &parser{}
	for rows.Next() {
		var ratio string
		if err := rows.Scan(&ratio); err != nil {
			return domain.Pattern{}, fmt.Errorf("failed to scan pattern ratio: %w", err)
		}
		pat.Ratios = append(pat.Ratios, p.decimal(ratio))
	}
	if err := rows.Err(); err != nil {
		return domain.Pattern{}, err
	}
	if p.err != nil {
		return domain.Pattern{}, fmt.Errorf("pattern %s: %w", classCode, p.err)
	}
	if len(pat.Ratios) == 0 {
		return domain.Pattern{}, fmt.Errorf("pattern %s: %w", classCode, store.ErrNotFound)
	}
	return pat, nil
}

// Cohorts returns the claim cohorts carried at an evaluation month.
func (s *Store) Cohorts(ctx context.Context, month string) ([]domain.ClaimCohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT accident_month, class_code, case_amount, ibnr_amount, ulae_amount
		FROM claim_cohorts WHERE month = ?
		ORDER BY class_code, accident_month`, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohorts: %w", err)
	}
	defer rows.Close()

	var result []domain.ClaimCohort
	p := &parser{}
	for rows.Next() {
		var c domain.ClaimCohort
		var caseAmt, ibnr, ulae string
		if err := rows.Scan(&c.Key.AccidentMonth, &c.Key.ClassCode, &caseAmt, &ibnr, &ulae); err != nil {
			return nil, fmt.Errorf("failed to scan cohort: %w", err)
		}
		c.Case, c.IBNR, c.ULAE = p.decimal(caseAmt), p.decimal(ibnr), p.decimal(ulae)
		result = append(result, c)
	}
	if p.err != nil {
		return nil, fmt.Errorf("cohorts %s: %w", month, p.err)
	}
	return result, rows.Err()
}

// Snapshots returns the cohort values saved for an evaluation month.
func (s *Store) Snapshots(ctx context.Context, month string) ([]domain.CohortSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT accident_month, class_code, current_total, accident_total, accreted_accident
		FROM cohort_snapshots WHERE month = ?
		ORDER BY class_code, accident_month`, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var result []domain.CohortSnapshot
	p := &parser{}
	for rows.Next() {
		snap := domain.CohortSnapshot{Month: month}
		var current, accident, accreted string
		if err := rows.Scan(&snap.Key.AccidentMonth, &snap.Key.ClassCode, &current, &accident, &accreted); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.CurrentTotal = p.decimal(current)
		snap.AccidentTotal = p.decimal(accident)
		snap.AccretedAccident = p.decimal(accreted)
		result = append(result, snap)
	}
	if p.err != nil {
		return nil, fmt.Errorf("snapshots %s: %w", month, p.err)
	}
	return result, rows.Err()
}

// UnderlyingLoss returns the loss recorded for a contract and month.
func (s *Store) UnderlyingLoss(ctx context.Context, key domain.ContractKey, month string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key.Normalize()
	var amount string
	err := s.db.QueryRowContext(ctx, `
		SELECT amount FROM underlying_losses
		WHERE policy_no = ? AND endorsement_no = ? AND month = ?`,
		k.PolicyNo, k.EndorsementNo, month,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("loss %s@%s: %w", k, month, store.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query loss: %w", err)
	}
	return decimal.NewFromString(amount)
}

// =============================================================================
// RESULTS (store.ResultWriter)
// =============================================================================

// SaveMeasurement stores a run result and records its loss for ceded contracts that reference it.
func (s *Store) SaveMeasurement(ctx context.Context, result *domain.MeasurementResult) error {
	if result == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	k := result.Contract.Normalize()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO measurements
		(run_id, policy_no, endorsement_no, target_month, closing, loss_amount, lrc_debt, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, k.PolicyNo, k.EndorsementNo, result.TargetMonth,
		result.Closing.String(), result.LossAmount.String(), result.LRCDebt.String(),
		string(payload), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save measurement: %w", err)
	}
	if err := putLoss(ctx, tx, k, result.TargetMonth, result.LossAmount); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveSnapshots replaces the stored snapshots for each snapshot's cohort and month.
func (s *Store) SaveSnapshots(ctx context.Context, snapshots []domain.CohortSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveSnapshots(ctx, tx, snapshots); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestMeasurement returns the most recently saved result for a contract and month.
func (s *Store) LatestMeasurement(ctx context.Context, key domain.ContractKey, month string) (*domain.MeasurementResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key.Normalize()
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT result_json FROM measurements
		WHERE policy_no = ? AND endorsement_no = ? AND target_month = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		k.PolicyNo, k.EndorsementNo, month,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("measurement %s@%s: %w", k, month, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query measurement: %w", err)
	}

	var result domain.MeasurementResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode measurement: %w", err)
	}
	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// parser converts stored text columns, keeping the first failure
type parser struct {
	err error
}

func (p *parser) decimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("bad decimal %q: %w", s, err)
	}
	return d
}

func (p *parser) date(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("bad date %q: %w", s, err)
	}
	return t
}
