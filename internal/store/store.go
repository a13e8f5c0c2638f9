/*
Package store defines the read-only ports the measurement engines consume.

PURPOSE:
  Decouples the engines from any storage technology. The engines only see
  these interfaces; implementations live in subpackages.

KEY INTERFACES:
  ContractRepository:   Contract master records, keyed by policy/endorsement
  CashFlowRepository:   Raw transactional rows per contract
  AssumptionRepository: Actuarial assumptions by (month, class, method)
  CurveRepository:      Forward discount curves by evaluation month
  PatternRepository:    Claim development patterns by class
  ClaimRepository:      Incurred-claims cohorts and prior-period snapshots
  LossRepository:       Underlying loss amounts for ceded contracts

ENDORSEMENT KEYS:
  Implementations normalize endorsement numbers with
  domain.NormalizeEndorsement, so "", "NA", "N/A", "NULL" and "NONE" all
  address the same base-policy record.

CURVES:
  Curve tables may carry duplicate (month, term) rows. Implementations must
  keep the first occurrence in load order.

IMPLEMENTATIONS:
  - store/memory:   In-memory, used by tests, the CLI and the HTTP API
  - store/sqlite:   Embedded SQLite with auto-migrated schema
  - store/postgres: PostgreSQL tables shared with the measurement platform
*/
package store

import (
	"context"
	"errors"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup key has no record
var ErrNotFound = errors.New("not found")

// ContractRepository resolves contract master records
type ContractRepository interface {
	Contract(ctx context.Context, key domain.ContractKey) (domain.Contract, error)
	ContractKeys(ctx context.Context) ([]domain.ContractKey, error)
}

// CashFlowRepository returns the raw cash-flow rows of a contract
type CashFlowRepository interface {
	CashFlows(ctx context.Context, key domain.ContractKey) ([]domain.CashFlowRow, error)
}

// AssumptionRepository resolves actuarial assumptions
type AssumptionRepository interface {
	Assumption(ctx context.Context, month, classCode, method string) (domain.Assumption, error)
}

// CurveRepository resolves the forward curve published for an evaluation month
type CurveRepository interface {
	Curve(ctx context.Context, month string) (domain.Curve, error)
}

// PatternRepository resolves claim development patterns
type PatternRepository interface {
	Pattern(ctx context.Context, classCode string) (domain.Pattern, error)
}

// ClaimRepository returns incurred-claims cohorts and the previous period's snapshots
type ClaimRepository interface {
	Cohorts(ctx context.Context, month string) ([]domain.ClaimCohort, error)
	Snapshots(ctx context.Context, month string) ([]domain.CohortSnapshot, error)
}

// LossRepository returns the loss component measured for a contract at a month
type LossRepository interface {
	UnderlyingLoss(ctx context.Context, key domain.ContractKey, month string) (decimal.Decimal, error)
}

// Source is everything a contract measurement run reads
type Source interface {
	ContractRepository
	CashFlowRepository
	AssumptionRepository
	CurveRepository
	PatternRepository
	LossRepository
}

// ClaimSource is everything an incurred-claims run reads
type ClaimSource interface {
	ClaimRepository
	AssumptionRepository
	CurveRepository
	PatternRepository
}

// ResultWriter persists run outputs that later runs read back
type ResultWriter interface {
	SaveMeasurement(ctx context.Context, result *domain.MeasurementResult) error
	SaveSnapshots(ctx context.Context, snapshots []domain.CohortSnapshot) error
}
