// Package memory provides an in-memory implementation of the store ports.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/store"
	"github.com/shopspring/decimal"
)

var (
	_ store.Source       = (*Store)(nil)
	_ store.ClaimSource  = (*Store)(nil)
	_ store.ResultWriter = (*Store)(nil)
)

type assumptionKey struct {
	Month, ClassCode, Method string
}

type lossKey struct {
	Key   domain.ContractKey
	Month string
}

// Store keeps every table in maps guarded by a single RWMutex
type Store struct {
	mu          sync.RWMutex
	contracts   map[domain.ContractKey]domain.Contract
	order       []domain.ContractKey
	cashFlows   map[domain.ContractKey][]domain.CashFlowRow
	assumptions map[assumptionKey]domain.Assumption
	curvePoints map[string][]domain.CurvePoint
	patterns    map[string]domain.Pattern
	cohorts     map[string][]domain.ClaimCohort
	snapshots   map[string][]domain.CohortSnapshot
	losses      map[lossKey]decimal.Decimal
}

// New creates an empty store
func New() *Store {
	return &Store{
		contracts:   make(map[domain.ContractKey]domain.Contract),
		cashFlows:   make(map[domain.ContractKey][]domain.CashFlowRow),
		assumptions: make(map[assumptionKey]domain.Assumption),
		curvePoints: make(map[string][]domain.CurvePoint),
		patterns:    make(map[string]domain.Pattern),
		cohorts:     make(map[string][]domain.ClaimCohort),
		snapshots:   make(map[string][]domain.CohortSnapshot),
		losses:      make(map[lossKey]decimal.Decimal),
	}
}

// Load copies every table of a portfolio into the store
func (s *Store) Load(p *domain.Portfolio) {
	for _, c := range p.Contracts {
		s.PutContract(c)
	}
	for _, cf := range p.CashFlows {
		s.AddCashFlows(cf.Key, cf.CashFlowRow)
	}
	for _, a := range p.Assumptions {
		s.PutAssumption(a)
	}
	s.AddCurvePoints(p.Curves...)
	for _, pat := range p.Patterns {
		s.PutPattern(pat)
	}
	for _, c := range p.Cohorts {
		s.AddCohorts(c.Month, c.ClaimCohort)
	}
	if len(p.Snapshots) > 0 {
		_ = s.SaveSnapshots(context.Background(), p.Snapshots)
	}
	for _, l := range p.UnderlyingLosses {
		s.PutUnderlyingLoss(l.Key, l.Month, l.Amount)
	}
}

// PutContract adds or replaces a contract record
func (s *Store) PutContract(c domain.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Key = c.Key.Normalize()
	if _, exists := s.contracts[c.Key]; !exists {
		s.order = append(s.order, c.Key)
	}
	s.contracts[c.Key] = c
}

// AddCashFlows appends raw rows for a contract
func (s *Store) AddCashFlows(key domain.ContractKey, rows ...domain.CashFlowRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = key.Normalize()
	s.cashFlows[key] = append(s.cashFlows[key], rows...)
}

// PutAssumption adds an assumption row. The first row loaded per key wins.
func (s *Store) PutAssumption(a domain.Assumption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := assumptionKey{Month: a.Month, ClassCode: a.ClassCode, Method: a.Method}
	if _, exists := s.assumptions[k]; exists {
		return
	}
	s.assumptions[k] = a
}

// AddCurvePoints appends curve rows in load order
func (s *Store) AddCurvePoints(points ...domain.CurvePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.curvePoints[p.Month] = append(s.curvePoints[p.Month], p)
	}
}

// PutPattern adds or replaces a class pattern
func (s *Store) PutPattern(p domain.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.ClassCode] = p
}

// AddCohorts appends cohorts for an evaluation month
func (s *Store) AddCohorts(month string, cohorts ...domain.ClaimCohort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cohorts[month] = append(s.cohorts[month], cohorts...)
}

// PutUnderlyingLoss records a loss amount for a contract and month
func (s *Store) PutUnderlyingLoss(key domain.ContractKey, month string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.losses[lossKey{Key: key.Normalize(), Month: month}] = amount
}

func (s *Store) Contract(_ context.Context, key domain.ContractKey) (domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[key.Normalize()]
	if !ok {
		return domain.Contract{}, fmt.Errorf("contract %s: %w", key, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ContractKeys(_ context.Context) ([]domain.ContractKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]domain.ContractKey, len(s.order))
	copy(keys, s.order)
	return keys, nil
}

func (s *Store) CashFlows(_ context.Context, key domain.ContractKey) ([]domain.CashFlowRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.cashFlows[key.Normalize()]
	result := make([]domain.CashFlowRow, len(rows))
	copy(result, rows)
	return result, nil
}

func (s *Store) Assumption(_ context.Context, month, classCode, method string) (domain.Assumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assumptions[assumptionKey{Month: month, ClassCode: classCode, Method: method}]
	if !ok {
		return domain.Assumption{}, fmt.Errorf("assumption %s/%s/%s: %w", month, classCode, method, store.ErrNotFound)
	}
	return a, nil
}

func (s *Store) Curve(_ context.Context, month string) (domain.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.curvePoints[month]
	if !ok {
		return domain.Curve{}, fmt.Errorf("curve %s: %w", month, store.ErrNotFound)
	}
	return domain.NewCurve(month, points), nil
}

func (s *Store) Pattern(_ context.Context, classCode string) (domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[classCode]
	if !ok {
		return domain.Pattern{}, fmt.Errorf("pattern %s: %w", classCode, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) Cohorts(_ context.Context, month string) ([]domain.ClaimCohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ClaimCohort, len(s.cohorts[month]))
	copy(result, s.cohorts[month])
	return result, nil
}

func (s *Store) Snapshots(_ context.Context, month string) ([]domain.CohortSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.CohortSnapshot, len(s.snapshots[month]))
	copy(result, s.snapshots[month])
	return result, nil
}

func (s *Store) UnderlyingLoss(_ context.Context, key domain.ContractKey, month string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amt, ok := s.losses[lossKey{Key: key.Normalize(), Month: month}]
	if !ok {
		return decimal.Zero, fmt.Errorf("loss %s@%s: %w", key, month, store.ErrNotFound)
	}
	return amt, nil
}

// SaveMeasurement records the run's loss so ceded contracts can reference it
func (s *Store) SaveMeasurement(_ context.Context, result *domain.MeasurementResult) error {
	if result == nil {
		return nil
	}
	s.PutUnderlyingLoss(result.Contract, result.TargetMonth, result.LossAmount)
	return nil
}

// SaveSnapshots replaces the snapshots stored for each snapshot's month
func (s *Store) SaveSnapshots(_ context.Context, snapshots []domain.CohortSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth := make(map[string][]domain.CohortSnapshot)
	for _, snap := range snapshots {
		byMonth[snap.Month] = append(byMonth[snap.Month], snap)
	}
	for month, snaps := range byMonth {
		sort.Slice(snaps, func(i, j int) bool {
			if snaps[i].Key.ClassCode != snaps[j].Key.ClassCode {
				return snaps[i].Key.ClassCode < snaps[j].Key.ClassCode
			}
			return snaps[i].Key.AccidentMonth < snaps[j].Key.AccidentMonth
		})
		s.snapshots[month] = snaps
	}
	return nil
}
