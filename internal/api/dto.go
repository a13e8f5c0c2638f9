package api

import "github.com/rgehrsitz/lrcm/internal/domain"

// MeasureRequest asks for one contract measurement
type MeasureRequest struct {
	PolicyNo      string `json:"policy_no"`
	EndorsementNo string `json:"endorsement_no,omitempty"`
	TargetMonth   string `json:"target_month"`
}

// Key returns the normalized contract key of the request
func (r MeasureRequest) Key() domain.ContractKey {
	return domain.ContractKey{PolicyNo: r.PolicyNo, EndorsementNo: r.EndorsementNo}.Normalize()
}

// IncurredRequest asks for the incurred-claims run of a month
type IncurredRequest struct {
	Month string `json:"month"`
}

// BatchRequest asks for several contract measurements at one target month.
// An empty contract list measures every contract in the store.
type BatchRequest struct {
	TargetMonth string               `json:"target_month"`
	Contracts   []domain.ContractKey `json:"contracts,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string           `json:"error"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Details string           `json:"details,omitempty"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}
