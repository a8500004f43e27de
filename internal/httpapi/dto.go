package httpapi

import (
	"time"

	"github.com/hupe1980/biomatch/model"
)

// RecordResponse is the wire form of a stored record. Vectors are never
// exposed over the API.
type RecordResponse struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toRecordResponse(rec *model.Record) RecordResponse {
	return RecordResponse{
		ID:        rec.ID,
		Type:      string(rec.Type),
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
	}
}

// CompareResponse reports a successful identification.
type CompareResponse struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Record RecordResponse `json:"record"`
}

// ListResponse is the pagination envelope for record listings.
type ListResponse struct {
	Data  []RecordResponse `json:"data"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`

	// ConflictID and Score are set on duplicate-registration conflicts.
	ConflictID string   `json:"conflict_id,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}
