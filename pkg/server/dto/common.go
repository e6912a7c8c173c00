package dto

import "github.com/soundprediction/careergraph/pkg/types"

// Result represents a generic API result
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse represents an error response. Step and Partial are set for
// failed ingestions.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Step    string `json:"step,omitempty"`
	Partial *bool  `json:"partial,omitempty"`
}

// ListResponse wraps list results with their length.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse never serializes a null items array.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// IngestResponse represents a response from ingest operations
type IngestResponse struct {
	Success bool         `json:"success"`
	Kind    string       `json:"kind"`
	ID      string       `json:"id"`
	Message string       `json:"message,omitempty"`
	Flags   []types.Flag `json:"flags,omitempty"`
}
