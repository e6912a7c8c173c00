package dto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validation errors
var (
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrIDTooLong     = errors.New("id exceeds maximum length (256)")
	ErrEmptySkills   = errors.New("skills cannot be empty")
	ErrTooManySkills = errors.New("skills count exceeds maximum (500)")
	ErrInvalidLimit  = errors.New("limit must be an integer")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxIDLength    = 256
	MaxSkillsCount = 500
	MaxBodyBytes   = 1024 * 1024 // 1MB
	DefaultLimit   = 10
)

// ValidateRecordID checks a resume or job id taken from the path.
func ValidateRecordID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	return nil
}

// MatchRequest is the body of POST /api/v1/matches.
type MatchRequest struct {
	Skills []string `json:"skills" binding:"required"`
	Limit  *int     `json:"limit,omitempty"`
}

// Validate performs validation on MatchRequest
func (r *MatchRequest) Validate() error {
	if len(r.Skills) == 0 {
		return ErrEmptySkills
	}
	if len(r.Skills) > MaxSkillsCount {
		return ErrTooManySkills
	}
	return nil
}

// EffectiveLimit returns the requested limit or DefaultLimit.
func (r *MatchRequest) EffectiveLimit() int {
	if r.Limit == nil {
		return DefaultLimit
	}
	return *r.Limit
}

// ParseLimit reads a ?limit= value. An absent value yields DefaultLimit;
// zero or negative values mean no limit.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}
	return n, nil
}
