package domain

import (
	"fmt"
	"time"
)

// MatchType selects the predicate a rule uses against a description.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
)

// CategoryRule maps a description pattern to a category, optionally forcing a
// transaction type. MatchCount and LastUsed feed the recency ordering used
// for single-transaction auto-assignment.
type CategoryRule struct {
	ID         string          `json:"id"`
	Pattern    string          `json:"pattern"`
	CategoryID string          `json:"categoryId"`
	ForceType  TransactionType `json:"forceType,omitempty"`
	MatchType  MatchType       `json:"matchType"`
	Active     bool            `json:"active"`
	MatchCount int             `json:"matchCount"`
	LastUsed   time.Time       `json:"lastUsed,omitzero"`
}

// Validate checks the rule before persistence.
func (r CategoryRule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("%w: rule pattern is required", ErrValidation)
	}
	if r.CategoryID == "" {
		return fmt.Errorf("%w: rule category is required", ErrValidation)
	}
	if r.MatchType != MatchExact && r.MatchType != MatchPartial {
		return fmt.Errorf("%w: unknown match type %q", ErrValidation, r.MatchType)
	}
	if r.ForceType != "" && !ValidType(r.ForceType) {
		return fmt.Errorf("%w: unknown forced type %q", ErrValidation, r.ForceType)
	}
	return nil
}
