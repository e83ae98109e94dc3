package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionPatch is a typed partial update. Only fields that are non-nil
// are applied; there is no dynamic shape merging. A patch is validated
// against the entity's invariants before it touches in-memory state.
type TransactionPatch struct {
	Date        *civil.Date      `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	AccountID   *string          `json:"accountId,omitempty"`
	Tags        *[]string        `json:"tags,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.CategoryID == nil &&
		p.Type == nil && p.Amount == nil && p.AccountID == nil &&
		p.Tags == nil && p.Notes == nil
}

// Apply returns a copy of t with the patch's present fields applied. The
// result is validated; t is never left half-patched on error.
func (p TransactionPatch) Apply(t Transaction) (Transaction, error) {
	out := t.Clone()
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.AccountID != nil {
		out.AccountID = *p.AccountID
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if err := out.Validate(); err != nil {
		return Transaction{}, fmt.Errorf("TransactionPatch.Apply: %w", err)
	}
	return out, nil
}
