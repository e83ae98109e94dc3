package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestTransactionPatch_Apply_OnlyPresentFields(t *testing.T) {
	tx := validTransaction()
	amount := decimal.NewFromInt(999)
	p := TransactionPatch{
		CategoryID: strPtr("food"),
		Amount:     &amount,
	}

	got, err := p.Apply(tx)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got.CategoryID != "food" {
		t.Errorf("CategoryID = %q, want food", got.CategoryID)
	}
	if !got.Amount.Equal(amount) {
		t.Errorf("Amount = %s, want 999", got.Amount)
	}
	// Untouched fields survive.
	if got.Description != tx.Description || got.Date != tx.Date || got.Type != tx.Type {
		t.Error("Apply modified fields absent from the patch")
	}
}

func TestTransactionPatch_Apply_InvalidResult(t *testing.T) {
	tx := validTransaction()
	bad := decimal.NewFromInt(-1)
	p := TransactionPatch{Amount: &bad}

	if _, err := p.Apply(tx); err == nil {
		t.Fatal("expected validation error for negative amount")
	}
	// Source entity is untouched on failure.
	if !tx.Amount.Equal(decimal.NewFromInt(250)) {
		t.Error("Apply mutated its input on error")
	}
}

func TestTransactionPatch_IsEmpty(t *testing.T) {
	if !(TransactionPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if (TransactionPatch{Notes: strPtr("x")}).IsEmpty() {
		t.Error("patch with a field should not be empty")
	}
}
