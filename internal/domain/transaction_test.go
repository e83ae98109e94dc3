package domain

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "t1",
		Date:        civil.Date{Year: 2024, Month: 1, Day: 5},
		Description: "SWIGGY ORDER 1234",
		Type:        TypeExpense,
		Amount:      decimal.NewFromInt(250),
		AccountID:   "acc1",
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Transaction) {}, wantErr: false},
		{name: "empty description", mutate: func(tx *Transaction) { tx.Description = "   " }, wantErr: true},
		{name: "zero amount", mutate: func(tx *Transaction) { tx.Amount = decimal.Zero }, wantErr: true},
		{name: "negative amount", mutate: func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, wantErr: true},
		{name: "invalid date", mutate: func(tx *Transaction) { tx.Date = civil.Date{} }, wantErr: true},
		{name: "unknown type", mutate: func(tx *Transaction) { tx.Type = "loan" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestTransaction_SignedAmount(t *testing.T) {
	tx := validTransaction()
	tx.Amount = decimal.NewFromInt(500)

	tx.Type = TypeIncome
	if got := tx.SignedAmount(); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("income signed amount = %s, want 500", got)
	}

	for _, typ := range []TransactionType{TypeExpense, TypeInvestment, TypeInsurance, TypeTransfer} {
		tx.Type = typ
		if got := tx.SignedAmount(); !got.Equal(decimal.NewFromInt(-500)) {
			t.Errorf("%s signed amount = %s, want -500", typ, got)
		}
	}
}

func TestAlnumKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ACH - D", "achd"},
		{"Payment ACH D June", "paymentachdjune"},
		{"SWIGGY*ORDER 12", "swiggyorder12"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := AlnumKey(tt.in); got != tt.want {
			t.Errorf("AlnumKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrderBefore(t *testing.T) {
	newer := Transaction{ID: "a", Date: civil.Date{Year: 2024, Month: 1, Day: 5}}
	older := Transaction{ID: "z", Date: civil.Date{Year: 2024, Month: 1, Day: 3}}
	if !OrderBefore(newer, older) {
		t.Error("newer date should sort before older date")
	}
	if OrderBefore(older, newer) {
		t.Error("older date should not sort before newer date")
	}

	sameDayA := Transaction{ID: "a", Date: newer.Date}
	sameDayB := Transaction{ID: "b", Date: newer.Date}
	if !OrderBefore(sameDayB, sameDayA) {
		t.Error("same-day entries should be tie-broken by id descending")
	}
}

func TestTransaction_Clone(t *testing.T) {
	tx := validTransaction()
	tx.Tags = []string{"food"}
	cp := tx.Clone()
	cp.Tags[0] = "travel"
	if tx.Tags[0] != "food" {
		t.Error("Clone shares the Tags slice with the original")
	}
}

func TestTransaction_MonthKey(t *testing.T) {
	tx := validTransaction()
	if got := tx.MonthKey(); got != "2024-01" {
		t.Errorf("MonthKey() = %q, want 2024-01", got)
	}
}
