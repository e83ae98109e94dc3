package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType classifies the direction and purpose of a transaction.
// The sign of the ledger movement is implied by the type, never by the amount.
type TransactionType string

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeInvestment TransactionType = "investment"
	TypeInsurance  TransactionType = "insurance"
	TypeTransfer   TransactionType = "transfer"
)

// ValidType reports whether t is one of the known transaction types.
func ValidType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeInvestment, TypeInsurance, TypeTransfer:
		return true
	}
	return false
}

// ErrValidation wraps all pre-persistence validation failures so callers can
// distinguish them from remote errors.
var ErrValidation = errors.New("validation failed")

// Transaction is one ledger entry. Amount is a non-negative magnitude; use
// SignedAmount for balance arithmetic.
type Transaction struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"accountId,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// Validate checks the invariants that must hold before any persistence
// attempt: non-empty description, positive amount, valid date, known type.
// Account existence is checked by the engine, which owns the account set.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0, got %s", ErrValidation, t.Amount)
	}
	if !t.Date.IsValid() {
		return fmt.Errorf("%w: invalid date %v", ErrValidation, t.Date)
	}
	if !ValidType(t.Type) {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Type)
	}
	return nil
}

// SignedAmount returns the balance-affecting value of the transaction:
// positive for income, negative for everything else.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// MerchantKey returns the normalized merchant key derived from the
// description: lower-cased with everything but letters and digits removed.
func (t Transaction) MerchantKey() string {
	return AlnumKey(t.Description)
}

// AlnumKey lower-cases s and strips every rune that is not a letter or digit.
func AlnumKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clone returns a deep copy; the Tags slice is not shared with the receiver.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}

// OrderBefore reports whether a sorts before b in the ledger's canonical
// (date DESC, id DESC) order. ID is the tie-breaker for same-day entries so
// the order is total.
func OrderBefore(a, b Transaction) bool {
	if a.Date != b.Date {
		return a.Date.After(b.Date)
	}
	return a.ID > b.ID
}

// MonthKey returns the summary bucket key for the transaction's month, in
// YYYY-MM form.
func (t Transaction) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", t.Date.Year, int(t.Date.Month))
}
