package domain

import "github.com/shopspring/decimal"

// BankAccount anchors a ledger. There is no stored running balance: the
// current balance is always derived as InitialBalance plus the signed sum of
// the account's transactions. InitialBalance only moves when historical data
// is imported or a manual correction re-anchors the account.
type BankAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Number         string          `json:"number,omitempty"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// Category groups transactions. System categories are protected from
// deletion.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	System   bool   `json:"system,omitempty"`
}
