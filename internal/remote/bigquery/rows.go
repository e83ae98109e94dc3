package bigquery

import (
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/domain"
)

// amountScale is the decimal precision carried when converting NUMERIC
// values back into decimals. BigQuery NUMERIC holds nine fractional digits.
const amountScale = 9

type transactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	OwnerID       string              `bigquery:"owner_id"`       // REQUIRED
	Date          civil.Date          `bigquery:"transaction_date"`
	Description   string              `bigquery:"description"`
	CategoryID    bigquery.NullString `bigquery:"category_id"`
	Type          string              `bigquery:"transaction_type"`
	Amount        *big.Rat            `bigquery:"amount"` // REQUIRED NUMERIC
	AccountID     bigquery.NullString `bigquery:"account_id"`
	Tags          []string            `bigquery:"tags"` // REPEATED STRING
	Notes         bigquery.NullString `bigquery:"notes"`
}

type accountRow struct {
	AccountID      string              `bigquery:"account_id"`
	OwnerID        string              `bigquery:"owner_id"`
	Name           string              `bigquery:"name"`
	Number         bigquery.NullString `bigquery:"number"`
	InitialBalance *big.Rat            `bigquery:"initial_balance"` // NUMERIC
}

type categoryRow struct {
	CategoryID string              `bigquery:"category_id"`
	OwnerID    string              `bigquery:"owner_id"`
	Name       string              `bigquery:"name"`
	ParentID   bigquery.NullString `bigquery:"parent_id"`
	IsSystem   bool                `bigquery:"is_system"`
}

type ruleRow struct {
	RuleID     string                 `bigquery:"rule_id"`
	OwnerID    string                 `bigquery:"owner_id"`
	Pattern    string                 `bigquery:"pattern"`
	CategoryID string                 `bigquery:"category_id"`
	ForceType  bigquery.NullString    `bigquery:"force_type"`
	MatchType  string                 `bigquery:"match_type"`
	IsActive   bool                   `bigquery:"is_active"`
	MatchCount int64                  `bigquery:"match_count"`
	LastUsed   bigquery.NullTimestamp `bigquery:"last_used"`
}

type documentRow struct {
	DocumentID string `bigquery:"document_id"`
	OwnerID    string `bigquery:"owner_id"`
	Collection string `bigquery:"collection"`
	Fields     string `bigquery:"fields"` // JSON payload
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func toTransactionRow(ownerID string, tx domain.Transaction) *transactionRow {
	return &transactionRow{
		TransactionID: tx.ID,
		OwnerID:       ownerID,
		Date:          tx.Date,
		Description:   tx.Description,
		CategoryID:    nullString(tx.CategoryID),
		Type:          string(tx.Type),
		Amount:        tx.Amount.Rat(),
		AccountID:     nullString(tx.AccountID),
		Tags:          tx.Tags,
		Notes:         nullString(tx.Notes),
	}
}

func (r *transactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:          r.TransactionID,
		Date:        r.Date,
		Description: r.Description,
		CategoryID:  r.CategoryID.StringVal,
		Type:        domain.TransactionType(r.Type),
		AccountID:   r.AccountID.StringVal,
		Tags:        r.Tags,
		Notes:       r.Notes.StringVal,
	}
	if r.Amount != nil {
		tx.Amount = decimal.NewFromBigRat(r.Amount, amountScale)
	}
	return tx
}

func toAccountRow(ownerID string, acc domain.BankAccount) *accountRow {
	return &accountRow{
		AccountID:      acc.ID,
		OwnerID:        ownerID,
		Name:           acc.Name,
		Number:         nullString(acc.Number),
		InitialBalance: acc.InitialBalance.Rat(),
	}
}

func (r *accountRow) toDomain() domain.BankAccount {
	acc := domain.BankAccount{
		ID:     r.AccountID,
		Name:   r.Name,
		Number: r.Number.StringVal,
	}
	if r.InitialBalance != nil {
		acc.InitialBalance = decimal.NewFromBigRat(r.InitialBalance, amountScale)
	}
	return acc
}

func toCategoryRow(ownerID string, cat domain.Category) *categoryRow {
	return &categoryRow{
		CategoryID: cat.ID,
		OwnerID:    ownerID,
		Name:       cat.Name,
		ParentID:   nullString(cat.ParentID),
		IsSystem:   cat.System,
	}
}

func (r *categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:       r.CategoryID,
		Name:     r.Name,
		ParentID: r.ParentID.StringVal,
		System:   r.IsSystem,
	}
}

func toRuleRow(ownerID string, rule domain.CategoryRule) *ruleRow {
	r := &ruleRow{
		RuleID:     rule.ID,
		OwnerID:    ownerID,
		Pattern:    rule.Pattern,
		CategoryID: rule.CategoryID,
		ForceType:  nullString(string(rule.ForceType)),
		MatchType:  string(rule.MatchType),
		IsActive:   rule.Active,
		MatchCount: int64(rule.MatchCount),
	}
	if !rule.LastUsed.IsZero() {
		r.LastUsed = bigquery.NullTimestamp{Timestamp: rule.LastUsed, Valid: true}
	}
	return r
}

func (r *ruleRow) toDomain() domain.CategoryRule {
	rule := domain.CategoryRule{
		ID:         r.RuleID,
		Pattern:    r.Pattern,
		CategoryID: r.CategoryID,
		ForceType:  domain.TransactionType(r.ForceType.StringVal),
		MatchType:  domain.MatchType(r.MatchType),
		Active:     r.IsActive,
		MatchCount: int(r.MatchCount),
	}
	if r.LastUsed.Valid {
		rule.LastUsed = r.LastUsed.Timestamp.UTC()
	}
	return rule
}
