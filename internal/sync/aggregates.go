package sync

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/domain"
)

// Balance derives the current balance of an account as its initial balance
// plus the signed sum of its transactions. The value is never stored; it is
// recomputed on demand from the ledger.
func (e *Engine) Balance(accountID string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, ok := e.accounts[accountID]
	if !ok {
		return decimal.Zero, fmt.Errorf("Balance: %w: %s", ErrUnknownAccount, accountID)
	}
	total := acc.InitialBalance
	for _, tx := range e.transactions {
		if tx.AccountID != accountID {
			continue
		}
		total = total.Add(tx.SignedAmount())
	}
	return total, nil
}

// CategorySummary returns the signed total for a category in a month
// (YYYY-MM), maintained incrementally as the ledger changes.
func (e *Engine) CategorySummary(categoryID, month string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary[summaryKey{CategoryID: categoryID, Month: month}]
}

// applySummaryDeltaLocked moves the summary counter from the before state to
// the after state. Passing nil for before models a create, nil for after a
// delete. The same pair, applied in the opposite direction, reverts the
// delta exactly.
func (e *Engine) applySummaryDeltaLocked(before, after *domain.Transaction) {
	if before != nil {
		e.bumpSummaryLocked(*before, before.SignedAmount().Neg())
	}
	if after != nil {
		e.bumpSummaryLocked(*after, after.SignedAmount())
	}
}

func (e *Engine) bumpSummaryLocked(tx domain.Transaction, delta decimal.Decimal) {
	key := summaryKey{CategoryID: tx.CategoryID, Month: tx.MonthKey()}
	next := e.summary[key].Add(delta)
	if next.IsZero() {
		delete(e.summary, key)
		return
	}
	e.summary[key] = next
}

// recomputeSummaryLocked rebuilds the category summary from scratch. This is
// the reconciliation fallback for the incremental counters; both paths must
// agree for any operation sequence.
func (e *Engine) recomputeSummaryLocked() {
	e.summary = make(map[summaryKey]decimal.Decimal, len(e.summary))
	for _, tx := range e.transactions {
		e.bumpSummaryLocked(tx, tx.SignedAmount())
	}
}

// RecomputeSummary forces a full rebuild of the category summary.
func (e *Engine) RecomputeSummary() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recomputeSummaryLocked()
}

// ReanchorAccount sets a new initial balance, used for historical imports
// and manual balance corrections. The change is persisted before the local
// anchor moves.
func (e *Engine) ReanchorAccount(ctx context.Context, accountID string, initial decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}
	acc, ok := e.accounts[accountID]
	if !ok {
		return fmt.Errorf("ReanchorAccount: %w: %s", ErrUnknownAccount, accountID)
	}
	acc.InitialBalance = initial
	if err := e.remote.PutAccount(ctx, e.userID, acc); err != nil {
		return fmt.Errorf("ReanchorAccount: remote write: %w", err)
	}
	e.accounts[accountID] = acc
	e.writeAccountsSnapshotLocked()
	return nil
}
