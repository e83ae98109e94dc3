package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

// AddTransaction validates tx, persists it remotely, then adds it to the
// in-memory ledger and aggregates. Additions are not optimistic: a remote
// failure leaves local state untouched and is returned to the caller.
func (e *Engine) AddTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return domain.Transaction{}, ErrNotInitialized
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := e.validateLocked(tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}

	if err := e.remote.PutTransaction(ctx, e.userID, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: remote write: %w", err)
	}

	e.transactions = mergeTransactions(e.transactions, []domain.Transaction{tx})
	e.applySummaryDeltaLocked(nil, &tx)
	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return tx, nil
}

// UpdateTransaction applies patch optimistically: in-memory state and
// aggregates change first, then the remote write is issued. On remote
// failure the captured pre-mutation entity is restored field-for-field and
// the aggregate delta is reverted with the same before/after pair.
func (e *Engine) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}

	idx := e.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("UpdateTransaction: %w: %s", ErrUnknownTransaction, id)
	}
	before := e.transactions[idx].Clone()
	after, err := patch.Apply(before)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if err := e.validateLocked(after); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}

	e.transactions[idx] = after
	e.sortLedgerLocked()
	e.applySummaryDeltaLocked(&before, &after)

	if err := e.remote.PatchTransaction(ctx, e.userID, id, patch); err != nil {
		e.restoreLocked(map[string]domain.Transaction{id: before})
		e.applySummaryDeltaLocked(&after, &before)
		return fmt.Errorf("UpdateTransaction: remote write: %w", err)
	}

	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return nil
}

// UpdateMany applies one patch to every listed transaction. The new state is
// computed in a single pass and persisted with one batched remote request,
// chunked only to respect the backend batch limit. When a chunk fails,
// entities in chunks the backend already confirmed stay applied and only the
// unconfirmed remainder is reverted, entity and aggregate delta alike.
func (e *Engine) UpdateMany(ctx context.Context, ids []string, patch domain.TransactionPatch) error {
	patches := make(map[string]domain.TransactionPatch, len(ids))
	for _, id := range ids {
		patches[id] = patch
	}
	return e.UpdateEach(ctx, patches)
}

// UpdateEach applies a distinct patch per transaction id with the same
// single-pass, single-batch semantics as UpdateMany.
func (e *Engine) UpdateEach(ctx context.Context, patches map[string]domain.TransactionPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}
	return e.updateEachLocked(ctx, patches)
}

func (e *Engine) updateEachLocked(ctx context.Context, patches map[string]domain.TransactionPatch) error {
	if len(patches) == 0 {
		return nil
	}

	befores := make(map[string]domain.Transaction, len(patches))
	afters := make(map[string]domain.Transaction, len(patches))
	ops := make([]remote.WriteOp, 0, len(patches))

	ids := make([]string, 0, len(patches))
	for id := range patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Stage everything before touching engine state, so validation failures
	// leave no partial application behind.
	for _, id := range ids {
		p := patches[id]
		idx := e.indexOfLocked(id)
		if idx < 0 {
			return fmt.Errorf("UpdateEach: %w: %s", ErrUnknownTransaction, id)
		}
		before := e.transactions[idx].Clone()
		after, err := p.Apply(before)
		if err != nil {
			return fmt.Errorf("UpdateEach: %s: %w", id, err)
		}
		if err := e.validateLocked(after); err != nil {
			return fmt.Errorf("UpdateEach: %s: %w", id, err)
		}
		befores[id] = before
		afters[id] = after
		ops = append(ops, remote.PatchOp(id, p))
	}

	for id, after := range afters {
		idx := e.indexOfLocked(id)
		before := befores[id]
		e.transactions[idx] = after
		e.applySummaryDeltaLocked(&before, &after)
	}
	e.sortLedgerLocked()

	committed := 0
	for _, chunk := range remote.ChunkOps(ops, e.cfg.BatchLimit) {
		if err := e.remote.BatchWrite(ctx, e.userID, chunk); err != nil {
			// Chunks the backend already confirmed stay applied on both
			// sides; only the unconfirmed tail is reverted.
			lost := make(map[string]domain.Transaction, len(ops)-committed)
			for _, op := range ops[committed:] {
				lost[op.ID] = befores[op.ID]
			}
			e.restoreLocked(lost)
			for id := range lost {
				before := befores[id]
				after := afters[id]
				e.applySummaryDeltaLocked(&after, &before)
			}
			e.writeSnapshotLocked(domainTransactions, e.transactions)
			return fmt.Errorf("UpdateEach: remote batch: %w", err)
		}
		committed += len(chunk)
	}

	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return nil
}

// DeleteTransaction removes a transaction remotely, then locally. Deletions
// are not optimistic: a remote failure leaves local state untouched.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}

	idx := e.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("DeleteTransaction: %w: %s", ErrUnknownTransaction, id)
	}
	victim := e.transactions[idx].Clone()

	if err := e.remote.DeleteTransaction(ctx, e.userID, id); err != nil {
		return fmt.Errorf("DeleteTransaction: remote write: %w", err)
	}

	e.transactions = append(e.transactions[:idx], e.transactions[idx+1:]...)
	e.applySummaryDeltaLocked(&victim, nil)
	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return nil
}

// restoreLocked puts captured pre-mutation entities back into the ledger.
func (e *Engine) restoreLocked(befores map[string]domain.Transaction) {
	for id, before := range befores {
		idx := e.indexOfLocked(id)
		if idx < 0 {
			e.transactions = append(e.transactions, before)
			continue
		}
		e.transactions[idx] = before
	}
	e.sortLedgerLocked()
}

// validateLocked runs entity validation plus the referential check that the
// account, when set, exists.
func (e *Engine) validateLocked(tx domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.AccountID != "" {
		if _, ok := e.accounts[tx.AccountID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAccount, tx.AccountID)
		}
	}
	return nil
}

// AddAccount persists a new bank account and registers it locally.
func (e *Engine) AddAccount(ctx context.Context, acc domain.BankAccount) (domain.BankAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return domain.BankAccount{}, ErrNotInitialized
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.Name == "" {
		return domain.BankAccount{}, fmt.Errorf("AddAccount: %w: account name required", domain.ErrValidation)
	}
	if err := e.remote.PutAccount(ctx, e.userID, acc); err != nil {
		return domain.BankAccount{}, fmt.Errorf("AddAccount: remote write: %w", err)
	}
	e.accounts[acc.ID] = acc
	e.writeAccountsSnapshotLocked()
	return acc, nil
}

// AddCategory persists a new category and registers it locally.
func (e *Engine) AddCategory(ctx context.Context, cat domain.Category) (domain.Category, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return domain.Category{}, ErrNotInitialized
	}
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	if cat.Name == "" {
		return domain.Category{}, fmt.Errorf("AddCategory: %w: category name required", domain.ErrValidation)
	}
	if err := e.remote.PutCategory(ctx, e.userID, cat); err != nil {
		return domain.Category{}, fmt.Errorf("AddCategory: remote write: %w", err)
	}
	e.categories[cat.ID] = cat
	e.writeCategoriesSnapshotLocked()
	return cat, nil
}

// DeleteCategory removes a non-system category. Transactions keep their
// category id; reporting treats a dangling id as uncategorized.
func (e *Engine) DeleteCategory(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}
	cat, ok := e.categories[id]
	if !ok {
		return fmt.Errorf("DeleteCategory: %w: category %s", remote.ErrNotFound, id)
	}
	if cat.System {
		return fmt.Errorf("DeleteCategory: %w: %s", ErrProtectedCategory, cat.Name)
	}
	if err := e.remote.DeleteCategory(ctx, e.userID, id); err != nil {
		return fmt.Errorf("DeleteCategory: remote write: %w", err)
	}
	delete(e.categories, id)
	e.writeCategoriesSnapshotLocked()
	return nil
}

func (e *Engine) writeAccountsSnapshotLocked() {
	accs := make([]domain.BankAccount, 0, len(e.accounts))
	for _, a := range e.accounts {
		accs = append(accs, a)
	}
	e.writeSnapshotLocked(domainAccounts, accs)
}

func (e *Engine) writeCategoriesSnapshotLocked() {
	cats := make([]domain.Category, 0, len(e.categories))
	for _, c := range e.categories {
		cats = append(cats, c)
	}
	e.writeSnapshotLocked(domainCategories, cats)
}
