// Package memory provides an in-memory remote.Store. It backs unit tests and
// offline operation; data is lost on process exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

type ownerData struct {
	transactions map[string]domain.Transaction
	accounts     map[string]domain.BankAccount
	categories   map[string]domain.Category
	rules        map[string]domain.CategoryRule
	documents    map[string][]domain.Document
}

// Store is a mutex-guarded in-memory implementation of remote.Store. It is
// safe for concurrent use and failure-injectable for tests.
type Store struct {
	mu     sync.Mutex
	owners map[string]*ownerData

	// ReturnUnordered makes GetPage return windows in reverse order,
	// simulating a backend that cannot guarantee server-side ordering.
	ReturnUnordered bool

	failNextWrite error
	failNextRead  error
	failAfter     int
	failAfterErr  error

	// Call counters observed by tests.
	GetPageCalls      int
	GetDocumentsCalls int
	BatchSizes        []int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{owners: make(map[string]*ownerData)}
}

// FailNextWrite makes the next mutating call return err, then clears itself.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextWrite = err
}

// FailNextRead makes the next fetching call return err, then clears itself.
func (s *Store) FailNextRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextRead = err
}

// FailWriteAfter lets the next n mutating calls succeed, then fails the one
// after them with err. n = 0 behaves like FailNextWrite.
func (s *Store) FailWriteAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	s.failAfterErr = err
}

func (s *Store) takeFailure() error {
	if s.failNextWrite != nil {
		err := s.failNextWrite
		s.failNextWrite = nil
		return err
	}
	if s.failAfterErr != nil {
		if s.failAfter <= 0 {
			err := s.failAfterErr
			s.failAfterErr = nil
			return err
		}
		s.failAfter--
	}
	return nil
}

func (s *Store) takeReadFailure() error {
	err := s.failNextRead
	s.failNextRead = nil
	return err
}

func (s *Store) owner(id string) *ownerData {
	od, ok := s.owners[id]
	if !ok {
		od = &ownerData{
			transactions: make(map[string]domain.Transaction),
			accounts:     make(map[string]domain.BankAccount),
			categories:   make(map[string]domain.Category),
			rules:        make(map[string]domain.CategoryRule),
			documents:    make(map[string][]domain.Document),
		}
		s.owners[id] = od
	}
	return od
}

// GetPage returns up to req.Limit transactions beyond the cursor. The window
// is selected in canonical order so it is a deterministic superset, but the
// returned slice order is not guaranteed when ReturnUnordered is set.
func (s *Store) GetPage(ctx context.Context, ownerID string, req remote.PageRequest) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetPageCalls++
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}

	od := s.owner(ownerID)
	var items []domain.Transaction
	for _, tx := range od.transactions {
		if req.Cursor != nil && !req.Cursor.Admits(tx.Date, tx.ID) {
			continue
		}
		items = append(items, tx.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return domain.OrderBefore(items[i], items[j]) })
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	if s.ReturnUnordered {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items, nil
}

// GetRange returns all transactions with from <= date <= to.
func (s *Store) GetRange(ctx context.Context, ownerID string, from, to civil.Date) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	var items []domain.Transaction
	for _, tx := range od.transactions {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		items = append(items, tx.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return domain.OrderBefore(items[i], items[j]) })
	return items, nil
}

// PutTransaction inserts or replaces a transaction.
func (s *Store) PutTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.owner(ownerID).transactions[tx.ID] = tx.Clone()
	return nil
}

// PatchTransaction applies a partial update to a stored transaction.
func (s *Store) PatchTransaction(ctx context.Context, ownerID, id string, p domain.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	return s.patchLocked(ownerID, id, p)
}

func (s *Store) patchLocked(ownerID, id string, p domain.TransactionPatch) error {
	od := s.owner(ownerID)
	tx, ok := od.transactions[id]
	if !ok {
		return fmt.Errorf("PatchTransaction: %w: transaction %s", remote.ErrNotFound, id)
	}
	patched, err := p.Apply(tx)
	if err != nil {
		return err
	}
	od.transactions[id] = patched
	return nil
}

// DeleteTransaction removes a transaction; deleting an absent id is a no-op.
func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.owner(ownerID).transactions, id)
	return nil
}

// BatchWrite applies every op or none: ops are validated and staged against a
// copy first, then swapped in.
func (s *Store) BatchWrite(ctx context.Context, ownerID string, ops []remote.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BatchSizes = append(s.BatchSizes, len(ops))
	if err := s.takeFailure(); err != nil {
		return err
	}
	if len(ops) > remote.MaxBatchOps {
		return fmt.Errorf("BatchWrite: %d ops exceeds batch limit %d", len(ops), remote.MaxBatchOps)
	}

	od := s.owner(ownerID)
	staged := make(map[string]domain.Transaction, len(od.transactions))
	for id, tx := range od.transactions {
		staged[id] = tx
	}
	for _, op := range ops {
		if err := remote.ValidateOp(op); err != nil {
			return fmt.Errorf("BatchWrite: %w", err)
		}
		switch op.Kind {
		case remote.OpPut:
			staged[op.Transaction.ID] = op.Transaction.Clone()
		case remote.OpPatch:
			tx, ok := staged[op.ID]
			if !ok {
				return fmt.Errorf("BatchWrite: %w: transaction %s", remote.ErrNotFound, op.ID)
			}
			patched, err := op.Patch.Apply(tx)
			if err != nil {
				return fmt.Errorf("BatchWrite: %w", err)
			}
			staged[op.ID] = patched
		case remote.OpDelete:
			delete(staged, op.ID)
		}
	}
	od.transactions = staged
	return nil
}

// GetAccounts lists the owner's accounts ordered by id.
func (s *Store) GetAccounts(ctx context.Context, ownerID string) ([]domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}
	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.BankAccount, 0, len(od.accounts))
	for _, a := range od.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(ctx context.Context, ownerID string, acc domain.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.owner(ownerID).accounts[acc.ID] = acc
	return nil
}

// GetCategories lists the owner's categories ordered by id.
func (s *Store) GetCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}
	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Category, 0, len(od.categories))
	for _, c := range od.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(ctx context.Context, ownerID string, cat domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.owner(ownerID).categories[cat.ID] = cat
	return nil
}

// DeleteCategory removes a category; deleting an absent id is a no-op.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.owner(ownerID).categories, id)
	return nil
}

// GetRules lists the owner's categorization rules ordered by id.
func (s *Store) GetRules(ctx context.Context, ownerID string) ([]domain.CategoryRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}
	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.CategoryRule, 0, len(od.rules))
	for _, r := range od.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutRule inserts or replaces a rule.
func (s *Store) PutRule(ctx context.Context, ownerID string, rule domain.CategoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.owner(ownerID).rules[rule.ID] = rule
	return nil
}

// GetDocuments returns the stored snapshot of a secondary collection.
func (s *Store) GetDocuments(ctx context.Context, ownerID, collection string) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetDocumentsCalls++
	if err := s.takeReadFailure(); err != nil {
		return nil, err
	}
	od := s.owner(ownerID)
	return append([]domain.Document(nil), od.documents[collection]...), nil
}

// PutDocuments replaces the stored snapshot of a secondary collection.
func (s *Store) PutDocuments(ctx context.Context, ownerID, collection string, docs []domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.owner(ownerID).documents[collection] = append([]domain.Document(nil), docs...)
	return nil
}

var _ remote.Store = (*Store)(nil)
