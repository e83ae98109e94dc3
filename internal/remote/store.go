// Package remote defines the contract between the sync engine and the
// authoritative document store. Implementations live in subpackages; the
// engine never depends on a concrete backend.
package remote

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvolkov/homeledger/internal/domain"
)

// ErrNotFound is returned when a referenced entity does not exist remotely.
var ErrNotFound = errors.New("not found")

// Cursor marks the boundary of the last fetched page. It is a pure filter
// predicate over (date, id), independent of any backend ordering guarantee.
type Cursor struct {
	Date civil.Date `json:"date"`
	ID   string     `json:"id"`
}

// Admits reports whether an item at (date, id) lies strictly beyond the
// cursor in the canonical (date DESC, id DESC) order.
func (c Cursor) Admits(date civil.Date, id string) bool {
	if date.Before(c.Date) {
		return true
	}
	return date == c.Date && id < c.ID
}

// PageRequest asks for a window of transactions. Limit includes the padding
// the engine adds beyond its page size; the backend may return the window in
// any order.
type PageRequest struct {
	Limit  int
	Cursor *Cursor
}

// OpKind discriminates batched write operations.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpPatch  OpKind = "patch"
	OpDelete OpKind = "delete"
)

// WriteOp is one element of a batched write. Exactly one of Transaction or
// Patch is set depending on Kind; ID is always set for patch and delete.
type WriteOp struct {
	Kind        OpKind
	ID          string
	Transaction *domain.Transaction
	Patch       *domain.TransactionPatch
}

// PutOp builds a put operation for tx.
func PutOp(tx domain.Transaction) WriteOp {
	return WriteOp{Kind: OpPut, ID: tx.ID, Transaction: &tx}
}

// PatchOp builds a patch operation for the transaction with the given id.
func PatchOp(id string, p domain.TransactionPatch) WriteOp {
	return WriteOp{Kind: OpPatch, ID: id, Patch: &p}
}

// DeleteOp builds a delete operation for the transaction with the given id.
func DeleteOp(id string) WriteOp {
	return WriteOp{Kind: OpDelete, ID: id}
}

// Store is the remote document store the engine synchronizes against. Every
// method takes the owning user's id; implementations must scope all reads and
// writes to that owner. BatchWrite must be atomic per call.
type Store interface {
	GetPage(ctx context.Context, ownerID string, req PageRequest) ([]domain.Transaction, error)
	GetRange(ctx context.Context, ownerID string, from, to civil.Date) ([]domain.Transaction, error)

	PutTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error
	PatchTransaction(ctx context.Context, ownerID, id string, p domain.TransactionPatch) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
	BatchWrite(ctx context.Context, ownerID string, ops []WriteOp) error

	GetAccounts(ctx context.Context, ownerID string) ([]domain.BankAccount, error)
	PutAccount(ctx context.Context, ownerID string, acc domain.BankAccount) error

	GetCategories(ctx context.Context, ownerID string) ([]domain.Category, error)
	PutCategory(ctx context.Context, ownerID string, cat domain.Category) error
	DeleteCategory(ctx context.Context, ownerID, id string) error

	GetRules(ctx context.Context, ownerID string) ([]domain.CategoryRule, error)
	PutRule(ctx context.Context, ownerID string, rule domain.CategoryRule) error

	GetDocuments(ctx context.Context, ownerID, collection string) ([]domain.Document, error)
	PutDocuments(ctx context.Context, ownerID, collection string, docs []domain.Document) error
}

// MaxBatchOps is the upper bound on operations per BatchWrite call, matching
// the backend's batch limit.
const MaxBatchOps = 450

// ChunkOps splits ops into chunks of at most limit operations. A limit <= 0
// falls back to MaxBatchOps.
func ChunkOps(ops []WriteOp, limit int) [][]WriteOp {
	if limit <= 0 {
		limit = MaxBatchOps
	}
	var chunks [][]WriteOp
	for len(ops) > 0 {
		n := min(limit, len(ops))
		chunks = append(chunks, ops[:n])
		ops = ops[n:]
	}
	return chunks
}

// ValidateOp checks structural consistency of a WriteOp before it reaches a
// backend.
func ValidateOp(op WriteOp) error {
	switch op.Kind {
	case OpPut:
		if op.Transaction == nil {
			return fmt.Errorf("ValidateOp: put without transaction")
		}
	case OpPatch:
		if op.ID == "" || op.Patch == nil {
			return fmt.Errorf("ValidateOp: patch requires id and patch body")
		}
	case OpDelete:
		if op.ID == "" {
			return fmt.Errorf("ValidateOp: delete requires id")
		}
	default:
		return fmt.Errorf("ValidateOp: unknown op kind %q", op.Kind)
	}
	return nil
}
