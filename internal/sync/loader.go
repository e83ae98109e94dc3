package sync

import (
	"context"
	"fmt"
	"slices"

	"github.com/dvolkov/homeledger/internal/domain"
)

// EnsureLoaded loads a secondary collection on first touch. The per-domain
// guard flips before any network work starts, so overlapping calls see a
// non-initial state and return immediately. On failure the guard resets so
// the next call retries, and whatever data is already held stays intact.
func (e *Engine) EnsureLoaded(ctx context.Context, collection string) error {
	if !slices.Contains(domain.SecondaryCollections(), collection) {
		return fmt.Errorf("EnsureLoaded: unknown collection %q", collection)
	}

	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.loadStates[collection] != stateNotLoaded {
		e.mu.Unlock()
		return nil
	}
	e.loadStates[collection] = stateLoading
	if docs, ok := readSnapshot[[]domain.Document](e.cache, e.userID, collection); ok {
		e.documents[collection] = docs
	}
	userID := e.userID
	e.mu.Unlock()

	docs, err := e.remote.GetDocuments(ctx, userID, collection)

	e.mu.Lock()
	defer e.mu.Unlock()
	// The session may have been reset or rebound while the fetch was in
	// flight; its result belongs to the old session, so drop it.
	if e.userID != userID {
		return ErrNotInitialized
	}
	if err != nil {
		e.loadStates[collection] = stateNotLoaded
		return fmt.Errorf("EnsureLoaded: %s: %w", collection, err)
	}
	e.documents[collection] = docs
	e.loadStates[collection] = stateLoaded
	e.writeSnapshotLocked(collection, docs)
	return nil
}

// Documents returns a copy of the held documents for a collection. It does
// not trigger a load; call EnsureLoaded first.
func (e *Engine) Documents(collection string) []domain.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.documents[collection])
}

// PutDocuments replaces a collection's documents remotely and locally.
func (e *Engine) PutDocuments(ctx context.Context, collection string, docs []domain.Document) error {
	if !slices.Contains(domain.SecondaryCollections(), collection) {
		return fmt.Errorf("PutDocuments: unknown collection %q", collection)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}
	if err := e.remote.PutDocuments(ctx, e.userID, collection, docs); err != nil {
		return fmt.Errorf("PutDocuments: %s: %w", collection, err)
	}
	e.documents[collection] = slices.Clone(docs)
	e.loadStates[collection] = stateLoaded
	e.writeSnapshotLocked(collection, docs)
	return nil
}
