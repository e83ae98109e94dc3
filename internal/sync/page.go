package sync

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

// page is one trimmed, ordered window of the ledger.
type page struct {
	items      []domain.Transaction
	nextCursor *remote.Cursor
	hasMore    bool
}

// fetchPage retrieves one window beyond cursor. The remote window is padded
// beyond the page size, sorted client-side and filtered through the cursor
// predicate before trimming, so the result is correct even when the backend
// cannot guarantee server-side ordering.
func (e *Engine) fetchPage(ctx context.Context, cursor *remote.Cursor) (page, error) {
	req := remote.PageRequest{
		Limit:  e.cfg.PageSize + e.cfg.PagePadding,
		Cursor: cursor,
	}
	window, err := e.remote.GetPage(ctx, e.userID, req)
	if err != nil {
		return page{}, fmt.Errorf("fetchPage: %w", err)
	}

	sort.Slice(window, func(i, j int) bool {
		return domain.OrderBefore(window[i], window[j])
	})
	filtered := window[:0]
	for _, tx := range window {
		if cursor != nil && !cursor.Admits(tx.Date, tx.ID) {
			continue
		}
		filtered = append(filtered, tx)
	}

	p := page{hasMore: len(filtered) > e.cfg.PageSize}
	if p.hasMore {
		filtered = filtered[:e.cfg.PageSize]
	}
	p.items = filtered
	if len(filtered) > 0 {
		last := filtered[len(filtered)-1]
		p.nextCursor = &remote.Cursor{Date: last.Date, ID: last.ID}
	}
	return p, nil
}

// mergeTransactions reconciles a freshly fetched batch with previously held
// items: the batch wins by id, prior items are appended only when absent
// from the batch, and the union is re-sorted. Merging the same batch twice
// is a no-op.
func mergeTransactions(prior, batch []domain.Transaction) []domain.Transaction {
	seen := make(map[string]struct{}, len(batch))
	merged := make([]domain.Transaction, 0, len(batch)+len(prior))
	for _, tx := range batch {
		seen[tx.ID] = struct{}{}
		merged = append(merged, tx)
	}
	for _, tx := range prior {
		if _, ok := seen[tx.ID]; ok {
			continue
		}
		merged = append(merged, tx)
	}
	sort.Slice(merged, func(i, j int) bool { return domain.OrderBefore(merged[i], merged[j]) })
	return merged
}

// refreshLedgerLocked fetches the first page, merges it over whatever is
// held (cache-hydrated or stale), and resets the cursor.
func (e *Engine) refreshLedgerLocked(ctx context.Context) error {
	p, err := e.fetchPage(ctx, nil)
	if err != nil {
		return fmt.Errorf("refresh ledger: %w", err)
	}
	e.transactions = mergeTransactions(e.transactions, p.items)
	e.cursor = p.nextCursor
	e.hasMore = p.hasMore
	e.lastSync = e.now()
	e.recomputeSummaryLocked()
	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return nil
}

// LoadMore fetches the next older window and merges it into the ledger.
// Returns false when no further pages remain.
func (e *Engine) LoadMore(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return false, ErrNotInitialized
	}
	if !e.hasMore {
		return false, nil
	}

	p, err := e.fetchPage(ctx, e.cursor)
	if err != nil {
		return false, fmt.Errorf("LoadMore: %w", err)
	}
	e.transactions = mergeTransactions(e.transactions, p.items)
	if p.nextCursor != nil {
		e.cursor = p.nextCursor
	}
	e.hasMore = p.hasMore
	e.recomputeSummaryLocked()
	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return p.hasMore, nil
}

// MaybeRefresh re-syncs the newest ledger window when the last successful
// sync is older than the staleness window. Returns true when a refresh ran.
func (e *Engine) MaybeRefresh(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return false, ErrNotInitialized
	}
	if e.now().Sub(e.lastSync) < e.cfg.Staleness {
		return false, nil
	}
	e.log.Debug().Time("last_sync", e.lastSync).Msg("staleness window elapsed, refreshing ledger")
	if err := e.refreshLedgerLocked(ctx); err != nil {
		return false, fmt.Errorf("MaybeRefresh: %w", err)
	}
	return true, nil
}

// Range fetches transactions for an explicit period straight from the
// remote store and merges them into the ledger.
func (e *Engine) Range(ctx context.Context, from, to string) ([]domain.Transaction, error) {
	fromDate, err := civil.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("Range: parse from date: %w", err)
	}
	toDate, err := civil.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("Range: parse to date: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return nil, ErrNotInitialized
	}
	items, err := e.remote.GetRange(ctx, e.userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("Range: %w", err)
	}
	e.transactions = mergeTransactions(e.transactions, items)
	e.recomputeSummaryLocked()
	e.writeSnapshotLocked(domainTransactions, e.transactions)
	return items, nil
}
