// Package sync keeps the ledger consistent between the local cache, the
// optimistic in-memory model, and the remote authoritative store.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/cache"
	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
	"github.com/dvolkov/homeledger/internal/rules"
)

var (
	// ErrUnknownTransaction is returned when an operation references a
	// transaction id absent from the in-memory ledger.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrUnknownAccount is returned when a transaction references an account
	// that does not exist.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrUnknownRule is returned when a rule id is not in the rule set.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrProtectedCategory is returned when deleting a system category.
	ErrProtectedCategory = errors.New("system category cannot be deleted")
	// ErrNotInitialized is returned when the engine is used before Init.
	ErrNotInitialized = errors.New("engine not initialized")
)

// Cache snapshot domain names.
const (
	domainTransactions = "transactions"
	domainAccounts     = "bankAccounts"
	domainCategories   = "categories"
	domainRules        = "categoryRules"
)

// Config tunes the engine. Zero fields fall back to defaults in New.
type Config struct {
	PageSize    int
	PagePadding int
	BatchLimit  int
	Staleness   time.Duration
	Now         func() time.Time
}

const (
	defaultPageSize    = 50
	defaultPagePadding = 10
	defaultStaleness   = 5 * time.Minute
)

type summaryKey struct {
	CategoryID string
	Month      string
}

type loadState int

const (
	stateNotLoaded loadState = iota
	stateLoading
	stateLoaded
)

// Engine is the explicit context object for one user's session. All state
// lives here; there are no package-level caches. The engine serializes its
// operations with a mutex, so it is safe to share across goroutines even
// though the design assumes mostly sequential use.
type Engine struct {
	mu     sync.Mutex
	log    zerolog.Logger
	remote remote.Store
	cache  *cache.Store
	cfg    Config
	now    func() time.Time

	suggester rules.Suggester

	userID       string
	transactions []domain.Transaction
	accounts     map[string]domain.BankAccount
	categories   map[string]domain.Category
	ruleSet      []domain.CategoryRule
	documents    map[string][]domain.Document
	loadStates   map[string]loadState

	cursor   *remote.Cursor
	hasMore  bool
	lastSync time.Time
	summary  map[summaryKey]decimal.Decimal
}

// New creates an engine bound to a remote store and local cache. Call Init
// before anything else.
func New(store remote.Store, c *cache.Store, log zerolog.Logger, cfg Config) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PagePadding <= 0 {
		cfg.PagePadding = defaultPagePadding
	}
	if cfg.BatchLimit <= 0 || cfg.BatchLimit > remote.MaxBatchOps {
		cfg.BatchLimit = remote.MaxBatchOps
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = defaultStaleness
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		log:    log,
		remote: store,
		cache:  c,
		cfg:    cfg,
		now:    now,
	}
}

// Init binds the engine to userID, hydrates in-memory state from cache
// snapshots, then refreshes accounts, categories, rules and the first ledger
// page from the remote store. Cache-provided state survives a remote
// failure, so a cold offline start still renders.
func (e *Engine) Init(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.userID = userID
	e.transactions = nil
	e.accounts = make(map[string]domain.BankAccount)
	e.categories = make(map[string]domain.Category)
	e.ruleSet = nil
	e.documents = make(map[string][]domain.Document)
	e.loadStates = make(map[string]loadState)
	e.cursor = nil
	e.hasMore = false
	e.lastSync = time.Time{}
	e.summary = make(map[summaryKey]decimal.Decimal)

	e.hydrateFromCacheLocked()

	if err := e.refreshReferenceDataLocked(ctx); err != nil {
		return fmt.Errorf("Init: %w", err)
	}
	if err := e.refreshLedgerLocked(ctx); err != nil {
		return fmt.Errorf("Init: %w", err)
	}
	return nil
}

// Reset drops all in-memory state and clears every cache snapshot for the
// current user. Used on logout and account deletion.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	userID := e.userID
	e.userID = ""
	e.transactions = nil
	e.accounts = nil
	e.categories = nil
	e.ruleSet = nil
	e.documents = nil
	e.loadStates = nil
	e.cursor = nil
	e.hasMore = false
	e.lastSync = time.Time{}
	e.summary = nil

	if userID == "" {
		return nil
	}
	if err := e.cache.ClearAll(userID); err != nil {
		return fmt.Errorf("Reset: %w", err)
	}
	return nil
}

func (e *Engine) hydrateFromCacheLocked() {
	if txs, ok := readSnapshot[[]domain.Transaction](e.cache, e.userID, domainTransactions); ok {
		e.transactions = txs
		e.sortLedgerLocked()
	}
	if accs, ok := readSnapshot[[]domain.BankAccount](e.cache, e.userID, domainAccounts); ok {
		for _, a := range accs {
			e.accounts[a.ID] = a
		}
	}
	if cats, ok := readSnapshot[[]domain.Category](e.cache, e.userID, domainCategories); ok {
		for _, c := range cats {
			e.categories[c.ID] = c
		}
	}
	if rs, ok := readSnapshot[[]domain.CategoryRule](e.cache, e.userID, domainRules); ok {
		e.ruleSet = rs
	}
	e.recomputeSummaryLocked()
}

func (e *Engine) refreshReferenceDataLocked(ctx context.Context) error {
	accs, err := e.remote.GetAccounts(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	e.accounts = make(map[string]domain.BankAccount, len(accs))
	for _, a := range accs {
		e.accounts[a.ID] = a
	}
	e.writeSnapshotLocked(domainAccounts, accs)

	cats, err := e.remote.GetCategories(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	e.categories = make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		e.categories[c.ID] = c
	}
	e.writeSnapshotLocked(domainCategories, cats)

	rs, err := e.remote.GetRules(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}
	e.ruleSet = rs
	e.writeSnapshotLocked(domainRules, rs)
	return nil
}

func (e *Engine) sortLedgerLocked() {
	sort.Slice(e.transactions, func(i, j int) bool {
		return domain.OrderBefore(e.transactions[i], e.transactions[j])
	})
}

func (e *Engine) indexOfLocked(id string) int {
	for i := range e.transactions {
		if e.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// writeSnapshotLocked marshals v and stores it as the domain's snapshot.
// Cache writes are best-effort; failures are logged, never propagated.
func (e *Engine) writeSnapshotLocked(domainName string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.Warn().Err(err).Str("domain", domainName).Msg("snapshot marshal failed")
		return
	}
	if err := e.cache.WriteSnapshot(e.userID, domainName, payload); err != nil {
		e.log.Warn().Err(err).Str("domain", domainName).Msg("snapshot write failed")
	}
}

// readSnapshot loads and decodes a snapshot. An unreadable or unparsable
// snapshot is a miss, never an error.
func readSnapshot[T any](c *cache.Store, ownerID, domainName string) (T, bool) {
	var zero T
	payload, _, ok := c.ReadSnapshot(ownerID, domainName)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Transactions returns a copy of the reconciled ledger in canonical order.
func (e *Engine) Transactions() []domain.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Transaction, len(e.transactions))
	for i, tx := range e.transactions {
		out[i] = tx.Clone()
	}
	return out
}

// Accounts returns the known bank accounts ordered by id.
func (e *Engine) Accounts() []domain.BankAccount {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.BankAccount, 0, len(e.accounts))
	for _, a := range e.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Categories returns the known categories ordered by id.
func (e *Engine) Categories() []domain.Category {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Category, 0, len(e.categories))
	for _, c := range e.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rules returns a copy of the categorization rule set.
func (e *Engine) Rules() []domain.CategoryRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.CategoryRule(nil), e.ruleSet...)
}

// HasMore reports whether older ledger pages remain beyond the cursor.
func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}
