package sync

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

// ImportRow is one parsed statement line before it becomes a transaction.
type ImportRow struct {
	Line        int
	Date        civil.Date
	Amount      decimal.Decimal
	Description string
}

// ImportPlan is the duplicate-scan result the caller confirms before commit.
type ImportPlan struct {
	AccountID  string
	New        []domain.Transaction
	Duplicates []ImportRow
}

// ParseStatementCSV reads `date,amount,description` rows. The amount sign
// picks the type: positive rows import as income, negative as expense. A
// header line is skipped when the first field does not parse as a date.
func ParseStatementCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []ImportRow
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseStatementCSV: line %d: %w", line+1, err)
		}
		line++
		if len(rec) < 3 {
			return nil, fmt.Errorf("ParseStatementCSV: line %d: want 3 fields, got %d", line, len(rec))
		}
		d, err := civil.ParseDate(strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("ParseStatementCSV: line %d: bad date %q: %w", line, rec[0], err)
		}
		amt, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("ParseStatementCSV: line %d: bad amount %q: %w", line, rec[1], err)
		}
		desc := strings.TrimSpace(rec[2])
		if desc == "" {
			return nil, fmt.Errorf("ParseStatementCSV: line %d: empty description", line)
		}
		rows = append(rows, ImportRow{Line: line, Date: d, Amount: amt, Description: desc})
	}
	return rows, nil
}

func importDupKey(date civil.Date, amount decimal.Decimal, description string) string {
	t := domain.Transaction{Description: description}
	return date.String() + "|" + amount.String() + "|" + t.MerchantKey()
}

// PrepareImport validates rows against an account and scans the held ledger
// for duplicate candidates (same date, absolute amount, and normalized
// description). Matching rules fill in categories; rows with no match stay
// uncategorized for the caller to fix up.
func (e *Engine) PrepareImport(accountID string, rows []ImportRow) (ImportPlan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ImportPlan{}, ErrNotInitialized
	}
	if _, ok := e.accounts[accountID]; !ok {
		return ImportPlan{}, fmt.Errorf("PrepareImport: %w: %s", ErrUnknownAccount, accountID)
	}

	existing := make(map[string]bool, len(e.transactions))
	for i := range e.transactions {
		t := &e.transactions[i]
		existing[importDupKey(t.Date, t.Amount, t.Description)] = true
	}

	plan := ImportPlan{AccountID: accountID}
	for _, row := range rows {
		amount := row.Amount.Abs()
		if existing[importDupKey(row.Date, amount, row.Description)] {
			plan.Duplicates = append(plan.Duplicates, row)
			continue
		}
		tx := domain.Transaction{
			ID:          uuid.NewString(),
			Date:        row.Date,
			Description: row.Description,
			Type:        domain.TypeExpense,
			Amount:      amount,
			AccountID:   accountID,
		}
		if row.Amount.Sign() > 0 {
			tx.Type = domain.TypeIncome
		}
		if a, ok := e.autoAssignLocked(row.Description); ok {
			tx.CategoryID = a.CategoryID
			if a.ForceType != "" {
				tx.Type = a.ForceType
			}
		}
		if err := tx.Validate(); err != nil {
			return ImportPlan{}, fmt.Errorf("PrepareImport: line %d: %w", row.Line, err)
		}
		plan.New = append(plan.New, tx)
	}
	return plan, nil
}

// CommitImport writes a confirmed plan in batch chunks, merging each
// confirmed chunk into the ledger as it lands. On a mid-import failure the
// already-written chunks stay; the returned count says how many made it.
func (e *Engine) CommitImport(ctx context.Context, plan ImportPlan) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return 0, ErrNotInitialized
	}
	if len(plan.New) == 0 {
		return 0, nil
	}

	ops := make([]remote.WriteOp, 0, len(plan.New))
	for i := range plan.New {
		ops = append(ops, remote.PutOp(plan.New[i]))
	}

	written := 0
	for _, chunk := range remote.ChunkOps(ops, e.cfg.BatchLimit) {
		if err := e.remote.BatchWrite(ctx, e.userID, chunk); err != nil {
			e.finishImportLocked(plan.New[:written])
			return written, fmt.Errorf("CommitImport: after %d rows: %w", written, err)
		}
		written += len(chunk)
	}
	e.finishImportLocked(plan.New)
	return written, nil
}

func (e *Engine) finishImportLocked(confirmed []domain.Transaction) {
	if len(confirmed) == 0 {
		return
	}
	e.transactions = mergeTransactions(e.transactions, confirmed)
	for i := range confirmed {
		e.applySummaryDeltaLocked(nil, &confirmed[i])
	}
	e.writeSnapshotLocked(domainTransactions, e.transactions)
}
