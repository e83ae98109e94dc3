package bigquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

const transactionColumns = `
	transaction_id,
	owner_id,
	transaction_date,
	description,
	category_id,
	transaction_type,
	amount,
	account_id,
	tags,
	notes`

// GetPage returns one window of transactions beyond the cursor, newest
// first. The window is a superset for the engine to sort and trim; ordering
// is requested here but never relied upon.
func (s *Store) GetPage(ctx context.Context, ownerID string, req remote.PageRequest) ([]domain.Transaction, error) {
	stmt := `SELECT` + transactionColumns + `
		FROM ` + s.table(transactionsTable) + `
		WHERE owner_id = @owner_id`
	params := []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	if req.Cursor != nil {
		stmt += `
		AND (transaction_date < @cursor_date
		  OR (transaction_date = @cursor_date AND transaction_id < @cursor_id))`
		params = append(params,
			bigquery.QueryParameter{Name: "cursor_date", Value: req.Cursor.Date},
			bigquery.QueryParameter{Name: "cursor_id", Value: req.Cursor.ID},
		)
	}
	stmt += `
		ORDER BY transaction_date DESC, transaction_id DESC`
	if req.Limit > 0 {
		stmt += `
		LIMIT @page_limit`
		params = append(params, bigquery.QueryParameter{Name: "page_limit", Value: int64(req.Limit)})
	}

	rows, err := s.queryTransactions(ctx, stmt, params)
	if err != nil {
		return nil, fmt.Errorf("GetPage: %w", err)
	}
	return rows, nil
}

// GetRange returns all transactions with from <= transaction_date <= to.
func (s *Store) GetRange(ctx context.Context, ownerID string, from, to civil.Date) ([]domain.Transaction, error) {
	stmt := `SELECT` + transactionColumns + `
		FROM ` + s.table(transactionsTable) + `
		WHERE owner_id = @owner_id
		  AND transaction_date >= @from_date
		  AND transaction_date <= @to_date
		ORDER BY transaction_date DESC, transaction_id DESC`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "from_date", Value: from},
		{Name: "to_date", Value: to},
	}

	rows, err := s.queryTransactions(ctx, stmt, params)
	if err != nil {
		return nil, fmt.Errorf("GetRange: %w", err)
	}
	return rows, nil
}

func (s *Store) queryTransactions(ctx context.Context, stmt string, params []bigquery.QueryParameter) ([]domain.Transaction, error) {
	q := s.client.Query(stmt)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var out []domain.Transaction
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PutTransaction inserts or replaces one transaction.
func (s *Store) PutTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error {
	stmt, params := putTransactionStmt(s.table(transactionsTable), ownerID, tx, "")
	script := "BEGIN TRANSACTION;\n" + stmt + ";\nCOMMIT TRANSACTION;"
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("PutTransaction: %w", err)
	}
	return nil
}

// putTransactionStmt builds a delete-then-insert pair acting as an upsert.
// prefix keeps parameter names unique when several statements share a script.
func putTransactionStmt(table, ownerID string, tx domain.Transaction, prefix string) (string, []bigquery.QueryParameter) {
	p := func(name string) string { return prefix + name }
	stmt := `DELETE FROM ` + table + `
		WHERE owner_id = @` + p("owner_id") + ` AND transaction_id = @` + p("transaction_id") + `;
	INSERT INTO ` + table + ` (` + transactionColumns + `)
	VALUES (@` + p("transaction_id") + `, @` + p("owner_id") + `, @` + p("transaction_date") + `,
		@` + p("description") + `, @` + p("category_id") + `, @` + p("transaction_type") + `,
		@` + p("amount") + `, @` + p("account_id") + `, @` + p("tags") + `, @` + p("notes") + `)`
	params := []bigquery.QueryParameter{
		{Name: p("owner_id"), Value: ownerID},
		{Name: p("transaction_id"), Value: tx.ID},
		{Name: p("transaction_date"), Value: tx.Date},
		{Name: p("description"), Value: tx.Description},
		{Name: p("category_id"), Value: tx.CategoryID},
		{Name: p("transaction_type"), Value: string(tx.Type)},
		{Name: p("amount"), Value: tx.Amount.Rat()},
		{Name: p("account_id"), Value: tx.AccountID},
		{Name: p("tags"), Value: tx.Tags},
		{Name: p("notes"), Value: tx.Notes},
	}
	return stmt, params
}

// PatchTransaction applies the present patch fields as an UPDATE.
func (s *Store) PatchTransaction(ctx context.Context, ownerID, id string, patch domain.TransactionPatch) error {
	stmt, params := patchTransactionStmt(s.table(transactionsTable), ownerID, id, patch, "")
	if stmt == "" {
		return nil
	}
	affected, err := s.runDMLAffected(ctx, stmt, params)
	if err != nil {
		return fmt.Errorf("PatchTransaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("PatchTransaction: %w: transaction %s", remote.ErrNotFound, id)
	}
	return nil
}

func patchTransactionStmt(table, ownerID, id string, patch domain.TransactionPatch, prefix string) (string, []bigquery.QueryParameter) {
	p := func(name string) string { return prefix + name }
	var set []string
	params := []bigquery.QueryParameter{
		{Name: p("owner_id"), Value: ownerID},
		{Name: p("transaction_id"), Value: id},
	}
	add := func(column, name string, value any) {
		set = append(set, column+" = @"+p(name))
		params = append(params, bigquery.QueryParameter{Name: p(name), Value: value})
	}
	if patch.Date != nil {
		add("transaction_date", "set_date", *patch.Date)
	}
	if patch.Description != nil {
		add("description", "set_description", *patch.Description)
	}
	if patch.CategoryID != nil {
		add("category_id", "set_category_id", *patch.CategoryID)
	}
	if patch.Type != nil {
		add("transaction_type", "set_type", string(*patch.Type))
	}
	if patch.Amount != nil {
		add("amount", "set_amount", patch.Amount.Rat())
	}
	if patch.AccountID != nil {
		add("account_id", "set_account_id", *patch.AccountID)
	}
	if patch.Tags != nil {
		add("tags", "set_tags", *patch.Tags)
	}
	if patch.Notes != nil {
		add("notes", "set_notes", *patch.Notes)
	}
	if len(set) == 0 {
		return "", nil
	}
	stmt := `UPDATE ` + table + `
		SET ` + strings.Join(set, ", ") + `
		WHERE owner_id = @` + p("owner_id") + ` AND transaction_id = @` + p("transaction_id")
	return stmt, params
}

// DeleteTransaction removes a transaction; deleting an absent id is a no-op.
func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	stmt := `DELETE FROM ` + s.table(transactionsTable) + `
		WHERE owner_id = @owner_id AND transaction_id = @transaction_id`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "transaction_id", Value: id},
	}
	if err := s.runDML(ctx, stmt, params); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// BatchWrite applies up to the batch limit of ops atomically. A batch of
// pure inserts streams through the table inserter; mixed batches run as one
// multi-statement transaction so either every op commits or none do.
func (s *Store) BatchWrite(ctx context.Context, ownerID string, ops []remote.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > remote.MaxBatchOps {
		return fmt.Errorf("BatchWrite: %d ops exceeds batch limit %d", len(ops), remote.MaxBatchOps)
	}
	allPuts := true
	for _, op := range ops {
		if err := remote.ValidateOp(op); err != nil {
			return fmt.Errorf("BatchWrite: %w", err)
		}
		if op.Kind != remote.OpPut {
			allPuts = false
		}
	}

	if allPuts {
		rows := make([]*transactionRow, len(ops))
		for i, op := range ops {
			rows[i] = toTransactionRow(ownerID, *op.Transaction)
		}
		table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable)
		if err := table.Inserter().Put(ctx, rows); err != nil {
			return fmt.Errorf("BatchWrite: inserting rows: %w", err)
		}
		return nil
	}

	script, params := batchScript(s.table(transactionsTable), ownerID, ops)
	if script == "" {
		return nil
	}
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("BatchWrite: %w", err)
	}
	return nil
}

// batchScript renders a mixed batch as one multi-statement transaction.
// Parameter names carry a per-op prefix so the statements can share a script.
func batchScript(tab, ownerID string, ops []remote.WriteOp) (string, []bigquery.QueryParameter) {
	var stmts []string
	var params []bigquery.QueryParameter
	for i, op := range ops {
		prefix := "p" + strconv.Itoa(i) + "_"
		switch op.Kind {
		case remote.OpPut:
			stmt, ps := putTransactionStmt(tab, ownerID, *op.Transaction, prefix)
			stmts = append(stmts, stmt)
			params = append(params, ps...)
		case remote.OpPatch:
			stmt, ps := patchTransactionStmt(tab, ownerID, op.ID, *op.Patch, prefix)
			if stmt == "" {
				continue
			}
			stmts = append(stmts, stmt)
			params = append(params, ps...)
		case remote.OpDelete:
			stmts = append(stmts, `DELETE FROM `+tab+`
		WHERE owner_id = @`+prefix+`owner_id AND transaction_id = @`+prefix+`transaction_id`)
			params = append(params,
				bigquery.QueryParameter{Name: prefix + "owner_id", Value: ownerID},
				bigquery.QueryParameter{Name: prefix + "transaction_id", Value: op.ID},
			)
		}
	}
	if len(stmts) == 0 {
		return "", nil
	}
	return "BEGIN TRANSACTION;\n" + strings.Join(stmts, ";\n") + ";\nCOMMIT TRANSACTION;", params
}

// runDMLAffected runs a DML statement and reports the affected row count.
func (s *Store) runDMLAffected(ctx context.Context, stmt string, params []bigquery.QueryParameter) (int64, error) {
	q := s.client.Query(stmt)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}

var _ remote.Store = (*Store)(nil)
