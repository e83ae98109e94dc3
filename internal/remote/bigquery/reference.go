package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvolkov/homeledger/internal/domain"
)

// GetAccounts lists the owner's bank accounts.
func (s *Store) GetAccounts(ctx context.Context, ownerID string) ([]domain.BankAccount, error) {
	stmt := `SELECT account_id, owner_id, name, number, initial_balance
		FROM ` + s.table(accountsTable) + `
		WHERE owner_id = @owner_id
		ORDER BY account_id`
	q := s.client.Query(stmt)
	q.Parameters = []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAccounts: query read: %w", err)
	}
	var out []domain.BankAccount
	for {
		var r accountRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetAccounts: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PutAccount inserts or replaces a bank account.
func (s *Store) PutAccount(ctx context.Context, ownerID string, acc domain.BankAccount) error {
	tab := s.table(accountsTable)
	script := `BEGIN TRANSACTION;
	DELETE FROM ` + tab + ` WHERE owner_id = @owner_id AND account_id = @account_id;
	INSERT INTO ` + tab + ` (account_id, owner_id, name, number, initial_balance)
	VALUES (@account_id, @owner_id, @name, @number, @initial_balance);
	COMMIT TRANSACTION;`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "account_id", Value: acc.ID},
		{Name: "name", Value: acc.Name},
		{Name: "number", Value: acc.Number},
		{Name: "initial_balance", Value: acc.InitialBalance.Rat()},
	}
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("PutAccount: %w", err)
	}
	return nil
}

// GetCategories lists the owner's categories.
func (s *Store) GetCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	stmt := `SELECT category_id, owner_id, name, parent_id, is_system
		FROM ` + s.table(categoriesTable) + `
		WHERE owner_id = @owner_id
		ORDER BY category_id`
	q := s.client.Query(stmt)
	q.Parameters = []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCategories: query read: %w", err)
	}
	var out []domain.Category
	for {
		var r categoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetCategories: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(ctx context.Context, ownerID string, cat domain.Category) error {
	tab := s.table(categoriesTable)
	script := `BEGIN TRANSACTION;
	DELETE FROM ` + tab + ` WHERE owner_id = @owner_id AND category_id = @category_id;
	INSERT INTO ` + tab + ` (category_id, owner_id, name, parent_id, is_system)
	VALUES (@category_id, @owner_id, @name, @parent_id, @is_system);
	COMMIT TRANSACTION;`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "category_id", Value: cat.ID},
		{Name: "name", Value: cat.Name},
		{Name: "parent_id", Value: cat.ParentID},
		{Name: "is_system", Value: cat.System},
	}
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("PutCategory: %w", err)
	}
	return nil
}

// DeleteCategory removes a category row. The protection of system categories
// is enforced by the engine before this call.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	stmt := `DELETE FROM ` + s.table(categoriesTable) + `
		WHERE owner_id = @owner_id AND category_id = @category_id`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "category_id", Value: id},
	}
	if err := s.runDML(ctx, stmt, params); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

// GetRules lists the owner's categorization rules.
func (s *Store) GetRules(ctx context.Context, ownerID string) ([]domain.CategoryRule, error) {
	stmt := `SELECT rule_id, owner_id, pattern, category_id, force_type, match_type, is_active, match_count, last_used
		FROM ` + s.table(rulesTable) + `
		WHERE owner_id = @owner_id
		ORDER BY rule_id`
	q := s.client.Query(stmt)
	q.Parameters = []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRules: query read: %w", err)
	}
	var out []domain.CategoryRule
	for {
		var r ruleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetRules: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// PutRule inserts or replaces a rule, including its usage statistics.
func (s *Store) PutRule(ctx context.Context, ownerID string, rule domain.CategoryRule) error {
	tab := s.table(rulesTable)
	script := `BEGIN TRANSACTION;
	DELETE FROM ` + tab + ` WHERE owner_id = @owner_id AND rule_id = @rule_id;
	INSERT INTO ` + tab + ` (rule_id, owner_id, pattern, category_id, force_type, match_type, is_active, match_count, last_used)
	VALUES (@rule_id, @owner_id, @pattern, @category_id, @force_type, @match_type, @is_active, @match_count, @last_used);
	COMMIT TRANSACTION;`
	row := toRuleRow(ownerID, rule)
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "rule_id", Value: row.RuleID},
		{Name: "pattern", Value: row.Pattern},
		{Name: "category_id", Value: row.CategoryID},
		{Name: "force_type", Value: row.ForceType},
		{Name: "match_type", Value: row.MatchType},
		{Name: "is_active", Value: row.IsActive},
		{Name: "match_count", Value: row.MatchCount},
		{Name: "last_used", Value: row.LastUsed},
	}
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("PutRule: %w", err)
	}
	return nil
}
