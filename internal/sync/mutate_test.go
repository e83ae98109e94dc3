package sync

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/domain"
)

func TestAddTransactionRemoteFirst(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	f.store.FailNextWrite(errors.New("backend down"))
	_, err := f.engine.AddTransaction(context.Background(), tx("t1", day(2024, 1, 5), 100))
	if err == nil {
		t.Fatal("AddTransaction succeeded with a failing remote")
	}
	if got := f.engine.Transactions(); len(got) != 0 {
		t.Fatalf("failed add left local state: %v", ids(got))
	}
	if got := f.engine.CategorySummary("food", "2024-01"); !got.IsZero() {
		t.Fatalf("failed add moved the summary: %s", got)
	}
}

func TestAddTransactionRejectsUnknownAccount(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	bad := tx("t1", day(2024, 1, 5), 100)
	bad.AccountID = "ghost"
	_, err := f.engine.AddTransaction(context.Background(), bad)
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}
}

func TestUpdateTransactionRollbackIsExact(t *testing.T) {
	f := newFixture(t, Config{})
	orig := tx("t1", day(2024, 1, 5), 250)
	orig.Tags = []string{"dining"}
	orig.Notes = "team lunch"
	f.seed(t, orig)
	f.init(t)

	sumBefore := f.engine.CategorySummary("food", "2024-01")

	amount := decimal.NewFromInt(900)
	notes := "edited"
	f.store.FailNextWrite(errors.New("backend down"))
	err := f.engine.UpdateTransaction(context.Background(), "t1", domain.TransactionPatch{
		Amount: &amount,
		Notes:  &notes,
	})
	if err == nil {
		t.Fatal("UpdateTransaction succeeded with a failing remote")
	}

	got := f.engine.Transactions()
	if len(got) != 1 || !reflect.DeepEqual(got[0], orig) {
		t.Fatalf("rollback left %+v, want %+v", got[0], orig)
	}
	if sum := f.engine.CategorySummary("food", "2024-01"); !sum.Equal(sumBefore) {
		t.Fatalf("summary after rollback = %s, want %s", sum, sumBefore)
	}
}

func TestUpdateTransactionMovesSummary(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, tx("t1", day(2024, 1, 5), 250))
	f.init(t)

	travel := "travel"
	if _, err := f.engine.AddCategory(context.Background(), domain.Category{ID: travel, Name: "Travel"}); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := f.engine.UpdateTransaction(context.Background(), "t1", domain.TransactionPatch{CategoryID: &travel}); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	if got := f.engine.CategorySummary("food", "2024-01"); !got.IsZero() {
		t.Fatalf("old category kept %s after recategorization", got)
	}
	want := decimal.NewFromInt(-250)
	if got := f.engine.CategorySummary(travel, "2024-01"); !got.Equal(want) {
		t.Fatalf("new category summary = %s, want %s", got, want)
	}
}

func TestUpdateManyUsesOneBatch(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t,
		tx("t1", day(2024, 1, 1), 10),
		tx("t2", day(2024, 1, 2), 20),
		tx("t3", day(2024, 1, 3), 30),
	)
	f.init(t)

	notes := "reviewed"
	err := f.engine.UpdateMany(context.Background(), []string{"t1", "t2", "t3"}, domain.TransactionPatch{Notes: &notes})
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if len(f.store.BatchSizes) != 1 || f.store.BatchSizes[0] != 3 {
		t.Fatalf("batch sizes = %v, want [3]", f.store.BatchSizes)
	}
	for _, x := range f.engine.Transactions() {
		if x.Notes != notes {
			t.Fatalf("%s notes = %q, want %q", x.ID, x.Notes, notes)
		}
	}
}

func TestUpdateManyRollsBackAllOnBatchFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t,
		tx("t1", day(2024, 1, 1), 10),
		tx("t2", day(2024, 1, 2), 20),
	)
	f.init(t)
	before := f.engine.Transactions()

	amount := decimal.NewFromInt(777)
	f.store.FailNextWrite(errors.New("backend down"))
	err := f.engine.UpdateMany(context.Background(), []string{"t1", "t2"}, domain.TransactionPatch{Amount: &amount})
	if err == nil {
		t.Fatal("UpdateMany succeeded with a failing remote")
	}
	if got := f.engine.Transactions(); !reflect.DeepEqual(got, before) {
		t.Fatalf("rollback left %v, want %v", got, before)
	}
	want := decimal.NewFromInt(-30)
	if got := f.engine.CategorySummary("food", "2024-01"); !got.Equal(want) {
		t.Fatalf("summary after rollback = %s, want %s", got, want)
	}
}

func TestUpdateManyLaterChunkFailureKeepsConfirmed(t *testing.T) {
	f := newFixture(t, Config{BatchLimit: 2})
	f.seed(t,
		tx("t1", day(2024, 1, 1), 10),
		tx("t2", day(2024, 1, 2), 20),
		tx("t3", day(2024, 1, 3), 30),
	)
	f.init(t)

	// First chunk (t1, t2) commits; the second (t3) fails.
	f.store.FailWriteAfter(1, errors.New("backend down"))
	category := "travel"
	err := f.engine.UpdateMany(context.Background(), []string{"t1", "t2", "t3"}, domain.TransactionPatch{CategoryID: &category})
	if err == nil {
		t.Fatal("UpdateMany succeeded with a failing remote")
	}
	if len(f.store.BatchSizes) != 2 || f.store.BatchSizes[0] != 2 || f.store.BatchSizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [2 1]", f.store.BatchSizes)
	}

	// Local state matches what the backend confirmed.
	for _, x := range f.engine.Transactions() {
		want := "travel"
		if x.ID == "t3" {
			want = "food"
		}
		if x.CategoryID != want {
			t.Fatalf("%s category = %q, want %q", x.ID, x.CategoryID, want)
		}
	}
	if got := f.engine.CategorySummary("travel", "2024-01"); !got.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("travel summary = %s, want -30", got)
	}
	if got := f.engine.CategorySummary("food", "2024-01"); !got.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("food summary = %s, want -30", got)
	}
}

func TestUpdateEachUnknownIDTouchesNothing(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, tx("t1", day(2024, 1, 1), 10))
	f.init(t)

	amount := decimal.NewFromInt(5)
	err := f.engine.UpdateEach(context.Background(), map[string]domain.TransactionPatch{
		"t1":    {Amount: &amount},
		"ghost": {Amount: &amount},
	})
	if !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("err = %v, want ErrUnknownTransaction", err)
	}
	if got := f.engine.Transactions()[0].Amount; !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("t1 amount = %s, staging failure must not apply patches", got)
	}
	if len(f.store.BatchSizes) != 0 {
		t.Fatalf("batch write issued despite staging failure: %v", f.store.BatchSizes)
	}
}

func TestDeleteTransactionRemoteFirst(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, tx("t1", day(2024, 1, 5), 100))
	f.init(t)

	f.store.FailNextWrite(errors.New("backend down"))
	if err := f.engine.DeleteTransaction(context.Background(), "t1"); err == nil {
		t.Fatal("DeleteTransaction succeeded with a failing remote")
	}
	if got := ids(f.engine.Transactions()); !equalIDs(got, []string{"t1"}) {
		t.Fatalf("failed delete removed local state: %v", got)
	}

	if err := f.engine.DeleteTransaction(context.Background(), "t1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if got := f.engine.Transactions(); len(got) != 0 {
		t.Fatalf("ledger after delete = %v, want empty", ids(got))
	}
	if got := f.engine.CategorySummary("food", "2024-01"); !got.IsZero() {
		t.Fatalf("summary after delete = %s, want 0", got)
	}
}

func TestDeleteCategoryProtectsSystemCategories(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	ctx := context.Background()
	if _, err := f.engine.AddCategory(ctx, domain.Category{ID: "sys", Name: "Transfers", System: true}); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := f.engine.DeleteCategory(ctx, "sys"); !errors.Is(err, ErrProtectedCategory) {
		t.Fatalf("err = %v, want ErrProtectedCategory", err)
	}
	if err := f.engine.DeleteCategory(ctx, "food"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	for _, c := range f.engine.Categories() {
		if c.ID == "food" {
			t.Fatal("deleted category still listed")
		}
	}
}
