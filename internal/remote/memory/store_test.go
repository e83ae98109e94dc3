package memory

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/remote"
)

const owner = "user-1"

func tx(id string, day int) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Date:        civil.Date{Year: 2024, Month: 1, Day: day},
		Description: "entry " + id,
		Type:        domain.TypeExpense,
		Amount:      decimal.NewFromInt(10),
	}
}

func TestStore_PutGetPage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, e := range []domain.Transaction{tx("a", 5), tx("b", 5), tx("c", 3)} {
		if err := s.PutTransaction(ctx, owner, e); err != nil {
			t.Fatalf("PutTransaction: %v", err)
		}
	}

	items, err := s.GetPage(ctx, owner, remote.PageRequest{Limit: 10})
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].ID != "b" || items[1].ID != "a" || items[2].ID != "c" {
		t.Errorf("wrong order: %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}

	// Cursor excludes already-seen rows.
	cur := &remote.Cursor{Date: items[1].Date, ID: items[1].ID}
	rest, err := s.GetPage(ctx, owner, remote.PageRequest{Limit: 10, Cursor: cur})
	if err != nil {
		t.Fatalf("GetPage with cursor: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "c" {
		t.Errorf("cursor page = %v, want only c", rest)
	}
}

func TestStore_GetRange(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, e := range []domain.Transaction{tx("a", 1), tx("b", 15), tx("c", 31)} {
		if err := s.PutTransaction(ctx, owner, e); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.GetRange(ctx, owner,
		civil.Date{Year: 2024, Month: 1, Day: 10},
		civil.Date{Year: 2024, Month: 1, Day: 20})
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("GetRange = %v, want only b", got)
	}
}

func TestStore_BatchWrite_Atomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.PutTransaction(ctx, owner, tx("a", 5)); err != nil {
		t.Fatal(err)
	}

	// Second op references a missing id; the first op must not stick.
	note := "patched"
	ops := []remote.WriteOp{
		remote.PatchOp("a", domain.TransactionPatch{Notes: &note}),
		remote.PatchOp("missing", domain.TransactionPatch{Notes: &note}),
	}
	if err := s.BatchWrite(ctx, owner, ops); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	items, _ := s.GetPage(ctx, owner, remote.PageRequest{Limit: 10})
	if items[0].Notes != "" {
		t.Error("failed batch partially applied")
	}
}

func TestStore_FailNextWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("backend down")
	s.FailNextWrite(boom)

	if err := s.PutTransaction(ctx, owner, tx("a", 5)); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	// Injection is one-shot.
	if err := s.PutTransaction(ctx, owner, tx("a", 5)); err != nil {
		t.Fatalf("second write should succeed, got %v", err)
	}
}

func TestStore_FailNextReadCoversEveryReadPath(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("backend down")
	from := civil.Date{Year: 2024, Month: 1, Day: 1}
	to := civil.Date{Year: 2024, Month: 12, Day: 31}

	reads := []struct {
		name string
		call func() error
	}{
		{"GetPage", func() error { _, err := s.GetPage(ctx, owner, remote.PageRequest{Limit: 1}); return err }},
		{"GetRange", func() error { _, err := s.GetRange(ctx, owner, from, to); return err }},
		{"GetAccounts", func() error { _, err := s.GetAccounts(ctx, owner); return err }},
		{"GetCategories", func() error { _, err := s.GetCategories(ctx, owner); return err }},
		{"GetRules", func() error { _, err := s.GetRules(ctx, owner); return err }},
		{"GetDocuments", func() error { _, err := s.GetDocuments(ctx, owner, domain.CollectionGoals); return err }},
	}
	for _, r := range reads {
		s.FailNextRead(boom)
		if err := r.call(); !errors.Is(err, boom) {
			t.Errorf("%s: err = %v, want injected failure", r.name, err)
		}
		// Injection is one-shot.
		if err := r.call(); err != nil {
			t.Errorf("%s: second call should succeed, got %v", r.name, err)
		}
	}
}

func TestStore_FailWriteAfter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("backend down")
	s.FailWriteAfter(1, boom)

	if err := s.PutTransaction(ctx, owner, tx("a", 5)); err != nil {
		t.Fatalf("first write should succeed, got %v", err)
	}
	if err := s.PutTransaction(ctx, owner, tx("b", 6)); !errors.Is(err, boom) {
		t.Fatalf("second write: err = %v, want injected failure", err)
	}
	if err := s.PutTransaction(ctx, owner, tx("c", 7)); err != nil {
		t.Fatalf("third write should succeed, got %v", err)
	}
}

func TestStore_Documents(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	docs := []domain.Document{{ID: "g1", Fields: []byte(`{"name":"emergency fund"}`)}}
	if err := s.PutDocuments(ctx, owner, domain.CollectionGoals, docs); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetDocuments(ctx, owner, domain.CollectionGoals)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "g1" {
		t.Errorf("GetDocuments = %v, want g1", got)
	}
	if s.GetDocumentsCalls != 1 {
		t.Errorf("GetDocumentsCalls = %d, want 1", s.GetDocumentsCalls)
	}
}
