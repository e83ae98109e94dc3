package cache

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_WriteReadRoundtrip(t *testing.T) {
	s := openTestStore(t)

	if _, _, ok := s.ReadSnapshot("u1", "transactions"); ok {
		t.Fatal("read before write should be a miss")
	}

	payload := []byte(`[{"id":"t1"}]`)
	if err := s.WriteSnapshot("u1", "transactions", payload); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, savedAt, ok := s.ReadSnapshot("u1", "transactions")
	if !ok {
		t.Fatal("expected snapshot after write")
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}
	if savedAt.IsZero() {
		t.Error("saved_at should be set")
	}

	// Overwrite replaces.
	if err := s.WriteSnapshot("u1", "transactions", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.ReadSnapshot("u1", "transactions")
	if string(got) != "[]" {
		t.Errorf("payload after overwrite = %s, want []", got)
	}
}

func TestStore_OwnerScoping(t *testing.T) {
	s := openTestStore(t)
	if err := s.WriteSnapshot("u1", "goals", []byte(`["a"]`)); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.ReadSnapshot("u2", "goals"); ok {
		t.Error("snapshot leaked across owners")
	}
}

func TestStore_ClearAndClearAll(t *testing.T) {
	s := openTestStore(t)
	for _, d := range []string{"transactions", "goals"} {
		if err := s.WriteSnapshot("u1", d, []byte(`x`)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Clear("u1", "goals"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.ReadSnapshot("u1", "goals"); ok {
		t.Error("cleared domain still present")
	}
	if _, _, ok := s.ReadSnapshot("u1", "transactions"); !ok {
		t.Error("Clear removed an unrelated domain")
	}

	if err := s.ClearAll("u1"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.ReadSnapshot("u1", "transactions"); ok {
		t.Error("ClearAll left a snapshot behind")
	}
}
