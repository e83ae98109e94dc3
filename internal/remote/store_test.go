package remote

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestCursor_Admits(t *testing.T) {
	c := Cursor{Date: civil.Date{Year: 2024, Month: 1, Day: 5}, ID: "b"}

	tests := []struct {
		name string
		date civil.Date
		id   string
		want bool
	}{
		{"earlier date", civil.Date{Year: 2024, Month: 1, Day: 3}, "z", true},
		{"same date lower id", c.Date, "a", true},
		{"same date same id", c.Date, "b", false},
		{"same date higher id", c.Date, "c", false},
		{"later date", civil.Date{Year: 2024, Month: 1, Day: 6}, "a", false},
	}
	for _, tt := range tests {
		if got := c.Admits(tt.date, tt.id); got != tt.want {
			t.Errorf("%s: Admits(%v, %q) = %v, want %v", tt.name, tt.date, tt.id, got, tt.want)
		}
	}
}

func TestChunkOps(t *testing.T) {
	ops := make([]WriteOp, 1001)
	for i := range ops {
		ops[i] = DeleteOp("x")
	}

	chunks := ChunkOps(ops, 450)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		if len(c) > 450 {
			t.Errorf("chunk %d has %d ops, exceeds limit", i, len(c))
		}
		total += len(c)
	}
	if total != 1001 {
		t.Errorf("chunks cover %d ops, want 1001", total)
	}

	if got := ChunkOps(nil, 450); got != nil {
		t.Errorf("chunking no ops should produce no chunks, got %v", got)
	}
}

func TestValidateOp(t *testing.T) {
	if err := ValidateOp(WriteOp{Kind: OpPut}); err == nil {
		t.Error("put without transaction should fail")
	}
	if err := ValidateOp(WriteOp{Kind: OpPatch, ID: "a"}); err == nil {
		t.Error("patch without body should fail")
	}
	if err := ValidateOp(WriteOp{Kind: OpDelete}); err == nil {
		t.Error("delete without id should fail")
	}
	if err := ValidateOp(WriteOp{Kind: "merge", ID: "a"}); err == nil {
		t.Error("unknown kind should fail")
	}
	if err := ValidateOp(DeleteOp("a")); err != nil {
		t.Errorf("valid delete rejected: %v", err)
	}
}
