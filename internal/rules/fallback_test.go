package rules

import (
	"testing"

	"github.com/dvolkov/homeledger/internal/domain"
)

func TestSuggestFallback(t *testing.T) {
	tests := []struct {
		desc     string
		wantCat  string
		wantType domain.TransactionType
		wantOK   bool
	}{
		{"SWIGGY ORDER 9931", "food", domain.TypeExpense, true},
		{"ACME CORP SALARY JUN", "income", domain.TypeIncome, true},
		{"NEFT TRANSFER TO SAVINGS", "transfers", domain.TypeTransfer, true},
		{"completely opaque 0x99", "", "", false},
	}
	for _, tt := range tests {
		got, ok := SuggestFallback(tt.desc)
		if ok != tt.wantOK {
			t.Errorf("SuggestFallback(%q) ok = %v, want %v", tt.desc, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got.CategoryID != tt.wantCat || got.Type != tt.wantType {
			t.Errorf("SuggestFallback(%q) = %+v, want %s/%s", tt.desc, got, tt.wantCat, tt.wantType)
		}
	}
}

func TestSuggestFallback_PriorityWins(t *testing.T) {
	// "interest" (60) and "salary" (100) both appear; higher priority wins.
	got, ok := SuggestFallback("salary plus interest credit")
	if !ok || got.Priority != 100 {
		t.Errorf("got %+v ok=%v, want the priority-100 entry", got, ok)
	}
}

func TestSuggestFallback_FuzzyToken(t *testing.T) {
	// One edit away from "swiggy"; long enough for fuzzy matching.
	if got, ok := SuggestFallback("swigy dinner"); !ok || got.CategoryID != "food" {
		t.Errorf("fuzzy match failed: %+v ok=%v", got, ok)
	}
	// Keywords under five runes never fuzzy-match ("ubr" is one edit from
	// "uber" but too short to qualify).
	if _, ok := SuggestFallback("ubr trip"); ok {
		t.Error("short keyword should not fuzzy-match")
	}
}

func TestSuggestFallback_Deterministic(t *testing.T) {
	a, okA := SuggestFallback("UBER TRIP 123")
	b, okB := SuggestFallback("UBER TRIP 123")
	if okA != okB || a != b {
		t.Error("fallback scorer is not deterministic")
	}
}
