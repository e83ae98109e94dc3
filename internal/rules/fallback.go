package rules

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/dvolkov/homeledger/internal/domain"
)

// keywordEntry is one row of the static cold-start table. Higher priority
// wins when several keywords match.
type keywordEntry struct {
	keyword    string
	categoryID string
	txType     domain.TransactionType
	priority   int
}

// Cold-start suggestions used before any custom rule exists. Any active
// custom rule overrides this table.
var keywordTable = []keywordEntry{
	{"salary", "income", domain.TypeIncome, 100},
	{"payroll", "income", domain.TypeIncome, 100},
	{"dividend", "income", domain.TypeIncome, 90},
	{"interest", "income", domain.TypeIncome, 60},
	{"rent", "housing", domain.TypeExpense, 90},
	{"mortgage", "housing", domain.TypeExpense, 90},
	{"electricity", "utilities", domain.TypeExpense, 80},
	{"water bill", "utilities", domain.TypeExpense, 80},
	{"broadband", "utilities", domain.TypeExpense, 70},
	{"mobile recharge", "utilities", domain.TypeExpense, 70},
	{"swiggy", "food", domain.TypeExpense, 80},
	{"zomato", "food", domain.TypeExpense, 80},
	{"restaurant", "food", domain.TypeExpense, 60},
	{"grocery", "groceries", domain.TypeExpense, 70},
	{"supermarket", "groceries", domain.TypeExpense, 70},
	{"uber", "transport", domain.TypeExpense, 70},
	{"fuel", "transport", domain.TypeExpense, 60},
	{"petrol", "transport", domain.TypeExpense, 60},
	{"pharmacy", "health", domain.TypeExpense, 70},
	{"hospital", "health", domain.TypeExpense, 70},
	{"premium", "insurance", domain.TypeInsurance, 60},
	{"policy", "insurance", domain.TypeInsurance, 50},
	{"sip", "investments", domain.TypeInvestment, 60},
	{"mutual fund", "investments", domain.TypeInvestment, 70},
	{"netflix", "entertainment", domain.TypeExpense, 70},
	{"spotify", "entertainment", domain.TypeExpense, 70},
	{"amazon", "shopping", domain.TypeExpense, 50},
	{"transfer", "transfers", domain.TypeTransfer, 40},
	{"neft", "transfers", domain.TypeTransfer, 40},
	{"imps", "transfers", domain.TypeTransfer, 40},
}

// fuzzyThreshold is the maximum edit distance for a token to count as a
// keyword match; only tokens of five or more runes are considered so short
// codes cannot alias into each other.
const fuzzyThreshold = 1

// Suggestion is the fallback scorer's answer.
type Suggestion struct {
	CategoryID string
	Type       domain.TransactionType
	Priority   int
}

// SuggestFallback scores description against the static keyword table and
// returns the highest-priority hit. Exact substring matches are tried first;
// single-word keywords additionally match description tokens within a small
// edit distance to absorb bank-feed typos.
func SuggestFallback(description string) (Suggestion, bool) {
	desc := Normalize(description)
	if desc == "" {
		return Suggestion{}, false
	}
	tokens := strings.Fields(desc)

	best := Suggestion{Priority: -1}
	for _, e := range keywordTable {
		if !matchesKeyword(e.keyword, desc, tokens) {
			continue
		}
		if e.priority > best.Priority {
			best = Suggestion{CategoryID: e.categoryID, Type: e.txType, Priority: e.priority}
		}
	}
	if best.Priority < 0 {
		return Suggestion{}, false
	}
	return best, true
}

func matchesKeyword(keyword, desc string, tokens []string) bool {
	if strings.Contains(desc, keyword) {
		return true
	}
	if strings.ContainsRune(keyword, ' ') || len(keyword) < 5 {
		return false
	}
	for _, tok := range tokens {
		if len(tok) < 5 {
			continue
		}
		if levenshtein.ComputeDistance(tok, keyword) <= fuzzyThreshold {
			return true
		}
	}
	return false
}
