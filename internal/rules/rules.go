// Package rules matches transaction descriptions against user-defined
// categorization rules. Matching is deterministic given a rule set and a
// description.
package rules

import (
	"sort"
	"strings"

	"github.com/dvolkov/homeledger/internal/domain"
)

// Normalize lower-cases and trims a pattern or description before matching.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether rule r applies to description. Inactive rules
// never match. Partial matching falls back to an alphanumeric-only
// comparison so punctuation and spacing drift ("ACH - D" vs "ACH D") still
// match.
func Matches(r domain.CategoryRule, description string) bool {
	if !r.Active {
		return false
	}
	pattern := Normalize(r.Pattern)
	desc := Normalize(description)
	if pattern == "" {
		return false
	}

	switch r.MatchType {
	case domain.MatchExact:
		return desc == pattern
	case domain.MatchPartial:
		if strings.Contains(desc, pattern) {
			return true
		}
		ap, ad := domain.AlnumKey(pattern), domain.AlnumKey(desc)
		return ap != "" && strings.Contains(ad, ap)
	}
	return false
}

// SortForAssign orders rules for single-transaction auto-assignment: most
// recently used first, rules never used last, ties broken by id ascending so
// the order is total and reproducible.
func SortForAssign(rs []domain.CategoryRule) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		switch {
		case a.LastUsed.IsZero() && b.LastUsed.IsZero():
			return a.ID < b.ID
		case a.LastUsed.IsZero():
			return false
		case b.LastUsed.IsZero():
			return true
		case !a.LastUsed.Equal(b.LastUsed):
			return a.LastUsed.After(b.LastUsed)
		}
		return a.ID < b.ID
	})
}

// AutoAssign returns the first matching rule for description under the
// recency ordering. The input slice is not modified.
func AutoAssign(rs []domain.CategoryRule, description string) (domain.CategoryRule, bool) {
	ordered := append([]domain.CategoryRule(nil), rs...)
	SortForAssign(ordered)
	for _, r := range ordered {
		if Matches(r, description) {
			return r, true
		}
	}
	return domain.CategoryRule{}, false
}

// BulkTarget is one transaction a bulk rule application would change,
// together with the patch that brings it in line with the rule.
type BulkTarget struct {
	TransactionID string
	Patch         domain.TransactionPatch
}

// BulkTargets scans txs for matches of rule r and returns a patch for every
// transaction whose category or forced type actually differs. Transactions
// already in the rule's target state produce no patch.
func BulkTargets(r domain.CategoryRule, txs []domain.Transaction) []BulkTarget {
	var targets []BulkTarget
	for _, tx := range txs {
		if !Matches(r, tx.Description) {
			continue
		}
		var p domain.TransactionPatch
		if tx.CategoryID != r.CategoryID {
			cat := r.CategoryID
			p.CategoryID = &cat
		}
		if r.ForceType != "" && tx.Type != r.ForceType {
			typ := r.ForceType
			p.Type = &typ
		}
		if p.IsEmpty() {
			continue
		}
		targets = append(targets, BulkTarget{TransactionID: tx.ID, Patch: p})
	}
	return targets
}
