package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvolkov/homeledger/internal/domain"
	"github.com/dvolkov/homeledger/internal/rules"
)

// Assignment is the outcome of category auto-assignment for a description.
type Assignment struct {
	CategoryID string
	ForceType  domain.TransactionType
	RuleID     string // empty when the fallback scorer answered
}

// AutoAssign resolves a category for a description: active custom rules win
// under the recency ordering; the static keyword scorer answers only when no
// rule matches.
func (e *Engine) AutoAssign(description string) (Assignment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoAssignLocked(description)
}

func (e *Engine) autoAssignLocked(description string) (Assignment, bool) {
	if r, ok := rules.AutoAssign(e.ruleSet, description); ok {
		return Assignment{CategoryID: r.CategoryID, ForceType: r.ForceType, RuleID: r.ID}, true
	}
	if s, ok := rules.SuggestFallback(description); ok {
		return Assignment{CategoryID: s.CategoryID, ForceType: s.Type}, true
	}
	return Assignment{}, false
}

// SetSuggester installs an optional model-backed suggester consulted only
// when both custom rules and the keyword table come up empty.
func (e *Engine) SetSuggester(s rules.Suggester) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suggester = s
}

// SuggestCategory resolves a category for a description, escalating from
// custom rules through the keyword table to the installed suggester. A
// suggester failure is logged and treated as no suggestion.
func (e *Engine) SuggestCategory(ctx context.Context, description string) (Assignment, bool) {
	e.mu.Lock()
	if a, ok := e.autoAssignLocked(description); ok {
		e.mu.Unlock()
		return a, true
	}
	suggester := e.suggester
	cats := make([]domain.Category, 0, len(e.categories))
	for _, c := range e.categories {
		cats = append(cats, c)
	}
	e.mu.Unlock()

	if suggester == nil {
		return Assignment{}, false
	}
	id, err := suggester.SuggestCategory(ctx, description, cats)
	if err != nil {
		e.log.Warn().Err(err).Str("description", description).Msg("category suggestion failed")
		return Assignment{}, false
	}
	return Assignment{CategoryID: id}, true
}

// AddRule validates and persists a new categorization rule.
func (e *Engine) AddRule(ctx context.Context, rule domain.CategoryRule) (domain.CategoryRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return domain.CategoryRule{}, ErrNotInitialized
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := rule.Validate(); err != nil {
		return domain.CategoryRule{}, fmt.Errorf("AddRule: %w", err)
	}
	if err := e.remote.PutRule(ctx, e.userID, rule); err != nil {
		return domain.CategoryRule{}, fmt.Errorf("AddRule: remote write: %w", err)
	}
	e.ruleSet = append(e.ruleSet, rule)
	e.writeSnapshotLocked(domainRules, e.ruleSet)
	return rule, nil
}

// UpdateRule replaces an existing rule.
func (e *Engine) UpdateRule(ctx context.Context, rule domain.CategoryRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return ErrNotInitialized
	}
	idx := -1
	for i := range e.ruleSet {
		if e.ruleSet[i].ID == rule.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("UpdateRule: %w: %s", ErrUnknownRule, rule.ID)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("UpdateRule: %w", err)
	}
	if err := e.remote.PutRule(ctx, e.userID, rule); err != nil {
		return fmt.Errorf("UpdateRule: remote write: %w", err)
	}
	e.ruleSet[idx] = rule
	e.writeSnapshotLocked(domainRules, e.ruleSet)
	return nil
}

// SetRuleActive toggles a rule in or out of the matching set.
func (e *Engine) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	rule := domain.CategoryRule{}
	found := false
	for i := range e.ruleSet {
		if e.ruleSet[i].ID == ruleID {
			rule = e.ruleSet[i]
			found = true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return fmt.Errorf("SetRuleActive: %w: %s", ErrUnknownRule, ruleID)
	}
	rule.Active = active
	return e.UpdateRule(ctx, rule)
}

// ApplyRuleBulk scans the whole ledger for matches of the rule and patches
// every matching transaction whose category or forced type differs, in one
// pass and one batched remote request. It returns the match count, which
// also feeds the rule's statistics.
func (e *Engine) ApplyRuleBulk(ctx context.Context, ruleID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return 0, ErrNotInitialized
	}

	ruleIdx := -1
	for i := range e.ruleSet {
		if e.ruleSet[i].ID == ruleID {
			ruleIdx = i
			break
		}
	}
	if ruleIdx < 0 {
		return 0, fmt.Errorf("ApplyRuleBulk: %w: %s", ErrUnknownRule, ruleID)
	}
	rule := e.ruleSet[ruleIdx]

	matched := 0
	for i := range e.transactions {
		if rules.Matches(rule, e.transactions[i].Description) {
			matched++
		}
	}
	if matched == 0 {
		return 0, nil
	}

	// Only matches whose category or forced type actually differs need a
	// patch; the rest already carry the rule's outcome.
	targets := rules.BulkTargets(rule, e.transactions)
	patches := make(map[string]domain.TransactionPatch, len(targets))
	for _, t := range targets {
		patches[t.TransactionID] = t.Patch
	}
	if err := e.updateEachLocked(ctx, patches); err != nil {
		return 0, fmt.Errorf("ApplyRuleBulk: %w", err)
	}

	rule.MatchCount += matched
	rule.LastUsed = e.now()
	e.ruleSet[ruleIdx] = rule
	e.writeSnapshotLocked(domainRules, e.ruleSet)
	// Statistics are advisory; a failed stats write must not undo the
	// already-confirmed patches.
	if err := e.remote.PutRule(ctx, e.userID, rule); err != nil {
		e.log.Warn().Err(err).Str("rule_id", ruleID).Msg("rule stats write failed")
	}
	return matched, nil
}
