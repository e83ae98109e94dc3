package domain

import "encoding/json"

// Secondary collections handled generically by the lazy loader. The engine
// does not interpret their contents; it only keeps them synchronized.
const (
	CollectionGoals     = "goals"
	CollectionAssets    = "assets"
	CollectionInsurance = "insurancePolicies"
	CollectionDebts     = "liabilities"
	CollectionRecurring = "recurringTransactions"
	CollectionBills     = "bills"
	CollectionSIPRules  = "sipRules"
	CollectionBudget    = "budget"
)

// SecondaryCollections lists every lazily loaded collection name.
func SecondaryCollections() []string {
	return []string{
		CollectionGoals,
		CollectionAssets,
		CollectionInsurance,
		CollectionDebts,
		CollectionRecurring,
		CollectionBills,
		CollectionSIPRules,
		CollectionBudget,
	}
}

// Document is an opaque record from a secondary collection.
type Document struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields,omitempty"`
}
