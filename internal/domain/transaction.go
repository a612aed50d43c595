package domain

import (
	"fmt"
	"time"
)

// TransactionType tells which direction money moved. The amount itself is
// always non-negative; the sign lives here.
type TransactionType string

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

// ParseTransactionType coerces an arbitrary string into a TransactionType.
// Anything that is not exactly "credit" is treated as a debit.
func ParseTransactionType(s string) TransactionType {
	if s == string(Credit) {
		return Credit
	}
	return Debit
}

// Transaction is one normalized statement entry. It is transient: built per
// upload, folded into the batch result, then handed to the store.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	BankName    string          `json:"bankName,omitempty"`
}

// Validate checks the invariants every produced transaction must hold.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction: empty id")
	}
	if t.Amount < 0 {
		return fmt.Errorf("transaction %s: negative amount %v", t.ID, t.Amount)
	}
	if t.Type != Debit && t.Type != Credit {
		return fmt.Errorf("transaction %s: invalid type %q", t.ID, t.Type)
	}
	return nil
}

// The single category taxonomy shared by the AI prompt and the deterministic
// parser. CategoryOther is the fallback for anything unmatched.
const (
	CategoryFood          = "Food & Dining"
	CategoryShopping      = "Shopping"
	CategoryHealth        = "Health"
	CategoryBills         = "Bills & Utilities"
	CategoryTravel        = "Travel"
	CategoryTransfer      = "Transfer"
	CategoryEntertainment = "Entertainment"
	CategorySubscriptions = "Subscriptions"
	CategoryOther         = "Other"
)

// Categories lists the taxonomy in prompt order.
func Categories() []string {
	return []string{
		CategoryFood,
		CategoryShopping,
		CategoryHealth,
		CategoryBills,
		CategoryTravel,
		CategoryTransfer,
		CategoryEntertainment,
		CategorySubscriptions,
		CategoryOther,
	}
}

// ValidCategory reports whether name is part of the taxonomy.
func ValidCategory(name string) bool {
	for _, c := range Categories() {
		if c == name {
			return true
		}
	}
	return false
}

// ExtractionResult is the output contract of the AI extraction client.
// RawResponse is only kept when the model returned something unparseable.
type ExtractionResult struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`
	Error        string        `json:"error,omitempty"`
	RawResponse  string        `json:"rawResponse,omitempty"`
}

// CountResult is the cheap pre-flight estimate used for batch ETA display.
type CountResult struct {
	Success          bool   `json:"success"`
	Count            int    `json:"count"`
	EstimatedSeconds int    `json:"estimatedSeconds"`
	Error            string `json:"error,omitempty"`
}

// EstimateSeconds converts a transaction count into a processing-time
// estimate. Roughly two seconds per transaction, never under 30.
func EstimateSeconds(count int) int {
	est := count * 2
	if est < 30 {
		return 30
	}
	return est
}

// AccountSummary is descriptive statement-header metadata. It is never
// persisted as transactions.
type AccountSummary struct {
	AccountNumber   string  `json:"accountNumber,omitempty"`
	HolderName      string  `json:"holderName,omitempty"`
	Branch          string  `json:"branch,omitempty"`
	StatementPeriod string  `json:"statementPeriod,omitempty"`
	OpeningBalance  float64 `json:"openingBalance,omitempty"`
	ClosingBalance  float64 `json:"closingBalance,omitempty"`
	TotalDebited    float64 `json:"totalDebited,omitempty"`
	TotalCredited   float64 `json:"totalCredited,omitempty"`
	DebitCount      int     `json:"debitCount,omitempty"`
	CreditCount     int     `json:"creditCount,omitempty"`
}

// PasswordProfile is a named saved credential. The secret is opaque to the
// pipeline; encryption at rest belongs to the storage collaborator.
type PasswordProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
