package models

import (
	"time"
)

type Wallet struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // in kobo
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WalletTransaction is the append-only credit ledger. ProviderTxnID carries
// the payment provider's transaction id and is unique; its presence is what
// marks a webhook delivery as already applied.
type WalletTransaction struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ClaimID       string    `json:"claim_id" db:"claim_id"`
	Amount        int64     `json:"amount" db:"amount"` // in kobo
	Type          string    `json:"type" db:"type"`     // CREDIT
	Reference     string    `json:"reference" db:"reference"`
	ProviderTxnID string    `json:"provider_txn_id" db:"provider_txn_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
