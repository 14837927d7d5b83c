package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Details       any       `json:"details"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogCredit(transactionID, userID, claimID, reference string, amount int64) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "WALLET_CREDIT",
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details: map[string]string{
			"claim_id":  claimID,
			"reference": reference,
		},
	}
	a.log(event)
}

func (a *Logger) LogDuplicate(transactionID, reference string) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "DUPLICATE_DELIVERY",
		TransactionID: transactionID,
		Status:        "SKIPPED",
		Details:       map[string]string{"reference": reference},
	}
	a.log(event)
}

// LogIntegrityError records a verified payment event that has no matching
// claim. This means the provider's ledger and ours have diverged.
func (a *Logger) LogIntegrityError(transactionID, reference string, amount int64) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "LEDGER_DIVERGENCE",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "FAILED",
		Details:       map[string]string{"reference": reference},
	}
	a.log(event)
}

func (a *Logger) LogError(transactionID, userID string, err error) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
