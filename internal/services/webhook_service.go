package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/heyspender/backend/internal/audit"
	"github.com/heyspender/backend/internal/models"
	"github.com/heyspender/backend/internal/paystack"
	"github.com/lib/pq"
)

var (
	// ErrAlreadyProcessed marks a redelivered event whose transaction has
	// already been applied. Not a failure: at-least-once delivery makes
	// duplicates a normal outcome.
	ErrAlreadyProcessed = errors.New("transaction already processed")

	// ErrClaimNotFound means money moved at the provider with no matching
	// claim on our side. The ledgers have diverged.
	ErrClaimNotFound = errors.New("no claim matches payment reference")
)

type WebhookService struct {
	db            *sql.DB
	notifications *NotificationService
	audit         *audit.Logger
	secret        string
}

func NewWebhookService(db *sql.DB, redisClient *redis.Client, secret string) *WebhookService {
	return &WebhookService{
		db:            db,
		notifications: NewNotificationService(db, redisClient),
		audit:         audit.NewLogger(),
		secret:        secret,
	}
}

// claimContext is everything the reconciler resolves for one payment
// reference: the claim, its item and the user whose wallet gets credited.
type claimContext struct {
	ClaimID    string
	AmountPaid int64
	ItemID     string
	ItemName   string
	ItemPrice  int64
	OwnerID    string
}

// HandleWebhook receives payment provider events
// @Summary Payment provider webhook
// @Description Verifies and processes payment events pushed by the provider. Only charge.succeeded mutates state; other event types are acknowledged and dropped.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param x-provider-signature header string true "Hex HMAC-SHA512 of the raw body"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /payment-webhook [post]
func (ws *WebhookService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		SendErrorResponse(w, "Failed to read request body", http.StatusBadRequest, nil)
		return
	}

	// Nothing in the body is trusted until the signature checks out.
	signature := r.Header.Get(paystack.SignatureHeader)
	if !paystack.VerifySignature(body, signature, ws.secret) {
		log.Printf("[WEBHOOK] Signature verification failed from IP: %s", r.RemoteAddr)
		SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	evt, err := paystack.ParseEvent(body)
	if err != nil {
		log.Printf("[WEBHOOK] Malformed payload after valid signature: %v", err)
		SendErrorResponse(w, "Malformed payload", http.StatusBadRequest, nil)
		return
	}

	if evt.Event != paystack.EventChargeSucceeded {
		log.Printf("[WEBHOOK] Ignoring event type: %s", evt.Event)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ignored"})
		return
	}

	err = ws.ProcessChargeSucceeded(r.Context(), evt)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "processed"})
	case errors.Is(err, ErrAlreadyProcessed):
		log.Printf("[WEBHOOK] Duplicate delivery for transaction %s", evt.TransactionID())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "already processed"})
	case errors.Is(err, ErrClaimNotFound):
		// 404 rather than 500: redelivery won't make the claim appear.
		log.Printf("[WEBHOOK] CRITICAL: no claim for reference %s (transaction %s)", evt.Data.Reference, evt.TransactionID())
		SendErrorResponse(w, "Claim not found", http.StatusNotFound, nil)
	default:
		log.Printf("[WEBHOOK] Failed to process transaction %s: %v", evt.TransactionID(), err)
		SendErrorResponse(w, "Failed to process event", http.StatusInternalServerError, nil)
	}
}

// ProcessChargeSucceeded runs the reconciliation pipeline for a verified
// charge event: idempotency check, claim lookup, then the transactional
// credit. Safe to call concurrently for the same transaction id.
func (ws *WebhookService) ProcessChargeSucceeded(ctx context.Context, evt *paystack.Event) error {
	txnID := evt.TransactionID()

	applied, err := ws.alreadyApplied(ctx, txnID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if applied {
		ws.audit.LogDuplicate(txnID, evt.Data.Reference)
		return ErrAlreadyProcessed
	}

	cc, err := ws.resolveClaim(ctx, evt.Data.Reference)
	if err != nil {
		if err == sql.ErrNoRows {
			ws.audit.LogIntegrityError(txnID, evt.Data.Reference, evt.Data.Amount)
			return ErrClaimNotFound
		}
		return fmt.Errorf("claim lookup failed: %w", err)
	}

	newAmountPaid := cc.AmountPaid + evt.Data.Amount

	if err := ws.applyCredit(ctx, cc, newAmountPaid, evt); err != nil {
		if isUniqueViolation(err) {
			// Lost the race to a concurrent delivery of the same
			// transaction. The constraint on provider_txn_id held.
			ws.audit.LogDuplicate(txnID, evt.Data.Reference)
			return ErrAlreadyProcessed
		}
		ws.audit.LogError(txnID, cc.OwnerID, err)
		return err
	}

	ws.audit.LogCredit(txnID, cc.OwnerID, cc.ClaimID, evt.Data.Reference, evt.Data.Amount)

	// Best effort: a failed notification never unwinds the credit.
	if err := ws.notifications.NotifyWalletCredit(ctx, cc.OwnerID, cc.ItemName, evt.Data.Amount, evt.Data.Reference); err != nil {
		log.Printf("[WEBHOOK] Failed to create notification for user %s: %v", cc.OwnerID, err)
	}

	return nil
}

func (ws *WebhookService) alreadyApplied(ctx context.Context, txnID string) (bool, error) {
	var exists bool
	err := ws.db.QueryRowContext(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM wallet_transactions
            WHERE provider_txn_id = $1
        )
    `, txnID).Scan(&exists)
	return exists, err
}

func (ws *WebhookService) resolveClaim(ctx context.Context, reference string) (*claimContext, error) {
	cc := &claimContext{}
	err := ws.db.QueryRowContext(ctx, `
        SELECT c.id, c.amount_paid, i.id, i.name, i.price, wl.user_id
        FROM claims c
        JOIN items i ON c.item_id = i.id
        JOIN wishlists wl ON i.wishlist_id = wl.id
        WHERE c.payment_reference = $1
    `, reference).Scan(&cc.ClaimID, &cc.AmountPaid, &cc.ItemID, &cc.ItemName, &cc.ItemPrice, &cc.OwnerID)

	if err != nil {
		return nil, err
	}

	return cc, nil
}

// applyCredit commits the three financially load-bearing effects in one
// database transaction: the claim update, the wallet credit and the
// wallet_transactions row that anchors idempotency.
func (ws *WebhookService) applyCredit(ctx context.Context, cc *claimContext, newAmountPaid int64, evt *paystack.Event) error {
	dbTx, err := ws.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	status := models.ClaimStatusPartial
	if newAmountPaid >= cc.ItemPrice {
		status = models.ClaimStatusCompleted
	}

	if _, err := dbTx.ExecContext(ctx, `
        UPDATE claims
        SET amount_paid = $1, status = $2, updated_at = $3
        WHERE id = $4
    `, newAmountPaid, status, time.Now(), cc.ClaimID); err != nil {
		return err
	}

	// The increment happens in SQL so concurrent credits to the same
	// wallet cannot clobber each other.
	if _, err := dbTx.ExecContext(ctx, `
        INSERT INTO wallets (user_id, balance, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id)
        DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
    `, cc.OwnerID, evt.Data.Amount, time.Now()); err != nil {
		return err
	}

	// The idempotency anchor goes in last: if the process dies before this
	// insert, the provider's redelivery reprocesses the event instead of
	// losing it.
	if _, err := dbTx.ExecContext(ctx, `
        INSERT INTO wallet_transactions
        (id, user_id, claim_id, amount, type, reference, provider_txn_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, uuid.NewString(), cc.OwnerID, cc.ClaimID, evt.Data.Amount, "CREDIT",
		evt.Data.Reference, evt.TransactionID(), time.Now()); err != nil {
		return err
	}

	return dbTx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
