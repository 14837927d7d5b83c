package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/heyspender/backend/internal/models"
)

type WalletService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewWalletService(db *sql.DB) *WalletService {
	return &WalletService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// GetBalance returns the authenticated owner's wallet balance
// @Summary Get wallet balance
// @Description Retrieve the current wallet balance in kobo. Wallets are created lazily on first credit, so a missing row reads as zero.
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{userId=string,balance=int64}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /wallet [get]
func (s *WalletService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var balance int64
	err := s.db.QueryRowContext(r.Context(), `
        SELECT balance FROM wallets WHERE user_id = $1
    `, userID).Scan(&balance)

	if err != nil && err != sql.ErrNoRows {
		log.Printf("[WALLET] Failed to fetch balance for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"userId":  userID,
		"balance": balance,
	})
}

// ListTransactions returns the owner's recent wallet credits
// @Summary List wallet transactions
// @Description Get recent wallet transactions, newest first
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {object} object{transactions=[]models.WalletTransaction,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /wallet/transactions [get]
func (s *WalletService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := s.fetchTransactions(r.Context(), userID, req.Limit)
	if err != nil {
		log.Printf("[WALLET] Failed to fetch transactions for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *WalletService) fetchTransactions(ctx context.Context, userID string, limit int) ([]models.WalletTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, claim_id, amount, type, reference, provider_txn_id, created_at
        FROM wallet_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.WalletTransaction{}
	for rows.Next() {
		var tx models.WalletTransaction
		err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.ClaimID, &tx.Amount, &tx.Type,
			&tx.Reference, &tx.ProviderTxnID, &tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}
