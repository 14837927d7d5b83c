package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/heyspender/backend/internal/models"
)

type NotificationService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewNotificationService(db *sql.DB, redisClient *redis.Client) *NotificationService {
	return &NotificationService{
		db:    db,
		redis: redisClient,
	}
}

// NotifyWalletCredit records an in-app notification for a wallet owner who
// just received a payment towards one of their wishlist items.
func (s *NotificationService) NotifyWalletCredit(ctx context.Context, userID, itemName string, amount int64, reference string) error {
	n := &models.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    "wallet_credit",
		Title:   "You just got paid!",
		Message: fmt.Sprintf("A supporter paid ₦%.2f towards %q.", float64(amount)/100, itemName),
		Data: map[string]any{
			"amount":    amount,
			"reference": reference,
			"item_name": itemName,
		},
		CreatedAt: time.Now(),
	}
	return s.Create(ctx, n)
}

func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, data, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.CreatedAt)
	if err != nil {
		return err
	}

	s.queueForDelivery(n)
	return nil
}

// queueForDelivery pushes the notification onto the delivery queue drained
// by the push/email worker. Fire-and-forget: the row is already durable.
func (s *NotificationService) queueForDelivery(n *models.Notification) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return
	}

	if err := s.redis.RPush(context.Background(), "notification_queue", string(payload)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification %s: %v", n.ID, err)
	}
}
