package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// ErrShareUnavailable is returned when the share-token cache is down.
// Share links cannot be issued or resolved without it.
var ErrShareUnavailable = errors.New("share links unavailable")

// ShareService produces shareable payment-link QR codes for wishlist items.
// The token behind a link lives in Redis with a TTL so stale QR codes on
// printed cards or stories eventually expire.
type ShareService struct {
	db      *sql.DB
	redis   *redis.Client
	baseURL string
}

func NewShareService(db *sql.DB, redisClient *redis.Client, baseURL string) *ShareService {
	return &ShareService{
		db:      db,
		redis:   redisClient,
		baseURL: baseURL,
	}
}

// GeneratePaymentQR builds a payment link for one of the caller's own items
// and renders it as a QR code. Returns the link and a base64 PNG.
func (s *ShareService) GeneratePaymentQR(ctx context.Context, userID, itemID string) (string, string, error) {
	// Redis is optional at startup; without it share tokens have nowhere
	// to live, so refuse up front instead of panicking mid-request.
	if s.redis == nil {
		return "", "", ErrShareUnavailable
	}

	var itemName, slug string
	err := s.db.QueryRowContext(ctx, `
        SELECT i.name, wl.slug
        FROM items i
        JOIN wishlists wl ON i.wishlist_id = wl.id
        WHERE i.id = $1 AND wl.user_id = $2
    `, itemID, userID).Scan(&itemName, &slug)

	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("item not found")
	}
	if err != nil {
		return "", "", err
	}

	token, err := s.generateToken()
	if err != nil {
		return "", "", err
	}
	payURL := fmt.Sprintf("%s/%s/%s?st=%s", s.baseURL, slug, itemID, token)

	tokenData, err := json.Marshal(map[string]any{
		"itemId":    itemID,
		"itemName":  itemName,
		"slug":      slug,
		"createdAt": time.Now().Unix(),
	})
	if err != nil {
		return "", "", err
	}

	key := fmt.Sprintf("share:%s", token)
	if err := s.redis.Set(ctx, key, tokenData, 24*time.Hour).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(payURL, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return payURL, qrImage, nil
}

// ResolveShareToken looks up the item behind a share token. Tokens stay
// valid until their TTL runs out; a link gets scanned more than once.
func (s *ShareService) ResolveShareToken(ctx context.Context, token string) (map[string]any, error) {
	if s.redis == nil {
		return nil, ErrShareUnavailable
	}

	key := fmt.Sprintf("share:%s", token)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired share token")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *ShareService) generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
