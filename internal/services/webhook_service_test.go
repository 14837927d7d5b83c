package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

const testSecret = "sk_test_webhook_secret"

func signPayload(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body []byte, signature string) *http.Request {
	r := httptest.NewRequest("POST", "/payment-webhook", bytes.NewBuffer(body))
	r.Header.Set("Content-Type", "application/json")
	if signature != "" {
		r.Header.Set("x-provider-signature", signature)
	}
	return r
}

func TestWebhookService_HandleWebhook(t *testing.T) {
	chargeBody := []byte(`{"event":"charge.succeeded","data":{"reference":"ref_123","id":999,"amount":500000}}`)

	t.Run("successful charge processing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectQuery("SELECT c.id, c.amount_paid").
			WithArgs("ref_123").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount_paid", "item_id", "name", "price", "user_id"}).
				AddRow("claim1", 0, "item1", "PlayStation 5", 500000, "u1"))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE claims").
			WithArgs(int64(500000), "completed", sqlmock.AnyArg(), "claim1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallets").
			WithArgs("u1", int64(500000), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallet_transactions").
			WithArgs(sqlmock.AnyArg(), "u1", "claim1", int64(500000), "CREDIT", "ref_123", "999", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "u1", "wallet_credit", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "processed", response["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial payment keeps claim partial", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		// Claim already has 250000 paid against a 1000000 item.
		mock.ExpectQuery("SELECT c.id, c.amount_paid").
			WithArgs("ref_123").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount_paid", "item_id", "name", "price", "user_id"}).
				AddRow("claim1", 250000, "item1", "Standing Desk", 1000000, "u1"))

		mock.ExpectBegin()
		// Cumulative amount accumulates, never resets to the incoming amount.
		mock.ExpectExec("UPDATE claims").
			WithArgs(int64(750000), "partial", sqlmock.AnyArg(), "claim1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallets").
			WithArgs("u1", int64(500000), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallet_transactions").
			WithArgs(sqlmock.AnyArg(), "u1", "claim1", int64(500000), "CREDIT", "ref_123", "999", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "u1", "wallet_credit", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate delivery short-circuits with 200", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "already processed", response["status"])
		// No further queries: the guard ran before any mutation.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid signature performs zero store work", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, "deadbeef"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing signature header", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, "")

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("irrelevant event type acknowledged without action", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		body := []byte(`{"event":"transfer.success","data":{"reference":"trf_1","id":55,"amount":100}}`)
		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(body, signPayload(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "ignored", response["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed JSON with valid signature", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		body := []byte(`{"event":`)
		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(body, signPayload(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("claim not found reports integrity error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectQuery("SELECT c.id, c.amount_paid").
			WithArgs("ref_123").
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		// Retrying won't make the claim appear, so not a 500.
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("notification failure does not change response", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectQuery("SELECT c.id, c.amount_paid").
			WithArgs("ref_123").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount_paid", "item_id", "name", "price", "user_id"}).
				AddRow("claim1", 0, "item1", "PlayStation 5", 500000, "u1"))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE claims").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallets").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallet_transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(sql.ErrConnDone)

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		// The financial writes already committed; the response stays 200.
		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "processed", response["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent delivery loses race on unique constraint", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectQuery("SELECT c.id, c.amount_paid").
			WithArgs("ref_123").
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount_paid", "item_id", "name", "price", "user_id"}).
				AddRow("claim1", 0, "item1", "PlayStation 5", 500000, "u1"))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE claims").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallets").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallet_transactions").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		// The constraint held: the other delivery won, this one is a no-op.
		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "already processed", response["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure returns 500 so provider retries", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewWebhookService(db, nil, testSecret)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("999").
			WillReturnError(sql.ErrConnDone)

		w := httptest.NewRecorder()
		service.HandleWebhook(w, webhookRequest(chargeBody, signPayload(chargeBody)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
