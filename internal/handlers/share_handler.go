package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/heyspender/backend/internal/services"
)

type ShareHandler struct {
	service   *services.ShareService
	validator *services.ValidationHelper
}

func NewShareHandler(service *services.ShareService) *ShareHandler {
	return &ShareHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR generates a payment-link QR code for a wishlist item
// @Summary Generate share QR code
// @Description Generate a QR code encoding the payment link for one of the caller's wishlist items
// @Tags share
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{itemId=string} true "Share request"
// @Success 200 {object} object{payUrl=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /share/qr [post]
func (h *ShareHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ItemID string `json:"itemId" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payURL, qrImage, err := h.service.GeneratePaymentQR(r.Context(), userID, req.ItemID)
	if err != nil {
		if errors.Is(err, services.ErrShareUnavailable) {
			services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"payUrl":  payURL,
		"qrImage": qrImage,
	})
}

// ResolveToken resolves a scanned share token back to its item
// @Summary Resolve share token
// @Description Resolve a share token from a scanned QR code to the wishlist item it points at
// @Tags share
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Resolve request"
// @Success 200 {object} object{itemId=string,itemName=string,slug=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /share/resolve [post]
func (h *ShareHandler) ResolveToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ResolveShareToken(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, services.ErrShareUnavailable) {
			services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
