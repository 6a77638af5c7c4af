// internal/handler/receipt_handler.go
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/unclebandit/crm-campaign-service/internal/controller"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// ReceiptEnqueuer queues vendor receipts for the reconciler.
type ReceiptEnqueuer interface {
	Enqueue(ctx context.Context, rec model.Receipt) error
}

// ReceiptHandler serves the vendor-facing receipt endpoints. Neither endpoint
// touches the delivery logs; both only enqueue.
type ReceiptHandler struct {
	Queue     ReceiptEnqueuer
	Validator *validator.Validate
	Logger    logger.Logger
	Now       func() time.Time
}

func NewReceiptHandler(q ReceiptEnqueuer, log logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{Queue: q, Validator: validator.New(), Logger: log, Now: time.Now}
}

type deliveryReceiptPayload struct {
	MessageID   string `json:"message_id" validate:"required"`
	Status      string `json:"status" validate:"required"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id"`
}

type simulateRequest struct {
	Success *bool `json:"success" validate:"required"`
}

// DeliveryReceipt accepts POST /campaigns/delivery-receipt?logId=<id>. The
// log id may also arrive as reference_id in the body.
func (h *ReceiptHandler) DeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var payload deliveryReceiptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "validation failed", "details": []string{err.Error()},
		})
		return
	}

	logID := r.URL.Query().Get("logId")
	if logID == "" {
		logID = payload.ReferenceID
	}

	rec := model.Receipt{
		LogID:           logID,
		Status:          model.DeliveryStatus(strings.ToLower(strings.TrimSpace(payload.Status))),
		VendorMessageID: payload.MessageID,
		Reason:          payload.Reason,
		RawPayload:      json.RawMessage(raw),
		ReceivedAt:      h.Now().UTC(),
	}
	if err := h.Queue.Enqueue(r.Context(), rec); err != nil {
		controller.WriteError(w, h.Logger, err)
		return
	}

	h.Logger.Debug("delivery receipt queued", map[string]interface{}{
		"log_id": logID, "vendor_message_id": payload.MessageID, "status": rec.Status,
	})
	controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// SimulateCallback fabricates a receipt for a log, as the vendor would send
// it. Only mounted in development.
func (h *ReceiptHandler) SimulateCallback(w http.ResponseWriter, r *http.Request) {
	var body simulateRequest
	if !controller.DecodeAndValidate(w, r, h.Validator, &body) {
		return
	}
	logID := chi.URLParam(r, "logId")

	status := model.StatusDelivered
	reason := ""
	if !*body.Success {
		status = model.StatusFailed
		reason = "simulated failure"
	}
	now := h.Now().UTC()
	messageID := "sim-" + uuid.NewString()

	raw, _ := json.Marshal(map[string]interface{}{
		"message_id": messageID,
		"status":     status,
		"reason":     reason,
		"timestamp":  now.Format(time.RFC3339),
		"simulated":  true,
	})
	rec := model.Receipt{
		LogID:           logID,
		Status:          status,
		VendorMessageID: messageID,
		Reason:          reason,
		RawPayload:      raw,
		ReceivedAt:      now,
		Simulated:       true,
	}
	if err := h.Queue.Enqueue(r.Context(), rec); err != nil {
		controller.WriteError(w, h.Logger, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "queued",
		"log_id":     logID,
		"message_id": messageID,
	})
}
