package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrItzreal/izzy-go-stack/internal/domain"
	"github.com/MrItzreal/izzy-go-stack/internal/payment"
)

// Generous ceiling so a metadata-heavy event is never rejected before
// signature verification; real payloads are far smaller.
const maxPayloadBytes = 1 << 20

// OrderStore is the single write the notification handler performs.
type OrderStore interface {
	// MarkPaid returns the order only when it actually transitioned from
	// pending to paid, nil otherwise.
	MarkPaid(ctx context.Context, orderID string) (*domain.Order, error)
}

// EventPublisher fans out paid-order events; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store     OrderStore
	provider  payment.Provider
	publisher EventPublisher
	logger    *slog.Logger
}

func NewHandler(store OrderStore, provider payment.Provider, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleStripeWebhook verifies the provider signature over the raw body and
// applies the paid transition for checkout completion events. Redelivered
// or irrelevant events are acknowledged without a state change.
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := h.provider.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook verification failed", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid webhook signature or payload")
		return
	}

	if event.Type != payment.EventCheckoutCompleted {
		w.WriteHeader(http.StatusOK)
		return
	}

	if event.OrderID == "" {
		h.logger.Info("checkout completion without order metadata, skipping")
		w.WriteHeader(http.StatusOK)
		return
	}

	order, err := h.store.MarkPaid(r.Context(), event.OrderID)
	if err != nil {
		// Non-2xx makes the provider redeliver; the transition is an
		// idempotent set, so that is safe.
		h.logger.Error("failed to mark order paid", "error", err, "order_id", event.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.logger.Info("no pending order for notification", "order_id", event.OrderID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.publisher != nil {
		paidEvent := domain.OrderPaidEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Total:     order.Total,
			Timestamp: time.Now().UTC(),
		}
		if err := h.publisher.Publish(r.Context(), order.ID, paidEvent); err != nil {
			h.logger.Error("failed to publish order paid event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order marked paid", "order_id", order.ID)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
