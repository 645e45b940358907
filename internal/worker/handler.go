package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrItzreal/izzy-go-stack/internal/domain"
)

// ReceiptHandler turns order.paid events into receipt emails.
type ReceiptHandler struct {
	receiptsURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewReceiptHandler(receiptsURL string, client *http.Client, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receiptsURL: receiptsURL,
		httpClient:  client,
		logger:      logger,
	}
}

func (h *ReceiptHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPaidEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order paid event: %w", err)
	}

	h.logger.Info("processing order paid event", "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.sendReceipt(ctx, event); err != nil {
		h.logger.Error("failed to send receipt", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send receipt: %w", err)
	}

	h.logger.Info("receipt delivered", "order_id", event.OrderID)
	return nil
}

func (h *ReceiptHandler) sendReceipt(ctx context.Context, event domain.OrderPaidEvent) error {
	body := map[string]string{
		"to":       event.UserID + "@example.com",
		"subject":  "Payment received: " + event.OrderID,
		"body":     fmt.Sprintf("We received your payment of $%.2f for order %s.", float64(event.Total)/100, event.OrderID),
		"order_id": event.OrderID,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.receiptsURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("receipts service returned status %d", resp.StatusCode)
	}

	return nil
}
