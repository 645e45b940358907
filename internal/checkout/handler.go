package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrItzreal/izzy-go-stack/internal/auth"
	"github.com/MrItzreal/izzy-go-stack/internal/domain"
	"github.com/MrItzreal/izzy-go-stack/internal/payment"
)

// OrderStore is the subset of order persistence the checkout flow needs.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	AttachSession(ctx context.Context, orderID, sessionID string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

// Catalog resolves products for pricing. Prices always come from here,
// never from the client.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
}

type Handler struct {
	store    OrderStore
	catalog  Catalog
	provider payment.Provider
	logger   *slog.Logger
}

func NewHandler(store OrderStore, catalog Catalog, provider payment.Provider, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		catalog:  catalog,
		provider: provider,
		logger:   logger,
	}
}

type checkoutItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// HandleCheckout prices the requested items against the catalog, persists
// the order with its items in one transaction, opens a hosted payment
// session and returns its redirect URL.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	productIDs := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID <= 0 {
			h.writeError(w, http.StatusBadRequest, "product_id must be positive")
			return
		}
		if item.Quantity <= 0 {
			h.writeError(w, http.StatusBadRequest, "quantity must be positive")
			return
		}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := h.catalog.GetByIDs(r.Context(), productIDs)
	if err != nil {
		h.logger.Error("failed to resolve products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var total int64
	items := make([]domain.OrderItem, 0, len(req.Items))
	lines := make([]payment.LineItem, 0, len(req.Items))

	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			h.writeError(w, http.StatusNotFound, fmt.Sprintf("product %d not found", item.ProductID))
			return
		}

		total += product.Price * int64(item.Quantity)
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
		lines = append(lines, payment.LineItem{
			Name:        product.Name,
			Description: product.Description,
			UnitAmount:  product.Price,
			Quantity:    item.Quantity,
		})
	}

	order := &domain.Order{
		UserID: userID,
		Items:  items,
		Total:  total,
		Status: domain.OrderStatusPending,
	}

	if err := h.store.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	session, err := h.provider.CreateSession(r.Context(), order.ID, lines)
	if err != nil {
		// The pending order has no session yet; the client has to retry the
		// whole checkout.
		h.logger.Error("failed to create payment session", "error", err, "order_id", order.ID)
		h.writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	if err := h.store.AttachSession(r.Context(), order.ID, session.ID); err != nil {
		h.logger.Error("failed to attach payment session", "error", err, "order_id", order.ID, "session_id", session.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("checkout session created", "order_id", order.ID, "session_id", session.ID, "total", total)
	h.writeJSON(w, http.StatusOK, checkoutResponse{URL: session.URL})
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Foreign orders are indistinguishable from absent ones.
	if order == nil || order.UserID != userID {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
