package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrItzreal/izzy-go-stack/internal/auth"
	"github.com/MrItzreal/izzy-go-stack/internal/domain"
	"github.com/MrItzreal/izzy-go-stack/internal/payment"
)

type fakeStore struct {
	created        *domain.Order
	createErr      error
	attachedOrder  string
	attachedSess   string
	attachErr      error
	orders         map[string]*domain.Order
	listed         []domain.Order
	listErr        error
}

func (s *fakeStore) Create(_ context.Context, order *domain.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	order.ID = "ord-1"
	s.created = order
	return nil
}

func (s *fakeStore) AttachSession(_ context.Context, orderID, sessionID string) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attachedOrder = orderID
	s.attachedSess = sessionID
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	return s.orders[id], nil
}

func (s *fakeStore) ListByUser(_ context.Context, _ string) ([]domain.Order, error) {
	return s.listed, s.listErr
}

type fakeCatalog struct {
	products map[int64]domain.Product
	err      error
}

func (c *fakeCatalog) GetByIDs(_ context.Context, _ []int64) (map[int64]domain.Product, error) {
	return c.products, c.err
}

type fakeProvider struct {
	session    payment.Session
	createErr  error
	gotOrderID string
	gotLines   []payment.LineItem
}

func (p *fakeProvider) CreateSession(_ context.Context, orderID string, items []payment.LineItem) (payment.Session, error) {
	if p.createErr != nil {
		return payment.Session{}, p.createErr
	}
	p.gotOrderID = orderID
	p.gotLines = items
	return p.session, nil
}

func (p *fakeProvider) VerifyEvent(_ []byte, _ string) (payment.Event, error) {
	return payment.Event{}, errors.New("not implemented")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkoutReq(t *testing.T, userID, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), userID))
	}
	return req
}

func TestHandleCheckout(t *testing.T) {
	catalog := &fakeCatalog{products: map[int64]domain.Product{
		1: {ID: 1, Name: "Mug", Description: "Ceramic mug", Price: 500},
		2: {ID: 2, Name: "Shirt", Price: 1500},
	}}

	t.Run("prices from catalog and returns session url", func(t *testing.T) {
		store := &fakeStore{}
		provider := &fakeProvider{session: payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}}
		h := NewHandler(store, catalog, provider, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[{"product_id":1,"quantity":2}]}`))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://pay.example/cs_1", resp["url"])

		require.NotNil(t, store.created)
		assert.Equal(t, "user-1", store.created.UserID)
		assert.Equal(t, domain.OrderStatusPending, store.created.Status)
		assert.Equal(t, int64(1000), store.created.Total)
		require.Len(t, store.created.Items, 1)
		assert.Equal(t, domain.OrderItem{ProductID: 1, Quantity: 2, Price: 500}, store.created.Items[0])

		assert.Equal(t, "ord-1", provider.gotOrderID)
		require.Len(t, provider.gotLines, 1)
		assert.Equal(t, payment.LineItem{Name: "Mug", Description: "Ceramic mug", UnitAmount: 500, Quantity: 2}, provider.gotLines[0])

		assert.Equal(t, "ord-1", store.attachedOrder)
		assert.Equal(t, "cs_1", store.attachedSess)
	})

	t.Run("ignores client supplied prices", func(t *testing.T) {
		store := &fakeStore{}
		provider := &fakeProvider{session: payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}}
		h := NewHandler(store, catalog, provider, testLogger())

		body := `{"items":[{"product_id":1,"quantity":2,"price":1},{"product_id":2,"quantity":1,"price":1}]}`
		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(2500), store.created.Total)
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		store := &fakeStore{}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "", `{"items":[{"product_id":1,"quantity":1}]}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, store.created)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		store := &fakeStore{}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, store.created)
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		store := &fakeStore{}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[]}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, store.created)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := &fakeStore{}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[{"product_id":1,"quantity":0}]}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, store.created)
	})

	t.Run("unknown product fails before any write", func(t *testing.T) {
		store := &fakeStore{}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[{"product_id":1,"quantity":1},{"product_id":99,"quantity":1}]}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "product 99 not found", resp["error"])
		assert.Nil(t, store.created)
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		store := &fakeStore{}
		provider := &fakeProvider{createErr: errors.New("stripe down")}
		h := NewHandler(store, catalog, provider, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[{"product_id":1,"quantity":1}]}`))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		// The pending order exists but never got a session reference.
		require.NotNil(t, store.created)
		assert.Empty(t, store.attachedOrder)
	})

	t.Run("persistence failure maps to internal error", func(t *testing.T) {
		store := &fakeStore{createErr: errors.New("db down")}
		h := NewHandler(store, catalog, &fakeProvider{}, testLogger())

		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, checkoutReq(t, "user-1", `{"items":[{"product_id":1,"quantity":1}]}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleGetOrder(t *testing.T) {
	order := &domain.Order{ID: "ord-1", UserID: "user-1", Total: 500, Status: domain.OrderStatusPending}
	store := &fakeStore{orders: map[string]*domain.Order{"ord-1": order}}
	h := NewHandler(store, &fakeCatalog{}, &fakeProvider{}, testLogger())

	get := func(userID, orderID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil)
		req.SetPathValue("id", orderID)
		if userID != "" {
			req = req.WithContext(auth.WithUser(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		h.HandleGetOrder(rec, req)
		return rec
	}

	t.Run("owner reads own order", func(t *testing.T) {
		rec := get("user-1", "ord-1")
		require.Equal(t, http.StatusOK, rec.Code)

		var got domain.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ord-1", got.ID)
	})

	t.Run("foreign order reads as not found", func(t *testing.T) {
		rec := get("user-2", "ord-1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := get("user-1", "ord-404")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := get("", "ord-1")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleListOrders(t *testing.T) {
	store := &fakeStore{listed: []domain.Order{
		{ID: "ord-2", UserID: "user-1", Total: 1500, Status: domain.OrderStatusPaid},
		{ID: "ord-1", UserID: "user-1", Total: 500, Status: domain.OrderStatusPending},
	}}
	h := NewHandler(store, &fakeCatalog{}, &fakeProvider{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	h.HandleListOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "ord-2", got[0].ID)
}
