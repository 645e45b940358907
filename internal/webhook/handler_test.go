package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrItzreal/izzy-go-stack/internal/domain"
	"github.com/MrItzreal/izzy-go-stack/internal/payment"
)

type fakeStore struct {
	order     *domain.Order
	err       error
	markCalls []string
}

func (s *fakeStore) MarkPaid(_ context.Context, orderID string) (*domain.Order, error) {
	s.markCalls = append(s.markCalls, orderID)
	return s.order, s.err
}

type fakeVerifier struct {
	event payment.Event
	err   error
}

func (v *fakeVerifier) VerifyEvent(_ []byte, _ string) (payment.Event, error) {
	return v.event, v.err
}

func (v *fakeVerifier) CreateSession(_ context.Context, _ string, _ []payment.LineItem) (payment.Session, error) {
	return payment.Session{}, errors.New("not implemented")
}

type fakePublisher struct {
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postWebhook(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	return rec
}

func TestHandleStripeWebhook(t *testing.T) {
	t.Run("invalid signature never touches orders", func(t *testing.T) {
		store := &fakeStore{}
		verifier := &fakeVerifier{err: errors.New("signature mismatch")}
		h := NewHandler(store, verifier, nil, testLogger())

		rec := postWebhook(h, `{"type":"checkout.session.completed"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.markCalls)
	})

	t.Run("irrelevant event type is acknowledged", func(t *testing.T) {
		store := &fakeStore{}
		verifier := &fakeVerifier{event: payment.Event{Type: "invoice.paid"}}
		h := NewHandler(store, verifier, nil, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, store.markCalls)
	})

	t.Run("completion without order metadata is acknowledged", func(t *testing.T) {
		store := &fakeStore{}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted}}
		h := NewHandler(store, verifier, nil, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, store.markCalls)
	})

	t.Run("marks referenced order paid and publishes", func(t *testing.T) {
		store := &fakeStore{order: &domain.Order{ID: "ord-7", UserID: "user-1", Total: 1000, Status: domain.OrderStatusPaid}}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-7"}}
		publisher := &fakePublisher{}
		h := NewHandler(store, verifier, publisher, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ord-7"}, store.markCalls)

		require.Len(t, publisher.events, 1)
		paid, ok := publisher.events[0].(domain.OrderPaidEvent)
		require.True(t, ok)
		assert.Equal(t, "ord-7", paid.OrderID)
		assert.Equal(t, "user-1", paid.UserID)
		assert.Equal(t, int64(1000), paid.Total)
	})

	t.Run("redelivery is acknowledged without publishing", func(t *testing.T) {
		// MarkPaid returns nil once the order already left pending.
		store := &fakeStore{order: nil}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-7"}}
		publisher := &fakePublisher{}
		h := NewHandler(store, verifier, publisher, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ord-7"}, store.markCalls)
		assert.Empty(t, publisher.events)
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		store := &fakeStore{order: nil}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-404"}}
		h := NewHandler(store, verifier, nil, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metadata-heavy payload is still processed", func(t *testing.T) {
		store := &fakeStore{order: &domain.Order{ID: "ord-7", UserID: "user-1", Total: 1000, Status: domain.OrderStatusPaid}}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-7"}}
		h := NewHandler(store, verifier, nil, testLogger())

		body := `{"type":"checkout.session.completed","padding":"` + strings.Repeat("x", 100*1024) + `"}`
		rec := postWebhook(h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ord-7"}, store.markCalls)
	})

	t.Run("storage failure asks for redelivery", func(t *testing.T) {
		store := &fakeStore{err: errors.New("db down")}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-7"}}
		h := NewHandler(store, verifier, nil, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("publish failure does not fail the acknowledgment", func(t *testing.T) {
		store := &fakeStore{order: &domain.Order{ID: "ord-7", UserID: "user-1", Total: 1000}}
		verifier := &fakeVerifier{event: payment.Event{Type: payment.EventCheckoutCompleted, OrderID: "ord-7"}}
		publisher := &fakePublisher{err: errors.New("kafka down")}
		h := NewHandler(store, verifier, publisher, testLogger())

		rec := postWebhook(h, `{}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
