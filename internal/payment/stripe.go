package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeProvider struct {
	client        *client.API
	webhookSecret string
	appBaseURL    string
}

func NewStripeProvider(apiKey, webhookSecret, appBaseURL string) *StripeProvider {
	sc := &client.API{}
	sc.Init(apiKey, nil)

	return &StripeProvider{
		client:        sc,
		webhookSecret: webhookSecret,
		appBaseURL:    appBaseURL,
	}
}

func (p *StripeProvider) CreateSession(ctx context.Context, orderID string, items []LineItem) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.appBaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.appBaseURL + "/checkout/canceled"),
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)

	for _, item := range items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
		})
	}

	sess, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}

	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (Event, error) {
	// The webhook endpoint's API version is pinned in the Stripe dashboard
	// and can lag behind the SDK pin, so don't reject on mismatch.
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("verify webhook event: %w", err)
	}

	event := Event{Type: string(stripeEvent.Type)}

	if event.Type == EventCheckoutCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		event.OrderID = sess.Metadata["order_id"]
	}

	return event, nil
}
