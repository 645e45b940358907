package payment

import "context"

// EventCheckoutCompleted is the only provider event this system acts on.
const EventCheckoutCompleted = "checkout.session.completed"

// LineItem describes one order line for the hosted checkout page.
type LineItem struct {
	Name        string
	Description string
	// UnitAmount in cents.
	UnitAmount int64
	Quantity   int
}

// Session is the provider-managed hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// Event is a verified provider notification, normalised to what the webhook
// handler needs. OrderID is only set for checkout completion events that
// carried order metadata.
type Event struct {
	Type    string
	OrderID string
}

// Provider abstracts the upstream payment provider: creating a hosted
// checkout session during order intake and verifying asynchronous
// notifications about it.
type Provider interface {
	CreateSession(ctx context.Context, orderID string, items []LineItem) (Session, error)
	VerifyEvent(payload []byte, signature string) (Event, error)
}
