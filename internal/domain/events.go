package domain

import "time"

// OrderPaidEvent is published after a payment notification transitions an
// order from pending to paid.
type OrderPaidEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Total     int64     `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}
