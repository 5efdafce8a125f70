package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Notification event kinds.
const (
	EventGoalMilestone          = "goal.milestone"
	EventGoalCompleted          = "goal.completed"
	EventRecurrenceMaterialized = "recurrence.materialized"
)

// NotificationMessage carries a user-facing event for the notification
// worker. It holds enough context to render a message without a database
// round-trip.
type NotificationMessage struct {
	Event     string          `json:"event"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	GoalID    string          `json:"goal_id,omitempty"`
	TxnID     string          `json:"txn_id,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewNotificationMessage(event, userID, title, body string) *NotificationMessage {
	return &NotificationMessage{
		Event:     event,
		UserID:    userID,
		Title:     title,
		Body:      body,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON creates a message from JSON bytes.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
