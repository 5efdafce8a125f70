package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "connection refused", err: errors.New("connection refused"), expected: true},
		{name: "connection closed", err: errors.New("connection closed"), expected: true},
		{name: "EOF", err: errors.New("unexpected EOF"), expected: true},
		{name: "broken pipe", err: errors.New("broken pipe"), expected: true},
		{name: "closed network connection", err: errors.New("use of closed network connection"), expected: true},
		{name: "other error", err: errors.New("some other error"), expected: false},
		{name: "validation error", err: errors.New("invalid input"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestNotificationMessage_RoundTrip(t *testing.T) {
	msg := NewNotificationMessage(EventGoalCompleted, "user-1", "Goal completed", "Emergency fund reached its target")
	msg.GoalID = "goal-1"

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	decoded, err := NotificationMessageFromJSON(body)
	if err != nil {
		t.Fatalf("NotificationMessageFromJSON() error: %v", err)
	}
	if decoded.Event != EventGoalCompleted || decoded.UserID != "user-1" || decoded.GoalID != "goal-1" {
		t.Errorf("decoded = %+v", decoded)
	}

	if _, err := NotificationMessageFromJSON([]byte("{broken")); err == nil {
		t.Error("NotificationMessageFromJSON(broken) expected error")
	}
}
