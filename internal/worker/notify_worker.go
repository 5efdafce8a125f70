// Package worker contains the message-driven background consumers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"financas/internal/amqp"
	"financas/internal/kv"
	"financas/internal/log"
)

const (
	notificationsKey = "notifications"
	maxStored        = 200
)

// StoredNotification is a delivered notification kept for later
// retrieval, newest first.
type StoredNotification struct {
	Event      string    `json:"event"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	GoalID     string    `json:"goal_id,omitempty"`
	TxnID      string    `json:"transaction_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// NotifyWorker consumes notification messages and records them in a
// key-value store. Delivery channels beyond the local store (email,
// push) hang off this same handler.
type NotifyWorker struct {
	kv     kv.Store
	logger *log.Logger
	now    func() time.Time
}

func NewNotifyWorker(kvStore kv.Store, logger *log.Logger) *NotifyWorker {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentNotify})
	}
	return &NotifyWorker{
		kv:     kvStore,
		logger: logger.WithComponent(log.ComponentNotify),
		now:    time.Now,
	}
}

// HandleNotification processes a single notification message. A non-nil
// return requeues the message.
func (w *NotifyWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	w.logger.InfoContext(ctx, "Notification received",
		"event", msg.Event,
		log.FieldUserID, msg.UserID,
		log.FieldGoalID, msg.GoalID,
		log.FieldTxnID, msg.TxnID)

	switch msg.Event {
	case amqp.EventGoalMilestone, amqp.EventGoalCompleted, amqp.EventRecurrenceMaterialized:
	default:
		// Unknown events are dropped, not requeued; a newer producer
		// may emit kinds this consumer predates.
		w.logger.WarnContext(ctx, "Unknown notification event, dropping", "event", msg.Event)
		return nil
	}

	if err := w.store(msg); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (w *NotifyWorker) store(msg *amqp.NotificationMessage) error {
	stored := w.load()
	stored = append([]StoredNotification{{
		Event:      msg.Event,
		UserID:     msg.UserID,
		Title:      msg.Title,
		Body:       msg.Body,
		GoalID:     msg.GoalID,
		TxnID:      msg.TxnID,
		ReceivedAt: w.now(),
	}}, stored...)
	if len(stored) > maxStored {
		stored = stored[:maxStored]
	}

	blob, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return w.kv.SetItem(notificationsKey, blob)
}

func (w *NotifyWorker) load() []StoredNotification {
	blob, err := w.kv.GetItem(notificationsKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			w.logger.Warn("Failed to load stored notifications", log.FieldError, err)
		}
		return nil
	}
	var stored []StoredNotification
	if err := json.Unmarshal(blob, &stored); err != nil {
		w.logger.Warn("Corrupt notification store, starting fresh", log.FieldError, err)
		return nil
	}
	return stored
}

// Stored returns the recorded notifications for a user, newest first.
// An empty userID returns everything.
func (w *NotifyWorker) Stored(userID string) []StoredNotification {
	all := w.load()
	if userID == "" {
		return all
	}
	var out []StoredNotification
	for _, n := range all {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
