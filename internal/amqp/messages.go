package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendwise/internal/core"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ExpenseEvent is published after every successful expense mutation.
// Deleted events carry no Expense.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	UserID    string        `json:"user_id"`
	ExpenseID string        `json:"expense_id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseEvent builds an event for e. For EventDeleted only the IDs are kept.
func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	ev := &ExpenseEvent{
		Type:      t,
		UserID:    e.UserID,
		ExpenseID: e.ID,
		Timestamp: time.Now().UTC(),
	}
	if t != EventDeleted {
		cp := e
		ev.Expense = &cp
	}
	return ev
}

// Validate checks that the event can be applied by a consumer.
func (m *ExpenseEvent) Validate() error {
	switch m.Type {
	case EventCreated, EventUpdated:
		if m.Expense == nil {
			return fmt.Errorf("%s event without expense", m.Type)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.UserID == "" || m.ExpenseID == "" {
		return errors.New("event without user or expense id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
