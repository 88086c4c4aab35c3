package models

import "time"

// CommandEvent is one audit log entry for a write sent to the device.
type CommandEvent struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Operation  Operation `json:"operation"`
	Value      string    `json:"value"`
	Actor      string    `json:"actor,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"` // error text when Success is false
}
