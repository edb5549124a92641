package notify

import (
	"time"

	"github.com/google/uuid"

	"homedash/internal/observable"
)

// DefaultDuration is applied when Show is called with a zero duration.
const DefaultDuration = 3 * time.Second

// Level tags a notification for UI styling.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one entry of the notification state. Rendering is
// entirely external; this package only tracks what should be visible.
type Notification struct {
	ID        string        `json:"id"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Center holds the visible notifications as an observable list.
type Center struct {
	notifications *observable.Store[[]Notification]
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{
		notifications: observable.New[[]Notification](nil),
	}
}

// Notifications returns the observable notification list.
func (c *Center) Notifications() *observable.Store[[]Notification] {
	return c.notifications
}

// Show adds a notification and returns its id. A positive duration arms
// an auto-dismiss timer; a negative duration keeps it until dismissed
// explicitly.
func (c *Center) Show(level Level, message string, duration time.Duration) string {
	if duration == 0 {
		duration = DefaultDuration
	}

	notification := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  duration,
	}

	c.notifications.Update(func(cur []Notification) []Notification {
		return append(append([]Notification(nil), cur...), notification)
	})

	if duration > 0 {
		time.AfterFunc(duration, func() {
			c.Dismiss(notification.ID)
		})
	}

	return notification.ID
}

// Dismiss removes the notification with the given id, if still present.
func (c *Center) Dismiss(id string) {
	c.notifications.Update(func(cur []Notification) []Notification {
		next := make([]Notification, 0, len(cur))
		for _, n := range cur {
			if n.ID != id {
				next = append(next, n)
			}
		}
		return next
	})
}

// Clear removes every notification.
func (c *Center) Clear() {
	c.notifications.Set(nil)
}
