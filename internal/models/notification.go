package models

import "time"

// Read flag values, kept as integers on the wire.
const (
	Unread = 0
	Read   = 1
)

// Notification tells a user something about a container.
type Notification struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	ContainerID string    `json:"containerId" db:"container_id"`
	Message     string    `json:"message" db:"message"`
	Read        int       `json:"read" db:"read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// NewNotification is the input for creating a notification.
// A nil Read means unread; a zero CreatedAt means now.
type NewNotification struct {
	UserID      string
	ContainerID string
	Message     string
	Read        *int
	CreatedAt   time.Time
}

// IsRead reports whether the read flag is set.
func (n Notification) IsRead() bool {
	return n.Read == Read
}
