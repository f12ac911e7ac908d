// Package storage holds containers, user stats and notifications.
//
// MemoryStore is the default backend; PostgresStore implements the same
// Store interface over the schema created by Migrate.
package storage

import (
	"context"
	"errors"

	"ecopunto-backend/internal/models"
)

// ErrNotFound is returned when a container, stats record or notification does not exist.
var ErrNotFound = errors.New("not found")

// Store is the source of truth for the API and the simulation loop.
type Store interface {
	ListContainers(ctx context.Context) ([]models.Container, error)
	GetContainer(ctx context.Context, id string) (models.Container, error)
	CreateContainer(ctx context.Context, in models.NewContainer) (models.Container, error)
	// UpdateFillLevel clamps level to [0,100] and replaces the stored value.
	UpdateFillLevel(ctx context.Context, id string, level int) (models.Container, error)
	// AdjustFillLevel adds delta to the current level, clamped, in one atomic
	// step and returns the container before and after the change.
	AdjustFillLevel(ctx context.Context, id string, delta int) (before, after models.Container, err error)

	GetStats(ctx context.Context, userID string) (models.UserStats, error)
	// FindOrCreateStats returns the user's stats, creating a zero-valued record when absent.
	FindOrCreateStats(ctx context.Context, userID string) (models.UserStats, error)
	// UpsertStats merges the non-nil fields of upd, creating the record first when absent.
	UpsertStats(ctx context.Context, userID string, upd models.StatsUpdate) (models.UserStats, error)

	// ListNotifications returns the user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	CreateNotification(ctx context.Context, in models.NewNotification) (models.Notification, error)
	// MarkNotificationRead is idempotent.
	MarkNotificationRead(ctx context.Context, id string) (models.Notification, error)
}

func normalizeRead(read *int) int {
	if read == nil || *read == models.Unread {
		return models.Unread
	}
	return models.Read
}
