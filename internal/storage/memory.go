package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"ecopunto-backend/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in maps guarded by a single RWMutex.
// Concurrent writers to the same record resolve last-write-wins.
type MemoryStore struct {
	mu sync.RWMutex

	containers     map[string]models.Container
	containerOrder []string

	stats       map[string]models.UserStats // stats id -> record
	statsByUser map[string]string           // user id -> stats id

	notifications map[string]models.Notification

	retention int
	now       func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides time.Now for created timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithNotificationRetention keeps at most n notifications per user, dropping
// the oldest. n <= 0 keeps everything.
func WithNotificationRetention(n int) MemoryOption {
	return func(s *MemoryStore) { s.retention = n }
}

// NewMemoryStore returns an empty store. Use Seed to load demo data.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		containers:    make(map[string]models.Container),
		stats:         make(map[string]models.UserStats),
		statsByUser:   make(map[string]string),
		notifications: make(map[string]models.Notification),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) ListContainers(ctx context.Context) ([]models.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Container, 0, len(s.containerOrder))
	for _, id := range s.containerOrder {
		out = append(out, s.containers[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetContainer(ctx context.Context, id string) (models.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.containers[id]
	if !ok {
		return models.Container{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) CreateContainer(ctx context.Context, in models.NewContainer) (models.Container, error) {
	c := models.Container{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		FillLevel: models.ClampFillLevel(in.FillLevel),
		Materials: append([]string(nil), in.Materials...),
		Address:   in.Address,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.containers[c.ID] = c
	s.containerOrder = append(s.containerOrder, c.ID)
	return c.Clone(), nil
}

func (s *MemoryStore) UpdateFillLevel(ctx context.Context, id string, level int) (models.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[id]
	if !ok {
		return models.Container{}, ErrNotFound
	}
	c.FillLevel = models.ClampFillLevel(level)
	s.containers[id] = c
	return c.Clone(), nil
}

func (s *MemoryStore) AdjustFillLevel(ctx context.Context, id string, delta int) (models.Container, models.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.containers[id]
	if !ok {
		return models.Container{}, models.Container{}, ErrNotFound
	}
	after := before
	after.FillLevel = models.ClampFillLevel(before.FillLevel + delta)
	s.containers[id] = after
	return before.Clone(), after.Clone(), nil
}

func (s *MemoryStore) GetStats(ctx context.Context, userID string) (models.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.statsByUser[userID]
	if !ok {
		return models.UserStats{}, ErrNotFound
	}
	return s.stats[id], nil
}

func (s *MemoryStore) FindOrCreateStats(ctx context.Context, userID string) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findOrCreateStatsLocked(userID), nil
}

func (s *MemoryStore) UpsertStats(ctx context.Context, userID string, upd models.StatsUpdate) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.findOrCreateStatsLocked(userID)
	upd.Apply(&stats)
	s.stats[stats.ID] = stats
	return stats, nil
}

// must hold s.mu for writing
func (s *MemoryStore) findOrCreateStatsLocked(userID string) models.UserStats {
	if id, ok := s.statsByUser[userID]; ok {
		return s.stats[id]
	}

	stats := models.UserStats{ID: uuid.New().String(), UserID: userID}
	s.stats[stats.ID] = stats
	s.statsByUser[userID] = stats.ID
	return stats
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userNotificationsLocked(userID), nil
}

// newest first
func (s *MemoryStore) userNotificationsLocked(userID string) []models.Notification {
	out := make([]models.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b models.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

func (s *MemoryStore) CreateNotification(ctx context.Context, in models.NewNotification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	n := models.Notification{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		ContainerID: in.ContainerID,
		Message:     in.Message,
		Read:        normalizeRead(in.Read),
		CreatedAt:   createdAt,
	}
	s.notifications[n.ID] = n

	if s.retention > 0 {
		userNotifications := s.userNotificationsLocked(n.UserID)
		for _, old := range userNotifications[min(s.retention, len(userNotifications)):] {
			delete(s.notifications, old.ID)
		}
	}

	return n, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id string) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return models.Notification{}, ErrNotFound
	}
	n.Read = models.Read
	s.notifications[id] = n
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
