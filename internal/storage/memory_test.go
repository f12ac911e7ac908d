package storage

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const testUser = "demo-user"

func ptr[T any](v T) *T { return &v }

func newSeededStore(t *testing.T, opts ...MemoryOption) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(opts...)
	require.NoError(t, Seed(context.Background(), s, testUser, time.Now()))
	return s
}

func TestSeedLoadsDemoData(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)

	containers, err := s.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, containers, len(DemoContainers))
	assert.Equal(t, "Parque Central", containers[0].Name)
	assert.Equal(t, 90, containers[2].FillLevel)

	stats, err := s.GetStats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 45.5, stats.TotalKg)
	assert.Equal(t, 650, stats.Points)
	assert.Equal(t, 12, stats.StreakDays)

	notifications, err := s.ListNotifications(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, containers[2].ID, notifications[0].ContainerID)
	assert.Equal(t, containers[1].ID, notifications[1].ContainerID)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)
	require.NoError(t, Seed(ctx, s, testUser, time.Now()))

	containers, err := s.ListContainers(ctx)
	require.NoError(t, err)
	assert.Len(t, containers, len(DemoContainers))
}

func TestListContainersReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)

	containers, err := s.ListContainers(ctx)
	require.NoError(t, err)
	containers[0].FillLevel = 99
	containers[0].Materials[0] = "Mutated"

	again, err := s.GetContainer(ctx, containers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, again.FillLevel)
	assert.Equal(t, "Plástico", again.Materials[0])
}

func TestGetContainerNotFound(t *testing.T) {
	_, err := NewMemoryStore().GetContainer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFillLevelClamps(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)
	containers, _ := s.ListContainers(ctx)
	id := containers[0].ID

	for _, level := range []int{-500, -1, 0, 42, 100, 101, 1 << 20} {
		updated, err := s.UpdateFillLevel(ctx, id, level)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, updated.FillLevel, 0)
		assert.LessOrEqual(t, updated.FillLevel, 100)

		stored, _ := s.GetContainer(ctx, id)
		assert.Equal(t, models.ClampFillLevel(level), stored.FillLevel)
	}

	_, err := s.UpdateFillLevel(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOrCreateStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetStats(ctx, "new-user")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.FindOrCreateStats(ctx, "new-user")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "new-user", created.UserID)
	assert.Zero(t, created.TotalKg)
	assert.Zero(t, created.Points)
	assert.Zero(t, created.StreakDays)

	again, err := s.FindOrCreateStats(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, created, again)
}

func TestUpsertStatsPartialUpdate(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)

	updated, err := s.UpsertStats(ctx, testUser, models.StatsUpdate{Points: ptr(700)})
	require.NoError(t, err)
	assert.Equal(t, 700, updated.Points)
	assert.Equal(t, 45.5, updated.TotalKg)
	assert.Equal(t, 12, updated.StreakDays)

	stored, err := s.GetStats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpsertStatsCreatesMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stats, err := s.UpsertStats(ctx, "other", models.StatsUpdate{TotalKg: ptr(2.5)})
	require.NoError(t, err)
	assert.Equal(t, 2.5, stats.TotalKg)
	assert.Zero(t, stats.Points)
}

func TestNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s := NewMemoryStore(WithClock(func() time.Time { return clock }))

	for i, msg := range []string{"first", "second", "third"} {
		clock = base.Add(time.Duration(i) * time.Minute)
		_, err := s.CreateNotification(ctx, models.NewNotification{UserID: testUser, ContainerID: "c", Message: msg})
		require.NoError(t, err)
	}
	_, err := s.CreateNotification(ctx, models.NewNotification{UserID: "someone-else", Message: "hidden"})
	require.NoError(t, err)

	got, err := s.ListNotifications(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
	assert.Equal(t, "first", got[2].Message)
	assert.Equal(t, models.Unread, got[0].Read)
	assert.Equal(t, base.Add(2*time.Minute), got[0].CreatedAt)
}

func TestCreateNotificationReadFlag(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.CreateNotification(ctx, models.NewNotification{UserID: testUser, Read: ptr(1)})
	require.NoError(t, err)
	assert.True(t, n.IsRead())
}

func TestMarkNotificationReadIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	n, err := s.CreateNotification(ctx, models.NewNotification{UserID: testUser, Message: "lleno"})
	require.NoError(t, err)

	first, err := s.MarkNotificationRead(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Read, first.Read)

	second, err := s.MarkNotificationRead(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = s.MarkNotificationRead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationRetention(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	s := NewMemoryStore(WithNotificationRetention(2))

	for i := 0; i < 5; i++ {
		_, err := s.CreateNotification(ctx, models.NewNotification{
			UserID:    testUser,
			Message:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	got, err := s.ListNotifications(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[0].Message)
	assert.Equal(t, "d", got[1].Message)
}

func TestConcurrentFillUpdates(t *testing.T) {
	ctx := context.Background()
	s := newSeededStore(t)
	containers, _ := s.ListContainers(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, c := range containers {
				_, _ = s.UpdateFillLevel(ctx, c.ID, c.FillLevel+i)
				_, _ = s.ListContainers(ctx)
			}
		}(i)
	}
	wg.Wait()

	after, _ := s.ListContainers(ctx)
	for _, c := range after {
		assert.GreaterOrEqual(t, c.FillLevel, 0)
		assert.LessOrEqual(t, c.FillLevel, 100)
	}
}

func TestAdjustFillLevel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, err := s.CreateContainer(ctx, models.NewContainer{Name: "Plaza Italia", FillLevel: 97})
	require.NoError(t, err)

	before, after, err := s.AdjustFillLevel(ctx, c.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 97, before.FillLevel)
	assert.Equal(t, 100, after.FillLevel)

	before, after, err = s.AdjustFillLevel(ctx, c.ID, -200)
	require.NoError(t, err)
	assert.Equal(t, 100, before.FillLevel)
	assert.Equal(t, 0, after.FillLevel)

	_, _, err = s.AdjustFillLevel(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustFillLevelConcurrentNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, err := s.CreateContainer(ctx, models.NewContainer{Name: "Mercado Sur", FillLevel: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.AdjustFillLevel(ctx, c.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetContainer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.FillLevel)
}
