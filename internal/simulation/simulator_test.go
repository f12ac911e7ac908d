package simulation

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const demoUser = "demo-user"

func newStore(t *testing.T, levels ...int) (*storage.MemoryStore, []models.Container) {
	t.Helper()
	ctx := context.Background()
	s := storage.NewMemoryStore()
	var out []models.Container
	for i, level := range levels {
		c, err := s.CreateContainer(ctx, models.NewContainer{
			Name:      []string{"Parque Central", "Plaza Italia", "Estación Norte"}[i%3],
			FillLevel: level,
			Materials: []string{"Papel"},
		})
		require.NoError(t, err)
		out = append(out, c)
	}
	return s, out
}

// script returns per-container deltas; containers not in the map are untouched.
func script(deltas map[string]int) Mutator {
	return MutatorFunc(func(c models.Container) (int, bool) {
		d, ok := deltas[c.ID]
		return d, ok
	})
}

func TestDecideChangeIsDeterministic(t *testing.T) {
	a := rand.New(rand.NewPCG(42, 7))
	b := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 1000; i++ {
		da, oka := DecideChange(a, 0.1, -3, 6)
		db, okb := DecideChange(b, 0.1, -3, 6)
		require.Equal(t, oka, okb)
		require.Equal(t, da, db)
	}
}

func TestDecideChangeBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	changes := 0
	const n = 20000

	for i := 0; i < n; i++ {
		delta, ok := DecideChange(r, 0.1, -3, 6)
		if !ok {
			assert.Zero(t, delta)
			continue
		}
		changes++
		require.GreaterOrEqual(t, delta, -3)
		require.LessOrEqual(t, delta, 6)
	}

	// ~10% of draws change.
	assert.InDelta(t, 0.1, float64(changes)/n, 0.02)
}

func TestDecideChangeProbabilityExtremes(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 3))
	for i := 0; i < 100; i++ {
		_, ok := DecideChange(r, 0, -3, 6)
		assert.False(t, ok)
		_, ok = DecideChange(r, 1, -3, 6)
		assert.True(t, ok)
	}
}

func TestRandomMutatorSameSeedSameDecisions(t *testing.T) {
	a := NewRandomMutator(99, 0.5, -3, 6)
	b := NewRandomMutator(99, 0.5, -3, 6)
	c := models.Container{ID: "c"}

	for i := 0; i < 200; i++ {
		da, oka := a.Decide(c)
		db, okb := b.Decide(c)
		require.Equal(t, oka, okb)
		require.Equal(t, da, db)
	}
}

func TestTickCrossingCreatesOneNotification(t *testing.T) {
	ctx := context.Background()
	s, containers := newStore(t, 75)
	id := containers[0].ID

	sim := New(s, script(map[string]int{id: 7}), demoUser)
	result, err := sim.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Changed)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, id, result.Notifications[0].ContainerID)
	assert.Equal(t, demoUser, result.Notifications[0].UserID)
	assert.Equal(t, models.Unread, result.Notifications[0].Read)
	assert.Equal(t, "El contenedor Parque Central está lleno (82%). Te recomendamos buscar una alternativa cercana.",
		result.Notifications[0].Message)
	assert.Equal(t, 82, result.Containers[0].FillLevel)

	// Stays above the threshold: no new notification.
	sim = New(s, script(map[string]int{id: 3}), demoUser)
	result, err = sim.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Notifications)
	assert.Equal(t, 85, result.Containers[0].FillLevel)

	notifications, err := s.ListNotifications(ctx, demoUser)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestConcurrentTicksNotifyCrossingOnce(t *testing.T) {
	ctx := context.Background()
	s, containers := newStore(t, 70)
	id := containers[0].ID
	plusOne := script(map[string]int{id: 1})

	const subscribers = 20
	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := New(s, plusOne, demoUser).Tick(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.GetContainer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 70+subscribers, c.FillLevel)

	notifications, err := s.ListNotifications(ctx, demoUser)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestTickNoNotificationWhenAlreadyFullOrDropping(t *testing.T) {
	ctx := context.Background()
	s, containers := newStore(t, 90, 82, 79)

	sim := New(s, script(map[string]int{
		containers[0].ID: 6,  // 90 -> 96
		containers[1].ID: -3, // 82 -> 79
		containers[2].ID: 0,  // 79 -> 79
	}), demoUser)

	result, err := sim.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Changed)
	assert.Empty(t, result.Notifications)
}

func TestTickClampsFillLevel(t *testing.T) {
	ctx := context.Background()
	s, containers := newStore(t, 98, 1)

	sim := New(s, script(map[string]int{
		containers[0].ID: 6,
		containers[1].ID: -3,
	}), demoUser)

	result, err := sim.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Containers[0].FillLevel)
	assert.Equal(t, 0, result.Containers[1].FillLevel)
}

func TestTickRandomMutatorKeepsLevelsInRange(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, 0, 50, 100)
	sim := New(s, NewRandomMutator(5, 1, -30, 30), demoUser)

	for i := 0; i < 200; i++ {
		result, err := sim.Tick(ctx)
		require.NoError(t, err)
		for _, c := range result.Containers {
			require.GreaterOrEqual(t, c.FillLevel, 0)
			require.LessOrEqual(t, c.FillLevel, 100)
		}
	}
}

func TestTickCustomThresholdAndListener(t *testing.T) {
	ctx := context.Background()
	s, containers := newStore(t, 45)

	var got []models.Container
	sim := New(s, script(map[string]int{containers[0].ID: 5}), demoUser,
		WithThreshold(50),
		WithListener(func(_ context.Context, n models.Notification, c models.Container) {
			got = append(got, c)
		}),
	)

	result, err := sim.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].FillLevel)
}

func TestCrossedThreshold(t *testing.T) {
	assert.True(t, CrossedThreshold(79, 80, 80))
	assert.True(t, CrossedThreshold(0, 100, 80))
	assert.False(t, CrossedThreshold(80, 81, 80))
	assert.False(t, CrossedThreshold(81, 79, 80))
	assert.False(t, CrossedThreshold(70, 79, 80))
}

func TestRunSendsInitialSnapshotAndTicks(t *testing.T) {
	s, containers := newStore(t, 10)
	sim := New(s, script(map[string]int{containers[0].ID: 1}), demoUser)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var snapshots [][]models.Container
	done := make(chan error, 1)

	go func() {
		done <- sim.Run(ctx, 5*time.Millisecond, func(cs []models.Container) error {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, cs)
			if len(snapshots) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(snapshots), 3)
	assert.Equal(t, 10, snapshots[0][0].FillLevel)
	assert.Equal(t, 11, snapshots[1][0].FillLevel)
	assert.Equal(t, 12, snapshots[2][0].FillLevel)
}

func TestRunStopsWhenEmitFails(t *testing.T) {
	s, _ := newStore(t, 10)
	sim := New(s, script(nil), demoUser)
	closed := errors.New("connection closed")

	calls := 0
	err := sim.Run(context.Background(), time.Millisecond, func([]models.Container) error {
		calls++
		if calls == 2 {
			return closed
		}
		return nil
	})

	assert.ErrorIs(t, err, closed)
	assert.Equal(t, 2, calls)
}
