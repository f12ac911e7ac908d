// Package simulation perturbs container fill levels on a timer and raises a
// notification when a container fills past the threshold.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/metrics"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/storage"
)

// DefaultFullThreshold is the fill level that counts as full.
const DefaultFullThreshold = 80

// FullListener is told about every notification the simulator creates.
type FullListener func(ctx context.Context, n models.Notification, c models.Container)

// Simulator runs fill-level ticks against a store.
type Simulator struct {
	store     storage.Store
	mutator   Mutator
	userID    string
	threshold int
	listeners []FullListener
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithThreshold overrides DefaultFullThreshold.
func WithThreshold(threshold int) Option {
	return func(s *Simulator) { s.threshold = threshold }
}

// WithListener registers a callback for created notifications.
func WithListener(l FullListener) Option {
	return func(s *Simulator) { s.listeners = append(s.listeners, l) }
}

// New returns a simulator creating notifications for userID.
func New(store storage.Store, mutator Mutator, userID string, opts ...Option) *Simulator {
	s := &Simulator{
		store:     store,
		mutator:   mutator,
		userID:    userID,
		threshold: DefaultFullThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TickResult is the outcome of one tick.
type TickResult struct {
	// Containers is the full snapshot after the tick.
	Containers    []models.Container
	Changed       int
	Notifications []models.Notification
}

// Tick applies one round of changes and returns the updated snapshot.
func (s *Simulator) Tick(ctx context.Context) (TickResult, error) {
	containers, err := s.store.ListContainers(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("list containers: %w", err)
	}

	var result TickResult
	for _, c := range containers {
		delta, ok := s.mutator.Decide(c)
		if !ok {
			continue
		}

		before, updated, err := s.store.AdjustFillLevel(ctx, c.ID, delta)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return TickResult{}, fmt.Errorf("update container %s: %w", c.ID, err)
		}
		result.Changed++

		// Decided on the stored level, not the listing, so concurrent ticks
		// report each crossing once.
		if !CrossedThreshold(before.FillLevel, updated.FillLevel, s.threshold) {
			continue
		}

		n, err := s.store.CreateNotification(ctx, models.NewNotification{
			UserID:      s.userID,
			ContainerID: updated.ID,
			Message:     FullMessage(updated.Name, updated.FillLevel),
		})
		if err != nil {
			return TickResult{}, fmt.Errorf("create notification: %w", err)
		}
		result.Notifications = append(result.Notifications, n)
		metrics.NotificationsCreated.Inc()

		logging.Info().
			Str("container_id", updated.ID).
			Str("container", updated.Name).
			Int("from", before.FillLevel).
			Int("to", updated.FillLevel).
			Msg("🔔 Container is full")

		for _, l := range s.listeners {
			l(ctx, n, updated)
		}
	}

	metrics.SimulationTicks.Inc()
	metrics.FillLevelChanges.Add(float64(result.Changed))

	result.Containers, err = s.store.ListContainers(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("list containers: %w", err)
	}
	return result, nil
}

// Run sends the current snapshot, then ticks every interval and sends the new
// snapshot until ctx is cancelled or emit fails. The ticker never outlives Run.
func (s *Simulator) Run(ctx context.Context, interval time.Duration, emit func([]models.Container) error) error {
	containers, err := s.store.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if err := emit(containers); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := s.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.Error().Err(err).Msg("❌ Simulation tick failed")
				continue
			}
			if err := emit(result.Containers); err != nil {
				return err
			}
		}
	}
}

// CrossedThreshold reports an upward crossing: below before, at or above after.
func CrossedThreshold(before, after, threshold int) bool {
	return before < threshold && after >= threshold
}

// FullMessage is the text of a container-full notification.
func FullMessage(name string, level int) string {
	return fmt.Sprintf("El contenedor %s está lleno (%d%%). Te recomendamos buscar una alternativa cercana.", name, level)
}
