// Package services holds outbound integrations: push delivery of
// container-full alerts.
package services

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/metrics"
	"ecopunto-backend/internal/models"
)

// Notifier delivers a container-full alert outside the process.
type Notifier interface {
	NotifyContainerFull(ctx context.Context, n models.Notification, c models.Container) error
}

// NopNotifier drops every alert. Used when push is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyContainerFull(context.Context, models.Notification, models.Container) error {
	return nil
}

// BreakerConfig tunes BreakerNotifier.
type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the settings used by the server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "push",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
	}
}

// BreakerNotifier stops calling a failing Notifier until its timeout passes.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerNotifier wraps next with a circuit breaker.
func NewBreakerNotifier(next Notifier, cfg BreakerConfig) *BreakerNotifier {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("⚠️ Push circuit breaker changed state")
		},
	}

	return &BreakerNotifier{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// NotifyContainerFull forwards to the wrapped notifier unless the breaker is open.
func (b *BreakerNotifier) NotifyContainerFull(ctx context.Context, n models.Notification, c models.Container) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.NotifyContainerFull(ctx, n, c)
	})

	switch {
	case err == nil:
		metrics.PushSends.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.PushSends.WithLabelValues("rejected").Inc()
	default:
		metrics.PushSends.WithLabelValues("failed").Inc()
	}
	return err
}

// State exposes the breaker state for logs and tests.
func (b *BreakerNotifier) State() gobreaker.State {
	return b.cb.State()
}

// Listener adapts n to a simulation callback. Delivery errors are logged and
// never reach the caller.
func Listener(n Notifier) func(ctx context.Context, notification models.Notification, c models.Container) {
	return func(ctx context.Context, notification models.Notification, c models.Container) {
		if err := n.NotifyContainerFull(ctx, notification, c); err != nil {
			logging.Warn().
				Err(err).
				Str("container_id", c.ID).
				Msg("⚠️ Push notification not delivered")
		}
	}
}
