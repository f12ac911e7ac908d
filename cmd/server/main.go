package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"ecopunto-backend/internal/config"
	"ecopunto-backend/internal/handlers"
	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/services"
	"ecopunto-backend/internal/simulation"
	"ecopunto-backend/internal/storage"
	"ecopunto-backend/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("❌ Invalid configuration")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info().Msg("🚀 ECOPUNTO BACKEND SERVER STARTING")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("❌ Storage initialization failed")
	}
	if db != nil {
		defer db.Close()
	}

	if err := storage.Seed(ctx, store, cfg.DemoUserID, time.Now()); err != nil {
		logging.Fatal().Err(err).Msg("❌ Seeding failed")
	}

	notifier := newNotifier(ctx, cfg)

	// WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	logging.Info().Msg("✅ WebSocket hub started")

	mutator := simulation.NewRandomMutator(
		cfg.Simulation.Seed,
		cfg.Simulation.ChangeProbability,
		cfg.Simulation.MinDelta,
		cfg.Simulation.MaxDelta,
	)
	sim := simulation.New(store, mutator, cfg.DemoUserID,
		simulation.WithThreshold(cfg.Simulation.FullThreshold),
		simulation.WithListener(func(_ context.Context, n models.Notification, _ models.Container) {
			wsHub.Broadcast(websocket.TypeNotification, n)
		}),
		simulation.WithListener(services.Listener(notifier)),
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:          store,
		Hub:            wsHub,
		Simulator:      sim,
		StreamInterval: cfg.Simulation.Interval,
		DemoUserID:     cfg.DemoUserID,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().
			Str("port", cfg.Port).
			Dur("stream_interval", cfg.Simulation.Interval).
			Bool("postgres", cfg.UsesPostgres()).
			Msgf("🚀 Server starting on http://localhost:%s", cfg.Port)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Str("port", cfg.Port).Msg("❌ Server failed to start")
		}
	case <-ctx.Done():
		logging.Info().Msg("🛑 Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("❌ Graceful shutdown failed")
	}
	logging.Info().Msg("👋 Server stopped")
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, *sqlx.DB, error) {
	if !cfg.UsesPostgres() {
		logging.Info().Msg("💾 DATABASE_URL not set, using in-memory store")
		return storage.NewMemoryStore(storage.WithNotificationRetention(cfg.NotificationRetention)), nil, nil
	}

	db, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	logging.Info().Msg("🔄 Running database migrations...")
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	logging.Info().Msg("✅ Database ready")

	return storage.NewPostgresStore(db, cfg.NotificationRetention), db, nil
}

// newNotifier returns a breaker-wrapped FCM notifier, or a no-op one when push
// is not configured or cannot start.
func newNotifier(ctx context.Context, cfg *config.Config) services.Notifier {
	var (
		fcm *services.FCMNotifier
		err error
	)

	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		fcm, err = services.NewFCMNotifierFromBase64(ctx, cfg.FirebaseCredentialsBase64, cfg.FCMTopic)
	case cfg.FirebaseCredentialsFile != "":
		fcm, err = services.NewFCMNotifier(ctx, cfg.FirebaseCredentialsFile, cfg.FCMTopic)
	default:
		logging.Info().Msg("🔕 Push notifications disabled (no Firebase credentials)")
		return services.NopNotifier{}
	}

	if err != nil {
		logging.Warn().Err(err).Msg("⚠️ Failed to initialize FCM (push notifications disabled)")
		return services.NopNotifier{}
	}

	logging.Info().Str("topic", cfg.FCMTopic).Msg("✅ Firebase Cloud Messaging initialized")
	return services.NewBreakerNotifier(fcm, services.DefaultBreakerConfig())
}
