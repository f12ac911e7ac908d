package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	containerColumns    = `id, name, latitude, longitude, fill_level, materials, address`
	statsColumns        = `id, user_id, total_kg, points, streak_days`
	notificationColumns = `id, user_id, container_id, message, read, created_at`
)

// Connect opens a postgres connection pool and pings it.
func Connect(dbURL string) (*sqlx.DB, error) {
	logging.Info().Int("url_length", len(dbURL)).Msg("🔌 Connecting to database")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logging.Info().Msg("✅ Database connection established")
	return db, nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS containers (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			name TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			fill_level INT NOT NULL CHECK (fill_level BETWEEN 0 AND 100),
			materials TEXT[] NOT NULL,
			address TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_stats (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			total_kg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (total_kg >= 0),
			points INT NOT NULL DEFAULT 0 CHECK (points >= 0),
			streak_days INT NOT NULL DEFAULT 0 CHECK (streak_days >= 0)
		)`,

		// container_id has no foreign key: notifications may outlive their container.
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			message TEXT NOT NULL,
			read INT NOT NULL DEFAULT 0 CHECK (read IN (0, 1)),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	logging.Info().Int("statements", len(migrations)).Msg("✓ Database migrations completed")
	return nil
}

// PostgresStore implements Store on top of sqlx.
type PostgresStore struct {
	db        *sqlx.DB
	retention int
}

// NewPostgresStore wraps db. retention <= 0 keeps every notification.
func NewPostgresStore(db *sqlx.DB, retention int) *PostgresStore {
	return &PostgresStore{db: db, retention: retention}
}

func (s *PostgresStore) ListContainers(ctx context.Context) ([]models.Container, error) {
	containers := []models.Container{}
	err := s.db.SelectContext(ctx, &containers,
		`SELECT `+containerColumns+` FROM containers ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return containers, nil
}

func (s *PostgresStore) GetContainer(ctx context.Context, id string) (models.Container, error) {
	var c models.Container
	err := s.db.GetContext(ctx, &c,
		`SELECT `+containerColumns+` FROM containers WHERE id = $1`, id)
	if err != nil {
		return models.Container{}, notFoundOr(err, "get container")
	}
	return c, nil
}

func (s *PostgresStore) CreateContainer(ctx context.Context, in models.NewContainer) (models.Container, error) {
	var c models.Container
	err := s.db.GetContext(ctx, &c, `
		INSERT INTO containers (id, name, latitude, longitude, fill_level, materials, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+containerColumns,
		uuid.New().String(), in.Name, in.Latitude, in.Longitude,
		models.ClampFillLevel(in.FillLevel), pqStrings(in.Materials), in.Address)
	if err != nil {
		return models.Container{}, fmt.Errorf("create container: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateFillLevel(ctx context.Context, id string, level int) (models.Container, error) {
	var c models.Container
	err := s.db.GetContext(ctx, &c, `
		UPDATE containers SET fill_level = $1
		WHERE id = $2
		RETURNING `+containerColumns,
		models.ClampFillLevel(level), id)
	if err != nil {
		return models.Container{}, notFoundOr(err, "update fill level")
	}
	return c, nil
}

// AdjustFillLevel locks the row, so concurrent adjustments never lose an update.
func (s *PostgresStore) AdjustFillLevel(ctx context.Context, id string, delta int) (models.Container, models.Container, error) {
	var row struct {
		models.Container
		PreviousFillLevel int `db:"previous_fill_level"`
	}
	err := s.db.GetContext(ctx, &row, `
		UPDATE containers AS c
		SET fill_level = LEAST(100, GREATEST(0, old.fill_level + $1))
		FROM (SELECT id, fill_level FROM containers WHERE id = $2 FOR UPDATE) AS old
		WHERE c.id = old.id
		RETURNING old.fill_level AS previous_fill_level,
			c.id, c.name, c.latitude, c.longitude, c.fill_level, c.materials, c.address`,
		delta, id)
	if err != nil {
		return models.Container{}, models.Container{}, notFoundOr(err, "adjust fill level")
	}

	before := row.Container.Clone()
	before.FillLevel = row.PreviousFillLevel
	return before, row.Container, nil
}

func (s *PostgresStore) GetStats(ctx context.Context, userID string) (models.UserStats, error) {
	var stats models.UserStats
	err := s.db.GetContext(ctx, &stats,
		`SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	if err != nil {
		return models.UserStats{}, notFoundOr(err, "get stats")
	}
	return stats, nil
}

func (s *PostgresStore) FindOrCreateStats(ctx context.Context, userID string) (models.UserStats, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), userID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("create stats: %w", err)
	}
	return s.GetStats(ctx, userID)
}

func (s *PostgresStore) UpsertStats(ctx context.Context, userID string, upd models.StatsUpdate) (models.UserStats, error) {
	var stats models.UserStats
	err := s.db.GetContext(ctx, &stats, `
		INSERT INTO user_stats (id, user_id, total_kg, points, streak_days)
		VALUES ($1, $2, COALESCE($3::DOUBLE PRECISION, 0), COALESCE($4::INT, 0), COALESCE($5::INT, 0))
		ON CONFLICT (user_id) DO UPDATE SET
			total_kg = COALESCE($3::DOUBLE PRECISION, user_stats.total_kg),
			points = COALESCE($4::INT, user_stats.points),
			streak_days = COALESCE($5::INT, user_stats.streak_days)
		RETURNING `+statsColumns,
		uuid.New().String(), userID, upd.TotalKg, upd.Points, upd.StreakDays)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("upsert stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, in models.NewNotification) (models.Notification, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var n models.Notification
	err := s.db.GetContext(ctx, &n, `
		INSERT INTO notifications (id, user_id, container_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		uuid.New().String(), in.UserID, in.ContainerID, in.Message, normalizeRead(in.Read), createdAt.UTC())
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	if s.retention > 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM notifications WHERE id IN (
				SELECT id FROM notifications
				WHERE user_id = $1
				ORDER BY created_at DESC, id DESC
				OFFSET $2
			)`, in.UserID, s.retention)
		if err != nil {
			logging.Warn().Err(err).Str("user_id", in.UserID).Msg("⚠️ Failed to prune notifications")
		}
	}

	return n, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) (models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n, `
		UPDATE notifications SET read = 1
		WHERE id = $1
		RETURNING `+notificationColumns, id)
	if err != nil {
		return models.Notification{}, notFoundOr(err, "mark notification read")
	}
	return n, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Store = (*PostgresStore)(nil)

func pqStrings(in []string) pq.StringArray {
	if in == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(in)
}
