package storage

import (
	"context"
	"fmt"
	"time"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"
)

// DemoContainers are the collection points loaded on an empty store.
var DemoContainers = []models.NewContainer{
	{Name: "Parque Central", Latitude: -34.603722, Longitude: -58.381592, FillLevel: 25,
		Materials: []string{"Plástico", "Vidrio", "Papel"}, Address: "Av. Libertador 1234, Buenos Aires"},
	{Name: "Plaza Italia", Latitude: -34.583, Longitude: -58.420, FillLevel: 65,
		Materials: []string{"Plástico", "Latas"}, Address: "Av. Santa Fe 4567, Buenos Aires"},
	{Name: "Estación Norte", Latitude: -34.588, Longitude: -58.373, FillLevel: 90,
		Materials: []string{"Papel", "Cartón"}, Address: "Av. Cabildo 890, Buenos Aires"},
	{Name: "Centro Comercial", Latitude: -34.605, Longitude: -58.395, FillLevel: 15,
		Materials: []string{"Plástico", "Vidrio", "Latas", "Papel"}, Address: "Calle Florida 2345, Buenos Aires"},
	{Name: "Mercado Sur", Latitude: -34.615, Longitude: -58.385, FillLevel: 55,
		Materials: []string{"Orgánico", "Plástico"}, Address: "Av. Belgrano 6789, Buenos Aires"},
	{Name: "Universidad Central", Latitude: -34.598, Longitude: -58.388, FillLevel: 40,
		Materials: []string{"Papel", "Cartón", "Plástico"}, Address: "Av. Corrientes 3456, Buenos Aires"},
}

// Demo stats for the seeded user.
var (
	demoTotalKg    = 45.5
	demoPoints     = 650
	demoStreakDays = 12
)

// Seed loads the demo containers, stats and notifications for userID.
// It does nothing when the store already has containers.
func Seed(ctx context.Context, s Store, userID string, now time.Time) error {
	existing, err := s.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		logging.Info().Int("containers", len(existing)).Msg("✓ Containers already seeded, skipping")
		return nil
	}

	logging.Info().Int("containers", len(DemoContainers)).Msg("🌱 Seeding demo data")

	containers := make([]models.Container, 0, len(DemoContainers))
	for _, in := range DemoContainers {
		c, err := s.CreateContainer(ctx, in)
		if err != nil {
			return fmt.Errorf("seed container %q: %w", in.Name, err)
		}
		containers = append(containers, c)
	}

	_, err = s.UpsertStats(ctx, userID, models.StatsUpdate{
		TotalKg:    &demoTotalKg,
		Points:     &demoPoints,
		StreakDays: &demoStreakDays,
	})
	if err != nil {
		return fmt.Errorf("seed stats: %w", err)
	}

	seeded := []models.NewNotification{
		{
			UserID:      userID,
			ContainerID: containers[2].ID,
			Message:     "El contenedor está lleno (90%). Te recomendamos buscar una alternativa cercana.",
			CreatedAt:   now.Add(-5 * time.Minute),
		},
		{
			UserID:      userID,
			ContainerID: containers[1].ID,
			Message:     "Contenedor medio lleno (65%). Aún puedes depositar aquí.",
			CreatedAt:   now.Add(-time.Hour),
		},
	}
	for _, n := range seeded {
		if _, err := s.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("seed notification: %w", err)
		}
	}

	logging.Info().Msg("✅ Demo data seeded")
	return nil
}
