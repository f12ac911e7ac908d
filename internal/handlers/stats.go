package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/middleware"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/storage"
	"ecopunto-backend/internal/validation"
	"ecopunto-backend/pkg/utils"
)

// GetStats returns the caller's stats, creating an empty record on first use.
func GetStats(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())

		stats, err := store.FindOrCreateStats(r.Context(), userID)
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("❌ Failed to get stats")
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch stats")
			return
		}
		utils.Success(w, stats)
	}
}

// UpdateStats merges {totalKg?, points?, streakDays?} into the caller's stats.
// Nothing is written unless every present field is a non-negative number.
func UpdateStats(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())

		req, err := decodeUpdateStats(r.Body)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := validation.Struct(req); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		stats, err := store.UpsertStats(r.Context(), userID, req.ToUpdate())
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("❌ Failed to update stats")
			utils.Error(w, http.StatusInternalServerError, "Failed to update stats")
			return
		}

		logging.Info().
			Str("user_id", userID).
			Float64("total_kg", stats.TotalKg).
			Int("points", stats.Points).
			Int("streak_days", stats.StreakDays).
			Msg("📊 Stats updated")
		utils.Success(w, stats)
	}
}

var errInvalidBody = errors.New("Invalid request body")

// decodeUpdateStats reads the body key by key so an explicit null or a
// non-numeric value is reported against its json field name.
func decodeUpdateStats(body io.Reader) (models.UpdateStatsRequest, error) {
	var req models.UpdateStatsRequest

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil || raw == nil {
		return req, errInvalidBody
	}

	fields := []struct {
		name   string
		target any
	}{
		{"totalKg", &req.TotalKg},
		{"points", &req.Points},
		{"streakDays", &req.StreakDays},
	}
	for _, f := range fields {
		value, ok := raw[f.name]
		if !ok {
			continue
		}
		if string(bytes.TrimSpace(value)) == "null" || json.Unmarshal(value, f.target) != nil {
			return req, &validation.Error{Fields: []validation.FieldError{{Field: f.name, Tag: "number"}}}
		}
	}
	return req, nil
}
