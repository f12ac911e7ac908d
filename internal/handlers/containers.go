package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ecopunto-backend/internal/geo"
	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/storage"
	"ecopunto-backend/pkg/utils"
)

func GetContainers(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		containers, err := store.ListContainers(r.Context())
		if err != nil {
			logging.Error().Err(err).Msg("❌ Failed to list containers")
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch containers")
			return
		}
		utils.Success(w, nonNil(containers))
	}
}

func GetContainer(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		container, err := store.GetContainer(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			utils.Error(w, http.StatusNotFound, "Container not found")
			return
		}
		if err != nil {
			logging.Error().Err(err).Str("container_id", id).Msg("❌ Failed to get container")
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch container")
			return
		}
		utils.Success(w, container)
	}
}

// GetNearbyContainers returns containers ordered by distance from ?lat=&lng=,
// optionally capped by ?limit=.
func GetNearbyContainers(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil || !geo.ValidCoordinates(lat, lng) {
			utils.Error(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}

		limit := 0
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				utils.Error(w, http.StatusBadRequest, "Invalid limit value")
				return
			}
			limit = n
		}

		containers, err := store.ListContainers(r.Context())
		if err != nil {
			logging.Error().Err(err).Msg("❌ Failed to list containers")
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch containers")
			return
		}

		ranked := geo.SortByDistance(containers, geo.Point{Lat: lat, Lng: lng})
		if limit > 0 && limit < len(ranked) {
			ranked = ranked[:limit]
		}

		out := make([]models.ContainerWithDistance, len(ranked))
		for i, rc := range ranked {
			out[i] = models.ContainerWithDistance{
				Container:     rc.Item,
				Distance:      rc.Distance,
				DistanceLabel: geo.FormatDistance(rc.Distance),
			}
		}
		utils.Success(w, out)
	}
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
