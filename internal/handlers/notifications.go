package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/middleware"
	"ecopunto-backend/internal/storage"
	"ecopunto-backend/pkg/utils"
)

// GetNotifications returns the caller's notifications, newest first.
func GetNotifications(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())

		notifications, err := store.ListNotifications(r.Context(), userID)
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("❌ Failed to list notifications")
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch notifications")
			return
		}
		utils.Success(w, nonNil(notifications))
	}
}

func MarkNotificationRead(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		notification, err := store.MarkNotificationRead(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			utils.Error(w, http.StatusNotFound, "Notification not found")
			return
		}
		if err != nil {
			logging.Error().Err(err).Str("notification_id", id).Msg("❌ Failed to mark notification as read")
			utils.Error(w, http.StatusInternalServerError, "Failed to mark notification as read")
			return
		}
		utils.Success(w, notification)
	}
}
