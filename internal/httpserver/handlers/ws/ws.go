// Package ws подписка на события бронирований по websocket
package ws

import (
	"net/http"

	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/response"
	"go.uber.org/zap"
)

type Subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// New GET /ws?user_id=...
func New(log *zap.Logger, hub Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			response.BadRequest(w, r, "user_id is required")
			return
		}

		// После неудачного Upgrade ответ уже записан gorilla/websocket
		if err := hub.Serve(w, r, userID); err != nil {
			log.Warn("Failed to open websocket", zap.String("user_id", userID), zap.Error(err))
		}
	}
}
