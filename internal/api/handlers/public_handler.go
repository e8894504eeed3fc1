package handlers

import (
	"net/http"
)

// RoomCounter は稼働中のゲーム数を返します。tetris.SessionManager が満たします。
type RoomCounter interface {
	RoomCount() int
}

// PublicHandler handles public API endpoints
type PublicHandler struct {
	rooms       RoomCounter
	persistence bool
}

// NewPublicHandler creates a new instance of PublicHandler
func NewPublicHandler(rooms RoomCounter, persistence bool) *PublicHandler {
	return &PublicHandler{rooms: rooms, persistence: persistence}
}

// Health はサーバーの稼働状況を返します。
// GET /api/public/health
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"active_games": h.rooms.RoomCount(),
		"persistence":  h.persistence,
	})
}
