// Package api はHTTPルーティングを組み立てます。
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/middleware"
)

// RouterDeps はルーターが必要とするハンドラーと設定です。
type RouterDeps struct {
	Game           *handlers.GameHandler
	Results        *handlers.ResultHandler
	Public         *handlers.PublicHandler
	Auth           middleware.AuthConfig
	AllowedOrigins []string
}

// NewRouter はすべてのエンドポイントを登録したハンドラーを返します。CORSは全体に適用されます。
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public/health", deps.Public.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/results", deps.Results.GetTopResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/user/{userID}", deps.Results.GetUserResult).Methods(http.MethodGet)

	// /api/games 以下は認証が必要
	games := r.PathPrefix("/api/games").Subrouter()
	games.Use(middleware.AuthMiddleware(deps.Auth))
	games.HandleFunc("", deps.Game.CreateGame).Methods(http.MethodPost)
	games.HandleFunc("/{roomID}", deps.Game.GetGame).Methods(http.MethodGet)
	games.HandleFunc("/{roomID}", deps.Game.DeleteGame).Methods(http.MethodDelete)
	games.HandleFunc("/{roomID}/actions", deps.Game.PostAction).Methods(http.MethodPost)
	games.HandleFunc("/{roomID}/ws", deps.Game.HandleWebSocketConnection).Methods(http.MethodGet)

	return middleware.CORSHandler(deps.AllowedOrigins)(r)
}
