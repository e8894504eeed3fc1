package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket" // WebSocketライブラリ

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/services/tetris"
)

// GameSessions は GameHandler が使うセッション管理の操作です。tetris.SessionManager が満たします。
type GameSessions interface {
	CreateSession(ctx context.Context, playerID string) (string, error)
	GetRoom(roomID string) (*tetris.Room, bool)
	Dispatch(ctx context.Context, roomID string, a tetris.Action) (tetris.Frame, error)
	View(ctx context.Context, roomID string) (tetris.Frame, error)
	EndSession(roomID string) error
	RegisterClient(roomID, userID string, conn *websocket.Conn) error
}

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、操作、WebSocket接続）を処理します。
type GameHandler struct {
	sessions GameSessions
	upgrader websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//
//	sessions       : セッションマネージャー
//	allowedOrigins : WebSocket接続を許可するオリジン（空ならすべて許可）
//
// Returns:
//
//	*GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sessions GameSessions, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ownedRoom は URL の roomID のルームを取得し、リクエストしたユーザーが持ち主であることを確認します。
// 失敗した場合はエラーレスポンスを書き込んで ok == false を返します。
func (h *GameHandler) ownedRoom(w http.ResponseWriter, r *http.Request) (room *tetris.Room, ok bool) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	room, ok = h.sessions.GetRoom(mux.Vars(r)["roomID"])
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたルームは見つかりませんでした")
		return nil, false
	}
	if room.PlayerID != userID {
		WriteErrorResponse(w, http.StatusForbidden, "このルームを操作する権限がありません")
		return nil, false
	}
	return room, true
}

// writeSessionError はセッション操作のエラーをHTTPステータスに変換して書き込みます。
func writeSessionError(w http.ResponseWriter, roomID string, err error) {
	switch {
	case errors.Is(err, tetris.ErrRoomNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "指定されたルームは見つかりませんでした")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteErrorResponse(w, http.StatusServiceUnavailable, "ゲームループが応答しませんでした")
	default:
		log.Printf("[GameHandler] Session error for room %s: %v", roomID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ゲームの処理に失敗しました")
	}
}

// CreateGame は認証済みユーザー用の新しいゲームセッションを作成します。
// POST /api/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	roomID, err := h.sessions.CreateSession(r.Context(), userID)
	if err != nil {
		log.Printf("[GameHandler] Failed to create game for user %s: %v", userID, err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, "ゲームの作成に失敗しました")
		return
	}

	log.Printf("[GameHandler] Created game %s for user %s", roomID, userID)
	WriteJSONResponse(w, http.StatusCreated, map[string]string{"room_id": roomID})
}

// GetGame はゲームの現在のフレーム（盤面・状態・次のピース）を返します。
// GET /api/games/{roomID}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	room, ok := h.ownedRoom(w, r)
	if !ok {
		return
	}
	f, err := h.sessions.View(r.Context(), room.ID)
	if err != nil {
		writeSessionError(w, room.ID, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, f)
}

// PostAction はアクションを1つ適用し、処理後のフレームを返します。
// POST /api/games/{roomID}/actions  body: {"action":"rotate"}
func (h *GameHandler) PostAction(w http.ResponseWriter, r *http.Request) {
	room, ok := h.ownedRoom(w, r)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	action, err := tetris.ParseAction(req.Action)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.sessions.Dispatch(r.Context(), room.ID, action)
	if err != nil {
		writeSessionError(w, room.ID, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, f)
}

// DeleteGame はゲームセッションを終了します。
// DELETE /api/games/{roomID}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	room, ok := h.ownedRoom(w, r)
	if !ok {
		return
	}
	if err := h.sessions.EndSession(room.ID); err != nil {
		writeSessionError(w, room.ID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// その後のメッセージの送受信をセッションマネージャーに引き渡します。
// 持ち主以外のユーザーは観戦者として接続されます。
// GET /api/games/{roomID}/ws
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}
	roomID := mux.Vars(r)["roomID"]
	if _, ok := h.sessions.GetRoom(roomID); !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたルームは見つかりませんでした")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for room %s: %v", roomID, err)
		return // Upgrade がエラーレスポンスを書き込み済み
	}

	// 以降のコネクションは SessionManager の readPump / writePump が管理する
	if err := h.sessions.RegisterClient(roomID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to room %s: %v", userID, roomID, err)
		conn.Close()
		return
	}
	log.Printf("[GameHandler] WebSocket connected: user %s, room %s", userID, roomID)
}
