package tetris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/models/tetris"
)

var (
	// ErrRoomNotFound は指定されたルームが存在しないときに返されます。
	ErrRoomNotFound = errors.New("room not found")
	// ErrManagerClosed は Shutdown 後に新しいセッションを作ろうとしたときに返されます。
	ErrManagerClosed = errors.New("session manager is shut down")
)

// WebSocket 接続の設定値
const (
	writeWait       = 10 * time.Second
	pongWait        = 300 * time.Second
	pingPeriod      = 60 * time.Second
	maxMessageSize  = 1024
	clientSendQueue = 256
	resultSaveWait  = 5 * time.Second
	clientInputWait = 5 * time.Second
)

// ResultRecorder はゲームオーバー時の結果を保存する先です。database.ResultRepository が満たします。
type ResultRecorder interface {
	CreateResult(ctx context.Context, userID string, score, level, linesCleared int) (*models.Result, error)
}

// RandomFactory はセッションごとのピース抽選用の乱数源を作ります。
type RandomFactory func() tetris.RandomSource

// SeededRandom は seed が0なら現在時刻、それ以外なら固定の seed で乱数源を作る RandomFactory を返します。
func SeededRandom(seed int64) RandomFactory {
	return func() tetris.RandomSource {
		if seed == 0 {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		return rand.New(rand.NewSource(seed))
	}
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID string          // このクライアントに紐づくユーザーのID
	Conn   *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send   chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	RoomID string          // このクライアントが現在参加しているルームのID
	closed bool            // チャネルが閉じられたかどうかのフラグ
	mu     sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false // 既に閉じられている
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// clientMessage はクライアントから届く操作メッセージです。例: {"action":"move_left"}
type clientMessage struct {
	Action string `json:"action"`
}

// errorMessage は不正な入力に対してクライアントへ返すメッセージです。
type errorMessage struct {
	Error string `json:"error"`
}

// Room は1人用のゲームセッションと、それを動かすゲームループの組です。
type Room struct {
	ID        string    `json:"room_id"`
	PlayerID  string    `json:"player_id"` // 操作できるのはこのユーザーだけ（他の接続は観戦）
	CreatedAt time.Time `json:"created_at"`

	loop   *GameLoop
	cancel context.CancelFunc
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	rooms   map[string]*Room                // roomID -> Room
	clients map[string]map[*Client]struct{} // roomID -> そのルームに接続中のクライアント
	mu      sync.RWMutex                    // rooms と clients を保護する
	closed  bool

	results ResultRecorder // nil なら結果は保存しない
	clock   Clock
	newRand RandomFactory
	wg      sync.WaitGroup // ゲームループと配信ゴルーチン
}

// NewSessionManager は新しい SessionManager を作成します。
//
// Parameters:
//
//	results : ゲーム結果の保存先（nil の場合は保存しない）
//	clock   : 自動落下タイマー用の Clock（nil の場合は実時間）
//	newRand : ピース抽選用の乱数源（nil の場合は時刻ベース）
//
// Returns:
//
//	*SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(results ResultRecorder, clock Clock, newRand RandomFactory) *SessionManager {
	if clock == nil {
		clock = RealClock()
	}
	if newRand == nil {
		newRand = SeededRandom(0)
	}
	return &SessionManager{
		rooms:   make(map[string]*Room),
		clients: make(map[string]map[*Client]struct{}),
		results: results,
		clock:   clock,
		newRand: newRand,
	}
}

// CreateSession は新しいゲームセッションを作成し、そのゲームループを開始します。
// ゲームは "start" アクションを受け取るまで始まりません。
//
// Parameters:
//
//	playerID : セッションを操作するユーザーのID
//
// Returns:
//
//	string: 作成されたルームのID
//	error : エラーが発生した場合
func (sm *SessionManager) CreateSession(ctx context.Context, playerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return "", ErrManagerClosed
	}

	roomID := uuid.New().String()
	loopCtx, cancel := context.WithCancel(context.Background())
	room := &Room{
		ID:        roomID,
		PlayerID:  playerID,
		CreatedAt: time.Now(),
		loop:      NewGameLoop(NewGameSession(sm.newRand()), sm.clock),
		cancel:    cancel,
	}
	// 結果の保存は取りこぼしのあるフレーム配信に頼らず、ループから直接受け取る。
	// ループのゴルーチンは wg に数えられているので、ここでの Add は Shutdown の Wait より先になる
	room.loop.OnGameOver(func(st GameState) {
		sm.wg.Add(1)
		go func() {
			defer sm.wg.Done()
			sm.saveResult(room, st)
		}()
	})
	sm.rooms[roomID] = room
	sm.clients[roomID] = make(map[*Client]struct{})

	sm.wg.Add(2)
	go func() {
		defer sm.wg.Done()
		if err := room.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[SessionManager] Game loop for room %s ended with error: %v", roomID, err)
		}
	}()
	go func() {
		defer sm.wg.Done()
		sm.forwardFrames(room)
	}()

	log.Printf("[SessionManager] Created new game session: %s for player %s", roomID, playerID)
	return roomID, nil
}

// GetRoom は指定されたルームIDのルームを取得します。
func (sm *SessionManager) GetRoom(roomID string) (*Room, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	room, ok := sm.rooms[roomID]
	return room, ok
}

// RoomCount は現在アクティブなルームの数を返します。
func (sm *SessionManager) RoomCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.rooms)
}

// Dispatch はルームのゲームループにアクションを送り、処理後のフレームを返します。
func (sm *SessionManager) Dispatch(ctx context.Context, roomID string, a Action) (Frame, error) {
	room, ok := sm.GetRoom(roomID)
	if !ok {
		return Frame{}, ErrRoomNotFound
	}
	f, err := room.loop.Dispatch(ctx, a)
	if errors.Is(err, ErrLoopStopped) {
		return Frame{}, ErrRoomNotFound
	}
	return f, err
}

// View はルームの現在のフレームを返します。
func (sm *SessionManager) View(ctx context.Context, roomID string) (Frame, error) {
	room, ok := sm.GetRoom(roomID)
	if !ok {
		return Frame{}, ErrRoomNotFound
	}
	f, err := room.loop.View(ctx)
	if errors.Is(err, ErrLoopStopped) {
		return Frame{}, ErrRoomNotFound
	}
	return f, err
}

// forwardFrames はゲームループのフレームをルームのクライアントへ配信します。ループが終了すると戻ります。
func (sm *SessionManager) forwardFrames(room *Room) {
	for f := range room.loop.Updates() {
		sm.broadcast(room.ID, f)
	}
}

// broadcast はフレームをJSONにしてルーム内の全クライアントに送信します。
func (sm *SessionManager) broadcast(roomID string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("[SessionManager] Error marshaling frame for room %s: %v", roomID, err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for client := range sm.clients[roomID] {
		if !client.SafeSend(payload) {
			log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
		}
	}
}

func (sm *SessionManager) saveResult(room *Room, st GameState) {
	if sm.results == nil {
		log.Printf("[SessionManager] Result persistence disabled, skipping result for room %s (score=%d)", room.ID, st.Score)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resultSaveWait)
	defer cancel()

	result, err := sm.results.CreateResult(ctx, room.PlayerID, st.Score, st.Level, st.LinesCleared)
	if err != nil {
		log.Printf("[SessionManager] Failed to save result for room %s: %v", room.ID, err)
		return
	}
	log.Printf("[SessionManager] Saved result %d for player %s (score=%d level=%d lines=%d)",
		result.ID, room.PlayerID, st.Score, st.Level, st.LinesCleared)
}

// RegisterClient は新しいWebSocketクライアントをルームに登録し、読み書きのゴルーチンを開始します。
// 登録直後に現在のフレームを1枚送ります。
//
// Parameters:
//
//	roomID : クライアントが参加するルームのID
//	userID : クライアントのユーザーID
//	conn   : WebSocketコネクション
//
// Returns:
//
//	error: ルームが存在しない場合
func (sm *SessionManager) RegisterClient(roomID, userID string, conn *websocket.Conn) error {
	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, clientSendQueue),
		RoomID: roomID,
	}

	sm.mu.Lock()
	clients, ok := sm.clients[roomID]
	if !ok {
		sm.mu.Unlock()
		return ErrRoomNotFound
	}
	clients[client] = struct{}{}
	sm.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go sm.readPump(client)
	go client.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), clientInputWait)
	defer cancel()
	if f, err := sm.View(ctx, roomID); err == nil {
		sm.sendJSON(client, f)
	}

	log.Printf("[SessionManager] Client %s registered for room %s", userID, roomID)
	return nil
}

func (sm *SessionManager) unregisterClient(client *Client) {
	sm.mu.Lock()
	if clients, ok := sm.clients[client.RoomID]; ok {
		delete(clients, client)
	}
	sm.mu.Unlock()
	client.SafeClose()
	log.Printf("[SessionManager] Client unregistered: %s (Room: %s)", client.UserID, client.RoomID)
}

func (sm *SessionManager) sendJSON(client *Client, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[SessionManager] Error marshaling message for client %s: %v", client.UserID, err)
		return
	}
	if !client.SafeSend(payload) {
		log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
	}
}

// readPump はクライアントからのWebSocketメッセージを読み込み、アクションとしてゲームループに送ります。
// ルームの持ち主以外からの操作は無視します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for user %s: %v", client.UserID, r)
		}
		sm.unregisterClient(client)
		if err := client.Conn.Close(); err != nil {
			log.Printf("[SessionManager] Error closing WebSocket connection for user %s: %v", client.UserID, err)
		}
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		room, ok := sm.GetRoom(client.RoomID)
		if !ok {
			return
		}
		if room.PlayerID != client.UserID {
			log.Printf("[SessionManager] Ignoring input from spectator %s in room %s", client.UserID, client.RoomID)
			sm.sendJSON(client, errorMessage{Error: "spectators cannot send actions"})
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			sm.sendJSON(client, errorMessage{Error: "invalid message"})
			continue
		}
		action, err := ParseAction(msg.Action)
		if err != nil {
			sm.sendJSON(client, errorMessage{Error: err.Error()})
			continue
		}

		// 状態が変わればフレームは forwardFrames から配信される
		ctx, cancel := context.WithTimeout(context.Background(), clientInputWait)
		_, err = sm.Dispatch(ctx, client.RoomID, action)
		cancel()
		if err != nil {
			log.Printf("[SessionManager] Failed to dispatch %s for user %s: %v", action, client.UserID, err)
			if errors.Is(err, ErrRoomNotFound) {
				return
			}
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた（退出・セッション終了）
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[Client] Error sending ping for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}

// EndSession はゲームループを止め、ルームと接続中のクライアントを片付けます。
//
// Parameters:
//
//	roomID : 終了するルームのID
func (sm *SessionManager) EndSession(roomID string) error {
	sm.mu.Lock()
	room, ok := sm.rooms[roomID]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("end session %s: %w", roomID, ErrRoomNotFound)
	}
	clients := sm.clients[roomID]
	delete(sm.rooms, roomID)
	delete(sm.clients, roomID)
	sm.mu.Unlock()

	room.cancel()
	for client := range clients {
		client.SafeClose()
	}
	log.Printf("[SessionManager] Game session %s ended (%d clients disconnected)", roomID, len(clients))
	return nil
}

// Shutdown はすべてのセッションを終了し、ゲームループの終了を待ちます。
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] シャットダウン開始...")

	sm.mu.Lock()
	sm.closed = true
	roomIDs := make([]string, 0, len(sm.rooms))
	for id := range sm.rooms {
		roomIDs = append(roomIDs, id)
	}
	sm.mu.Unlock()

	for _, id := range roomIDs {
		if err := sm.EndSession(id); err != nil {
			log.Printf("[SessionManager] %v", err)
		}
	}
	sm.wg.Wait()

	log.Printf("[SessionManager] シャットダウン完了")
}
