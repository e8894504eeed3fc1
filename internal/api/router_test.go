package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/minigames-tetris/internal/services/tetris"
)

const testSecret = "router-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sm := tetris.NewSessionManager(nil, nil, tetris.SeededRandom(7))
	origins := []string{"http://localhost:3000"}
	srv := httptest.NewServer(NewRouter(RouterDeps{
		Game:           handlers.NewGameHandler(sm, origins),
		Results:        handlers.NewResultHandler(nil),
		Public:         handlers.NewPublicHandler(sm, false),
		Auth:           middleware.AuthConfig{JWTSecret: testSecret},
		AllowedOrigins: origins,
	}))
	t.Cleanup(func() {
		srv.Close()
		sm.Shutdown()
	})
	return srv
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/public/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_GamesRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/games", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ResultsWithoutDatabase(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/results?limit=5", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_GameLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, "alice")

	resp := do(t, http.MethodPost, srv.URL+"/api/games", token, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	roomID := created["room_id"]
	require.NotEmpty(t, roomID)
	gameURL := srv.URL + "/api/games/" + roomID

	resp = do(t, http.MethodPost, gameURL+"/actions", token, `{"action":"start"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var f tetris.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.True(t, f.State.IsRunning)

	resp = do(t, http.MethodGet, gameURL, tokenFor(t, "mallory"), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodGet, gameURL, token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodDelete, gameURL, token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, gameURL, token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_WebSocketWithQueryToken(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, "alice")

	resp := do(t, http.MethodPost, srv.URL+"/api/games", token, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/games/" + created["room_id"] + "/ws?access_token=" + token
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f tetris.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, 1, f.State.Level)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start"}))
	for !f.State.IsRunning {
		require.NoError(t, conn.ReadJSON(&f))
	}
	assert.NotNil(t, f.ActivePiece)
}

func TestRouter_WebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, "alice")
	resp := do(t, http.MethodPost, srv.URL+"/api/games", token, "")
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/games/" + created["room_id"] + "/ws?access_token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
