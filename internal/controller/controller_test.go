package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/lockstep/server/internal/domain"
	"github.com/lockstep/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/lockstep/server/internal/repository/room/inmemory"
	userRedis "github.com/lockstep/server/internal/repository/user/redis"
	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	connRepo := inmemory.NewRepo(inmemory.Config{
		SendBuffer: 64,
		WriteWait:  time.Second,
		PingPeriod: time.Minute,
	}, m, logger)
	registry := roomInmemory.NewRegistry(connRepo, logger)
	authService := auth.NewService(userRedis.NewRepo(rc, logger), &auth.Config{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
		HashCost: bcrypt.MinCost,
	}, logger)
	roomService := room.NewService(registry, connRepo, m, logger)

	c := NewController(authService, roomService, connRepo, m, Config{
		ReadLimit: 4096,
		PongWait:  time.Minute,
	}, logger)

	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func signUp(t *testing.T, srv *httptest.Server, account, nickname string) string {
	t.Helper()

	status, env := call(t, srv, http.MethodPost, "/api/v1/sign-up", "", map[string]string{
		"account":  account,
		"password": "hunter22",
		"nickname": nickname,
	})
	require.Equal(t, http.StatusOK, status, env.Msg)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame accepted by match, skipping the others.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func isAction(action string) func(frame) bool {
	return func(f frame) bool {
		if f.Type != domain.EventVideoAction {
			return false
		}
		var a domain.VideoAction
		return json.Unmarshal(f.Payload, &a) == nil && a.Action == action
	}
}

func panelWhere(fn func(domain.RoomView) bool) func(frame) bool {
	return func(f frame) bool {
		if f.Type != domain.EventRoomPanel {
			return false
		}
		var v domain.RoomView
		return json.Unmarshal(f.Payload, &v) == nil && fn(v)
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}))
}

func connectedAs(t *testing.T, srv *httptest.Server, token, userID string) *websocket.Conn {
	t.Helper()

	conn := dial(t, srv, token)
	readUntil(t, conn, panelWhere(func(v domain.RoomView) bool {
		return v.Members[userID].Connected
	}))
	return conn
}

func TestWatchParty(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := signUp(t, srv, "alice@example.com", "alice")
	bobToken := signUp(t, srv, "bob@example.com", "bob")

	status, env := call(t, srv, http.MethodPost, "/api/v1/room/create", aliceToken, map[string]any{
		"roomNumber": "42",
		"roomUrl":    "https://example.com/movie.mp4",
		"tabId":      1,
	})
	require.Equal(t, http.StatusOK, status, env.Msg)
	assert.Equal(t, codeOK, env.Code)

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/join", bobToken, map[string]any{
		"roomNumber": "42",
		"tabId":      "2",
	})
	require.Equal(t, http.StatusOK, status, env.Msg)

	alice := connectedAs(t, srv, aliceToken, "alice@example.com")
	bob := connectedAs(t, srv, bobToken, "bob@example.com")

	send(t, alice, typeSyncEvent, map[string]any{"action": "start-barrier", "time": 120.4})
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readUntil(t, conn, isAction(domain.ActionPauseAndJump))
		var a domain.VideoAction
		require.NoError(t, json.Unmarshal(f.Payload, &a))
		require.NotNil(t, a.Time)
		assert.Equal(t, 120, *a.Time)
	}

	send(t, alice, typeUpdateUserInfo, map[string]any{"currentState": "oncanplay", "currentProgress": 120})
	send(t, alice, typeSyncEvent, map[string]any{"action": "report-ready"})
	send(t, bob, typeSyncEvent, map[string]any{"action": "update sync state", "state": 1})
	for _, conn := range []*websocket.Conn{alice, bob} {
		readUntil(t, conn, isAction(domain.ActionPlay))
	}

	status, env = call(t, srv, http.MethodGet, "/api/v1/room/42", aliceToken, nil)
	require.Equal(t, http.StatusOK, status, env.Msg)
	var state struct {
		Room    domain.RoomView    `json:"room"`
		Barrier domain.BarrierView `json:"barrier"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.True(t, state.Barrier.Satisfied)
	assert.Equal(t, domain.PhaseReady, state.Room.Members["alice@example.com"].Phase)
	assert.Equal(t, 120, state.Room.Members["alice@example.com"].Position)

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/leave", aliceToken, map[string]any{"roomNumber": "42"})
	require.Equal(t, http.StatusOK, status, env.Msg)
	readUntil(t, bob, panelWhere(func(v domain.RoomView) bool {
		_, ok := v.Members["alice@example.com"]
		return !ok && len(v.Members) == 1
	}))
}

func TestMediaChangeSkipsSender(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := signUp(t, srv, "alice@example.com", "alice")
	bobToken := signUp(t, srv, "bob@example.com", "bob")

	call(t, srv, http.MethodPost, "/api/v1/room/create", aliceToken, map[string]any{
		"roomNumber": "7", "roomUrl": "https://example.com/a.mp4", "tabId": 1,
	})
	call(t, srv, http.MethodPost, "/api/v1/room/join", bobToken, map[string]any{"roomNumber": "7", "tabId": 2})

	alice := connectedAs(t, srv, aliceToken, "alice@example.com")
	bob := connectedAs(t, srv, bobToken, "bob@example.com")

	send(t, alice, typeSyncEvent, map[string]any{"action": "update-url", "url": "https://example.com/b.mp4"})

	f := readUntil(t, bob, func(f frame) bool { return f.Type == domain.EventVideoAction })
	var a domain.VideoAction
	require.NoError(t, json.Unmarshal(f.Payload, &a))
	assert.Equal(t, domain.ActionUpdateURL, a.Action)
	assert.Equal(t, "https://example.com/b.mp4", a.URL)

	// the sender sees the new media only through the room panel
	f = readUntil(t, alice, func(f frame) bool {
		return f.Type == domain.EventVideoAction || panelWhere(func(v domain.RoomView) bool {
			return v.MediaRef == "https://example.com/b.mp4"
		})(f)
	})
	assert.Equal(t, domain.EventRoomPanel, f.Type)
}

func TestWSErrorsGoToSender(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "alice@example.com", "alice")
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := readUntil(t, conn, func(f frame) bool { return f.Type == domain.EventError })
	assert.Contains(t, string(f.Payload), "invalid message")

	send(t, conn, "dance", nil)
	readUntil(t, conn, func(f frame) bool { return f.Type == domain.EventError })

	send(t, conn, typeSyncEvent, map[string]any{"action": "report-ready"})
	f = readUntil(t, conn, func(f frame) bool { return f.Type == domain.EventError })
	assert.Contains(t, string(f.Payload), room.ErrNotInRoom.Error())

	// the connection survives rejected messages
	send(t, conn, typeAlive, nil)
	send(t, conn, typeSyncEvent, map[string]any{"action": "start-barrier"})
	readUntil(t, conn, func(f frame) bool { return f.Type == domain.EventError })
}

func TestWSRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	require.Error(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomEndpointsReject(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "alice@example.com", "alice")

	status, env := call(t, srv, http.MethodPost, "/api/v1/room/join", token, map[string]any{"roomNumber": "404", "tabId": 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, codeFail, env.Code)

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/create", token, map[string]any{"roomNumber": "1", "roomUrl": "u", "tabId": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, codeFail, env.Code)

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/create", token, map[string]any{"roomNumber": "1", "roomUrl": "u", "tabId": -1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Msg, room.ErrInvalidTabID.Error())

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/create", token, map[string]any{"roomNumber": "1", "tabId": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Msg, "roomUrl")

	status, _ = call(t, srv, http.MethodPost, "/api/v1/room/create", token, map[string]any{"roomNumber": "1", "roomUrl": "u", "tabId": 1})
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, srv, http.MethodPost, "/api/v1/room/create", token, map[string]any{"roomNumber": "2", "roomUrl": "u", "tabId": 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, env.Msg, room.ErrAlreadyMember.Error())

	status, _ = call(t, srv, http.MethodPost, "/api/v1/room/leave", token, map[string]any{"roomNumber": "2"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/room/create", "", map[string]any{"roomNumber": "3", "roomUrl": "u", "tabId": 1})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAccountFlow(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "Alice@Example.com", "alice")

	status, env := call(t, srv, http.MethodPost, "/api/v1/sign-up", "", map[string]string{
		"account": "alice@example.com", "password": "hunter22", "nickname": "again",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, codeFail, env.Code)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/sign-in", "", map[string]string{
		"account": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = call(t, srv, http.MethodPost, "/api/v1/sign-in", "", map[string]string{
		"account": "alice@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, status, env.Msg)

	status, env = call(t, srv, http.MethodGet, "/api/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile profileResponse
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "alice@example.com", profile.Account)
	assert.Equal(t, "alice", profile.Nickname)
	assert.Nil(t, profile.Room)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/sign-out", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, srv, http.MethodGet, "/api/v1/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
