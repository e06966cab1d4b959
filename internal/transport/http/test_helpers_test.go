package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/auth"
	"github.com/lawfx/ScrumPokerServer/internal/config"
	"github.com/lawfx/ScrumPokerServer/internal/core"
	"github.com/lawfx/ScrumPokerServer/internal/proto"
	"github.com/lawfx/ScrumPokerServer/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	auth  *auth.Service
	lobby *core.Lobby
}

// newTestEnv spins up the full transport stack on an in-memory store. A
// positive heartbeat starts the session sweep; zero leaves it off so tests
// control connection lifetimes themselves.
func newTestEnv(t *testing.T, heartbeat time.Duration) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		TTL:      time.Hour,
		GuestTTL: time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	lobby := core.NewLobby(&logger, core.Options{GracePeriod: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go lobby.Run(ctx)

	sessions := NewSessionServer(lobby, authService, heartbeat, &logger)
	if heartbeat > 0 {
		go sessions.Run(ctx)
	}

	server := NewServer(lobby, sessions, authService, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, auth: authService, lobby: lobby}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// guestToken issues a token without touching the REST surface.
func (e *testEnv) guestToken(t *testing.T, username string) string {
	t.Helper()
	token, err := e.auth.GuestLogin(context.Background(), username)
	if err != nil {
		t.Fatalf("guest token for %s: %v", username, err)
	}
	return token
}

// dialWithToken opens a WebSocket connection, authenticates it with the given
// token and drains the initial lobby status.
func (e *testEnv) dialWithToken(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	sendToken(t, ctx, conn, token)
	awaitLobbyStatus(t, ctx, conn)
	return conn
}

// dialAuthed is dialWithToken with a fresh guest identity.
func (e *testEnv) dialAuthed(t *testing.T, ctx context.Context, username string) *websocket.Conn {
	t.Helper()
	return e.dialWithToken(t, ctx, e.guestToken(t, username))
}

func sendToken(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, map[string]string{"token": token}); err != nil {
		t.Fatalf("send token: %v", err)
	}
}

// wsEnvelope decodes either server push without caring which arrived.
type wsEnvelope struct {
	LobbyStatus *proto.LobbyStatusContent `json:"lobby_status"`
	RoomStatus  *proto.RoomStatusContent  `json:"room_status"`
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	var env wsEnvelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read server message: %v", err)
	}
	return env
}

func awaitLobbyStatus(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.LobbyStatusContent {
	t.Helper()
	for {
		env := readEnvelope(t, ctx, conn)
		if env.LobbyStatus != nil {
			return *env.LobbyStatus
		}
	}
}

func awaitRoomStatus(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.RoomStatusContent {
	t.Helper()
	for {
		env := readEnvelope(t, ctx, conn)
		if env.RoomStatus != nil {
			return *env.RoomStatus
		}
	}
}

// expectClose reads until the connection errors out and returns the close code.
func expectClose(t *testing.T, ctx context.Context, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()
	for {
		var discard json.RawMessage
		if err := wsjson.Read(ctx, conn, &discard); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *stdhttp.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
