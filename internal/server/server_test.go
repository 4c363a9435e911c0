package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/parley/internal/app"
	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/protocol"
	"github.com/nfrund/parley/internal/server"
	"github.com/nfrund/parley/internal/testutils"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

// setupIntegrationTest builds the full object graph the way main does and
// serves it from an httptest server.
func setupIntegrationTest(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	require.NoError(t, cfg.Validate())

	deps, err := app.Resolve(app.NewContainer(cfg))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, deps.Close(ctx))
	})

	s := server.New(deps)
	s.RegisterRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.StartServices(ctx))

	ts := httptest.NewServer(s.E)
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)
	return ts
}

func call(t *testing.T, method, url, body, token string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func signup(t *testing.T, baseURL, path, email, name string) (domain.User, string) {
	t.Helper()
	code, env := call(t, http.MethodPost, baseURL+path,
		`{"email":"`+email+`","password":"secret123","name":"`+name+`"}`, "")
	require.Equal(t, http.StatusCreated, code, env.Message)

	var data struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.User, data.Token
}

func dial(t *testing.T, url string, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"event": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f protocol.Frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func TestChatFlow_Integration(t *testing.T) {
	ts := setupIntegrationTest(t, testutils.ConfigForTests(t))
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	alice, aliceToken := signup(t, ts.URL, "/auth/signup", "alice@example.com", "Alice")
	_, bobToken := signup(t, ts.URL, "/api/auth/signup", "bob@example.com", "Bob")

	t.Run("profile through both auth prefixes", func(t *testing.T) {
		for _, prefix := range []string{"/auth", "/api/auth"} {
			code, env := call(t, http.MethodGet, ts.URL+prefix+"/profile", "", aliceToken)
			require.Equal(t, http.StatusOK, code)
			assert.Contains(t, string(env.Data), alice.ID)
		}
	})

	a := dial(t, wsURL, &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": {"Bearer " + aliceToken}}})
	b := dial(t, wsURL+"?token="+bobToken, nil)

	for _, conn := range []*websocket.Conn{a, b} {
		write(t, conn, protocol.EventJoinRoom, "lobby")
		require.Equal(t, protocol.EventJoinedRoom, read(t, conn).Event)
	}

	write(t, a, protocol.EventSendMessage, map[string]string{"roomId": "lobby", "body": "hello"})

	for _, conn := range []*websocket.Conn{a, b} {
		f := read(t, conn)
		require.Equal(t, protocol.EventNewMessage, f.Event, string(f.Data))
		var m domain.ResolvedMessage
		require.NoError(t, json.Unmarshal(f.Data, &m))
		assert.Equal(t, "hello", m.Body)
		assert.Equal(t, "lobby", m.RoomID)
		assert.Equal(t, alice.ID, m.Sender.ID)
		assert.Equal(t, "Alice", m.Sender.Name)
	}

	t.Run("history over HTTP sees the message", func(t *testing.T) {
		code, env := call(t, http.MethodGet, ts.URL+"/rooms/lobby/messages", "", bobToken)
		require.Equal(t, http.StatusOK, code)
		var page []domain.ResolvedMessage
		require.NoError(t, json.Unmarshal(env.Data, &page))
		require.Len(t, page, 1)
		assert.Equal(t, "hello", page[0].Body)
	})

	t.Run("handshake without a token is rejected", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, res, err := websocket.Dial(ctx, wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

func TestHealth_Integration(t *testing.T) {
	ts := setupIntegrationTest(t, testutils.ConfigForTests(t))

	code, env := call(t, http.MethodGet, ts.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Server is running", env.Message)

	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestSigninRateLimit_Integration(t *testing.T) {
	cfg := testutils.ConfigForTests(t)
	cfg.RateLimitPerMinute = 2
	ts := setupIntegrationTest(t, cfg)

	body := `{"email":"nobody@example.com","password":"secret123"}`
	for i := 0; i < 2; i++ {
		code, _ := call(t, http.MethodPost, ts.URL+"/auth/signin", body, "")
		assert.Equal(t, http.StatusUnauthorized, code)
	}

	code, env := call(t, http.MethodPost, ts.URL+"/auth/signin", body, "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests. Please try again later.", env.Message)
}
