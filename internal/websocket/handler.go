// Package websocket serves authenticated chat sessions over websocket
// connections.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/chat"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/rooms"
)

// Options configures a Handler.
type Options struct {
	// OriginPatterns lists extra hosts allowed to open sessions from a
	// browser. Same origin requests are always allowed.
	OriginPatterns []string
	// SendBuffer is the number of outbound frames queued per session.
	SendBuffer int
}

// Handler upgrades authenticated requests into chat sessions.
type Handler struct {
	authenticator *auth.Authenticator
	registry      *rooms.Registry
	pipeline      *chat.Pipeline
	history       *chat.History
	validate      *validator.Validate
	opts          Options

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHandler creates a Handler. Close must be called to end live sessions.
func NewHandler(authenticator *auth.Authenticator, registry *rooms.Registry, pipeline *chat.Pipeline, history *chat.History, validate *validator.Validate, opts Options) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		authenticator: authenticator,
		registry:      registry,
		pipeline:      pipeline,
		history:       history,
		validate:      validate,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Serve is the echo handler for the session endpoint.
//
// The request is authenticated before the upgrade: a missing, malformed or
// invalid credential is answered with 401, an unknown user with 404 and a
// store failure with 500, and no session is created. Browsers, which cannot
// set headers on a websocket request, may pass the token as ?token=.
func (h *Handler) Serve(c echo.Context) error {
	req := c.Request()
	user, err := h.authenticate(req)
	if err != nil {
		return handshakeError(err)
	}

	conn, err := websocket.Accept(c.Response(), req, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the response.
		slog.WarnContext(req.Context(), "Failed to upgrade connection to WebSocket", "user_id", user.ID, "error", err)
		return nil
	}

	if !h.track() {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return nil
	}
	defer h.wg.Done()
	h.run(conn, user)
	return nil
}

// track registers a live session unless the handler is closed.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Handler) authenticate(req *http.Request) (*domain.User, error) {
	ctx := req.Context()
	if header := req.Header.Get(echo.HeaderAuthorization); header != "" {
		return h.authenticator.AuthenticateHeader(ctx, header)
	}
	if token := req.URL.Query().Get("token"); token != "" {
		return h.authenticator.Authenticate(ctx, token)
	}
	return nil, domain.ErrUnauthenticated
}

func handshakeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized to access this route")
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	default:
		slog.Error("Session authentication failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

// run owns a session from upgrade to disconnect.
func (h *Handler) run(conn *websocket.Conn, user *domain.User) {
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	s := &Session{
		id:     uuid.NewString(),
		user:   user,
		conn:   conn,
		send:   make(chan []byte, h.opts.SendBuffer),
		cancel: cancel,
	}
	s.logger = slog.Default().With("session_id", s.id, "user_id", user.ID)
	s.logger.Info("Session connected")

	done := make(chan struct{})
	go s.writePump(ctx, done)

	s.readPump(ctx, func(ctx context.Context, raw []byte) {
		h.dispatch(ctx, s, raw)
	})

	// Leave every room before closing the queue so no broadcast targets a
	// closed session.
	h.registry.LeaveAll(s)
	s.close()
	<-done
	conn.CloseNow()

	s.logger.Info("Session disconnected")
}

// Close ends every live session and waits for them to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}
