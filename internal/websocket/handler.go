package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/infrastructure"
)

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	// AllowedOrigins may contain "*". Requests without an Origin header and
	// same-host origins are always accepted.
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	PingPeriod      time.Duration
	PongWait        time.Duration
	Logger          *slog.Logger
}

// Handler upgrades requests to websocket connections and attaches them to a hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     HandlerOptions
	logger   *slog.Logger
}

// NewHandler creates the upgrade handler for hub.
func NewHandler(hub *Hub, opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = infrastructure.GetLogger()
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = 1024
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = 1024
	}

	h := &Handler{
		hub:    hub,
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error:           h.upgradeError,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.opts.AllowedOrigins))
	return false
}

func (h *Handler) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	h.logger.ErrorContext(r.Context(), "WebSocket upgrade error",
		slog.Int("status", status),
		slog.String("reason", reason.Error()),
		slog.String("origin", r.Header.Get("Origin")))

	problem := apierrors.NewProblemDetails(status, apierrors.TypeWebSocketUpgrade,
		http.StatusText(status), reason.Error(), r.URL.Path)
	render.Render(w, r, problem)
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	client := NewClient(h.hub, NewConnectionWrapper(conn), ClientOptions{
		PingPeriod: h.opts.PingPeriod,
		PongWait:   h.opts.PongWait,
		TraceID:    traceID,
		Logger:     h.logger,
	})
	h.hub.Register(client)

	h.logger.InfoContext(r.Context(), "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
