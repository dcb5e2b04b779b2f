package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"tenderdash/internal/assistant"
	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/infrastructure"
	"tenderdash/internal/middleware"
	api "tenderdash/pkg/contracts/api/v1"
)

// AssistantStore is the session store the assistant routes need.
type AssistantStore interface {
	Create() assistant.Session
	Get(id string) (assistant.Session, error)
	Ask(id, text string) (question, reply assistant.Message, err error)
}

// AskResponse carries the stored question and the answer.
type AskResponse struct {
	Question assistant.Message `json:"question"`
	Reply    assistant.Message `json:"reply"`
}

// AssistantHandler serves the help assistant sessions.
type AssistantHandler struct {
	store        AssistantStore
	validator    *middleware.Validator
	metrics      *infrastructure.PipelineMetrics
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAssistantHandler creates the assistant handler. metrics may be nil.
func NewAssistantHandler(store AssistantStore, validator *middleware.Validator, metrics *infrastructure.PipelineMetrics, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AssistantHandler {
	return &AssistantHandler{
		store:        store,
		validator:    validator,
		metrics:      metrics,
		logger:       logger.With(slog.String("handler", "assistant")),
		errorHandler: errorHandler,
	}
}

// Routes returns the assistant routes, relative to /api/assistant.
func (h *AssistantHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/sessions/{id}/messages", h.Ask)
	return r
}

// CreateSession handles POST /api/assistant/sessions
func (h *AssistantHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	w.Header().Set("Location", r.URL.Path+"/"+sess.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sess)
}

// GetSession handles GET /api/assistant/sessions/{id}
func (h *AssistantHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, assistantError(err))
		return
	}
	render.JSON(w, r, sess)
}

// Ask handles POST /api/assistant/sessions/{id}/messages
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	question, reply, err := h.store.Ask(chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.errorHandler.HandleError(w, r, assistantError(err))
		return
	}

	if h.metrics != nil {
		h.metrics.AssistantTurns.Add(r.Context(), 1,
			metric.WithAttributes(attribute.String("topic", reply.Topic)))
	}
	render.JSON(w, r, AskResponse{Question: question, Reply: reply})
}

func assistantError(err error) error {
	switch {
	case errors.Is(err, assistant.ErrSessionNotFound):
		return apierrors.ErrSessionNotFound
	case errors.Is(err, assistant.ErrEmptyMessage), errors.Is(err, assistant.ErrMessageTooLong):
		return apierrors.ErrValidation("text", err.Error())
	default:
		return err
	}
}
