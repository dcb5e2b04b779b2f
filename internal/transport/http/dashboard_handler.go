package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tenderdash/internal/config"
	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/exporter"
	"tenderdash/internal/middleware"
	"tenderdash/pkg/contracts/domain"
)

// DashboardHandler serves the snapshot, drill-downs, filters and export.
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error handling
func NewDashboardHandler(service DashboardServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes, relative to /api.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the dashboard routes to an existing /api router.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetStats)
	r.Post("/stats/reload", h.Reload)

	r.With(h.pathParam("city")).Get("/cities/{city}/tenders", h.GetCityTenders)
	r.With(h.pathParam("name")).Get("/developers/{name}/tenders", h.GetDeveloperTenders)

	r.Get("/filters", h.GetFilterOptions)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/filters", h.ApplyFilters)

	r.Get("/export.xlsx", h.Export)
}

// pathParam normalizes a chi URL parameter in place and rejects empty values.
// chi matches on RawPath when it is set, so only then is the value still escaped.
func (h *DashboardHandler) pathParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := chi.URLParam(r, name)
			if r.URL.RawPath != "" {
				if unescaped, err := url.PathUnescape(value); err == nil {
					value = unescaped
				}
			}
			value = strings.TrimSpace(value)
			if value == "" {
				h.errorHandler.HandleError(w, r, apierrors.ErrValidation(name, name+" is required"))
				return
			}
			rctx := chi.RouteContext(r.Context())
			for i, key := range rctx.URLParams.Keys {
				if key == name {
					rctx.URLParams.Values[i] = value
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetStats handles GET /api/stats. The snapshot fingerprint is the ETag.
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Stats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	etag := ds.ETag()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", ds.LoadedAt.UTC().Format(http.TimeFormat))

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	render.JSON(w, r, ds.Stats)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// Reload handles POST /api/stats/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Load(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset reloaded on request",
		slog.String("fingerprint", result.Fingerprint),
		slog.Bool("changed", result.Changed))
	render.JSON(w, r, result)
}

// GetCityTenders handles GET /api/cities/{city}/tenders
func (h *DashboardHandler) GetCityTenders(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CityTenders(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// GetDeveloperTenders handles GET /api/developers/{name}/tenders
func (h *DashboardHandler) GetDeveloperTenders(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.DeveloperTenders(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// GetFilterOptions handles GET /api/filters
func (h *DashboardHandler) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.FilterOptions(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, opts)
}

// ApplyFilters handles POST /api/filters. The selection is validated and
// echoed; the snapshot is returned unfiltered.
func (h *DashboardHandler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	var f domain.FilterState
	if err := h.validator.DecodeJSON(w, r, &f); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.ApplyFilters(r.Context(), f)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Export handles GET /api/export.xlsx. The workbook is built in memory so a
// failure can still be reported as a problem response.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	name := strings.TrimSuffix(config.DefaultExportName, ".xlsx") + "-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", exporter.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted", slog.String("error", err.Error()))
	}
}
