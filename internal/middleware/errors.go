package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/infrastructure"
)

// writeProblem renders an RFC 7807 body for failures raised by middleware
// before a handler runs.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	_ = render.Render(w, r, problem)
}
