// Package http implements the HTTP handlers of the tender dashboard API.
//
// Handlers stay thin: they decode and validate the request, call a service and
// render the result with go-chi/render. Every failure goes through
// errors.ErrorHandler and is answered as an RFC 7807 problem:
//
//	{
//	    "type": "/errors/dataset/unavailable",
//	    "title": "Service Unavailable",
//	    "status": 503,
//	    "detail": "...",
//	    "instance": "/api/stats"
//	}
//
// Routes, mounted under /api by the application:
//
//	GET  /health, /health/ready, /health/live, /version
//	GET  /stats                      snapshot, ETag is the dataset fingerprint
//	POST /stats/reload
//	GET  /cities/{city}/tenders
//	GET  /developers/{name}/tenders
//	GET  /filters
//	POST /filters                    validated and echoed, not applied
//	GET  /export.xlsx
//	POST /assistant/sessions
//	GET  /assistant/sessions/{id}
//	POST /assistant/sessions/{id}/messages
//	POST /client-logs
//
// Handlers are tested with httptest against testify mocks of the service
// interfaces.
package http
