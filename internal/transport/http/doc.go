// Package http implements the HTTP handlers of the opsunify web service.
// It is a thin layer between transport and business logic: handlers parse
// requests, call the service layer and format responses, nothing else.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//	5. Consistent patterns - standardized request/response handling
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Pipeline
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Handlers
//
// The surface is small:
//
//	UnifyHandler   - POST /api/v1/unify, multipart upload, runs the pipeline
//	ReportsHandler - GET /api/v1/reports/{id}/download, streams XLSX or CSV
//	RunsHandler    - GET /api/v1/runs, GET /api/v1/runs/{id}, POST .../cancel
//	QuotesHandler  - GET /api/v1/quotes, best-effort market quote lookup
//	HealthHandler  - healthz, readyz, livez, version, stats
//
// Each handler exposes Routes() returning a chi.Router, mounted by the
// application under its endpoint prefix. Constructors panic on missing
// required dependencies so wiring mistakes fail at startup, not under
// traffic.
//
// # Success Envelope
//
// JSON success responses use a uniform envelope:
//
//	{
//	    "status": "success",
//	    "data": { ... },
//	    "count": 3
//	}
//
// Download responses are raw file streams with a Content-Disposition
// header instead.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/schema-invalid",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "operations: missing required columns: Ativo",
//	    "instance": "/api/v1/unify",
//	    "trace_id": "..."
//	}
//
// Handlers map service sentinel errors to API errors explicitly; anything
// unmapped falls through the shared ErrorHandler which assigns a status
// from the error shape.
//
// # Observability
//
// Every handler starts an OpenTelemetry span named after the operation and
// logs through slog with the request id attached. Request-level metrics
// come from the router middleware, not from handlers.
package http
