package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"opsunify/internal/config"
	apierrors "opsunify/internal/errors"
	"opsunify/internal/middleware"
	"opsunify/internal/operations"
	"opsunify/internal/services"
)

// validRunStatuses are the filter values accepted by the run listing.
// Snapshots carry their status as a plain string.
var validRunStatuses = map[string]string{
	"pending":   string(operations.RunStatusPending),
	"running":   string(operations.RunStatusRunning),
	"completed": string(operations.RunStatusCompleted),
	"failed":    string(operations.RunStatusFailed),
	"cancelled": string(operations.RunStatusCancelled),
}

// RunsHandler exposes the status of pipeline runs: list, inspect and
// cancel. Snapshots come from the status broadcaster, so finished runs stay
// visible until their retention window passes.
type RunsHandler struct {
	service      *services.UnifyService
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(service *services.UnifyService, logger *slog.Logger) *RunsHandler {
	if service == nil {
		panic("runs handler requires a unify service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		service:      service,
		errorHandler: apierrors.NewErrorHandler(logger, false),
		logger:       logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns a chi router for the runs endpoints
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)
	r.Post("/{id}/cancel", h.CancelRun)
	return r
}

// ListRuns handles GET /api/v1/runs with an optional ?status= filter.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	ctx, span := tracer.Start(ctx, "runs_handler.list_runs",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.RunsEndpoint),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		if _, ok := validRunStatuses[statusFilter]; !ok {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("status",
				fmt.Sprintf("unknown status %q", statusFilter)))
			return
		}
	}

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", statusFilter),
		slog.String("request_id", reqID))

	snapshots := h.service.ListRuns()
	if statusFilter != "" {
		want := validRunStatuses[statusFilter]
		filtered := snapshots[:0]
		for _, snapshot := range snapshots {
			if snapshot.Status == want {
				filtered = append(filtered, snapshot)
			}
		}
		snapshots = filtered
	}

	span.SetAttributes(attribute.Int("runs.count", len(snapshots)))
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snapshots,
		"count":  len(snapshots),
	})
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	ctx, span := tracer.Start(ctx, "runs_handler.get_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.RunsEndpoint+"/{id}"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	snapshot, err := h.service.GetRun(runID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, services.ErrRunNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.RunNotFoundError(runID))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("run.status", snapshot.Status))
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snapshot,
	})
}

// CancelRun handles POST /api/v1/runs/{id}/cancel.
func (h *RunsHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("runs-handler")

	ctx, span := tracer.Start(ctx, "runs_handler.cancel_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.RunsEndpoint+"/{id}/cancel"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	h.logger.InfoContext(ctx, "run cancellation request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	if err := h.service.CancelRun(runID); err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, services.ErrRunNotFound):
			h.errorHandler.HandleError(w, r, apierrors.RunNotFoundError(runID))
		case errors.Is(err, services.ErrRunNotRunning):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusConflict,
				"CONFLICT",
				"Run has already finished and cannot be cancelled"))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]string{
			"run_id": runID,
			"state":  "cancelling",
		},
	})
}
