package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"opsunify/internal/config"
	apierrors "opsunify/internal/errors"
	"opsunify/internal/exporter"
	"opsunify/internal/middleware"
	"opsunify/internal/services"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// ReportsHandler streams stored run results as downloadable files. Results
// live in the in-memory report store until their TTL expires, so a download
// after expiry is a 404, not an error.
type ReportsHandler struct {
	service      *services.UnifyService
	exporter     *exporter.ResultExporter
	delimiter    rune
	errorHandler *apierrors.ErrorHandler
	queryParams  *middleware.QueryParamValidator
	logger       *slog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(service *services.UnifyService, paths *config.Paths, cfg config.PipelineConfig, logger *slog.Logger) *ReportsHandler {
	if service == nil {
		panic("reports handler requires a unify service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return &ReportsHandler{
		service:      service,
		exporter:     exporter.NewResultExporter(paths),
		delimiter:    cfg.DelimiterRune(),
		errorHandler: errorHandler,
		queryParams:  middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "reports")),
	}
}

// Routes returns a chi router for the reports endpoints
func (h *ReportsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}/download", h.Download)
	return r
}

// Download handles GET /api/v1/reports/{id}/download?format=xlsx|csv.
// Default format is xlsx.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("reports-handler")

	ctx, span := tracer.Start(ctx, "reports_handler.download",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.ReportsEndpoint+"/{id}/download"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	format, ok := h.queryParams.ValidateEnum(w, r, "format", []string{"xlsx", "csv"}, "xlsx")
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("report.format", format))

	result, err := h.service.Report(runID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, services.ErrReportNotFound) {
			h.logger.InfoContext(ctx, "report not found",
				slog.String("run_id", runID),
				slog.String("request_id", reqID))
			h.errorHandler.HandleError(w, r, apierrors.ReportNotFoundError(runID))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("resultado_unificado_%s.%s", runID, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// The first byte written commits the status code, so export errors past
	// this point can only be logged.
	switch format {
	case "csv":
		w.Header().Set("Content-Type", contentTypeCSV)
		err = h.exporter.WriteCSV(w, result.Table, h.delimiter)
	default:
		w.Header().Set("Content-Type", contentTypeXLSX)
		err = h.exporter.WriteXLSX(w, result.Table)
	}
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "failed to stream report",
			slog.String("run_id", runID),
			slog.String("format", format),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		return
	}

	h.logger.InfoContext(ctx, "report downloaded",
		slog.String("run_id", runID),
		slog.String("format", format),
		slog.Int("rows", result.Table.RowCount()),
		slog.String("request_id", reqID))
}
