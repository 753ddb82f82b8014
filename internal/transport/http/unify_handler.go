package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"opsunify/internal/config"
	"opsunify/internal/dataprocessing"
	apierrors "opsunify/internal/errors"
	"opsunify/internal/middleware"
	"opsunify/internal/operations"
	"opsunify/internal/services"
	"opsunify/internal/validation"
	"opsunify/pkg/contracts/domain"
)

// formOverhead is headroom for multipart boundaries and text fields on top
// of the per-file size limit.
const formOverhead = 1 << 20

// UnifyHandler accepts the uploaded input tables and runs the unification
// pipeline. The run completes within the request; the response carries the
// run summary and the download URL for the stored result.
type UnifyHandler struct {
	service       *services.UnifyService
	validator     *validation.UploadValidator
	errorHandler  *apierrors.ErrorHandler
	logger        *slog.Logger
	maxUploadSize int64
}

// NewUnifyHandler creates a new unify handler.
func NewUnifyHandler(service *services.UnifyService, cfg config.PipelineConfig, logger *slog.Logger) *UnifyHandler {
	if service == nil {
		panic("unify handler requires a unify service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UnifyHandler{
		service:       service,
		validator:     validation.NewUploadValidator(cfg.MaxUploadSize, logger),
		errorHandler:  apierrors.NewErrorHandler(logger, false),
		logger:        logger.With(slog.String("handler", "unify")),
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// Routes returns a chi router for the unify endpoint
func (h *UnifyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator("multipart/form-data"))
	r.Post("/", middleware.PipelineTraceHandler("unify", h.Unify))
	return r
}

// Unify handles POST /api/v1/unify. Multipart form with file parts
// "advisors" (required), "operations" (required) and "dashboard" (optional),
// plus an optional "variant" value in the form or query string.
func (h *UnifyHandler) Unify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("unify-handler")

	ctx, span := tracer.Start(ctx, "unify_handler.unify",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.UnifyEndpoint),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	h.logger.InfoContext(ctx, "unify request",
		slog.String("request_id", reqID),
		slog.String("content_type", r.Header.Get("Content-Type")))

	// Three files plus form fields at most.
	r.Body = http.MaxBytesReader(w, r.Body, 3*h.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, apierrors.UploadTooLargeError(maxBytesErr.Limit, h.maxUploadSize))
			return
		}
		h.logger.WarnContext(ctx, "failed to parse multipart form",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	variant, err := domain.ParseVariant(r.FormValue("variant"))
	if err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("variant", err.Error()))
		return
	}
	span.SetAttributes(attribute.String("unify.variant", string(variant)))

	advisors, advisorsClose, err := h.formInput(r, "advisors", true)
	if err != nil {
		span.RecordError(err)
		h.respondUploadError(w, r, "advisors", err)
		return
	}
	defer advisorsClose()

	operationsInput, operationsClose, err := h.formInput(r, "operations", true)
	if err != nil {
		span.RecordError(err)
		h.respondUploadError(w, r, "operations", err)
		return
	}
	defer operationsClose()

	dashboard, dashboardClose, err := h.formInput(r, "dashboard", false)
	if err != nil {
		span.RecordError(err)
		h.respondUploadError(w, r, "dashboard", err)
		return
	}
	defer dashboardClose()

	req := services.UnifyRequest{
		Variant:    variant,
		Advisors:   *advisors,
		Operations: *operationsInput,
		Dashboard:  dashboard,
	}

	summary, err := h.service.Unify(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unify run failed")
		h.logger.ErrorContext(ctx, "unify run failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		h.respondRunError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("run.id", summary.ID),
		attribute.Int("run.rows_out", summary.RowsOut),
	)
	h.logger.InfoContext(ctx, "unify run completed",
		slog.String("run_id", summary.ID),
		slog.String("variant", string(summary.Variant)),
		slog.Int("legs_in", summary.LegsIn),
		slog.Int("rows_out", summary.RowsOut),
		slog.Int64("duration_ms", summary.DurationMS),
		slog.String("request_id", reqID))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// formInput pulls one uploaded file out of the parsed form and validates
// it. The returned close function is never nil.
func (h *UnifyHandler) formInput(r *http.Request, field string, required bool) (*operations.InputSource, func(), error) {
	noop := func() {}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if !required {
				return nil, noop, nil
			}
			return nil, noop, apierrors.ErrValidation(field, "file is required")
		}
		return nil, noop, err
	}

	if err := h.validator.ValidateUpload(header); err != nil {
		file.Close()
		return nil, noop, h.uploadAPIError(header, err)
	}

	source := &operations.InputSource{
		Filename: filepath.Base(header.Filename),
		Reader:   file,
	}
	return source, func() { file.Close() }, nil
}

// uploadAPIError translates a validation failure for a known file header
// into the matching API error.
func (h *UnifyHandler) uploadAPIError(header *multipart.FileHeader, err error) error {
	switch {
	case errors.Is(err, validation.ErrUnsupportedFileType):
		ext := strings.ToLower(filepath.Ext(header.Filename))
		return apierrors.UnsupportedFileTypeError(ext)
	case errors.Is(err, validation.ErrFileTooLarge):
		return apierrors.UploadTooLargeError(header.Size, h.maxUploadSize)
	default:
		return apierrors.InvalidRequestWithError(err)
	}
}

// respondUploadError logs and renders an upload failure. formInput already
// produced API errors; anything else is a plain invalid request.
func (h *UnifyHandler) respondUploadError(w http.ResponseWriter, r *http.Request, field string, err error) {
	h.logger.WarnContext(r.Context(), "rejected upload",
		slog.String("field", field),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	h.errorHandler.HandleError(w, r, apierrors.ErrValidation(field, err.Error()))
}

// respondRunError maps pipeline failures onto their HTTP statuses.
func (h *UnifyHandler) respondRunError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *dataprocessing.SchemaError

	switch {
	case errors.Is(err, services.ErrTooManyRuns):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusTooManyRequests,
			"RATE_LIMIT_EXCEEDED",
			"Too many concurrent runs, retry shortly"))
	case errors.As(err, &schemaErr):
		h.errorHandler.HandleError(w, r, apierrors.SchemaInvalidError(schemaErr))
	case operations.GetErrorType(err) == operations.ErrorTypeValidation:
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
	case operations.GetErrorType(err) == operations.ErrorTypeCancellation:
		// Passes through raw so the wrapped context error maps to a
		// timeout status.
		h.errorHandler.HandleError(w, r, err)
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrRunExecution(err))
	}
}
