package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"opsunify/internal/config"
	apierrors "opsunify/internal/errors"
	"opsunify/internal/middleware"
	"opsunify/internal/services"
)

// QuotesHandler serves best-effort market quote lookups. Provider failures
// surface as null prices in the payload, never as request errors.
type QuotesHandler struct {
	service      *services.QuoteService
	errorHandler *apierrors.ErrorHandler
	requests     *middleware.ValidationMiddleware
	logger       *slog.Logger
}

// quotesQuery is the validated shape of the symbols parameter.
type quotesQuery struct {
	Symbols []string `json:"symbols" validate:"dive,symbol"`
}

// NewQuotesHandler creates a new quotes handler.
func NewQuotesHandler(service *services.QuoteService, logger *slog.Logger) *QuotesHandler {
	if service == nil {
		panic("quotes handler requires a quote service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return &QuotesHandler{
		service:      service,
		errorHandler: errorHandler,
		requests:     middleware.NewValidationMiddleware(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "quotes")),
	}
}

// Routes returns a chi router for the quotes endpoint
func (h *QuotesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetQuotes)
	return r
}

// GetQuotes handles GET /api/v1/quotes?symbols=A,B.
func (h *QuotesHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("quotes-handler")

	ctx, span := tracer.Start(ctx, "quotes_handler.get_quotes",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", config.QuotesEndpoint),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	raw := r.URL.Query().Get("symbols")
	symbols := splitSymbols(raw)
	span.SetAttributes(attribute.Int("quotes.requested", len(symbols)))

	if err := h.requests.ValidateStruct(quotesQuery{Symbols: symbols}); err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(ctx, "quote lookup request",
		slog.Int("symbols", len(symbols)),
		slog.String("request_id", reqID))

	quotes, err := h.service.LookupBatch(ctx, symbols)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "quote lookup rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		switch {
		case errors.Is(err, services.ErrQuotesDisabled):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusServiceUnavailable,
				"MARKET_DATA_UNAVAILABLE",
				"Market data lookups are disabled"))
		case errors.Is(err, services.ErrNoSymbols):
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbols",
				"at least one symbol is required"))
		case errors.Is(err, services.ErrBatchTooLarge):
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbols", err.Error()))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   quotes,
		"count":  len(quotes),
	})
}

// splitSymbols parses the comma-separated symbols parameter, dropping empty
// entries. Symbols are upper-cased; the provider convention is uppercase and
// it makes deduplication in the batch lookup effective.
func splitSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			symbols = append(symbols, strings.ToUpper(trimmed))
		}
	}
	return symbols
}
