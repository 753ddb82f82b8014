package config

import "time"

// Application constants - all hardcoded values for the OpsUnify system
const (
	// Application Info
	AppName    = "OpsUnify"
	AppVersion = "1.0.0"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultUploadsDir = "data/uploads"
	DefaultReportsDir = "data/reports"

	// Pipeline Settings
	DefaultCSVDelimiter      = ";"
	DefaultMaxUploadSize     = 25 * 1024 * 1024 // 25MB per uploaded table
	DefaultReportTTL         = 24 * time.Hour
	DefaultMaxStoredRuns     = 100
	DefaultMaxConcurrentRuns = 4
	DefaultRunTimeout        = 10 * time.Minute

	// Result Export
	ResultSheetName   = "Resultado"
	ResultFileName    = "resultado_unificado.xlsx"
	ResultCSVFileName = "resultado_unificado.csv"

	// Quote Lookup Settings
	QuoteCacheDuration    = 30 * time.Minute
	DefaultQuoteEndpoint  = "https://query1.finance.yahoo.com/v7/finance/quote"
	DefaultQuoteRPS       = 5
	DefaultQuoteBurst     = 5
	DefaultLocalSuffix    = ".SA"
	DefaultQuoteBatchSize = 20

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints (internal)
	APIBasePath     = "/api/v1"
	UnifyEndpoint   = "/api/v1/unify"
	ReportsEndpoint = "/api/v1/reports"
	QuotesEndpoint  = "/api/v1/quotes"
	RunsEndpoint    = "/api/v1/runs"
	HealthEndpoint  = "/api/v1/healthz"
	ReadyEndpoint   = "/api/v1/readyz"
	MetricsEndpoint = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
)

// Accepted upload extensions, lowercase with dot.
var AllowedUploadExtensions = []string{".csv", ".xlsx", ".xlsm"}
