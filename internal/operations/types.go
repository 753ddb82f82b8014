package operations

import (
	"io"
	"time"

	"opsunify/internal/dataprocessing"
	"opsunify/pkg/contracts/domain"
)

// Pipeline step identifiers
const (
	StepIDParse     = "parse"
	StepIDValidate  = "validate"
	StepIDAggregate = "aggregate"
	StepIDJoin      = "join"
	StepIDCalculate = "calculate"
	StepIDFormat    = "format"
	StepIDExport    = "export"
)

// Pipeline step names
const (
	StepNameParse     = "Input Parsing"
	StepNameValidate  = "Schema Validation"
	StepNameAggregate = "Leg Aggregation"
	StepNameJoin      = "Reference Join"
	StepNameCalculate = "Metric Calculation"
	StepNameFormat    = "Result Formatting"
	StepNameExport    = "Result Export"
)

// Context keys for artifacts steps hand to each other
const (
	ContextKeyInputs  = "inputs"  // RunInputs from the request
	ContextKeyTables  = "tables"  // dataprocessing.Inputs, parsed tables
	ContextKeyVariant = "variant" // resolved domain.Variant
	ContextKeyUnified = "unified" // []domain.UnifiedOperation
	ContextKeyRows    = "rows"    // []domain.EnrichedOperation
	ContextKeyResult  = "result"  // *domain.ResultTable
	ContextKeyStats   = "stats"   // *dataprocessing.Stats
)

// Config keys for run parameters
const (
	ConfigKeyVariant = "variant"
)

// Default timeouts. The steps are in-memory transforms of uploaded tables;
// parsing and export touch spreadsheet encoding and get more headroom.
const (
	DefaultStepTimeout   = 2 * time.Minute
	DefaultParseTimeout  = 5 * time.Minute
	DefaultExportTimeout = 5 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// InputSource is one submitted input table: the original filename, which
// selects the CSV or XLSX reader, plus its content.
type InputSource struct {
	Filename string
	Reader   io.Reader
}

// RunInputs bundles the submitted tables of one run. Dashboard is optional;
// the dashboard-based variants require it.
type RunInputs struct {
	Advisors   InputSource
	Operations InputSource
	Dashboard  *InputSource
}

// RunRequest represents a request to execute a pipeline run
type RunRequest struct {
	// ID identifies the run; a UUID is assigned when empty
	ID string `json:"id"`

	// Variant selects the output column set; empty resolves from the
	// supplied tables
	Variant domain.Variant `json:"variant"`

	// Inputs are the submitted tables
	Inputs RunInputs `json:"-"`
}

// RunResponse represents the outcome of a pipeline run
type RunResponse struct {
	ID       string                `json:"id"`
	Status   RunStatus             `json:"status"`
	Variant  domain.Variant        `json:"variant"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Stats    dataprocessing.Stats  `json:"stats"`
	Result   *domain.ResultTable   `json:"-"`
	Error    string                `json:"error,omitempty"`
}

// RunResult is the payload the export step hands to the run's result sink.
type RunResult struct {
	RunID   string
	Variant domain.Variant
	Table   *domain.ResultTable
	Stats   dataprocessing.Stats
}
