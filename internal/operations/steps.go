package operations

import (
	"context"
	"fmt"
	"log/slog"

	"opsunify/internal/dataprocessing"
	"opsunify/internal/infrastructure"
	"opsunify/pkg/contracts/domain"
)

// logger returns the configured logger or the default one.
func (o StepOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// reportProgress forwards step progress to the status broadcaster when
// progress reporting is enabled.
func (o StepOptions) reportProgress(runID, stepID string, progress int, message string) {
	if !o.EnableProgress || o.StatusBroadcaster == nil {
		return
	}
	o.StatusBroadcaster.UpdateStepProgress(runID, stepID, progress, message)
}

// reportMetadata forwards step progress with metadata to the status
// broadcaster when progress reporting is enabled.
func (o StepOptions) reportMetadata(runID, stepID string, progress int, message string, metadata map[string]interface{}) {
	if !o.EnableProgress || o.StatusBroadcaster == nil {
		return
	}
	o.StatusBroadcaster.UpdateStepWithMetadata(runID, stepID, progress, message, metadata)
}

// Artifact accessors. Steps communicate through the run context under the
// ContextKey* keys; a missing or mistyped artifact means a step ran out of
// order and is fatal.

func inputsFromState(state *RunState) (RunInputs, error) {
	v, ok := state.GetContext(ContextKeyInputs)
	if !ok {
		return RunInputs{}, NewFatalError("run inputs missing from state", nil)
	}
	inputs, ok := v.(RunInputs)
	if !ok {
		return RunInputs{}, NewFatalError("run inputs have unexpected type", nil)
	}
	return inputs, nil
}

func tablesFromState(state *RunState) (dataprocessing.Inputs, error) {
	v, ok := state.GetContext(ContextKeyTables)
	if !ok {
		return dataprocessing.Inputs{}, NewFatalError("parsed tables missing from state", nil)
	}
	tables, ok := v.(dataprocessing.Inputs)
	if !ok {
		return dataprocessing.Inputs{}, NewFatalError("parsed tables have unexpected type", nil)
	}
	return tables, nil
}

func unifiedFromState(state *RunState) ([]domain.UnifiedOperation, error) {
	v, ok := state.GetContext(ContextKeyUnified)
	if !ok {
		return nil, NewFatalError("unified operations missing from state", nil)
	}
	unified, ok := v.([]domain.UnifiedOperation)
	if !ok {
		return nil, NewFatalError("unified operations have unexpected type", nil)
	}
	return unified, nil
}

func rowsFromState(state *RunState) ([]domain.EnrichedOperation, error) {
	v, ok := state.GetContext(ContextKeyRows)
	if !ok {
		return nil, NewFatalError("enriched rows missing from state", nil)
	}
	rows, ok := v.([]domain.EnrichedOperation)
	if !ok {
		return nil, NewFatalError("enriched rows have unexpected type", nil)
	}
	return rows, nil
}

func resultFromState(state *RunState) (*domain.ResultTable, error) {
	v, ok := state.GetContext(ContextKeyResult)
	if !ok {
		return nil, NewFatalError("result table missing from state", nil)
	}
	table, ok := v.(*domain.ResultTable)
	if !ok {
		return nil, NewFatalError("result table has unexpected type", nil)
	}
	return table, nil
}

// statsFromState returns the run's stats accumulator, seeding one when the
// manager did not.
func statsFromState(state *RunState) *dataprocessing.Stats {
	if v, ok := state.GetContext(ContextKeyStats); ok {
		if stats, ok := v.(*dataprocessing.Stats); ok {
			return stats
		}
	}
	stats := &dataprocessing.Stats{}
	state.SetContext(ContextKeyStats, stats)
	return stats
}

// requestedVariant returns the variant the run was requested with, which may
// be empty.
func requestedVariant(state *RunState) domain.Variant {
	if v, ok := state.GetConfig(ConfigKeyVariant); ok {
		if s, ok := v.(string); ok {
			return domain.Variant(s)
		}
	}
	return ""
}

// variantFromState returns the effective variant of the run: the one the
// parse step resolved, falling back to the requested one, then to base.
func variantFromState(state *RunState) domain.Variant {
	if v, ok := state.GetContext(ContextKeyVariant); ok {
		if variant, ok := v.(domain.Variant); ok && variant != "" {
			return variant
		}
	}
	if variant := requestedVariant(state); variant != "" {
		return variant
	}
	return domain.VariantBase
}

// ParseStep reads the submitted files into header-mapped tables and resolves
// the run's effective variant.
type ParseStep struct {
	BaseStep
	opts StepOptions
}

// NewParseStep creates the input parsing step
func NewParseStep(opts StepOptions) *ParseStep {
	return &ParseStep{
		BaseStep: NewBaseStep(StepIDParse, StepNameParse, nil),
		opts:     opts,
	}
}

// Execute parses every submitted table
func (s *ParseStep) Execute(ctx context.Context, state *RunState) error {
	inputs, err := inputsFromState(state)
	if err != nil {
		return err
	}

	total := 2
	if inputs.Dashboard != nil {
		total = 3
	}
	tracker := NewProgressTracker(StepIDParse, total)

	tables := dataprocessing.Inputs{Variant: requestedVariant(state)}
	readOpts := dataprocessing.ReadOptions{Delimiter: s.opts.CSVDelimiter}

	advisors, err := dataprocessing.ReadTable("advisors", inputs.Advisors.Filename, inputs.Advisors.Reader, readOpts)
	if err != nil {
		return WrapError(err, StepIDParse, "failed to parse advisors input")
	}
	tables.Advisors = advisors
	tracker.Increment("Parsed advisors table")
	s.report(state.ID, tracker)

	operations, err := dataprocessing.ReadTable("operations", inputs.Operations.Filename, inputs.Operations.Reader, readOpts)
	if err != nil {
		return WrapError(err, StepIDParse, "failed to parse operations input")
	}
	tables.Operations = operations
	tracker.Increment("Parsed operations table")
	s.report(state.ID, tracker)

	if inputs.Dashboard != nil {
		dashboard, err := dataprocessing.ReadTable("dashboard", inputs.Dashboard.Filename, inputs.Dashboard.Reader, readOpts)
		if err != nil {
			return WrapError(err, StepIDParse, "failed to parse dashboard input")
		}
		tables.Dashboard = dashboard
		tracker.Increment("Parsed dashboard table")
		s.report(state.ID, tracker)
	}

	variant := tables.ResolveVariant()
	state.SetContext(ContextKeyTables, tables)
	state.SetContext(ContextKeyVariant, variant)

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"run.variant":     string(variant),
		"advisors.rows":   advisors.Len(),
		"operations.rows": operations.Len(),
	})

	s.opts.logger().InfoContext(ctx, "inputs parsed",
		slog.String("run_id", state.ID),
		slog.String("variant", string(variant)),
		slog.Int("advisor_rows", advisors.Len()),
		slog.Int("operation_rows", operations.Len()))

	return nil
}

func (s *ParseStep) report(runID string, tracker *ProgressTracker) {
	_, _, pct, msg := tracker.GetProgress()
	s.opts.reportProgress(runID, StepIDParse, int(pct), msg)
}

// ValidateStep confirms every supplied table carries its required columns.
// A missing column is fatal for the run; nothing downstream sees the tables.
type ValidateStep struct {
	BaseStep
	opts      StepOptions
	processor *dataprocessing.Processor
}

// NewValidateStep creates the schema validation step
func NewValidateStep(opts StepOptions) *ValidateStep {
	return &ValidateStep{
		BaseStep:  NewBaseStep(StepIDValidate, StepNameValidate, []string{StepIDParse}),
		opts:      opts,
		processor: dataprocessing.NewProcessor(opts.Logger),
	}
}

// Execute validates the parsed tables
func (s *ValidateStep) Execute(ctx context.Context, state *RunState) error {
	tables, err := tablesFromState(state)
	if err != nil {
		return err
	}

	if err := s.processor.Validate(tables); err != nil {
		return &RunError{
			Type:    ErrorTypeValidation,
			Step:    StepIDValidate,
			Message: err.Error(),
			Cause:   err,
		}
	}

	s.opts.reportMetadata(state.ID, StepIDValidate, 100, "Schemas validated", map[string]interface{}{
		"advisor_rows":   tables.Advisors.Len(),
		"operation_rows": tables.Operations.Len(),
	})

	return nil
}

// AggregateStep groups raw operation legs into unified logical operations
type AggregateStep struct {
	BaseStep
	opts       StepOptions
	aggregator *dataprocessing.Aggregator
}

// NewAggregateStep creates the leg aggregation step
func NewAggregateStep(opts StepOptions) *AggregateStep {
	return &AggregateStep{
		BaseStep:   NewBaseStep(StepIDAggregate, StepNameAggregate, []string{StepIDValidate}),
		opts:       opts,
		aggregator: dataprocessing.NewAggregator(opts.Logger),
	}
}

// Execute aggregates the operation legs
func (s *AggregateStep) Execute(ctx context.Context, state *RunState) error {
	tables, err := tablesFromState(state)
	if err != nil {
		return err
	}

	legs := dataprocessing.ParseOperations(tables.Operations)
	unified := s.aggregator.Aggregate(legs)

	stats := statsFromState(state)
	stats.LegsIn = len(legs)

	state.SetContext(ContextKeyUnified, unified)

	s.opts.reportMetadata(state.ID, StepIDAggregate, 100, "Legs aggregated", map[string]interface{}{
		"legs_in":     len(legs),
		"unified_out": len(unified),
	})

	return nil
}

// JoinStep enriches unified operations with advisor data and, for dashboard
// variants, market dashboard data. Joins are left joins: unmatched rows stay
// with null reference fields.
type JoinStep struct {
	BaseStep
	opts   StepOptions
	joiner *dataprocessing.Joiner
}

// NewJoinStep creates the reference join step
func NewJoinStep(opts StepOptions) *JoinStep {
	return &JoinStep{
		BaseStep: NewBaseStep(StepIDJoin, StepNameJoin, []string{StepIDAggregate}),
		opts:     opts,
		joiner:   dataprocessing.NewJoiner(opts.Logger),
	}
}

// Execute joins reference data onto the unified operations
func (s *JoinStep) Execute(ctx context.Context, state *RunState) error {
	tables, err := tablesFromState(state)
	if err != nil {
		return err
	}
	unified, err := unifiedFromState(state)
	if err != nil {
		return err
	}

	advisors := dataprocessing.ParseAdvisors(tables.Advisors)
	rows, advisorMatches := s.joiner.JoinAdvisors(unified, advisors)

	stats := statsFromState(state)
	stats.AdvisorMatches = advisorMatches

	if variantFromState(state) != domain.VariantBase {
		dashboard := dataprocessing.ParseDashboard(tables.Dashboard)
		stats.DashboardMatches = s.joiner.JoinDashboard(rows, dashboard)
	}

	state.SetContext(ContextKeyRows, rows)

	s.opts.reportMetadata(state.ID, StepIDJoin, 100, "Reference data joined", map[string]interface{}{
		"advisor_matches":   stats.AdvisorMatches,
		"dashboard_matches": stats.DashboardMatches,
	})

	return nil
}

// CalculateStep derives the financial metrics of the run's variant on every
// enriched row
type CalculateStep struct {
	BaseStep
	opts       StepOptions
	calculator *dataprocessing.Calculator
}

// NewCalculateStep creates the metric calculation step
func NewCalculateStep(opts StepOptions) *CalculateStep {
	return &CalculateStep{
		BaseStep:   NewBaseStep(StepIDCalculate, StepNameCalculate, []string{StepIDJoin}),
		opts:       opts,
		calculator: dataprocessing.NewCalculator(opts.Logger),
	}
}

// Execute calculates metrics in place on the enriched rows
func (s *CalculateStep) Execute(ctx context.Context, state *RunState) error {
	rows, err := rowsFromState(state)
	if err != nil {
		return err
	}

	s.calculator.Calculate(rows, variantFromState(state))

	s.opts.reportProgress(state.ID, StepIDCalculate, 100, "Metrics calculated")

	return nil
}

// FormatStep projects the variant's output columns and renders display
// values, producing the exportable result table
type FormatStep struct {
	BaseStep
	opts    StepOptions
	builder *dataprocessing.ResultBuilder
}

// NewFormatStep creates the result formatting step
func NewFormatStep(opts StepOptions) *FormatStep {
	return &FormatStep{
		BaseStep: NewBaseStep(StepIDFormat, StepNameFormat, []string{StepIDCalculate}),
		opts:     opts,
		builder:  dataprocessing.NewResultBuilder(),
	}
}

// Execute builds the result table
func (s *FormatStep) Execute(ctx context.Context, state *RunState) error {
	rows, err := rowsFromState(state)
	if err != nil {
		return err
	}

	variant := variantFromState(state)
	table := s.builder.Build(rows, variant)

	stats := statsFromState(state)
	stats.RowsOut = table.RowCount()

	state.SetContext(ContextKeyResult, table)

	s.opts.reportMetadata(state.ID, StepIDFormat, 100, "Result table built", map[string]interface{}{
		"rows_out": table.RowCount(),
		"columns":  len(table.Columns),
	})

	return nil
}

// ExportStep hands the finished result table to the run's sink. Without a
// sink the table still reaches the caller through the run response.
type ExportStep struct {
	BaseStep
	opts StepOptions
	sink ResultSink
}

// NewExportStep creates the result export step
func NewExportStep(sink ResultSink, opts StepOptions) *ExportStep {
	return &ExportStep{
		BaseStep: NewBaseStep(StepIDExport, StepNameExport, []string{StepIDFormat}),
		opts:     opts,
		sink:     sink,
	}
}

// Execute delivers the result table to the sink
func (s *ExportStep) Execute(ctx context.Context, state *RunState) error {
	table, err := resultFromState(state)
	if err != nil {
		return err
	}

	if s.sink != nil {
		result := RunResult{
			RunID:   state.ID,
			Variant: variantFromState(state),
			Table:   table,
			Stats:   *statsFromState(state),
		}
		if err := s.sink.Deliver(ctx, result); err != nil {
			return WrapError(err, StepIDExport, "failed to deliver result")
		}
	}

	s.opts.reportMetadata(state.ID, StepIDExport, 100, "Result exported", map[string]interface{}{
		"rows": table.RowCount(),
	})

	return nil
}

// RegisterPipelineSteps registers the full unification pipeline on the
// manager in execution order
func RegisterPipelineSteps(m *Manager, sink ResultSink, opts StepOptions) error {
	steps := []Step{
		NewParseStep(opts),
		NewValidateStep(opts),
		NewAggregateStep(opts),
		NewJoinStep(opts),
		NewCalculateStep(opts),
		NewFormatStep(opts),
		NewExportStep(sink, opts),
	}
	for _, step := range steps {
		if err := m.RegisterStep(step); err != nil {
			return fmt.Errorf("register step %s: %w", step.ID(), err)
		}
	}
	return nil
}
