package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"opsunify/pkg/contracts/domain"
)

// Inputs bundles the parsed input tables of one run. Dashboard is optional;
// the dashboard-based variants require it. An empty Variant resolves to
// dashboard when a dashboard table is supplied and to base otherwise.
type Inputs struct {
	Advisors   *Table
	Operations *Table
	Dashboard  *Table
	Variant    domain.Variant
}

// ResolveVariant returns the effective variant of the input set.
func (in Inputs) ResolveVariant() domain.Variant {
	if in.Variant != "" {
		return in.Variant
	}
	if in.Dashboard != nil {
		return domain.VariantDashboard
	}
	return domain.VariantBase
}

// Stats summarizes what one pipeline run did.
type Stats struct {
	LegsIn           int
	RowsOut          int
	AdvisorMatches   int
	DashboardMatches int
	Duration         time.Duration
}

// Processor runs the unification pipeline end to end on one input set:
// validate → aggregate → join → calculate → build. Each run operates on its
// own in-memory tables, so a single Processor is safe to reuse across runs.
type Processor struct {
	logger     *slog.Logger
	aggregator *Aggregator
	joiner     *Joiner
	calculator *Calculator
	builder    *ResultBuilder
}

// NewProcessor creates a processor. A nil logger falls back to the default
// logger.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		aggregator: NewAggregator(logger),
		joiner:     NewJoiner(logger),
		calculator: NewCalculator(logger),
		builder:    NewResultBuilder(),
	}
}

// Validate applies the schema checks to every supplied input table. It runs
// before any computation and mutates nothing.
func (p *Processor) Validate(in Inputs) error {
	if in.Advisors == nil || in.Operations == nil {
		return fmt.Errorf("advisors and operations tables are required")
	}
	if err := ValidateColumns(in.Advisors, RequiredAdvisorColumns); err != nil {
		return err
	}
	if err := ValidateColumns(in.Operations, RequiredOperationColumns); err != nil {
		return err
	}
	variant := in.ResolveVariant()
	if variant != domain.VariantBase && in.Dashboard == nil {
		return fmt.Errorf("variant %s requires a dashboard table", variant)
	}
	if in.Dashboard != nil {
		if err := ValidateColumns(in.Dashboard, RequiredDashboardColumns); err != nil {
			return err
		}
	}
	return nil
}

// Process executes the full pipeline. Validation failures abort before any
// computation and produce no partial output; past validation the run always
// completes, leaving unmatched or unparsable cells null.
func (p *Processor) Process(ctx context.Context, in Inputs) (*domain.ResultTable, Stats, error) {
	start := time.Now()
	variant := in.ResolveVariant()
	stats := Stats{}

	if err := p.Validate(in); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	legs := ParseOperations(in.Operations)
	advisors := ParseAdvisors(in.Advisors)
	stats.LegsIn = len(legs)

	unified := p.aggregator.Aggregate(legs)

	rows, advisorMatches := p.joiner.JoinAdvisors(unified, advisors)
	stats.AdvisorMatches = advisorMatches

	if variant != domain.VariantBase {
		dashboard := ParseDashboard(in.Dashboard)
		stats.DashboardMatches = p.joiner.JoinDashboard(rows, dashboard)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	p.calculator.Calculate(rows, variant)
	table := p.builder.Build(rows, variant)

	stats.RowsOut = table.RowCount()
	stats.Duration = time.Since(start)

	p.logger.InfoContext(ctx, "pipeline run complete",
		slog.String("variant", string(variant)),
		slog.Int("legs_in", stats.LegsIn),
		slog.Int("rows_out", stats.RowsOut),
		slog.Int("advisor_matches", stats.AdvisorMatches),
		slog.Int("dashboard_matches", stats.DashboardMatches),
		slog.Duration("duration", stats.Duration))

	return table, stats, nil
}
