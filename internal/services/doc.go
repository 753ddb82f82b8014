// Package services implements the business logic layer of the unification
// server. It sits between the HTTP handlers and the pipeline packages,
// keeping transport concerns out of the run orchestration.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection for loose coupling
//	3. Domain-focused methods that encapsulate business rules
//	4. Typed sentinel errors that handlers translate to HTTP problems
//
// # Available Services
//
// The package provides these core services:
//
//	- UnifyService: executes unification pipeline runs, bounds their
//	  concurrency, retains finished results for download and serves run
//	  status snapshots
//	- QuoteService: best-effort market quote lookups with request limits
//	- HealthService: liveness, readiness and system statistics
//
// # Result Retention
//
// Finished run results live in an in-memory ReportStore keyed by run ID.
// Entries age out after the configured TTL and the store is bounded, so the
// server never accumulates unbounded state. Nothing is persisted to disk;
// a restart forgets all past runs.
//
// # Common Service Pattern
//
// Services typically follow this structure:
//
//	type ServiceName struct {
//	    dep    Dependency
//	    logger *slog.Logger
//	}
//
//	func NewServiceName(dep Dependency, logger *slog.Logger) *ServiceName {
//	    return &ServiceName{dep: dep, logger: logger}
//	}
//
//	func (s *ServiceName) BusinessOperation(ctx context.Context, input Input) (*Output, error) {
//	    if err := input.Validate(); err != nil {
//	        return nil, fmt.Errorf("validation failed: %w", err)
//	    }
//	    result, err := s.dep.Operation(ctx, input)
//	    if err != nil {
//	        s.logger.ErrorContext(ctx, "operation failed", "error", err)
//	        return nil, fmt.Errorf("operation failed: %w", err)
//	    }
//	    return result, nil
//	}
//
// # Error Handling
//
// Services return sentinel errors (ErrRunNotFound, ErrReportNotFound,
// ErrTooManyRuns, ...) that handlers map to RFC 7807 problem responses.
// Pipeline failures come back as *operations.RunError carrying the failed
// step and error class.
package services
