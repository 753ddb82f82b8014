package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"opsunify/internal/config"
	"opsunify/internal/infrastructure"
	"opsunify/internal/operations"
	"opsunify/pkg/contracts/domain"
)

// snapshotCleanupInterval is how often terminal run snapshots older than the
// report TTL are dropped from the status surface.
const snapshotCleanupInterval = 10 * time.Minute

// assetColumn is the result-table column holding the underlying ticker, the
// input to quote-cache warming.
const assetColumn = "Ativo"

// quotePrefetchTimeout bounds the background cache warm-up after a run so
// shutdown never waits long on market data.
const quotePrefetchTimeout = 30 * time.Second

// QuotePrefetcher warms the market data cache for a set of symbols. It is
// the same surface the quotes endpoint reads, so warming it after a run
// turns the follow-up lookups into cache hits.
type QuotePrefetcher interface {
	LookupBatch(ctx context.Context, symbols []string) ([]domain.Quote, error)
}

// UnifyRequest carries one submitted input set. Dashboard is optional; the
// dashboard-based variants require it. An empty Variant falls back to the
// configured default and then to resolution from the supplied tables.
type UnifyRequest struct {
	Variant    domain.Variant
	Advisors   operations.InputSource
	Operations operations.InputSource
	Dashboard  *operations.InputSource
}

// UnifyService executes unification pipeline runs for the HTTP surface. It
// owns the run manager, bounds how many runs execute at once, retains
// finished results in memory for download and serves run status from the
// broadcaster's snapshots.
type UnifyService struct {
	manager    *operations.Manager
	reports    *ReportStore
	slots      *semaphore.Weighted
	logger     *slog.Logger
	prefetcher QuotePrefetcher

	defaultVariant domain.Variant
	runTimeout     time.Duration
	reportTTL      time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	running sync.WaitGroup

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewUnifyService wires a run manager with the full step pipeline, delivering
// results into an in-memory report store sized and aged per cfg.Pipeline.
// Progress updates go out through hub; a nil hub disables them.
func NewUnifyService(cfg *config.Config, hub operations.WebSocketHub, logger *slog.Logger) (*UnifyService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "unify"))

	reports := NewReportStore(cfg.Pipeline.ReportTTL, cfg.Pipeline.MaxStoredRuns)
	manager := operations.NewManager(hub, operations.NewRegistry(), operations.NewConfig())

	stepOpts := operations.StepOptions{
		Logger:            logger,
		EnableProgress:    true,
		StatusBroadcaster: manager.GetBroadcaster(),
		CSVDelimiter:      cfg.Pipeline.DelimiterRune(),
	}
	if err := operations.RegisterPipelineSteps(manager, reports, stepOpts); err != nil {
		return nil, fmt.Errorf("failed to register pipeline steps: %w", err)
	}

	s := &UnifyService{
		manager:        manager,
		reports:        reports,
		slots:          semaphore.NewWeighted(int64(cfg.Pipeline.MaxConcurrentRuns)),
		logger:         logger,
		defaultVariant: domain.Variant(cfg.Pipeline.DefaultVariant),
		runTimeout:     cfg.Server.OperationTimeout,
		reportTTL:      cfg.Pipeline.ReportTTL,
		cancels:        make(map[string]context.CancelFunc),
		stopCleanup:    make(chan struct{}),
		cleanupDone:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s, nil
}

// SetQuotePrefetcher enables quote-cache warming with each finished run's
// distinct assets. Wire it before serving requests; nil leaves warming off.
func (s *UnifyService) SetQuotePrefetcher(p QuotePrefetcher) {
	s.prefetcher = p
}

// Unify executes one pipeline run to completion and returns its summary.
// Runs beyond the configured concurrency limit are rejected with
// ErrTooManyRuns rather than queued.
func (s *UnifyService) Unify(ctx context.Context, req UnifyRequest) (*domain.RunSummary, error) {
	if !s.slots.TryAcquire(1) {
		s.logger.WarnContext(ctx, "run rejected, concurrency limit reached")
		return nil, ErrTooManyRuns
	}
	defer s.slots.Release(1)
	s.running.Add(1)
	defer s.running.Done()

	variant := req.Variant
	if variant == "" {
		variant = s.defaultVariant
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	s.trackRun(runID, cancel)
	defer s.untrackRun(runID)

	start := time.Now()
	resp, err := s.manager.Execute(runCtx, operations.RunRequest{
		ID:      runID,
		Variant: variant,
		Inputs: operations.RunInputs{
			Advisors:   req.Advisors,
			Operations: req.Operations,
			Dashboard:  req.Dashboard,
		},
	})
	metrics := operations.GetRunTracer().BusinessMetrics()
	if err != nil {
		infrastructure.RecordPipelineRun(ctx, metrics, string(variant), 0, 0, time.Since(start), false)
		return nil, err
	}
	infrastructure.RecordPipelineRun(ctx, metrics, string(resp.Variant), resp.Stats.LegsIn, resp.Stats.RowsOut, resp.Duration, true)

	summary := &domain.RunSummary{
		ID:          resp.ID,
		Variant:     resp.Variant,
		LegsIn:      resp.Stats.LegsIn,
		RowsOut:     resp.Stats.RowsOut,
		DurationMS:  resp.Duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
		DownloadURL: fmt.Sprintf("%s/%s/download", config.ReportsEndpoint, resp.ID),
	}
	if resp.Result != nil {
		summary.Columns = resp.Result.Columns
	}
	s.prefetchQuotes(resp.ID, resp.Result)
	return summary, nil
}

// prefetchQuotes warms the quote cache with a finished run's distinct assets.
// Best effort and asynchronous; the run summary never waits on market data.
func (s *UnifyService) prefetchQuotes(runID string, result *domain.ResultTable) {
	if s.prefetcher == nil {
		return
	}
	symbols := result.DistinctStrings(assetColumn)
	if len(symbols) == 0 {
		return
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		ctx, cancel := context.WithTimeout(context.Background(), quotePrefetchTimeout)
		defer cancel()
		if _, err := s.prefetcher.LookupBatch(ctx, symbols); err != nil {
			s.logger.Debug("quote prefetch skipped",
				slog.String("run_id", runID),
				slog.Int("symbols", len(symbols)),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("quote cache warmed",
			slog.String("run_id", runID),
			slog.Int("symbols", len(symbols)))
	}()
}

// GetRun returns the latest snapshot of a run, finished or not.
func (s *UnifyService) GetRun(runID string) (*operations.RunSnapshot, error) {
	if snapshot, ok := s.manager.GetBroadcaster().GetSnapshot(runID); ok {
		return snapshot, nil
	}
	return nil, ErrRunNotFound
}

// ListRuns returns snapshots of every known run, newest first.
func (s *UnifyService) ListRuns() []*operations.RunSnapshot {
	snapshots := s.manager.GetBroadcaster().GetAllSnapshots()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].StartedAt.After(snapshots[j].StartedAt)
	})
	return snapshots
}

// CancelRun cancels an in-flight run. Runs that already finished return
// ErrRunNotRunning; unknown IDs return ErrRunNotFound.
func (s *UnifyService) CancelRun(runID string) error {
	s.mu.Lock()
	cancel, running := s.cancels[runID]
	s.mu.Unlock()

	if running {
		s.logger.Info("cancelling run", slog.String("run_id", runID))
		cancel()
		return nil
	}
	if _, known := s.manager.GetBroadcaster().GetSnapshot(runID); known {
		return ErrRunNotRunning
	}
	return ErrRunNotFound
}

// CancelAll cancels every in-flight run and returns how many were cancelled.
func (s *UnifyService) CancelAll() int {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, cancel := range s.cancels {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Report returns the stored result of a finished run for download.
func (s *UnifyService) Report(runID string) (operations.RunResult, error) {
	if result, ok := s.reports.Get(runID); ok {
		return result, nil
	}
	return operations.RunResult{}, ErrReportNotFound
}

// ActiveRuns returns the number of runs currently executing.
func (s *UnifyService) ActiveRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

// StoredReports returns the number of downloadable results currently held.
func (s *UnifyService) StoredReports() int {
	return s.reports.Len()
}

// Close stops the cleanup loop and the status broadcaster after waiting for
// in-flight runs to finish. Cancel them first with CancelAll to shut down
// promptly.
func (s *UnifyService) Close() {
	close(s.stopCleanup)
	<-s.cleanupDone
	s.running.Wait()
	s.manager.GetBroadcaster().Stop()
}

func (s *UnifyService) trackRun(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[runID] = cancel
}

func (s *UnifyService) untrackRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, runID)
}

// cleanupLoop ages terminal run snapshots out together with their
// downloadable results.
func (s *UnifyService) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(snapshotCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			s.manager.GetBroadcaster().CleanupOldRuns(ctx, s.reportTTL)
			cancel()
		case <-s.stopCleanup:
			return
		}
	}
}
