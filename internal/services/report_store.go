package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"opsunify/internal/operations"
)

// ReportStore keeps finished run results in memory for download, keyed by
// run ID. Entries expire after the configured TTL and the store never holds
// more than maxEntries results; when full, the entry closest to expiry is
// evicted. It is the result sink of every HTTP-triggered pipeline run.
type ReportStore struct {
	store      *gocache.Cache
	maxEntries int
}

// NewReportStore creates a store whose entries expire after ttl and which
// retains at most maxEntries results.
func NewReportStore(ttl time.Duration, maxEntries int) *ReportStore {
	return &ReportStore{
		store:      gocache.New(ttl, 2*ttl),
		maxEntries: maxEntries,
	}
}

// Deliver implements operations.ResultSink. The export step calls it exactly
// once per successful run.
func (s *ReportStore) Deliver(_ context.Context, result operations.RunResult) error {
	if result.RunID == "" {
		return fmt.Errorf("run result has no run id")
	}
	if result.Table == nil {
		return fmt.Errorf("run result has no table")
	}
	s.makeRoom()
	s.store.Set(result.RunID, result, gocache.DefaultExpiration)
	return nil
}

// Get returns the stored result of a finished run.
func (s *ReportStore) Get(runID string) (operations.RunResult, bool) {
	v, ok := s.store.Get(runID)
	if !ok {
		return operations.RunResult{}, false
	}
	result, ok := v.(operations.RunResult)
	return result, ok
}

// Delete removes one stored result.
func (s *ReportStore) Delete(runID string) {
	s.store.Delete(runID)
}

// Len returns the number of stored results.
func (s *ReportStore) Len() int {
	s.store.DeleteExpired()
	return s.store.ItemCount()
}

// makeRoom evicts entries closest to expiry until an insert fits the bound.
// All entries share one TTL, so closest to expiry means oldest.
func (s *ReportStore) makeRoom() {
	s.store.DeleteExpired()
	for s.store.ItemCount() >= s.maxEntries {
		oldestKey := ""
		oldestExp := int64(0)
		for key, item := range s.store.Items() {
			if oldestKey == "" || item.Expiration < oldestExp {
				oldestKey = key
				oldestExp = item.Expiration
			}
		}
		if oldestKey == "" {
			return
		}
		s.store.Delete(oldestKey)
	}
}
