package ingest

import "sync"

// CycleSummary is a point-in-time copy of the cross-source counters for one
// full pipeline pass.
type CycleSummary struct {
	PostingsAdded     int
	PostingsUpdated   int
	PostingsExpired   int
	DuplicatesSkipped int
	RecordErrors      int
	SourcesRun        int
	SourcesFailed     int
}

// SuccessRate returns the fraction of sources that completed, in percent.
func (s CycleSummary) SuccessRate() float64 {
	if s.SourcesRun == 0 {
		return 0
	}
	return float64(s.SourcesRun-s.SourcesFailed) / float64(s.SourcesRun) * 100
}

// CycleStats accumulates process-wide counters across one full pipeline pass:
// reset at pass start, written by the coordinator as sources complete, read
// and reset again at pass end. The run ledger exclusively owns it.
type CycleStats struct {
	mu      sync.Mutex
	current CycleSummary
}

// NewCycleStats creates zeroed cycle counters.
func NewCycleStats() *CycleStats {
	return &CycleStats{}
}

// Reset zeroes all counters.
func (s *CycleStats) Reset() {
	s.mu.Lock()
	s.current = CycleSummary{}
	s.mu.Unlock()
}

// RecordSuccess accumulates one source's successful cycle.
func (s *CycleStats) RecordSuccess(added, updated, expired, duplicates, errs int) {
	s.mu.Lock()
	s.current.SourcesRun++
	s.current.PostingsAdded += added
	s.current.PostingsUpdated += updated
	s.current.PostingsExpired += expired
	s.current.DuplicatesSkipped += duplicates
	s.current.RecordErrors += errs
	s.mu.Unlock()
}

// RecordFailure accumulates one source-level failure.
func (s *CycleStats) RecordFailure() {
	s.mu.Lock()
	s.current.SourcesRun++
	s.current.SourcesFailed++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *CycleStats) Snapshot() CycleSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
