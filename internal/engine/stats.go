package engine

import "sync/atomic"

// Stats is the accounting record returned by a verify run. Field names and
// JSON tags are an API contract with callers.
type Stats struct {
	VerifiedContent int64 `json:"verifiedContent"`
	ReclaimedCount  int64 `json:"reclaimedCount"`
	ReclaimedSize   int64 `json:"reclaimedSize"`
	BadContentCount int64 `json:"badContentCount"`
	KeptSize        int64 `json:"keptSize"`
	MissingContent  int64 `json:"missingContent"`
	RejectedEntries int64 `json:"rejectedEntries"`
	TotalEntries    int64 `json:"totalEntries"`
	StartTime       int64 `json:"startTime"`
	EndTime         int64 `json:"endTime"`
	RunTime         int64 `json:"runTime"`
}

// accumulator holds the mutable, concurrency-safe counters threaded
// through the phases. A Stats snapshot is taken once the run completes.
type accumulator struct {
	verifiedContent atomic.Int64
	reclaimedCount  atomic.Int64
	reclaimedSize   atomic.Int64
	badContentCount atomic.Int64
	keptSize        atomic.Int64
	missingContent  atomic.Int64
	rejectedEntries atomic.Int64
	totalEntries    atomic.Int64
}

func (a *accumulator) snapshot(startTime, endTime int64) Stats {
	return Stats{
		VerifiedContent: a.verifiedContent.Load(),
		ReclaimedCount:  a.reclaimedCount.Load(),
		ReclaimedSize:   a.reclaimedSize.Load(),
		BadContentCount: a.badContentCount.Load(),
		KeptSize:        a.keptSize.Load(),
		MissingContent:  a.missingContent.Load(),
		RejectedEntries: a.rejectedEntries.Load(),
		TotalEntries:    a.totalEntries.Load(),
		StartTime:       startTime,
		EndTime:         endTime,
		RunTime:         endTime - startTime,
	}
}
