package fgethttp

import (
	"time"

	"github.com/tanq16/fget/internal/utils"
)

const smoothingFactor = 0.5

type ChunkSnapshot struct {
	Index   int
	Start   int64
	End     int64
	Written int64
	Status  ChunkStatus
}

// Status is a point-in-time view of a session. Rates are bytes per second.
type Status struct {
	SessionID             string
	Filename              string
	State                 State
	SupportsRanges        bool
	BytesReceived         int64
	TotalSize             int64 // -1 when unknown
	InstantRate           float64
	InstantRateFormatted  string
	SmoothedRate          float64
	SmoothedRateFormatted string
	ETASeconds            float64
	ETAKnown              bool
	ETAFormatted          string
	ActiveChunks          int
	Chunks                []ChunkSnapshot
}

func idleStatus() Status {
	return Status{
		State:                 StateIdle,
		TotalSize:             -1,
		InstantRateFormatted:  utils.FormatRate(0),
		SmoothedRateFormatted: utils.FormatRate(0),
		ETAFormatted:          utils.FormatETA(0, false),
	}
}

// Sample reads the counters and advances the smoothed rate by one step. The instant
// rate is the cumulative average since the transfer started; the smoothed rate blends
// the previous sample's instant rate into the running average.
func (s *Session) Sample() Status {
	received := s.bytesReceived.Load()
	total := s.totalSize.Load()

	s.mu.Lock()
	var instant float64
	if !s.startTime.IsZero() {
		if elapsed := time.Since(s.startTime).Seconds(); elapsed > 0 {
			instant = float64(received) / elapsed
		}
	}
	s.smoothedRate = smoothingFactor*s.lastRate + (1-smoothingFactor)*s.smoothedRate
	s.lastRate = instant
	smoothed := s.smoothedRate
	chunks := s.chunks
	s.mu.Unlock()

	status := Status{
		SessionID:             s.ID,
		Filename:              s.Filename(),
		State:                 s.State(),
		SupportsRanges:        s.supportsRanges.Load(),
		BytesReceived:         received,
		TotalSize:             total,
		InstantRate:           instant,
		InstantRateFormatted:  utils.FormatRate(instant),
		SmoothedRate:          smoothed,
		SmoothedRateFormatted: utils.FormatRate(smoothed),
	}
	if total >= 0 && smoothed > 0 {
		status.ETASeconds = float64(max(total-received, 0)) / smoothed
		status.ETAKnown = true
	}
	status.ETAFormatted = utils.FormatETA(status.ETASeconds, status.ETAKnown)

	status.Chunks = make([]ChunkSnapshot, len(chunks))
	for i, c := range chunks {
		snap := ChunkSnapshot{Index: c.Index, Start: c.Start, End: c.End, Written: c.Written(), Status: c.Status()}
		if snap.Status == ChunkActive {
			status.ActiveChunks++
		}
		status.Chunks[i] = snap
	}
	return status
}
