// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package schedule

import (
	"sync"
	"time"
)

// statsWindow is the number of recent ticks the rolling averages cover.
const statsWindow = 60

// Stats is a read-only snapshot of scheduler timing, recomputed on
// read. Values are smoothed over the last statsWindow ticks.
type Stats struct {
	// FPS is the achieved tick rate in ticks per second.
	FPS float64

	// FrameTimeMs is the average time spent inside one tick, in
	// milliseconds.
	FrameTimeMs float64

	// Ticks is the total number of ticks since the scheduler started.
	Ticks uint64
}

// statsRecorder keeps a ring of recent tick timings. Recording is
// cheap; averages are derived on read and never block the tick loop.
type statsRecorder struct {
	mu        sync.Mutex
	durations [statsWindow]time.Duration // time spent inside each tick
	intervals [statsWindow]time.Duration // time between tick starts
	next      int
	filled    int
	lastStart time.Time
	ticks     uint64
}

// record stores the timing of one completed tick.
func (s *statsRecorder) record(start time.Time, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations[s.next] = duration
	if !s.lastStart.IsZero() {
		s.intervals[s.next] = start.Sub(s.lastStart)
	}
	s.lastStart = start
	s.next = (s.next + 1) % statsWindow
	if s.filled < statsWindow {
		s.filled++
	}
	s.ticks++
}

// reset clears all recorded timings. Fields are cleared individually:
// assigning a fresh struct over s would overwrite the held mutex.
func (s *statsRecorder) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = [statsWindow]time.Duration{}
	s.intervals = [statsWindow]time.Duration{}
	s.next = 0
	s.filled = 0
	s.lastStart = time.Time{}
	s.ticks = 0
}

// snapshot derives smoothed averages from the recorded ring.
func (s *statsRecorder) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{Ticks: s.ticks}
	if s.filled == 0 {
		return out
	}

	var totalDur, totalInt time.Duration
	intervals := 0
	for i := 0; i < s.filled; i++ {
		totalDur += s.durations[i]
		if s.intervals[i] > 0 {
			totalInt += s.intervals[i]
			intervals++
		}
	}

	out.FrameTimeMs = float64(totalDur.Microseconds()) / float64(s.filled) / 1000
	if intervals > 0 && totalInt > 0 {
		out.FPS = float64(intervals) / totalInt.Seconds()
	}
	return out
}
