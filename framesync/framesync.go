// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framesync links viewport playback positions into a
// master/slave group with proportional frame mapping.
//
// Synchronization is one-directional and deliberately approximate: on
// every master frame advance, each slave's frame position is recomputed
// as the proportional position within its own series. Slaves whose
// frame counts are not simple multiples of the master's will show
// uneven pacing; that is an accepted property of proportional sync, not
// a bug to smooth over.
package framesync

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/cineview/viewport"
)

// Mode selects how slave frames track the master.
type Mode uint8

const (
	// ModeFrameRatio maps the master's proportional position onto each
	// slave's frame range on every master advance.
	ModeFrameRatio Mode = iota

	// ModeManual keeps the group membership but applies no automatic
	// recomputation; slaves play independently.
	ModeManual
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeFrameRatio:
		return "frameRatio"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode converts an external string representation into a Mode.
// Conversion happens here at the boundary only; everything past it
// works with the closed Mode type.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "frameRatio", "frame-ratio":
		return ModeFrameRatio, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeManual, fmt.Errorf("framesync: unknown mode %q", s)
	}
}

// Group describes one master/slave synchronization relationship.
type Group struct {
	MasterID string
	SlaveIDs []string
	Mode     Mode
}

// Engine enforces master->slave proportional frame relationships. At
// most one group is active per engine instance; creating a new group
// replaces the previous one. Frame positions are read and written
// through the viewport manager, never stored here.
type Engine struct {
	mu    sync.Mutex
	mgr   *viewport.Manager
	group *Group
}

// NewEngine creates a sync engine bound to a viewport manager.
func NewEngine(mgr *viewport.Manager) *Engine {
	return &Engine{mgr: mgr}
}

// CreateGroup activates a synchronization group, replacing any existing
// one. The master id is removed from the slave set and duplicate slave
// ids are dropped, so a viewport is never both master and slave.
func (e *Engine) CreateGroup(g Group) {
	slaves := make([]string, 0, len(g.SlaveIDs))
	seen := make(map[string]bool, len(g.SlaveIDs))
	for _, id := range g.SlaveIDs {
		if id == g.MasterID || seen[id] {
			continue
		}
		seen[id] = true
		slaves = append(slaves, id)
	}
	g.SlaveIDs = slaves

	e.mu.Lock()
	defer e.mu.Unlock()
	e.group = &g
}

// ActiveGroup returns a copy of the active group, or false when no
// group is active.
func (e *Engine) ActiveGroup() (Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.group == nil {
		return Group{}, false
	}
	g := *e.group
	g.SlaveIDs = append([]string(nil), e.group.SlaveIDs...)
	return g, true
}

// IsSlave reports whether a viewport is a slave of the active
// FrameRatio group. Such viewports do not self-advance: their frame
// position is owned by the master.
func (e *Engine) IsSlave(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.group == nil || e.group.Mode != ModeFrameRatio {
		return false
	}
	for _, s := range e.group.SlaveIDs {
		if s == id {
			return true
		}
	}
	return false
}

// OnMasterFrameAdvanced propagates a master frame advance to every
// slave in the active group. For ModeFrameRatio each slave's frame is
// set to its proportional position; for ModeManual this is a no-op.
// Slaves without an attached series are skipped.
func (e *Engine) OnMasterFrameAdvanced(masterFrame, masterTotal int) {
	e.mu.Lock()
	if e.group == nil || e.group.Mode != ModeFrameRatio {
		e.mu.Unlock()
		return
	}
	slaves := append([]string(nil), e.group.SlaveIDs...)
	e.mu.Unlock()

	for _, id := range slaves {
		slot, ok := e.mgr.Viewport(id)
		if !ok || !slot.HasSeries() {
			continue
		}
		e.mgr.SetFrame(id, SlaveFrame(masterFrame, masterTotal, slot.FrameCount()))
	}
}

// ClearAllGroups drops the active group; all viewports resume
// independent playback.
func (e *Engine) ClearAllGroups() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.group = nil
}

// SlaveFrame maps a master frame position onto a slave's frame range:
//
//	round(masterFrame / (masterTotal-1) * (slaveTotal-1))
//
// clamped into [0, slaveTotal-1]. Degenerate ranges (masterTotal <= 1
// or slaveTotal <= 1) pin the slave to frame 0.
func SlaveFrame(masterFrame, masterTotal, slaveTotal int) int {
	if masterTotal <= 1 || slaveTotal <= 1 {
		return 0
	}
	f := int(math.Round(float64(masterFrame) / float64(masterTotal-1) * float64(slaveTotal-1)))
	if f < 0 {
		return 0
	}
	if f >= slaveTotal {
		return slaveTotal - 1
	}
	return f
}
