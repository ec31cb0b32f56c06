// Package simulator drives an inverted page table through a sequence of
// memory accesses, resolving page faults with the aging replacement policy.
package simulator

import (
	"log/slog"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/aging"
)

var (
	// HookPosInit is triggered with the snapshot of the empty page table.
	HookPosInit = &hooking.HookPos{Name: "Init"}

	// HookPosStep is triggered with the snapshot taken after every access.
	HookPosStep = &hooking.HookPos{Name: "Step"}

	// HookPosRunEnd is triggered with the Stats when a run finishes.
	HookPosRunEnd = &hooking.HookPos{Name: "RunEnd"}
)

// A Simulator owns one inverted page table, its aging counters, and the free
// frame list. It processes accesses one at a time.
type Simulator struct {
	hooking.HookableBase

	name       string
	config     Config
	logger     *slog.Logger
	codec      vm.Codec
	frameTable *vm.FrameTable
	aging      *aging.Tracker

	step  int
	stats Stats
}

// Name returns the name of the simulator.
func (s *Simulator) Name() string {
	return s.name
}

// Config returns the configuration that the simulator was built with.
func (s *Simulator) Config() Config {
	return s.config
}

// Codec returns the codec used to pack the page table entries.
func (s *Simulator) Codec() vm.Codec {
	return s.codec
}

// FrameTable returns the inverted page table.
func (s *Simulator) FrameTable() *vm.FrameTable {
	return s.frameTable
}

// Aging returns the aging counters.
func (s *Simulator) Aging() *aging.Tracker {
	return s.aging
}

// Stats returns the counts of the accesses processed so far.
func (s *Simulator) Stats() Stats {
	return s.stats
}

// NumSteps returns the number of accesses processed so far.
func (s *Simulator) NumSteps() int {
	return s.step
}

// InitialSnapshot reports the state of the page table before any access and
// triggers HookPosInit.
func (s *Simulator) InitialSnapshot() Snapshot {
	snapshot := Snapshot{
		Step:   s.step,
		Frames: s.frameStates(),
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosInit,
		Item:   snapshot,
	})

	return snapshot
}

// Run processes the accesses in order and returns the snapshot taken after
// each of them.
func (s *Simulator) Run(accesses []vm.Access) []Snapshot {
	snapshots := make([]Snapshot, 0, len(accesses))
	for _, a := range accesses {
		snapshots = append(snapshots, s.Step(a))
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosRunEnd,
		Item:   s.stats,
	})

	return snapshots
}

// Step processes one access. The page is resolved in the frame table, loaded
// on a fault, and then the aging counters of every frame decay.
func (s *Simulator) Step(a vm.Access) Snapshot {
	s.step++
	s.stats.Accesses++

	page, offset := a.Split(s.config.OffsetBits)
	snapshot := Snapshot{
		Step:   s.step,
		Access: a,
		Page:   page,
		Offset: offset,
	}

	frame, hit := s.frameTable.Lookup(a.PID, page)
	if hit {
		s.stats.Hits++
		snapshot.Allocation.Frame = frame
	} else {
		snapshot.Fault = true
		snapshot.Allocation = s.handleFault(a.PID, page)
		frame = snapshot.Allocation.Frame
	}

	s.frameTable.MarkAccessed(frame, a.Command.IsWrite())
	s.aging.DecayAndMark(s.frameTable)

	snapshot.Frames = s.frameStates()

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStep,
		Item:   snapshot,
	})

	return snapshot
}

func (s *Simulator) handleFault(pid vm.PID, page uint64) vm.Allocation {
	s.stats.Faults++

	alloc := s.frameTable.Allocate(pid, page)
	s.aging.ResetOnLoad(alloc.Frame)

	if alloc.Evicted {
		s.stats.Evictions++
		s.logger.Debug("page evicted",
			"frame", alloc.Frame,
			"pid", alloc.Victim.PID,
			"page", alloc.Victim.Page)
	}

	s.logger.Debug("page fault",
		"step", s.step,
		"pid", pid,
		"page", page,
		"frame", alloc.Frame)

	return alloc
}

func (s *Simulator) frameStates() []FrameState {
	entries := s.frameTable.Entries()
	states := make([]FrameState, len(entries))

	for i, e := range entries {
		states[i] = FrameState{
			Frame: i,
			Entry: e,
			PTE:   s.codec.Encode(e),
			Aging: s.aging.Counter(i),
		}
	}

	return states
}
