package simulator

import "github.com/sarchlab/pagesim/mem/vm"

// FrameState is the content of one frame after a step.
type FrameState struct {
	Frame int
	Entry vm.Entry
	PTE   vm.PTE
	Aging uint8
}

// A Snapshot is the state of the inverted page table after a step. Step 0 is
// the state before any access.
type Snapshot struct {
	Step       int
	Access     vm.Access
	Page       uint64
	Offset     uint64
	Fault      bool
	Allocation vm.Allocation
	Frames     []FrameState
}

// IsInitial returns true if the snapshot was taken before any access.
func (s Snapshot) IsInitial() bool {
	return s.Step == 0
}

// Stats counts the outcome of the accesses a simulator has processed.
type Stats struct {
	Accesses  uint64
	Hits      uint64
	Faults    uint64
	Evictions uint64
}

// HitRatio returns the fraction of accesses that found their page resident.
func (s Stats) HitRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses)
}
