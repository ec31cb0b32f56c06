package vm

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is reported when the reverse lookup of a FrameTable
// disagrees with the frames it indexes.
var ErrInvariantViolation = errors.New("frame table invariant violation")

// A VictimFinder decides which frame should be evicted when no frame is free.
type VictimFinder interface {
	FindVictim() int
}

// An Allocation reports where a page is loaded and which page, if any, had to
// leave the frame.
type Allocation struct {
	Frame   int
	Evicted bool
	Victim  PageKey
}

// A FrameTable is an inverted page table. It is indexed by physical frame and
// records which page of which process occupies every frame.
type FrameTable struct {
	frames       []Entry
	lookup       map[PageKey]int
	freeFrames   []int
	victimFinder VictimFinder
}

// NewFrameTable creates a FrameTable with all the frames empty.
func NewFrameTable(numFrames int, victimFinder VictimFinder) *FrameTable {
	if numFrames <= 0 {
		panic("frame table must have at least one frame")
	}

	t := &FrameTable{
		frames:       make([]Entry, numFrames),
		lookup:       make(map[PageKey]int),
		freeFrames:   make([]int, 0, numFrames),
		victimFinder: victimFinder,
	}

	for i := 0; i < numFrames; i++ {
		t.freeFrames = append(t.freeFrames, i)
	}

	return t
}

// NumFrames returns the number of physical frames.
func (t *FrameTable) NumFrames() int {
	return len(t.frames)
}

// NumFree returns the number of frames that have never been allocated.
func (t *FrameTable) NumFree() int {
	return len(t.freeFrames)
}

// Entry returns the entry stored in a frame.
func (t *FrameTable) Entry(frame int) Entry {
	return t.frames[frame]
}

// Entries returns a copy of all the entries, ordered by frame.
func (t *FrameTable) Entries() []Entry {
	entries := make([]Entry, len(t.frames))
	copy(entries, t.frames)

	return entries
}

// Lookup returns the frame that holds the page of the process. The bool
// return value indicates if the page is resident.
func (t *FrameTable) Lookup(pid PID, page uint64) (int, bool) {
	frame, found := t.lookup[PageKey{PID: pid, Page: page}]
	return frame, found
}

// ScanLookup finds the page by walking every frame instead of using the
// reverse index.
func (t *FrameTable) ScanLookup(pid PID, page uint64) (int, bool) {
	for i, e := range t.frames {
		if e.Present && e.PID == pid && e.Page == page {
			return i, true
		}
	}

	return -1, false
}

// Allocate loads the page of the process into a frame. Free frames are used
// in order. After that, the victim finder picks the frame to evict.
func (t *FrameTable) Allocate(pid PID, page uint64) Allocation {
	key := PageKey{PID: pid, Page: page}
	t.pageMustNotBeResident(key)

	var alloc Allocation
	if len(t.freeFrames) > 0 {
		alloc.Frame = t.freeFrames[0]
		t.freeFrames = t.freeFrames[1:]
	} else {
		alloc = t.evict()
	}

	t.frames[alloc.Frame] = Entry{
		PID:     pid,
		Page:    page,
		Present: true,
	}
	t.lookup[key] = alloc.Frame

	return alloc
}

func (t *FrameTable) evict() Allocation {
	if t.victimFinder == nil {
		panic("no free frame and no victim finder")
	}

	frame := t.victimFinder.FindVictim()
	if frame < 0 || frame >= len(t.frames) || !t.frames[frame].Present {
		panic(fmt.Sprintf("victim frame %d is not resident", frame))
	}

	victim := t.frames[frame].Key()
	delete(t.lookup, victim)
	t.frames[frame] = Entry{}

	return Allocation{
		Frame:   frame,
		Evicted: true,
		Victim:  victim,
	}
}

// MarkAccessed sets the referenced bit of the frame, and the modified bit as
// well if the access is a write.
func (t *FrameTable) MarkAccessed(frame int, isWrite bool) {
	t.frames[frame].Referenced = true
	if isWrite {
		t.frames[frame].Modified = true
	}
}

// IsReferenced returns the referenced bit of the frame.
func (t *FrameTable) IsReferenced(frame int) bool {
	return t.frames[frame].Referenced
}

// ClearReferenced turns off the referenced bit of the frame.
func (t *FrameTable) ClearReferenced(frame int) {
	t.frames[frame].Referenced = false
}

// CheckConsistency walks the frames and the reverse lookup and reports any
// disagreement between the two.
func (t *FrameTable) CheckConsistency() error {
	numPresent := 0

	for i, e := range t.frames {
		if !e.Present {
			continue
		}

		numPresent++

		frame, found := t.lookup[e.Key()]
		if !found {
			return fmt.Errorf("%w: page %s in frame %d is not indexed",
				ErrInvariantViolation, e.Key(), i)
		}

		if frame != i {
			return fmt.Errorf("%w: page %s in frame %d is indexed to frame %d",
				ErrInvariantViolation, e.Key(), i, frame)
		}
	}

	if numPresent != len(t.lookup) {
		return fmt.Errorf("%w: %d resident frames but %d indexed pages",
			ErrInvariantViolation, numPresent, len(t.lookup))
	}

	seen := make(map[int]PageKey, len(t.lookup))
	for key, frame := range t.lookup {
		if other, dup := seen[frame]; dup {
			return fmt.Errorf("%w: pages %s and %s both map to frame %d",
				ErrInvariantViolation, other, key, frame)
		}

		seen[frame] = key
	}

	return nil
}

func (t *FrameTable) pageMustNotBeResident(key PageKey) {
	if _, found := t.lookup[key]; found {
		panic(fmt.Sprintf("page %s is already resident", key))
	}
}
