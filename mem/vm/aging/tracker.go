// Package aging implements the aging page replacement policy. Every frame
// keeps an 8-bit history of the instructions that referenced it.
package aging

const (
	// MaxCounter is the counter value of a freshly loaded frame.
	MaxCounter uint8 = 0xFF

	referencedBit uint8 = 0x80
)

// ReferenceBits gives the tracker read-and-clear access to the referenced
// bits of the frames.
type ReferenceBits interface {
	NumFrames() int
	IsReferenced(frame int) bool
	ClearReferenced(frame int)
}

// A Tracker keeps one aging counter per frame. A smaller counter means the
// frame has not been referenced for a longer time.
type Tracker struct {
	counters []uint8
}

// NewTracker creates a Tracker with all the counters at zero.
func NewTracker(numFrames int) *Tracker {
	return &Tracker{
		counters: make([]uint8, numFrames),
	}
}

// NumFrames returns the number of counters.
func (t *Tracker) NumFrames() int {
	return len(t.counters)
}

// Counter returns the aging counter of a frame.
func (t *Tracker) Counter(frame int) uint8 {
	return t.counters[frame]
}

// Counters returns a copy of all the counters, ordered by frame.
func (t *Tracker) Counters() []uint8 {
	c := make([]uint8, len(t.counters))
	copy(c, t.counters)

	return c
}

// ResetOnLoad gives a newly loaded frame the most recent history.
func (t *Tracker) ResetOnLoad(frame int) {
	t.counters[frame] = MaxCounter
}

// DecayAndMark shifts every counter right by one bit. Frames that were
// referenced since the last decay get the high bit set and their referenced
// bit cleared.
func (t *Tracker) DecayAndMark(refs ReferenceBits) {
	if refs.NumFrames() != len(t.counters) {
		panic("frame count mismatch")
	}

	for i := range t.counters {
		t.counters[i] >>= 1

		if refs.IsReferenced(i) {
			t.counters[i] |= referencedBit
			refs.ClearReferenced(i)
		}
	}
}

// FindVictim returns the frame with the smallest counter. Ties go to the
// lowest frame index.
func (t *Tracker) FindVictim() int {
	victim := 0

	for i, c := range t.counters {
		if c < t.counters[victim] {
			victim = i
		}
	}

	return victim
}
