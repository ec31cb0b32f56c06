package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

// ProcessStats counts what happened to the pages of one process.
type ProcessStats struct {
	PID       vm.PID
	Accesses  uint64
	Writes    uint64
	Faults    uint64
	EvictedBy uint64
	Evicted   uint64
}

// A StatsTracer counts accesses, faults, and evictions per process.
type StatsTracer struct {
	processes map[vm.PID]*ProcessStats
}

// NewStatsTracer creates a StatsTracer with no process recorded.
func NewStatsTracer() *StatsTracer {
	return &StatsTracer{
		processes: make(map[vm.PID]*ProcessStats),
	}
}

// Func records the access of a step snapshot.
func (t *StatsTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != simulator.HookPosStep {
		return
	}

	s := ctx.Item.(simulator.Snapshot)

	p := t.process(s.Access.PID)
	p.Accesses++

	if s.Access.Command.IsWrite() {
		p.Writes++
	}

	if s.Fault {
		p.Faults++
	}

	if s.Allocation.Evicted {
		p.EvictedBy++
		t.process(s.Allocation.Victim.PID).Evicted++
	}
}

func (t *StatsTracer) process(pid vm.PID) *ProcessStats {
	p, ok := t.processes[pid]
	if !ok {
		p = &ProcessStats{PID: pid}
		t.processes[pid] = p
	}

	return p
}

// Processes returns the counts of every process seen, ordered by PID.
func (t *StatsTracer) Processes() []ProcessStats {
	list := make([]ProcessStats, 0, len(t.processes))
	for _, p := range t.processes {
		list = append(list, *p)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].PID < list[j].PID
	})

	return list
}

// Report writes one line per process.
func (t *StatsTracer) Report(w io.Writer) error {
	_, err := fmt.Fprintf(w, "process#\taccesses\twrites\tfaults\tevictions\tevicted\n")
	if err != nil {
		return err
	}

	for _, p := range t.Processes() {
		_, err = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\n",
			p.PID, p.Accesses, p.Writes, p.Faults, p.EvictedBy, p.Evicted)
		if err != nil {
			return err
		}
	}

	return nil
}
