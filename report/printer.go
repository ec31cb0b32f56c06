// Package report turns the snapshots of a simulator into human readable
// tables, CSV files, and SQL tables.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

// configured is implemented by the simulators that can tell their
// configuration.
type configured interface {
	Config() simulator.Config
}

// A TablePrinter prints the inverted page table after every access.
type TablePrinter struct {
	w            io.Writer
	printSummary bool
	err          error
}

// NewTablePrinter creates a TablePrinter that writes to w.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{w: w}
}

// WithSummary makes the printer report the counts of hits and faults when a
// run ends.
func (p *TablePrinter) WithSummary(enabled bool) *TablePrinter {
	p.printSummary = enabled
	return p
}

// Err returns the first error met while writing.
func (p *TablePrinter) Err() error {
	return p.err
}

// Func prints the snapshot carried by the hook context.
func (p *TablePrinter) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case simulator.HookPosInit:
		if c, ok := ctx.Domain.(configured); ok {
			p.printSetup(c.Config())
		}

		p.printTable(ctx.Item.(simulator.Snapshot))
	case simulator.HookPosStep:
		snapshot := ctx.Item.(simulator.Snapshot)
		p.printAccess(snapshot)
		p.printTable(snapshot)
	case simulator.HookPosRunEnd:
		if p.printSummary {
			p.printStats(ctx.Item.(simulator.Stats))
		}
	}
}

func (p *TablePrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *TablePrinter) printSetup(c simulator.Config) {
	p.printf("INITIAL PAGETABLE SETUP:\n")
	p.printf("  Virtual Memory Size: %d\n", c.VirtualMemorySize())
	p.printf("  Physical Memory Size: %d\n", c.PhysicalMemorySize())
	p.printf("  Page Size: %d\n", c.PageSize())
	p.printf("  Number of Pages: %d\n", c.NumPages())
	p.printf("  Number of Frames: %d\n", c.NumFrames())
	p.printf("  Number of processes: %d\n", c.NumProcesses)
	p.printf("  Frame Bits: %d\n", c.ProcessBits())
}

func (p *TablePrinter) printAccess(s simulator.Snapshot) {
	p.printf("-----------------------------------------------------------\n")
	p.printf("%s\n", s.Access)
	p.printf("  pageNum:  %d   offset:  %d\n", s.Page, s.Offset)

	if !s.Fault {
		return
	}

	p.printf(" *** Page Fault ***\n")

	alloc := s.Allocation
	if alloc.Evicted {
		p.printf("Selecting frame %d for replacement based on aging.\n",
			alloc.Frame)
		p.printf("    Removing page %d of process %d from frame %d.\n",
			alloc.Victim.Page, alloc.Victim.PID, alloc.Frame)
	}

	p.printf("    Loading page %d of process %d into frame %d.\n",
		s.Page, s.Access.PID, alloc.Frame)
}

func (p *TablePrinter) printTable(s simulator.Snapshot) {
	p.printf("\nInverted Page Tables (with associated aging status):\n")
	p.printf("frame#\tmod\tref\tpresent\tprocess#\tpage#\taging\n")

	for _, f := range s.Frames {
		if !f.Entry.Present {
			p.printf("%d\t-\t-\t-\t-\t-\t-\n", f.Frame)
			continue
		}

		p.printf("%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			f.Frame,
			bit(f.Entry.Modified),
			bit(f.Entry.Referenced),
			bit(f.Entry.Present),
			f.Entry.PID,
			f.Entry.Page,
			f.Aging)
	}
}

func (p *TablePrinter) printStats(s simulator.Stats) {
	p.printf("===========================================================\n")
	p.printf("Accesses: %d  Hits: %d  Page faults: %d  Evictions: %d\n",
		s.Accesses, s.Hits, s.Faults, s.Evictions)
	p.printf("Hit ratio: %.4f\n", s.HitRatio())
}

func bit(b bool) int {
	if b {
		return 1
	}

	return 0
}
