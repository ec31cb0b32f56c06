package report

import "github.com/sarchlab/pagesim/mem/vm/simulator"

// frameRow is the content of one frame at one step.
type frameRow struct {
	Step       int64
	FrameNum   int64
	Modified   bool
	Referenced bool
	Present    bool
	PID        int64
	Page       int64
	PTE        int64
	Aging      int64
}

// accessRow is the outcome of one access.
type accessRow struct {
	Step       int64
	PID        int64
	Command    string
	VAddr      int64
	Page       int64
	PageOffset int64
	Fault      bool
	FrameNum   int64
	Evicted    bool
	VictimPID  int64
	VictimPage int64
}

func frameRows(s simulator.Snapshot) []frameRow {
	rows := make([]frameRow, 0, len(s.Frames))

	for _, f := range s.Frames {
		row := frameRow{
			Step:     int64(s.Step),
			FrameNum: int64(f.Frame),
			PTE:      int64(f.PTE),
			Aging:    int64(f.Aging),
		}

		if f.Entry.Present {
			row.Modified = f.Entry.Modified
			row.Referenced = f.Entry.Referenced
			row.Present = true
			row.PID = int64(f.Entry.PID)
			row.Page = int64(f.Entry.Page)
		}

		rows = append(rows, row)
	}

	return rows
}

func makeAccessRow(s simulator.Snapshot) accessRow {
	row := accessRow{
		Step:       int64(s.Step),
		PID:        int64(s.Access.PID),
		Command:    s.Access.Command.String(),
		VAddr:      int64(s.Access.VAddr),
		Page:       int64(s.Page),
		PageOffset: int64(s.Offset),
		Fault:      s.Fault,
		FrameNum:   int64(s.Allocation.Frame),
		Evicted:    s.Allocation.Evicted,
	}

	if s.Allocation.Evicted {
		row.VictimPID = int64(s.Allocation.Victim.PID)
		row.VictimPage = int64(s.Allocation.Victim.Page)
	}

	return row
}
