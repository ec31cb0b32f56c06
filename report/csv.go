package report

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

// CSVRecorder stores every frame of every snapshot into a CSV file.
type CSVRecorder struct {
	path string
	file *os.File

	rows       []frameRow
	bufferSize int
}

// NewCSVRecorder creates a new CSVRecorder.
func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the CSV file. If the file already exists, it will be
// overwritten. The buffered rows are written when the program exits through
// atexit.
func (r *CSVRecorder) Init() error {
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.file = file

	_, err = fmt.Fprintf(file,
		"Step, Frame, Modified, Referenced, Present, PID, Page, PTE, Aging\n")
	if err != nil {
		return err
	}

	atexit.Register(func() {
		err := r.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s: %v\n", r.path, err)
		}
	})

	return nil
}

// Func buffers the frames of the snapshot carried by the hook context.
func (r *CSVRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != simulator.HookPosInit && ctx.Pos != simulator.HookPosStep {
		return
	}

	snapshot := ctx.Item.(simulator.Snapshot)
	r.rows = append(r.rows, frameRows(snapshot)...)

	if len(r.rows) >= r.bufferSize {
		err := r.Flush()
		if err != nil {
			panic(err)
		}
	}
}

// Flush writes the buffered rows to the CSV file.
func (r *CSVRecorder) Flush() error {
	if r.file == nil {
		return nil
	}

	for _, row := range r.rows {
		_, err := fmt.Fprintf(r.file, "%d, %d, %t, %t, %t, %d, %d, %d, %d\n",
			row.Step,
			row.FrameNum,
			row.Modified,
			row.Referenced,
			row.Present,
			row.PID,
			row.Page,
			row.PTE,
			row.Aging,
		)
		if err != nil {
			return err
		}
	}

	r.rows = nil

	return nil
}

// Close flushes the remaining rows and closes the file. Closing a closed
// recorder does nothing.
func (r *CSVRecorder) Close() error {
	if r.file == nil {
		return nil
	}

	err := r.Flush()
	if err != nil {
		return err
	}

	err = r.file.Close()
	r.file = nil

	return err
}
