// Package vm provides the models for inverted page tables and the
// translation of virtual addresses into physical frames.
package vm

import "fmt"

// PID stands for Process ID.
type PID uint32

// A Command is the kind of memory operation an access performs.
type Command byte

// Commands supported by the access trace.
const (
	Read  Command = 'r'
	Write Command = 'w'
)

// IsWrite returns true if the command modifies the page it touches.
func (c Command) IsWrite() bool {
	return c == Write
}

func (c Command) String() string {
	return string(rune(c))
}

// ParseCommand converts the trace token of a command into a Command.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "r":
		return Read, nil
	case "w":
		return Write, nil
	}

	return 0, fmt.Errorf("unknown command %q", s)
}

// An Access asks the page table to resolve one virtual address of a process.
type Access struct {
	PID     PID
	Command Command
	VAddr   uint64
}

// Split breaks the virtual address into the page number and the offset within
// the page.
func (a Access) Split(log2PageSize uint) (page, offset uint64) {
	page = a.VAddr >> log2PageSize
	offset = a.VAddr & ((1 << log2PageSize) - 1)

	return page, offset
}

func (a Access) String() string {
	return fmt.Sprintf("Process: %d  Command: %s  Virtual Memory Location: %d",
		a.PID, a.Command, a.VAddr)
}

// A PageKey identifies a virtual page of a process. A resident page has
// exactly one PageKey in the frame table.
type PageKey struct {
	PID  PID
	Page uint64
}

func (k PageKey) String() string {
	return fmt.Sprintf("(%d, %d)", k.PID, k.Page)
}
