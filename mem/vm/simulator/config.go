package simulator

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrMalformedInput is reported when the simulation configuration or the
// access trace cannot be understood.
var ErrMalformedInput = errors.New("malformed input")

const maxFrameBits = 24

// A Config describes the address spaces of a simulation.
type Config struct {
	VirtualAddressBits  uint
	PhysicalAddressBits uint
	OffsetBits          uint
	NumProcesses        uint64
}

// Validate checks that the configuration describes a machine that can be
// simulated.
func (c Config) Validate() error {
	if c.NumProcesses == 0 || bits.OnesCount64(c.NumProcesses) != 1 {
		return fmt.Errorf("%w: number of processes %d is not a power of two",
			ErrMalformedInput, c.NumProcesses)
	}

	if c.OffsetBits > c.VirtualAddressBits {
		return fmt.Errorf("%w: %d offset bits exceed %d virtual address bits",
			ErrMalformedInput, c.OffsetBits, c.VirtualAddressBits)
	}

	if c.OffsetBits > c.PhysicalAddressBits {
		return fmt.Errorf("%w: %d offset bits exceed %d physical address bits",
			ErrMalformedInput, c.OffsetBits, c.PhysicalAddressBits)
	}

	if c.VirtualAddressBits >= 64 {
		return fmt.Errorf("%w: %d virtual address bits are too many",
			ErrMalformedInput, c.VirtualAddressBits)
	}

	if c.PhysicalAddressBits >= 64 {
		return fmt.Errorf("%w: %d physical address bits are too many",
			ErrMalformedInput, c.PhysicalAddressBits)
	}

	if c.PhysicalAddressBits-c.OffsetBits > maxFrameBits {
		return fmt.Errorf("%w: %d frames are too many to simulate",
			ErrMalformedInput, uint64(1)<<(c.PhysicalAddressBits-c.OffsetBits))
	}

	if c.ProcessBits()+c.OffsetBits+3 > 64 {
		return fmt.Errorf("%w: page table entry does not fit in 64 bits",
			ErrMalformedInput)
	}

	return nil
}

// VirtualMemorySize returns the number of bytes a process can address.
func (c Config) VirtualMemorySize() uint64 {
	return 1 << c.VirtualAddressBits
}

// PhysicalMemorySize returns the number of bytes of physical memory.
func (c Config) PhysicalMemorySize() uint64 {
	return 1 << c.PhysicalAddressBits
}

// PageSize returns the number of bytes in a page.
func (c Config) PageSize() uint64 {
	return 1 << c.OffsetBits
}

// NumPages returns the number of virtual pages of a process.
func (c Config) NumPages() uint64 {
	return 1 << (c.VirtualAddressBits - c.OffsetBits)
}

// NumFrames returns the number of physical frames.
func (c Config) NumFrames() int {
	return 1 << (c.PhysicalAddressBits - c.OffsetBits)
}

// ProcessBits returns the width of the process number in a page table entry.
func (c Config) ProcessBits() uint {
	if c.NumProcesses == 0 {
		return 0
	}

	return uint(bits.Len64(c.NumProcesses) - 1)
}
