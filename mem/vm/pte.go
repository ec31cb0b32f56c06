package vm

import "fmt"

// A PTE is a page table entry packed into a single integer. From the low
// order bits up it holds the page number, the process number, and the
// present, referenced, and modified flags.
type PTE uint64

// A Field names one of the fields packed in a PTE.
type Field int

// Fields of a PTE.
const (
	PageNumField Field = iota
	ProcessNumField
	PresentBit
	ReferencedBit
	ModifiedBit
)

func (f Field) String() string {
	switch f {
	case PageNumField:
		return "page"
	case ProcessNumField:
		return "process"
	case PresentBit:
		return "present"
	case ReferencedBit:
		return "referenced"
	case ModifiedBit:
		return "modified"
	}

	return fmt.Sprintf("Field(%d)", int(f))
}

// IsFlag returns true if the field is a single status bit.
func (f Field) IsFlag() bool {
	return f == PresentBit || f == ReferencedBit || f == ModifiedBit
}

// An Entry is the decoded form of a PTE. The PID and Page fields are only
// meaningful when Present is set.
type Entry struct {
	PID        PID
	Page       uint64
	Present    bool
	Referenced bool
	Modified   bool
}

// Key returns the page key of the entry.
func (e Entry) Key() PageKey {
	return PageKey{PID: e.PID, Page: e.Page}
}

// A Codec packs and unpacks PTEs. The field widths are fixed at construction.
type Codec struct {
	processBits uint
	pageBits    uint
}

// NewCodec creates a Codec for entries with the given process number and
// page number widths.
func NewCodec(processBits, pageBits uint) Codec {
	if processBits+pageBits+3 > 64 {
		panic("page table entry does not fit in 64 bits")
	}

	return Codec{
		processBits: processBits,
		pageBits:    pageBits,
	}
}

// ProcessBits returns the width of the process number field.
func (c Codec) ProcessBits() uint {
	return c.processBits
}

// PageBits returns the width of the page number field.
func (c Codec) PageBits() uint {
	return c.pageBits
}

func (c Codec) offsetOf(f Field) uint {
	switch f {
	case PageNumField:
		return 0
	case ProcessNumField:
		return c.pageBits
	case PresentBit:
		return c.pageBits + c.processBits
	case ReferencedBit:
		return c.pageBits + c.processBits + 1
	case ModifiedBit:
		return c.pageBits + c.processBits + 2
	}

	panic(fmt.Sprintf("unknown field %d", int(f)))
}

func (c Codec) widthOf(f Field) uint {
	switch f {
	case PageNumField:
		return c.pageBits
	case ProcessNumField:
		return c.processBits
	}

	return 1
}

func mask(width uint) uint64 {
	return (uint64(1) << width) - 1
}

// Field extracts the value of a field from the entry. Flags are returned as
// 0 or 1.
func (c Codec) Field(pte PTE, f Field) uint64 {
	return (uint64(pte) >> c.offsetOf(f)) & mask(c.widthOf(f))
}

// Set turns on a flag of the entry.
func (c Codec) Set(pte PTE, f Field) PTE {
	c.flagMustBeValid(f)

	return pte | PTE(1)<<c.offsetOf(f)
}

// Clear turns off a flag of the entry.
func (c Codec) Clear(pte PTE, f Field) PTE {
	c.flagMustBeValid(f)

	return pte &^ (PTE(1) << c.offsetOf(f))
}

// ReplaceIdentity overwrites the process number and the page number of the
// entry. The flags are kept as they are.
func (c Codec) ReplaceIdentity(pte PTE, pid PID, page uint64) PTE {
	identityBits := c.processBits + c.pageBits

	pte &^= PTE(mask(identityBits))
	pte |= PTE((uint64(pid) & mask(c.processBits)) << c.pageBits)
	pte |= PTE(page & mask(c.pageBits))

	return pte
}

// Encode packs an entry.
func (c Codec) Encode(e Entry) PTE {
	pte := c.ReplaceIdentity(0, e.PID, e.Page)

	if e.Present {
		pte = c.Set(pte, PresentBit)
	}

	if e.Referenced {
		pte = c.Set(pte, ReferencedBit)
	}

	if e.Modified {
		pte = c.Set(pte, ModifiedBit)
	}

	return pte
}

// Decode unpacks an entry.
func (c Codec) Decode(pte PTE) Entry {
	return Entry{
		PID:        PID(c.Field(pte, ProcessNumField)),
		Page:       c.Field(pte, PageNumField),
		Present:    c.Field(pte, PresentBit) == 1,
		Referenced: c.Field(pte, ReferencedBit) == 1,
		Modified:   c.Field(pte, ModifiedBit) == 1,
	}
}

func (c Codec) flagMustBeValid(f Field) {
	if !f.IsFlag() {
		panic(fmt.Sprintf("%s is not a flag", f))
	}
}
