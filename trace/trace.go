// Package trace reads the test case files that drive a simulation. The first
// line holds the virtual address bits, the physical address bits, and the page
// offset bits. The second line holds the number of processes. Every other line
// is an access in the form "<pid> <r|w> <virtual address>".
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

// A File is a parsed test case.
type File struct {
	Config   simulator.Config
	Accesses []vm.Access
}

// A SyntaxError describes a line that cannot be parsed.
type SyntaxError struct {
	Line   int
	Text   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Unwrap makes every SyntaxError match simulator.ErrMalformedInput.
func (e *SyntaxError) Unwrap() error {
	return simulator.ErrMalformedInput
}

// ReadFile parses the test case stored at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a test case. Blank lines are ignored.
func Parse(r io.Reader) (*File, error) {
	p := parser{scanner: bufio.NewScanner(r)}

	file := &File{}

	err := p.parseAddressBits(&file.Config)
	if err != nil {
		return nil, err
	}

	err = p.parseNumProcesses(&file.Config)
	if err != nil {
		return nil, err
	}

	err = file.Config.Validate()
	if err != nil {
		return nil, err
	}

	for {
		fields, ok, err := p.next()
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		access, err := p.parseAccess(fields)
		if err != nil {
			return nil, err
		}

		file.Accesses = append(file.Accesses, access)
	}

	return file, nil
}

type parser struct {
	scanner *bufio.Scanner
	lineNum int
	text    string
}

func (p *parser) next() ([]string, bool, error) {
	for p.scanner.Scan() {
		p.lineNum++
		p.text = p.scanner.Text()

		fields := strings.Fields(p.text)
		if len(fields) > 0 {
			return fields, true, nil
		}
	}

	return nil, false, p.scanner.Err()
}

func (p *parser) mustHaveLine(what string) ([]string, error) {
	fields, ok, err := p.next()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, &SyntaxError{
			Line:   p.lineNum + 1,
			Reason: "missing " + what,
		}
	}

	return fields, nil
}

func (p *parser) fail(reason string) error {
	return &SyntaxError{
		Line:   p.lineNum,
		Text:   p.text,
		Reason: reason,
	}
}

func (p *parser) parseAddressBits(c *simulator.Config) error {
	fields, err := p.mustHaveLine("address bits")
	if err != nil {
		return err
	}

	if len(fields) != 3 {
		return p.fail("expecting virtual, physical, and offset bits")
	}

	values := make([]uint, 3)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return p.fail("invalid number of bits " + f)
		}

		values[i] = uint(v)
	}

	c.VirtualAddressBits = values[0]
	c.PhysicalAddressBits = values[1]
	c.OffsetBits = values[2]

	return nil
}

func (p *parser) parseNumProcesses(c *simulator.Config) error {
	fields, err := p.mustHaveLine("number of processes")
	if err != nil {
		return err
	}

	if len(fields) != 1 {
		return p.fail("expecting the number of processes")
	}

	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return p.fail("invalid number of processes " + fields[0])
	}

	c.NumProcesses = n

	return nil
}

func (p *parser) parseAccess(fields []string) (vm.Access, error) {
	if len(fields) != 3 {
		return vm.Access{}, p.fail("expecting <pid> <r|w> <address>")
	}

	pid, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return vm.Access{}, p.fail("invalid process number " + fields[0])
	}

	cmd, err := vm.ParseCommand(fields[1])
	if err != nil {
		return vm.Access{}, p.fail(err.Error())
	}

	vAddr, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return vm.Access{}, p.fail("invalid address " + fields[2])
	}

	return vm.Access{
		PID:     vm.PID(pid),
		Command: cmd,
		VAddr:   vAddr,
	}, nil
}
