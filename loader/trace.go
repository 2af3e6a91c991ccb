package loader

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedTrace is returned for trace lines that cannot be parsed.
var ErrMalformedTrace = errors.New("malformed trace line")

// TraceOp is the kind of a traced memory operation.
type TraceOp byte

// Trace operations, named by their trace letter.
const (
	TraceInstruction TraceOp = 'I'
	TraceLoad        TraceOp = 'L'
	TraceStore       TraceOp = 'S'
	TraceModify      TraceOp = 'M'
)

// TraceRecord is one line of a memory trace.
type TraceRecord struct {
	Op   TraceOp
	Addr uint64
	Size uint32
}

// Accesses expands the record into data cache accesses. A modify is a load
// followed by a store to the same address. Instruction fetches produce no
// data access.
func (r TraceRecord) Accesses() []TraceOp {
	switch r.Op {
	case TraceLoad, TraceStore:
		return []TraceOp{r.Op}
	case TraceModify:
		return []TraceOp{TraceLoad, TraceStore}
	}
	return nil
}

// String formats the record the way it appears in a trace.
func (r TraceRecord) String() string {
	return string(r.Op) + " " + strconv.FormatUint(r.Addr, 16) + "," + strconv.FormatUint(uint64(r.Size), 10)
}

// ParseTrace reads valgrind-style memory trace lines of the form
// "op addr,size" with a hexadecimal address. Blank lines and lines that
// start with '=' are skipped.
func ParseTrace(r io.Reader) ([]TraceRecord, error) {
	var records []TraceRecord

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '=' {
			continue
		}

		record, err := parseTraceLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading trace")
	}

	return records, nil
}

func parseTraceLine(line string) (TraceRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || len(fields[0]) != 1 {
		return TraceRecord{}, errors.Wrapf(ErrMalformedTrace, "%q", line)
	}

	op := TraceOp(fields[0][0])
	switch op {
	case TraceInstruction, TraceLoad, TraceStore, TraceModify:
	default:
		return TraceRecord{}, errors.Wrapf(ErrMalformedTrace, "unknown operation %q", fields[0])
	}

	addrText, sizeText, ok := strings.Cut(fields[1], ",")
	if !ok {
		return TraceRecord{}, errors.Wrapf(ErrMalformedTrace, "missing size in %q", line)
	}

	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return TraceRecord{}, errors.Wrapf(ErrMalformedTrace, "address %q", addrText)
	}

	size, err := strconv.ParseUint(sizeText, 10, 32)
	if err != nil {
		return TraceRecord{}, errors.Wrapf(ErrMalformedTrace, "size %q", sizeText)
	}

	return TraceRecord{Op: op, Addr: addr, Size: uint32(size)}, nil
}
