// Package trace provides a line-oriented event source for the simulator. A
// trace is a text stream of access records:
//
//	# comments and blank lines are ignored
//	r <tid> <addr>     one instruction executing a read at addr
//	w <tid> <addr>     one instruction executing a write at addr
//	i <tid> <count>    count instructions with no memory operand
//
// Addresses accept 0x-prefixed hex or plain decimal. Thread starts are
// implicit: the first record naming a tid starts it, and every started thread
// is finished when the stream ends.
package trace

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Hooks is the calling contract between an event source and the simulator
// core.
type Hooks interface {
	OnThreadStart(tid int)
	OnThreadFini(tid int)
	OnInstruction(tid int)
	OnMemRead(tid int, ip, addr uint64)
	OnMemWrite(tid int, ip, addr uint64)
}

// Counts summarizes a replay.
type Counts struct {
	Instructions uint64
	Reads        uint64
	Writes       uint64
	Threads      int
}

// Replay streams the trace from r into h. It stops at the first malformed
// record, returning an error naming the line. The counts cover everything
// replayed so far.
func Replay(r io.Reader, h Hooks) (Counts, error) {
	var counts Counts
	started := make(map[int]bool)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return counts, errors.Errorf("trace: line %d: want 3 fields, got %d",
				lineNo, len(fields))
		}

		tid, err := strconv.Atoi(fields[1])
		if err != nil || tid < 0 {
			return counts, errors.Errorf("trace: line %d: bad thread id %q",
				lineNo, fields[1])
		}
		if !started[tid] {
			started[tid] = true
			h.OnThreadStart(tid)
		}

		switch fields[0] {
		case "r", "w":
			addr, err := strconv.ParseUint(fields[2], 0, 64)
			if err != nil {
				return counts, errors.Wrapf(err, "trace: line %d: bad address %q",
					lineNo, fields[2])
			}
			h.OnInstruction(tid)
			counts.Instructions++
			if fields[0] == "r" {
				h.OnMemRead(tid, 0, addr)
				counts.Reads++
			} else {
				h.OnMemWrite(tid, 0, addr)
				counts.Writes++
			}
		case "i":
			n, err := strconv.ParseUint(fields[2], 0, 64)
			if err != nil {
				return counts, errors.Wrapf(err, "trace: line %d: bad count %q",
					lineNo, fields[2])
			}
			for j := uint64(0); j < n; j++ {
				h.OnInstruction(tid)
			}
			counts.Instructions += n
		default:
			return counts, errors.Errorf("trace: line %d: unknown record %q",
				lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return counts, errors.Wrap(err, "trace: read")
	}

	tids := make([]int, 0, len(started))
	for tid := range started {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	for _, tid := range tids {
		h.OnThreadFini(tid)
	}
	counts.Threads = len(tids)

	return counts, nil
}

// Writer emits the trace format so generated workloads can be persisted and
// replayed later.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w in a trace writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Read emits one read record.
func (w *Writer) Read(tid int, addr uint64) error {
	return w.record('r', tid, addr)
}

// Write emits one write record.
func (w *Writer) Write(tid int, addr uint64) error {
	return w.record('w', tid, addr)
}

func (w *Writer) record(op byte, tid int, addr uint64) error {
	w.bw.WriteByte(op)
	w.bw.WriteByte(' ')
	w.bw.WriteString(strconv.Itoa(tid))
	w.bw.WriteString(" 0x")
	w.bw.WriteString(strconv.FormatUint(addr, 16))
	return w.bw.WriteByte('\n')
}

// Instructions emits one non-memory instruction record for count
// instructions.
func (w *Writer) Instructions(tid int, count uint64) error {
	w.bw.WriteString("i ")
	w.bw.WriteString(strconv.Itoa(tid))
	w.bw.WriteByte(' ')
	w.bw.WriteString(strconv.FormatUint(count, 10))
	return w.bw.WriteByte('\n')
}

// Flush flushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
