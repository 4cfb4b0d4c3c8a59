package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type scriptOpKind int

const (
	opAlloc scriptOpKind = iota
	opFree
	opMap
	opStats
	opCheck
)

// scriptOp is a single parsed line of an allocation script
type scriptOp struct {
	line int
	kind scriptOpKind
	name string
	size int
}

// parseScript reads an allocation script. Each non-blank line holds one command:
//
//	alloc <name> <bytes>
//	free <name>
//	map
//	stats
//	check
//
// Everything after a # is ignored.
func parseScript(r io.Reader) ([]scriptOp, error) {
	var ops []scriptOp

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := scanner.Text()
		if comment := strings.IndexByte(text, '#'); comment >= 0 {
			text = text[:comment]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		op, err := parseOp(line, fields)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read script")
	}

	return ops, nil
}

func parseOp(line int, fields []string) (scriptOp, error) {
	op := scriptOp{line: line}

	expectArgs := func(count int) error {
		if len(fields)-1 != count {
			return errors.Newf("line %d: %s expects %d argument(s), got %d", line, fields[0], count, len(fields)-1)
		}
		return nil
	}

	switch fields[0] {
	case "alloc":
		if err := expectArgs(2); err != nil {
			return op, err
		}

		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return op, errors.Newf("line %d: invalid allocation size %q", line, fields[2])
		}

		op.kind = opAlloc
		op.name = fields[1]
		op.size = size
	case "free":
		if err := expectArgs(1); err != nil {
			return op, err
		}

		op.kind = opFree
		op.name = fields[1]
	case "map":
		op.kind = opMap
	case "stats":
		op.kind = opStats
	case "check":
		op.kind = opCheck
	default:
		return op, errors.Newf("line %d: unknown command %q", line, fields[0])
	}

	switch op.kind {
	case opMap, opStats, opCheck:
		if err := expectArgs(0); err != nil {
			return op, err
		}
	}

	return op, nil
}
