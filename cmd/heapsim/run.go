package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/fixedheap/heap"
	"github.com/vkngwrapper/fixedheap/memutils"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Replay an allocation script",
		Long: `The run command replays an allocation script against a fresh heap.

Script commands:
  alloc <name> <bytes>   allocate and remember the address under name
  free <name>            release the allocation remembered under name
  map                    print the block map
  stats                  print heap statistics
  check                  validate the heap table and corruption markers

Example:
  heapsim run fragment.txt
  heapsim run fragment.txt --blocks 64 --block-size 256 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to open script")
			}
			defer file.Close()

			ops, err := parseScript(file)
			if err != nil {
				return err
			}

			h, err := newHeap(newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			return newSimulation(h, cmd.OutOrStdout()).run(ops)
		},
	}
}

// simulation tracks the named allocations of a script as it is replayed
type simulation struct {
	heap  *heap.Heap
	out   io.Writer
	names map[string]heap.Address
}

func newSimulation(h *heap.Heap, out io.Writer) *simulation {
	return &simulation{
		heap:  h,
		out:   out,
		names: make(map[string]heap.Address),
	}
}

func (s *simulation) run(ops []scriptOp) error {
	for _, op := range ops {
		if err := s.apply(op); err != nil {
			return errors.Wrapf(err, "line %d", op.line)
		}
	}

	return nil
}

func (s *simulation) apply(op scriptOp) error {
	switch op.kind {
	case opAlloc:
		return s.alloc(op.name, op.size)
	case opFree:
		return s.free(op.name)
	case opMap:
		return s.printMap()
	case opStats:
		return s.printStats()
	case opCheck:
		return s.check()
	}

	return errors.Newf("unhandled command %d", op.kind)
}

func (s *simulation) alloc(name string, size int) error {
	if _, exists := s.names[name]; exists {
		return errors.Newf("allocation %q is still live", name)
	}

	address, err := s.heap.AllocateZeroed(size, name)
	if errors.Is(err, memutils.ErrOutOfMemory) {
		fmt.Fprintf(s.out, "alloc %s %d: out of memory\n", name, size)
		return nil
	}
	if err != nil {
		return err
	}

	data, err := s.heap.Bytes(address)
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		data[i] = name[i%len(name)]
	}

	s.names[name] = address
	fmt.Fprintf(s.out, "alloc %s %d: %s\n", name, size, address)
	return nil
}

func (s *simulation) free(name string) error {
	address, exists := s.names[name]
	if !exists {
		return errors.Newf("no live allocation named %q", name)
	}

	if err := s.heap.Release(address); err != nil {
		return err
	}

	delete(s.names, name)
	fmt.Fprintf(s.out, "free %s: %s\n", name, address)
	return nil
}

// printMap draws one character per block: # begins a run, = continues it, . is free
func (s *simulation) printMap() error {
	if jsonOut {
		_, err := fmt.Fprintln(s.out, s.heap.BuildStatsString(true))
		return err
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for block := 0; block < s.heap.BlockCount(); block++ {
		entry, err := s.heap.Entry(block)
		if err != nil {
			return err
		}

		switch {
		case entry.IsFree():
			sb.WriteByte('.')
		case entry.IsFirst():
			sb.WriteByte('#')
		default:
			sb.WriteByte('=')
		}
	}
	sb.WriteByte(']')

	_, err := fmt.Fprintln(s.out, sb.String())
	return err
}

func (s *simulation) printStats() error {
	if jsonOut {
		_, err := fmt.Fprintln(s.out, s.heap.BuildStatsString(false))
		return err
	}

	var stats memutils.DetailedStatistics
	s.heap.CalculateStatistics(&stats)

	fmt.Fprintf(s.out, "Allocations: %d (%d blocks, %d bytes)\n", stats.AllocationCount, stats.AllocationBlockCount, stats.AllocationBytes)
	fmt.Fprintf(s.out, "Free:        %d blocks in %d runs\n", stats.FreeBlockCount(), stats.FreeRunCount)
	if stats.FreeRunCount > 0 {
		fmt.Fprintf(s.out, "Largest free run: %d blocks\n", stats.FreeRunBlocksMax)
	}

	return nil
}

func (s *simulation) check() error {
	if err := s.heap.Validate(); err != nil {
		return err
	}

	if err := s.heap.CheckCorruption(); err != nil {
		return err
	}

	err := s.heap.VisitAllocations(func(address heap.Address, size int, userData any) error {
		name, _ := userData.(string)
		if s.names[name] != address {
			return errors.Newf("allocation at %s is recorded as %q", address, name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(s.out, "check: ok")
	return err
}
