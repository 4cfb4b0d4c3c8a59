package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/fixedheap/heap"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

var (
	// Global flags
	verbose   bool
	jsonOut   bool
	blocks    int
	blockSize int
	baseFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "heapsim",
	Short: "Replay allocation scripts against a fixed-block heap",
	Long: `heapsim builds a fixed-block heap over a simulated region and replays
allocation scripts against it, printing the block map and statistics so that
allocation behavior can be inspected without a running system.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every heap operation")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output maps and statistics in JSON format")
	rootCmd.PersistentFlags().IntVar(&blocks, "blocks", 16, "Number of blocks in the region")
	rootCmd.PersistentFlags().IntVar(&blockSize, "block-size", heap.DefaultBlockSize, "Size in bytes of each block")
	rootCmd.PersistentFlags().StringVar(&baseFlag, "base", "0x01000000", "Base address of the region")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger reports heap operations to w at debug level in verbose mode, and only warnings otherwise
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newHeap builds a heap with backing memory from the global geometry flags
func newHeap(logger *slog.Logger) (*heap.Heap, error) {
	base, err := strconv.ParseUint(baseFlag, 0, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base address %q", baseFlag)
	}

	if blocks < 1 {
		return nil, errors.Newf("--blocks must be at least 1, got %d", blocks)
	}

	if blockSize < 1 {
		return nil, errors.Newf("--block-size must be at least 1, got %d", blockSize)
	}

	size := blocks * blockSize
	table := metadata.NewHeapTable(blocks)

	return heap.New(logger, heap.Address(base), heap.Address(base)+heap.Address(size), table, heap.CreateOptions{
		BlockSize: blockSize,
		Memory:    make([]byte, size),
	})
}
