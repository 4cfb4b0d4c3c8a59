package heap

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/fixedheap/heap/internal/utils"
	"github.com/vkngwrapper/fixedheap/memutils"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateHeapExternallySynchronized ensures that the heap will not be synchronized internally. The
	// consumer must guarantee it is used from only one goroutine at a time or is synchronized by some
	// other mechanism.
	CreateHeapExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateHeapExternallySynchronized: "CreateHeapExternallySynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for flag, name := range createFlagsMapping {
		if f&flag != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

const (
	// DefaultBlockSize is the block size used when CreateOptions.BlockSize is left at 0
	DefaultBlockSize int = 4096
)

// CreateOptions contains optional settings when creating a heap. It is valid to leave all the fields blank.
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
	// BlockSize is the size in bytes of every block, and so the smallest unit the heap hands out. It must
	// be a power of two. Defaults to DefaultBlockSize.
	BlockSize int
	// RegionAlignment is the alignment in bytes the base and end addresses of the region must satisfy.
	// It must be a power of two no smaller than BlockSize. Defaults to BlockSize.
	RegionAlignment int
	// Memory is the optional memory backing the region, indexed by address - base. When it is provided it
	// must be exactly as long as the region; Heap.Bytes and Heap.CheckCorruption require it.
	Memory []byte
	// Callbacks is an optional set of callbacks that will be executed after each allocation and release
	Callbacks *CallbackOptions
}

// New validates a statically reserved region [base, end) against a pre-sized table and binds them into a
// Heap. Every entry in the table is marked free. If validation fails the returned error matches
// memutils.ErrInvalidArgument and the table is left untouched.
//
// logger - The logger heap operations are reported to at debug level. If nil, slog.Default() is used.
//
// base, end - The bounds of the region. Both must be aligned to the region alignment.
//
// table - A table with exactly (end - base) / BlockSize entries, not bound to any other heap.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, base, end Address, table *metadata.HeapTable, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.Default()
	}

	blockSize := options.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	alignment := options.RegionAlignment
	if alignment == 0 {
		alignment = blockSize
	}

	logger.Debug("Heap::New",
		slog.String("Base", base.String()),
		slog.String("End", end.String()),
		slog.Int("BlockSize", blockSize),
		slog.Int("RegionAlignment", alignment),
		slog.String("Flags", options.Flags.String()),
	)

	err := validateGeometry(base, end, table, blockSize, alignment, options.Memory)
	if err != nil {
		return nil, err
	}

	heap := &Heap{
		logger:          logger,
		base:            base,
		end:             end,
		blockSize:       blockSize,
		regionAlignment: alignment,
		memory:          options.Memory,
		mutex:           utils.NewOptionalMutex(options.Flags&CreateHeapExternallySynchronized == 0),
		metadata:        metadata.NewFixedBlockMetadata(),
	}
	heap.callbacks = heapCallbacks{
		Callbacks: options.Callbacks,
		Heap:      heap,
	}

	err = heap.metadata.Init(table, blockSize)
	if err != nil {
		return nil, err
	}

	return heap, nil
}

func validateGeometry(base, end Address, table *metadata.HeapTable, blockSize, alignment int, memory []byte) error {
	if table == nil {
		return errors.Wrap(memutils.ErrInvalidArgument, "heap table cannot be nil")
	}

	err := memutils.CheckPow2(blockSize, "CreateOptions.BlockSize")
	if err != nil {
		return errors.Mark(err, memutils.ErrInvalidArgument)
	}

	err = memutils.CheckPow2(alignment, "CreateOptions.RegionAlignment")
	if err != nil {
		return errors.Mark(err, memutils.ErrInvalidArgument)
	}

	if alignment < blockSize {
		return errors.Wrapf(memutils.ErrInvalidArgument, "region alignment %d is smaller than block size %d", alignment, blockSize)
	}

	if !memutils.IsAligned(base, Address(alignment)) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "base address %s is not aligned to %d", base, alignment)
	}

	if !memutils.IsAligned(end, Address(alignment)) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "end address %s is not aligned to %d", end, alignment)
	}

	if end <= base {
		return errors.Wrapf(memutils.ErrInvalidArgument, "end address %s must be above base address %s", end, base)
	}

	totalBlocks := uint64(end-base) / uint64(blockSize)
	if totalBlocks != uint64(table.Len()) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "region spans %d blocks, but the heap table holds %d entries", totalBlocks, table.Len())
	}

	if memory != nil && uint64(len(memory)) != uint64(end-base) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "backing memory is %d bytes, but the region is %d bytes", len(memory), uint64(end-base))
	}

	return nil
}
