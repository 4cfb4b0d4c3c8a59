package main

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/fixedheap/heap"
)

func init() {
	rootCmd.AddCommand(newLayoutCmd())
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the geometry of an empty heap",
		Long: `The layout command validates the region described by the global flags
and prints its geometry.

Example:
  heapsim layout --blocks 64 --block-size 256 --base 0x8000
  heapsim layout --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHeap(newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			return printLayout(cmd.OutOrStdout(), h)
		},
	}
}

func printLayout(out io.Writer, h *heap.Heap) error {
	if jsonOut {
		writer := jwriter.NewWriter()
		obj := writer.Object()
		obj.Name("Base").String(h.Base().String())
		obj.Name("End").String(h.End().String())
		obj.Name("BlockSize").Int(h.BlockSize())
		obj.Name("BlockCount").Int(h.BlockCount())
		obj.Name("Size").Int(h.Size())
		obj.End()

		if err := writer.Error(); err != nil {
			return err
		}

		_, err := fmt.Fprintln(out, string(writer.Bytes()))
		return err
	}

	_, err := fmt.Fprintf(out, "Region:     %s - %s\nBlock size: %d\nBlocks:     %d\nSize:       %d\n",
		h.Base(), h.End(), h.BlockSize(), h.BlockCount(), h.Size())
	return err
}
