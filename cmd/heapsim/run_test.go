package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/fixedheap/heap"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// resetFlags restores the global flags to their defaults between tests
func resetFlags() {
	verbose = false
	jsonOut = false
	blocks = 10
	blockSize = heap.DefaultBlockSize
	baseFlag = "0x01000000"
}

func runScript(t *testing.T, script string) (string, error) {
	t.Helper()

	ops, err := parseScript(strings.NewReader(script))
	require.NoError(t, err)

	h, err := newHeap(newLogger(io.Discard))
	require.NoError(t, err)

	var out bytes.Buffer
	err = newSimulation(h, &out).run(ops)
	return out.String(), err
}

func TestRunReusesFreedRun(t *testing.T) {
	resetFlags()
	if memutils.DebugMargin > 0 {
		t.Skip("block counts in this script assume no debug margin")
	}

	output, err := runScript(t, `
alloc a 12288
alloc b 8192
map
free a
map
alloc c 12288
map
check
`)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"alloc a 12288: 0x01000000",
		"alloc b 8192: 0x01003000",
		"[#==#=.....]",
		"free a: 0x01000000",
		"[...#=.....]",
		"alloc c 12288: 0x01000000",
		"[#==#=.....]",
		"check: ok",
		"",
	}, "\n"), output)
}

func TestRunOutOfMemoryContinues(t *testing.T) {
	resetFlags()
	blocks = 2

	output, err := runScript(t, `
alloc big 65536
alloc zero 0
alloc small 1
check
`)
	require.NoError(t, err)
	require.Contains(t, output, "alloc big 65536: out of memory")
	require.Contains(t, output, "alloc zero 0: out of memory")
	require.Contains(t, output, "alloc small 1: 0x01000000")
	require.Contains(t, output, "check: ok")
}

func TestRunErrorsReportLine(t *testing.T) {
	resetFlags()

	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{
			name:    "free unknown",
			script:  "alloc a 1\nfree b\n",
			wantErr: "line 2",
		},
		{
			name:    "double free",
			script:  "alloc a 1\nfree a\nfree a\n",
			wantErr: "line 3",
		},
		{
			name:    "duplicate name",
			script:  "alloc a 1\n\nalloc a 1\n",
			wantErr: "line 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runScript(t, tt.script)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunStats(t *testing.T) {
	resetFlags()

	output, err := runScript(t, "alloc a 1\nalloc b 1\nfree a\nstats\n")
	require.NoError(t, err)
	require.Contains(t, output, "Allocations: 1 (1 blocks, 4096 bytes)")
	require.Contains(t, output, "Free:        9 blocks in 2 runs")
	require.Contains(t, output, "Largest free run: 8 blocks")
}

func TestRunJSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	defer resetFlags()

	output, err := runScript(t, "alloc a 1\nmap\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)

	var document map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &document))
	require.Contains(t, document, "General")
	require.Contains(t, document, "Table")
}

func TestRunCommand(t *testing.T) {
	resetFlags()

	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("alloc a 100\nmap\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"run", path, "--blocks", "4", "--block-size", "256", "--base", "0x8000"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "alloc a 100: 0x00008000")
	require.Contains(t, out.String(), "[#...]")
}

func TestLayoutCommand(t *testing.T) {
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"layout", "--blocks", "8", "--json"})
	defer rootCmd.SetArgs(nil)
	defer resetFlags()

	require.NoError(t, rootCmd.Execute())
	require.JSONEq(t, `{
		"Base": "0x01000000",
		"End": "0x01008000",
		"BlockSize": 4096,
		"BlockCount": 8,
		"Size": 32768
	}`, strings.TrimSpace(out.String()))
}

func TestLayoutRejectsBadGeometry(t *testing.T) {
	resetFlags()

	h, err := newHeap(newLogger(io.Discard))
	require.NoError(t, err)
	require.NotNil(t, h)

	baseFlag = "0x01000800"
	_, err = newHeap(newLogger(io.Discard))
	require.Error(t, err)

	baseFlag = "not-an-address"
	_, err = newHeap(newLogger(io.Discard))
	require.Error(t, err)

	resetFlags()
	blocks = 0
	_, err = newHeap(newLogger(io.Discard))
	require.Error(t, err)
	resetFlags()
}
