package heap

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/fixedheap/memutils"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
)

// CalculateStatistics populates stats with the current occupancy of the heap
func (h *Heap) CalculateStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.Clear()
	h.metadata.AddDetailedStatistics(stats)
}

// BuildStatsString returns a JSON document describing the heap. When detailedMap is true the document
// also lists every allocation and free run in address order.
func (h *Heap) BuildStatsString(detailedMap bool) string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.metadata.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	root := writer.Object()

	general := root.Name("General").Object()
	general.Name("Base").String(h.base.String())
	general.Name("End").String(h.end.String())
	general.Name("RegionAlignment").Int(h.regionAlignment)
	general.Name("Synchronized").Bool(h.mutex.Enabled())
	general.End()

	total := root.Name("Total").Object()
	printStatistics(&total, &stats)
	total.End()

	table := root.Name("Table").Object()
	h.metadata.BlockJsonData(&table)
	if detailedMap {
		h.printDetailedMap(&table)
	}
	table.End()

	root.End()
	return string(writer.Bytes())
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("BlockBytes").Int(stats.BlockBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBlockCount").Int(stats.AllocationBlockCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("FreeRunCount").Int(stats.FreeRunCount)

	if stats.AllocationCount > 0 {
		json.Name("AllocationBlocksMin").Int(stats.AllocationBlocksMin)
		json.Name("AllocationBlocksMax").Int(stats.AllocationBlocksMax)
	}

	if stats.FreeRunCount > 0 {
		json.Name("FreeRunBlocksMin").Int(stats.FreeRunBlocksMin)
		json.Name("FreeRunBlocksMax").Int(stats.FreeRunBlocksMax)
	}
}

func (h *Heap) printDetailedMap(json *jwriter.ObjectState) {
	arrayState := json.Name("Runs").Array()
	defer arrayState.End()

	_ = h.metadata.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, block int, blockCount int, userData any, free bool) error {
			obj := arrayState.Object()
			defer obj.End()

			obj.Name("Address").String(h.BlockToAddress(block).String())
			obj.Name("Block").Int(block)
			obj.Name("Blocks").Int(blockCount)

			if free {
				obj.Name("Type").String(metadata.OccupancyFree.String())
				return nil
			}

			obj.Name("Type").String(metadata.OccupancyTaken.String())
			if userData != nil {
				obj.Name("CustomData").String(fmt.Sprintf("%+v", userData))
			}

			return nil
		})
}
