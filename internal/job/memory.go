package job

import (
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/mem"

	"github.com/kiesman99/tilemerge/internal/collector"
)

// bytesPerPixel is the worst case: four float32 channels
const bytesPerPixel = 16

// checkMemory warns when an output of the given size would not fit into the
// memory currently available. It never fails the job.
func checkMemory(width, height int) {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	need := uint64(width) * uint64(height) * bytesPerPixel
	if need > vmem.Available {
		collector.Logger().Warn("output may not fit into memory",
			"need", humanize.Bytes(need),
			"available", humanize.Bytes(vmem.Available))
	}
}
