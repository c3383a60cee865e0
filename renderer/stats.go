package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

type TracerStat struct {
	// The tracer id.
	Id string

	// The block height and the percentage of total frame area it represents.
	BlockH       uint32
	FramePercent float32

	// Render time for assigned block
	RenderTime time.Duration

	// Traced rays.
	PrimaryRays uint64
	ShadowRays  uint64
	Hits        uint64
}

type FrameStats struct {
	// Individual tracer stats.
	Tracers []TracerStat

	// Total render time for entire frame.
	RenderTime time.Duration
}

// Get the total number of traced rays.
func (fs FrameStats) Rays() uint64 {
	var total uint64
	for _, stat := range fs.Tracers {
		total += stat.PrimaryRays + stat.ShadowRays
	}
	return total
}

// Build a tabular representation of the frame statistics.
func (fs FrameStats) String() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Primary rays", "Shadow rays", "Render time"})
	for _, stat := range fs.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%d", stat.PrimaryRays),
			fmt.Sprintf("%d", stat.ShadowRays),
			stat.RenderTime.String(),
		})
	}

	var mraysPerSec float64
	if fs.RenderTime > 0 {
		mraysPerSec = float64(fs.Rays()) / fs.RenderTime.Seconds() / 1e6
	}
	table.SetFooter([]string{"", "", "", "", fmt.Sprintf("%.2f MRays/s", mraysPerSec), fs.RenderTime.String()})

	table.Render()
	return buf.String()
}
