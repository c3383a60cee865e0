package tracer

import "math"

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign to the pool
	// of tracers using feedback collected from previous frames.
	//
	// This function returns the block height assignment for each tracer
	// in the input list.
	Schedule(tracers []Tracer, frameH uint32) []uint32
}

// The naive scheduler splits the frame using the tracer speed estimates
// and ignores any feedback from previous frames.
type naiveScheduler struct {
	blockAssignment []uint32
}

// Create a new naive scheduler instance
func NaiveScheduler() BlockScheduler {
	return &naiveScheduler{}
}

func (sch *naiveScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = make([]uint32, len(tracers))
	}
	assignBySpeed(sch.blockAssignment, tracers, frameH)
	return sch.blockAssignment
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent frames is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// Create a new perfect scheduler instance
func PerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool
// of tracers using feedback collected from previous frames.
//
// This function returns the block height assignment for each tracer in the
// input list. When previous frame information is available the scheduler
// uses the following formula for estimating the workload for tracer w and frame i+1:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i-1 / time,i-1)
func (sch *perfectScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	// If this is the first time we try to schedule or the number of tracers
	// has changed we need to reset the block assignments
	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = make([]uint32, len(tracers))
		assignBySpeed(sch.blockAssignment, tracers, frameH)
		return sch.blockAssignment
	}

	// Use last frame statistics
	var total float64
	rates := make([]float64, len(tracers))
	for idx, tr := range tracers {
		stats := tr.Stats()
		renderTime := float64(stats.RenderTime)
		if renderTime <= 0 {
			renderTime = 1
		}
		rates[idx] = float64(stats.BlockH) / renderTime
		total += rates[idx]
	}

	// No usable feedback (e.g. the previous frame was cancelled)
	if total == 0 {
		assignBySpeed(sch.blockAssignment, tracers, frameH)
		return sch.blockAssignment
	}

	scaler := float64(frameH) / total
	for idx := range tracers {
		sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(rates[idx]*scaler)))
	}
	balance(sch.blockAssignment, frameH)

	return sch.blockAssignment
}

// Distribute rows proportionally to each tracer's speed estimate.
func assignBySpeed(blockAssignment []uint32, tracers []Tracer, frameH uint32) {
	var total float64
	for _, tr := range tracers {
		total += float64(tr.SpeedEstimate())
	}
	if total <= 0 {
		total = float64(len(tracers))
	}
	scaler := float64(frameH) / total

	for idx, tr := range tracers {
		speed := float64(tr.SpeedEstimate())
		if speed <= 0 {
			speed = 1
		}
		blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(speed*scaler)))
	}
	balance(blockAssignment, frameH)
}

// Make the assignments add up to the frame height. Missing rows are
// appended to the first tracer; excess rows, caused by the one row minimum,
// are removed from the largest blocks.
func balance(blockAssignment []uint32, frameH uint32) {
	if len(blockAssignment) == 0 {
		return
	}

	var scheduledRows uint32
	for _, rows := range blockAssignment {
		scheduledRows += rows
	}

	if scheduledRows <= frameH {
		blockAssignment[0] += frameH - scheduledRows
		return
	}

	for excess := scheduledRows - frameH; excess > 0; excess-- {
		largest := 0
		for idx, rows := range blockAssignment {
			if rows > blockAssignment[largest] {
				largest = idx
			}
		}
		if blockAssignment[largest] == 0 {
			return
		}
		blockAssignment[largest]--
	}
}
