package pose

import "github.com/motiondata/posesync/internal/monitoring"

// FilterResult is the outcome of applying the removal policy to an analyzed
// observation sequence.
type FilterResult struct {
	// SourceIndices are the original frame indices retained as interpolation
	// anchors: neither removed nor flagged as trend outliers. Strictly
	// increasing.
	SourceIndices []int

	// OutlierIndices are frames excluded from SourceIndices because of trend
	// deviation. They are not counted as removed: their slots are refilled by
	// interpolation, which preserves the surrounding temporal information.
	OutlierIndices []int

	// Removed counts frames dropped outright (off-screen runs plus individual
	// low-confidence frames).
	Removed int
}

// FilterObservations applies the removal policy to the observation sequence,
// in order:
//
//  1. Off-screen frames are removed as consecutive runs of at least
//     MinOffScreenRun frames. Shorter runs survive, so a single odd frame
//     nested between on-screen frames is not lost.
//  2. Remaining low-confidence frames are removed individually.
//  3. Outlier frames are excluded from the source set but not removed; they
//     become interpolation targets rather than anchors.
//
// Observations and verdicts must be index-aligned (as produced by
// AnalyzeSequence).
func FilterObservations(observations []Observation, verdicts []QualityVerdict, cfg EngineConfig) FilterResult {
	result := FilterResult{}
	removed := make([]bool, len(observations))

	// Pass 1: off-screen runs.
	for i := 0; i < len(verdicts); {
		if !verdicts[i].IsOffScreen {
			i++
			continue
		}
		runStart := i
		for i < len(verdicts) && verdicts[i].IsOffScreen {
			i++
		}
		runLen := i - runStart
		if runLen >= cfg.MinOffScreenRun {
			for j := runStart; j < i; j++ {
				removed[j] = true
			}
			result.Removed += runLen
			monitoring.Logf("pose: removed off-screen run frames %d-%d (%d frames)",
				verdicts[runStart].FrameNumber, verdicts[i-1].FrameNumber, runLen)
		}
	}

	// Pass 2: individual low-confidence frames.
	for i, v := range verdicts {
		if removed[i] || !v.IsLowConfidence {
			continue
		}
		removed[i] = true
		result.Removed++
	}

	// Pass 3: outliers are retained for replacement, never used as anchors.
	for i, v := range verdicts {
		if removed[i] {
			continue
		}
		if v.IsOutlier {
			result.OutlierIndices = append(result.OutlierIndices, observations[i].FrameNumber)
			continue
		}
		result.SourceIndices = append(result.SourceIndices, observations[i].FrameNumber)
	}

	return result
}
