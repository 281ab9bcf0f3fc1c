package pose

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnalyzeSequence scores every observation in the sequence and returns one
// QualityVerdict per observation, in the same order.
//
// Three checks run in order: average keypoint confidence, off-screen
// detection (keypoints crowded against the frame edges with collapsed
// confidence, the signature of a subject leaving the camera view), and
// trend-outlier detection against a sliding-window linear regression of
// neighboring valid frames. The outlier pass is sequential so that a frame
// flagged as an outlier is excluded from every later frame's window.
func AnalyzeSequence(observations []Observation, cfg EngineConfig) []QualityVerdict {
	verdicts := make([]QualityVerdict, len(observations))

	for i, obs := range observations {
		v := QualityVerdict{FrameNumber: obs.FrameNumber}
		v.AvgConfidence = averageConfidence(obs.Keypoints)
		v.IsLowConfidence = v.AvgConfidence < cfg.MinConfidence
		v.IsOffScreen = isOffScreen(obs.Keypoints, v.AvgConfidence, cfg)
		verdicts[i] = v
	}

	for i := range observations {
		if verdicts[i].IsOffScreen {
			// Off-screen frames are handled as removal runs; a trend fit
			// against an exiting subject is meaningless.
			continue
		}

		window := neighborWindow(verdicts, i, cfg.OutlierWindowSize)
		if len(window) == 0 {
			// No valid neighbors to judge against.
			verdicts[i].IsLowConfidence = true
			continue
		}
		if len(window) < 2 {
			// A single neighbor cannot anchor a regression.
			continue
		}

		dev := trendDeviation(observations, window, i)
		verdicts[i].TrendDeviation = dev
		verdicts[i].IsOutlier = dev > cfg.OutlierThreshold
	}

	return verdicts
}

// averageConfidence returns the mean keypoint confidence, or 0 for an
// observation with no keypoints.
func averageConfidence(keypoints []Keypoint) float64 {
	if len(keypoints) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range keypoints {
		sum += kp.Confidence
	}
	return sum / float64(len(keypoints))
}

// isOffScreen reports whether enough keypoints sit within the boundary
// epsilon of any frame edge while the frame's average confidence has
// collapsed below the off-screen threshold.
func isOffScreen(keypoints []Keypoint, avgConfidence float64, cfg EngineConfig) bool {
	if len(keypoints) == 0 {
		return false
	}
	if avgConfidence >= cfg.OffScreenConfidence {
		return false
	}

	epsX := cfg.BoundaryEpsilon * cfg.FrameWidth
	epsY := cfg.BoundaryEpsilon * cfg.FrameHeight

	nearEdge := 0
	for _, kp := range keypoints {
		if kp.X <= epsX || kp.X >= cfg.FrameWidth-epsX ||
			kp.Y <= epsY || kp.Y >= cfg.FrameHeight-epsY {
			nearEdge++
		}
	}

	frac := float64(nearEdge) / float64(len(keypoints))
	return frac >= cfg.OffScreenKeypointFraction
}

// neighborWindow collects up to windowSize valid neighbor positions around i,
// expanding outward so the nearest frames are preferred. A neighbor is valid
// when it has not been flagged off-screen, low-confidence, or outlier.
// Edge frames naturally degrade to a one-sided window.
func neighborWindow(verdicts []QualityVerdict, i, windowSize int) []int {
	window := make([]int, 0, windowSize)

	valid := func(j int) bool {
		v := verdicts[j]
		return !v.IsOffScreen && !v.IsLowConfidence && !v.IsOutlier
	}

	for d := 1; len(window) < windowSize; d++ {
		lo, hi := i-d, i+d
		if lo < 0 && hi >= len(verdicts) {
			break
		}
		if lo >= 0 && valid(lo) {
			window = append(window, lo)
		}
		if len(window) < windowSize && hi < len(verdicts) && valid(hi) {
			window = append(window, hi)
		}
	}

	return window
}

// trendDeviation fits a per-coordinate linear regression of the window
// frames' keypoint positions against frame index, predicts the expected pose
// at the target frame, and returns the mean keypoint distance between the
// observed and predicted pose normalized by the target's reference scale.
func trendDeviation(observations []Observation, window []int, target int) float64 {
	obs := observations[target]

	// Regress only keypoint slots present in every window frame.
	nKeypoints := len(obs.Keypoints)
	for _, j := range window {
		if len(observations[j].Keypoints) < nKeypoints {
			nKeypoints = len(observations[j].Keypoints)
		}
	}
	if nKeypoints == 0 {
		return 0
	}

	xs := make([]float64, len(window))
	for w, j := range window {
		xs[w] = float64(observations[j].FrameNumber)
	}

	ys := make([]float64, len(window))
	predictAt := float64(obs.FrameNumber)

	var total float64
	for k := 0; k < nKeypoints; k++ {
		var dx, dy, dz float64

		for w, j := range window {
			ys[w] = observations[j].Keypoints[k].X
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		dx = obs.Keypoints[k].X - (alpha + beta*predictAt)

		for w, j := range window {
			ys[w] = observations[j].Keypoints[k].Y
		}
		alpha, beta = stat.LinearRegression(xs, ys, nil, false)
		dy = obs.Keypoints[k].Y - (alpha + beta*predictAt)

		if obs.Has3D {
			for w, j := range window {
				ys[w] = observations[j].Keypoints[k].Z
			}
			alpha, beta = stat.LinearRegression(xs, ys, nil, false)
			dz = obs.Keypoints[k].Z - (alpha + beta*predictAt)
		}

		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}

	mean := total / float64(nKeypoints)
	return mean / referenceScale(obs)
}

// referenceScale returns a stable body-size proxy used to make the outlier
// threshold resolution-independent: the torso span (pelvis to neck) when both
// joints are present, falling back to the keypoint bounding-box diagonal, and
// finally to 1.0 for degenerate poses.
func referenceScale(obs Observation) float64 {
	if span, ok := torsoSpan(obs.Keypoints); ok {
		return span
	}
	if diag := bboxDiagonal(obs.Keypoints); diag > 1e-9 {
		return diag
	}
	return 1.0
}

func torsoSpan(keypoints []Keypoint) (float64, bool) {
	var pelvis, neck *Keypoint
	for i := range keypoints {
		switch keypoints[i].Name {
		case "pelvis":
			pelvis = &keypoints[i]
		case "neck":
			neck = &keypoints[i]
		}
	}
	if pelvis == nil || neck == nil {
		return 0, false
	}
	dx := pelvis.X - neck.X
	dy := pelvis.Y - neck.Y
	dz := pelvis.Z - neck.Z
	span := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if span <= 1e-9 {
		return 0, false
	}
	return span, true
}

func bboxDiagonal(keypoints []Keypoint) float64 {
	if len(keypoints) == 0 {
		return 0
	}
	minX, maxX := keypoints[0].X, keypoints[0].X
	minY, maxY := keypoints[0].Y, keypoints[0].Y
	for _, kp := range keypoints[1:] {
		minX = math.Min(minX, kp.X)
		maxX = math.Max(maxX, kp.X)
		minY = math.Min(minY, kp.Y)
		maxY = math.Max(maxY, kp.Y)
	}
	w := maxX - minX
	h := maxY - minY
	return math.Sqrt(w*w + h*h)
}
