package pose

// Test fixtures: synthetic observation sequences with a simple four-joint
// skeleton walking left to right. The torso span (pelvis to neck) is 0.5 in
// normalized units, which anchors the trend-deviation reference scale.

const testTorsoSpan = 0.5

// testEngineConfig returns the canonical defaults with smoothing disabled so
// that reconciliation tests observe raw engine output. Smoothing behavior has
// its own tests.
func testEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.SmoothingEnabled = false
	return cfg
}

// poseAt builds a four-joint skeleton centered at x with the given average
// confidence.
func poseAt(x, confidence float64) []Keypoint {
	return []Keypoint{
		{Name: "pelvis", X: x, Y: 0.8, Confidence: confidence},
		{Name: "neck", X: x, Y: 0.3, Confidence: confidence},
		{Name: "left_wrist", X: x - 0.05, Y: 0.5, Confidence: confidence},
		{Name: "right_wrist", X: x + 0.05, Y: 0.5, Confidence: confidence},
	}
}

// observationAt builds a clean observation at the given frame with the
// skeleton centered at x.
func observationAt(frame int, x float64) Observation {
	return Observation{
		FrameNumber: frame,
		Timestamp:   float64(frame) / 30.0,
		Keypoints:   poseAt(x, 0.9),
	}
}

// linearSequence builds n clean observations at frames 0..n-1 with the
// skeleton drifting right by step per frame.
func linearSequence(n int, step float64) []Observation {
	observations := make([]Observation, n)
	for i := 0; i < n; i++ {
		observations[i] = observationAt(i, 0.2+step*float64(i))
	}
	return observations
}

// observationsForFrames builds clean observations only at the given frame
// indices, positions continuing the same linear drift.
func observationsForFrames(frames []int, step float64) []Observation {
	observations := make([]Observation, 0, len(frames))
	for _, f := range frames {
		observations = append(observations, observationAt(f, 0.2+step*float64(f)))
	}
	return observations
}

// frameRange returns the integers [lo, hi] inclusive.
func frameRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// meshObservation builds an observation carrying a small mesh alongside the
// skeleton.
func meshObservation(frame int, x float64, vertexCount int) Observation {
	obs := observationAt(frame, x)
	obs.MeshVertices = make([]Vertex, vertexCount)
	for v := 0; v < vertexCount; v++ {
		obs.MeshVertices[v] = Vertex{x + float64(v)*0.01, 0.5, 0.1}
	}
	obs.MeshFaces = make([]Face, vertexCount/3)
	for f := range obs.MeshFaces {
		obs.MeshFaces[f] = Face{3 * f, 3*f + 1, 3*f + 2}
	}
	obs.Has3D = true
	return obs
}
