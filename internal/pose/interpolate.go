package pose

import "github.com/motiondata/posesync/internal/monitoring"

// InterpolationFactor returns the blend position of dense index i between
// bounding source indices a and b, in (0, 1) for a < i < b.
func InterpolationFactor(a, b, i int) float64 {
	return float64(i-a) / float64(b-a)
}

// InterpolateFrame produces a synthetic frame at dense index i by blending
// the bounding source observations a (earlier) and b (later) with a
// per-coordinate linear blend: value = a·(1−factor) + b·factor.
//
// Keypoint x/y/z/confidence and mesh vertex x/y/z blend independently; mesh
// faces are copied unchanged since both bounds share a topology. When the
// bounds disagree on keypoint count or mesh topology, blending is undefined:
// the nearer source is returned unmodified and the frame is marked degraded.
func InterpolateFrame(a, b *Observation, i int, timestamp float64) *ReconciledFrame {
	factor := InterpolationFactor(a.FrameNumber, b.FrameNumber, i)

	if len(a.Keypoints) != len(b.Keypoints) {
		monitoring.Logf("pose: keypoint count mismatch between frames %d (%d) and %d (%d); falling back to nearest source for frame %d",
			a.FrameNumber, len(a.Keypoints), b.FrameNumber, len(b.Keypoints), i)
		return nearestSourceFrame(a, b, i, factor, timestamp)
	}
	if len(a.MeshVertices) != len(b.MeshVertices) || len(a.MeshFaces) != len(b.MeshFaces) {
		monitoring.Logf("pose: mesh topology mismatch between frames %d (%dv/%df) and %d (%dv/%df); falling back to nearest source for frame %d",
			a.FrameNumber, len(a.MeshVertices), len(a.MeshFaces),
			b.FrameNumber, len(b.MeshVertices), len(b.MeshFaces), i)
		return nearestSourceFrame(a, b, i, factor, timestamp)
	}

	frame := &ReconciledFrame{
		FrameNumber:         i,
		Timestamp:           timestamp,
		Interpolated:        true,
		SourceFrames:        [2]int{a.FrameNumber, b.FrameNumber},
		InterpolationFactor: factor,
	}

	frame.Keypoints = blendKeypoints(a.Keypoints, b.Keypoints, factor)

	if len(a.MeshVertices) > 0 {
		frame.MeshVertices = blendVertices(a.MeshVertices, b.MeshVertices, factor)
		frame.MeshFaces = a.MeshFaces
	}

	return frame
}

// ClampFrame duplicate-extends a single source observation to the dense index
// i. Edge gaps use it instead of extrapolation, which would diverge beyond
// the observed range. Both SourceFrames entries carry the clamp source.
func ClampFrame(src *Observation, i int, timestamp float64) *ReconciledFrame {
	factor := 0.0
	if i > src.FrameNumber {
		factor = 1.0
	}
	return &ReconciledFrame{
		FrameNumber:         i,
		Timestamp:           timestamp,
		Keypoints:           src.Keypoints,
		MeshVertices:        src.MeshVertices,
		MeshFaces:           src.MeshFaces,
		Interpolated:        true,
		SourceFrames:        [2]int{src.FrameNumber, src.FrameNumber},
		InterpolationFactor: factor,
	}
}

// nearestSourceFrame copies whichever bound sits closer to the target index.
// Ties prefer the earlier bound.
func nearestSourceFrame(a, b *Observation, i int, factor, timestamp float64) *ReconciledFrame {
	src := a
	if factor > 0.5 {
		src = b
	}
	return &ReconciledFrame{
		FrameNumber:         i,
		Timestamp:           timestamp,
		Keypoints:           src.Keypoints,
		MeshVertices:        src.MeshVertices,
		MeshFaces:           src.MeshFaces,
		Interpolated:        true,
		SourceFrames:        [2]int{a.FrameNumber, b.FrameNumber},
		InterpolationFactor: factor,
		Degraded:            true,
	}
}

func blendKeypoints(a, b []Keypoint, factor float64) []Keypoint {
	out := make([]Keypoint, len(a))
	inv := 1 - factor
	for k := range a {
		out[k] = Keypoint{
			Name:       a[k].Name,
			X:          a[k].X*inv + b[k].X*factor,
			Y:          a[k].Y*inv + b[k].Y*factor,
			Z:          a[k].Z*inv + b[k].Z*factor,
			Confidence: a[k].Confidence*inv + b[k].Confidence*factor,
		}
	}
	return out
}

func blendVertices(a, b []Vertex, factor float64) []Vertex {
	out := make([]Vertex, len(a))
	inv := 1 - factor
	for v := range a {
		out[v] = Vertex{
			a[v][0]*inv + b[v][0]*factor,
			a[v][1]*inv + b[v][1]*factor,
			a[v][2]*inv + b[v][2]*factor,
		}
	}
	return out
}
