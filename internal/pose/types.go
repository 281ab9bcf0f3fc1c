// Package pose implements the pose sequence reconciliation engine: it turns
// the sparse, noisy per-frame observations produced by an upstream pose/mesh
// estimator into a dense, gap-free, index-aligned sequence for playback.
//
// The pipeline runs once per video: quality analysis labels every observation,
// the removal policy drops off-screen runs and low-confidence frames, the gap
// analyzer computes the missing index runs, and a FrameIndexMapping records
// the dense-to-sparse contract. Frame queries are then answered on demand,
// interpolating gap frames from their bounding sources and optionally passing
// keypoints through a per-session temporal smoothing filter.
package pose

// Keypoint is one named skeleton joint reported by the upstream estimator.
// Coordinates are in the estimator's frame space (normalized [0,1] unless the
// engine config carries pixel dimensions); Z is depth for 3D estimators.
type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"confidence"`
}

// Vertex is a single mesh vertex position as [x, y, z].
type Vertex [3]float64

// Face is a mesh triangle as three vertex indices.
type Face [3]int

// Observation is one raw per-frame pose/mesh reading from the estimator.
// Observations are immutable once ingested; the reconciliation service owns
// them for the lifetime of the video session.
type Observation struct {
	FrameNumber  int        `json:"frame_number"`
	Timestamp    float64    `json:"timestamp"` // seconds from video start
	Keypoints    []Keypoint `json:"keypoints"`
	MeshVertices []Vertex   `json:"mesh_vertices,omitempty"`
	MeshFaces    []Face     `json:"mesh_faces,omitempty"`
	Has3D        bool       `json:"has_3d"`
}

// QualityVerdict is the per-observation classification produced by the
// quality analyzer. TrendDeviation is the normalized distance between the
// observed pose and its sliding-window regression prediction.
type QualityVerdict struct {
	FrameNumber     int     `json:"frame_number"`
	AvgConfidence   float64 `json:"avg_confidence"`
	IsLowConfidence bool    `json:"is_low_confidence"`
	IsOffScreen     bool    `json:"is_off_screen"`
	IsOutlier       bool    `json:"is_outlier"`
	TrendDeviation  float64 `json:"trend_deviation"`
}

// NoBound marks a gap edge with no bounding source on that side. It occurs
// only for gaps touching the start or end of the timeline.
const NoBound = -1

// Gap is a maximal run of dense timeline indices with no retained source
// frame. StartIndex and EndIndex are inclusive. PrevSource and NextSource are
// the nearest retained source indices on either side, or NoBound at the two
// timeline edges.
type Gap struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
	PrevSource int `json:"prev_source"`
	NextSource int `json:"next_source"`
}

// Len returns the number of missing indices covered by the gap.
func (g Gap) Len() int {
	return g.EndIndex - g.StartIndex + 1
}

// Contains reports whether the dense index i falls inside the gap.
func (g Gap) Contains(i int) bool {
	return i >= g.StartIndex && i <= g.EndIndex
}

// ReconciledFrame is the engine's answer to a frame query: either a verbatim
// source observation or a synthetic frame interpolated from its bounding
// sources. Callers must not mutate the returned slices.
type ReconciledFrame struct {
	FrameNumber  int        `json:"frame_number"`
	Timestamp    float64    `json:"timestamp"`
	Keypoints    []Keypoint `json:"keypoints"`
	MeshVertices []Vertex   `json:"mesh_vertices,omitempty"`
	MeshFaces    []Face     `json:"mesh_faces,omitempty"`

	// Interpolation provenance. SourceFrames holds the bounding source
	// indices when Interpolated is true; for edge clamps both entries carry
	// the clamp source. InterpolationFactor is the blend position in [0,1].
	Interpolated        bool    `json:"interpolated"`
	SourceFrames        [2]int  `json:"source_frames,omitempty"`
	InterpolationFactor float64 `json:"interpolation_factor,omitempty"`

	// Degraded marks frames produced by a recovery path: an oversized gap or
	// a topology-mismatch nearest-source fallback.
	Degraded bool `json:"degraded,omitempty"`
}
