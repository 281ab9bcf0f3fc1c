package pose

import (
	"encoding/json"
	"fmt"
	"sort"
)

// QualityStats summarizes what filtering did to a video's observation set.
type QualityStats struct {
	Kept         int `json:"kept"`         // retained source frames
	Removed      int `json:"removed"`      // dropped outright (off-screen runs, low confidence)
	Interpolated int `json:"interpolated"` // dense indices answered by interpolation
}

// FrameIndexMapping is the bidirectional contract between the dense logical
// timeline addressed by playback and the sparse original observation indices
// that survived filtering. It is built once per video after filtering and is
// serializable so a restart does not re-run analysis.
type FrameIndexMapping struct {
	TotalFrames   int          `json:"total_frames"`
	SourceIndices []int        `json:"source_indices"`
	Stats         QualityStats `json:"quality_stats"`

	// positions maps a dense source index to its position in SourceIndices.
	// Rebuilt after deserialization, never serialized.
	positions map[int]int
}

// NewFrameIndexMapping validates the dense/sparse contract and builds the
// reverse lookup. SourceIndices must be strictly increasing and a subset of
// [0, totalFrames).
func NewFrameIndexMapping(totalFrames int, sourceIndices []int, stats QualityStats) (*FrameIndexMapping, error) {
	if totalFrames <= 0 {
		return nil, fmt.Errorf("%w: total frames must be positive, got %d", ErrConfiguration, totalFrames)
	}
	prev := -1
	for _, idx := range sourceIndices {
		if idx < 0 || idx >= totalFrames {
			return nil, fmt.Errorf("%w: source index %d outside [0, %d)", ErrConfiguration, idx, totalFrames)
		}
		if idx <= prev {
			return nil, fmt.Errorf("%w: source indices not strictly increasing at %d", ErrConfiguration, idx)
		}
		prev = idx
	}

	m := &FrameIndexMapping{
		TotalFrames:   totalFrames,
		SourceIndices: sourceIndices,
		Stats:         stats,
	}
	m.reindex()
	return m, nil
}

func (m *FrameIndexMapping) reindex() {
	m.positions = make(map[int]int, len(m.SourceIndices))
	for pos, idx := range m.SourceIndices {
		m.positions[idx] = pos
	}
}

// IsSource reports whether the dense index resolves to a retained
// observation rather than a gap.
func (m *FrameIndexMapping) IsSource(i int) bool {
	_, ok := m.positions[i]
	return ok
}

// SourcePosition returns the position of dense index i within SourceIndices,
// or false when i falls in a gap.
func (m *FrameIndexMapping) SourcePosition(i int) (int, bool) {
	pos, ok := m.positions[i]
	return pos, ok
}

// Bounds returns the nearest retained source indices at or below and at or
// above the dense index i. Either side is NoBound when i sits beyond the
// first or last source.
func (m *FrameIndexMapping) Bounds(i int) (prev, next int) {
	prev, next = NoBound, NoBound
	pos := sort.SearchInts(m.SourceIndices, i)
	if pos < len(m.SourceIndices) && m.SourceIndices[pos] == i {
		return i, i
	}
	if pos > 0 {
		prev = m.SourceIndices[pos-1]
	}
	if pos < len(m.SourceIndices) {
		next = m.SourceIndices[pos]
	}
	return prev, next
}

// ToJSON serializes the mapping for persistence alongside the video's
// stored frames.
func (m *FrameIndexMapping) ToJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseFrameIndexMapping deserializes a mapping and revalidates the contract,
// rebuilding the reverse lookup.
func ParseFrameIndexMapping(jsonStr string) (*FrameIndexMapping, error) {
	var raw FrameIndexMapping
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parse frame index mapping: %w", err)
	}
	return NewFrameIndexMapping(raw.TotalFrames, raw.SourceIndices, raw.Stats)
}
