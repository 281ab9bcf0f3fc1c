package pose

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/motiondata/posesync/internal/config"
	"github.com/motiondata/posesync/internal/monitoring"
)

// Engine error taxonomy. Topology mismatches and oversized gaps are recovered
// locally with a degraded result and a logged warning; only programmer errors
// surface to the caller.
var (
	// ErrNotInitialized is returned for queries against a video that has no
	// live session.
	ErrNotInitialized = errors.New("video not initialized")

	// ErrOutOfRange is returned for frame indices outside [0, totalFrames).
	ErrOutOfRange = errors.New("frame index out of range")

	// ErrConfiguration is returned for invalid tunables or an observation set
	// that leaves nothing to interpolate from.
	ErrConfiguration = errors.New("configuration error")
)

// EngineConfig holds the validated tunables for one reconciliation service.
type EngineConfig struct {
	MinConfidence             float64 // Frames below this average confidence are low-confidence
	BoundaryEpsilon           float64 // Edge proximity threshold, fraction of frame size
	OffScreenConfidence       float64 // Confidence ceiling for the off-screen verdict
	OffScreenKeypointFraction float64 // Fraction of keypoints near an edge for off-screen
	MinOffScreenRun           int     // Minimum consecutive off-screen frames removed as a block
	OutlierWindowSize         int     // Valid neighbors per trend regression window
	OutlierThreshold          float64 // Trend deviation ratio above which a frame is an outlier
	FrameWidth                float64 // Frame width in keypoint units (1.0 for normalized)
	FrameHeight               float64 // Frame height in keypoint units (1.0 for normalized)
	MaxInterpolationGap       int     // Gaps longer than this are filled but marked degraded
	CacheCapacity             int     // Interpolation cache entry bound
	SmoothingEnabled          bool    // Apply the temporal smoothing filter at read time
	ProcessNoise              float64 // Smoothing Q
	MeasurementNoise          float64 // Smoothing R
}

// DefaultEngineConfig returns engine configuration loaded from the canonical
// tuning defaults file (config/tuning.defaults.json). Panics if the file
// cannot be found, intended for tests and binaries that have already
// validated config availability.
func DefaultEngineConfig() EngineConfig {
	return EngineConfigFromTuning(config.MustLoadDefaultConfig())
}

// EngineConfigFromTuning builds an EngineConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func EngineConfigFromTuning(cfg *config.TuningConfig) EngineConfig {
	return EngineConfig{
		MinConfidence:             cfg.GetMinConfidence(),
		BoundaryEpsilon:           cfg.GetBoundaryEpsilon(),
		OffScreenConfidence:       cfg.GetOffScreenConfidence(),
		OffScreenKeypointFraction: cfg.GetOffScreenKeypointFraction(),
		MinOffScreenRun:           cfg.GetMinOffScreenRun(),
		OutlierWindowSize:         cfg.GetOutlierWindowSize(),
		OutlierThreshold:          cfg.GetOutlierThreshold(),
		FrameWidth:                cfg.GetFrameWidth(),
		FrameHeight:               cfg.GetFrameHeight(),
		MaxInterpolationGap:       cfg.GetMaxInterpolationGap(),
		CacheCapacity:             cfg.GetCacheCapacity(),
		SmoothingEnabled:          cfg.GetSmoothingEnabled(),
		ProcessNoise:              cfg.GetProcessNoise(),
		MeasurementNoise:          cfg.GetMeasurementNoise(),
	}
}

// session is the per-video state owned by the service: the kept observations,
// the dense/sparse mapping, the gap list, the interpolation cache, and the
// smoother. All state is independent across sessions; within one session the
// mutex serializes reads because the smoother has a sequential dependency.
type session struct {
	mu sync.Mutex

	videoID      string
	fps          float64
	mapping      *FrameIndexMapping
	observations map[int]*Observation // by dense index, source frames only
	gaps         []Gap
	verdicts     []QualityVerdict
	cache        *InterpolationCache
	smoother     *SessionSmoother
}

// Service is the reconciliation service consumed by the playback layer. It
// orchestrates analyzer → filter → gap fill → cache and answers single-frame
// and range queries. One Service carries any number of independent video
// sessions.
type Service struct {
	mu               sync.RWMutex
	cfg              EngineConfig
	smoothingEnabled bool
	sessions         map[string]*session
}

// NewService creates a reconciliation service with the given tunables.
func NewService(cfg EngineConfig) *Service {
	return &Service{
		cfg:              cfg,
		smoothingEnabled: cfg.SmoothingEnabled,
		sessions:         make(map[string]*session),
	}
}

// Initialize ingests the raw observation batch for a video, runs quality
// analysis and the removal policy, and builds the dense/sparse frame index
// mapping. Re-initializing an existing video ID replaces its session: the old
// cache is purged and the old smoother discarded, so no state survives into
// the new mapping.
//
// totalFrames is the dense timeline length from video metadata; fps sizes
// interpolated timestamps (pass 0 to lerp from bounding observations
// instead). Fails with ErrConfiguration when filtering leaves no source
// frames to interpolate from.
func (s *Service) Initialize(videoID string, totalFrames int, fps float64, observations []Observation) (*FrameIndexMapping, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: empty video ID", ErrConfiguration)
	}
	if totalFrames <= 0 {
		return nil, fmt.Errorf("%w: total frames must be positive, got %d", ErrConfiguration, totalFrames)
	}

	// Keep only in-range observations, in frame order.
	kept := make([]Observation, 0, len(observations))
	for _, obs := range observations {
		if obs.FrameNumber < 0 || obs.FrameNumber >= totalFrames {
			monitoring.Logf("pose: video %s: dropping observation with frame %d outside [0, %d)",
				videoID, obs.FrameNumber, totalFrames)
			continue
		}
		kept = append(kept, obs)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].FrameNumber < kept[j].FrameNumber })

	verdicts := AnalyzeSequence(kept, s.cfg)
	filtered := FilterObservations(kept, verdicts, s.cfg)
	if len(filtered.SourceIndices) == 0 {
		return nil, fmt.Errorf("%w: video %s: no source frames survive filtering", ErrConfiguration, videoID)
	}

	stats := QualityStats{
		Kept:         len(filtered.SourceIndices),
		Removed:      filtered.Removed,
		Interpolated: totalFrames - len(filtered.SourceIndices),
	}

	mapping, err := NewFrameIndexMapping(totalFrames, filtered.SourceIndices, stats)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]*Observation, len(filtered.SourceIndices))
	for i := range kept {
		if mapping.IsSource(kept[i].FrameNumber) {
			byIndex[kept[i].FrameNumber] = &kept[i]
		}
	}

	sess := &session{
		videoID:      videoID,
		fps:          fps,
		mapping:      mapping,
		observations: byIndex,
		gaps:         ComputeGaps(filtered.SourceIndices, totalFrames),
		verdicts:     verdicts,
		cache:        NewInterpolationCache(s.cfg.CacheCapacity),
		smoother:     NewSessionSmoother(s.cfg.ProcessNoise, s.cfg.MeasurementNoise),
	}

	s.mu.Lock()
	if old, ok := s.sessions[videoID]; ok {
		old.cache.Purge()
	}
	s.sessions[videoID] = sess
	s.mu.Unlock()

	monitoring.Logf("pose: video %s initialized: %d total, %d kept, %d removed, %d interpolated, %d gaps",
		videoID, totalFrames, stats.Kept, stats.Removed, stats.Interpolated, len(sess.gaps))

	return mapping, nil
}

// Restore rebuilds a session from persisted state (a deserialized mapping
// plus the filtered observation set) without re-running analysis.
func (s *Service) Restore(videoID string, fps float64, mapping *FrameIndexMapping, observations []Observation) error {
	if videoID == "" {
		return fmt.Errorf("%w: empty video ID", ErrConfiguration)
	}
	if mapping == nil || len(mapping.SourceIndices) == 0 {
		return fmt.Errorf("%w: video %s: mapping has no source frames", ErrConfiguration, videoID)
	}

	byIndex := make(map[int]*Observation, len(observations))
	for i := range observations {
		byIndex[observations[i].FrameNumber] = &observations[i]
	}
	for _, idx := range mapping.SourceIndices {
		if _, ok := byIndex[idx]; !ok {
			return fmt.Errorf("%w: video %s: missing observation for source index %d", ErrConfiguration, videoID, idx)
		}
	}

	sess := &session{
		videoID:      videoID,
		fps:          fps,
		mapping:      mapping,
		observations: byIndex,
		gaps:         ComputeGaps(mapping.SourceIndices, mapping.TotalFrames),
		cache:        NewInterpolationCache(s.cfg.CacheCapacity),
		smoother:     NewSessionSmoother(s.cfg.ProcessNoise, s.cfg.MeasurementNoise),
	}

	s.mu.Lock()
	if old, ok := s.sessions[videoID]; ok {
		old.cache.Purge()
	}
	s.sessions[videoID] = sess
	s.mu.Unlock()

	return nil
}

// GetFrame answers a single-frame query. Every in-range index resolves to a
// frame: a verbatim source observation or an interpolated fill. Fails only
// with ErrNotInitialized or ErrOutOfRange.
func (s *Service) GetFrame(videoID string, frameIndex int) (*ReconciledFrame, error) {
	s.mu.RLock()
	sess, ok := s.sessions[videoID]
	smoothing := s.smoothingEnabled
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, videoID)
	}
	if frameIndex < 0 || frameIndex >= sess.mapping.TotalFrames {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, frameIndex, sess.mapping.TotalFrames)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	frame := sess.resolve(frameIndex, s.cfg)
	if smoothing {
		smoothed := *frame
		smoothed.Keypoints = sess.smoother.Smooth(frameIndex, frame.Keypoints)
		return &smoothed, nil
	}
	return frame, nil
}

// GetFrameRange answers an inclusive range query. Per-index resolutions are
// independent; the temporal dependency enters only through the smoothing
// filter, which processes the range in increasing order under the session
// lock.
func (s *Service) GetFrameRange(videoID string, start, end int) ([]*ReconciledFrame, error) {
	s.mu.RLock()
	sess, ok := s.sessions[videoID]
	smoothing := s.smoothingEnabled
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, videoID)
	}
	if start < 0 || end >= sess.mapping.TotalFrames || start > end {
		return nil, fmt.Errorf("%w: range [%d, %d] not within [0, %d)", ErrOutOfRange, start, end, sess.mapping.TotalFrames)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	frames := make([]*ReconciledFrame, 0, end-start+1)
	for i := start; i <= end; i++ {
		frame := sess.resolve(i, s.cfg)
		if smoothing {
			smoothed := *frame
			smoothed.Keypoints = sess.smoother.Smooth(i, frame.Keypoints)
			frame = &smoothed
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// resolve maps a dense index to its reconciled frame: source frames return
// verbatim, gap frames interpolate through the cache. Callers hold sess.mu.
func (sess *session) resolve(i int, cfg EngineConfig) *ReconciledFrame {
	if obs, ok := sess.observations[i]; ok {
		return &ReconciledFrame{
			FrameNumber:  obs.FrameNumber,
			Timestamp:    obs.Timestamp,
			Keypoints:    obs.Keypoints,
			MeshVertices: obs.MeshVertices,
			MeshFaces:    obs.MeshFaces,
		}
	}

	gap, ok := FindGap(sess.gaps, i)
	if !ok {
		// Unreachable while the mapping invariant holds: every dense index is
		// a source or belongs to exactly one gap.
		monitoring.Logf("pose: video %s: index %d in neither sources nor gaps", sess.videoID, i)
		return &ReconciledFrame{FrameNumber: i, Timestamp: sess.timestampAt(i), Degraded: true}
	}

	// Edge gaps clamp to the nearest source. A clamp is a plain copy, not
	// worth a cache slot.
	if gap.PrevSource == NoBound {
		return ClampFrame(sess.observations[gap.NextSource], i, sess.timestampAt(i))
	}
	if gap.NextSource == NoBound {
		return ClampFrame(sess.observations[gap.PrevSource], i, sess.timestampAt(i))
	}

	a, b := gap.PrevSource, gap.NextSource
	factor := InterpolationFactor(a, b, i)
	if cached := sess.cache.Get(a, b, factor); cached != nil {
		return cached
	}

	frame := InterpolateFrame(sess.observations[a], sess.observations[b], i, sess.interpTimestamp(i, a, b, factor))
	if gap.Len() > cfg.MaxInterpolationGap {
		if frame.Degraded {
			monitoring.Logf("pose: video %s: gap %d-%d exceeds max interpolation gap %d with mismatched topology; nearest-source fallback applied",
				sess.videoID, gap.StartIndex, gap.EndIndex, cfg.MaxInterpolationGap)
		} else {
			monitoring.Logf("pose: video %s: gap %d-%d exceeds max interpolation gap %d; filling with degraded quality",
				sess.videoID, gap.StartIndex, gap.EndIndex, cfg.MaxInterpolationGap)
		}
		frame.Degraded = true
	}
	sess.cache.Add(a, b, factor, frame)
	return frame
}

// timestampAt derives a timestamp for a synthetic frame from the video frame
// rate when known.
func (sess *session) timestampAt(i int) float64 {
	if sess.fps > 0 {
		return float64(i) / sess.fps
	}
	// Without a frame rate, fall back to the nearest source timestamp.
	prev, next := sess.mapping.Bounds(i)
	if prev != NoBound {
		return sess.observations[prev].Timestamp
	}
	if next != NoBound {
		return sess.observations[next].Timestamp
	}
	return 0
}

func (sess *session) interpTimestamp(i, a, b int, factor float64) float64 {
	if sess.fps > 0 {
		return float64(i) / sess.fps
	}
	ta := sess.observations[a].Timestamp
	tb := sess.observations[b].Timestamp
	return ta*(1-factor) + tb*factor
}

// GetQualityStats returns the kept/removed/interpolated counts recorded in
// the video's mapping.
func (s *Service) GetQualityStats(videoID string) (QualityStats, error) {
	sess, err := s.session(videoID)
	if err != nil {
		return QualityStats{}, err
	}
	return sess.mapping.Stats, nil
}

// Mapping returns the video's frame index mapping.
func (s *Service) Mapping(videoID string) (*FrameIndexMapping, error) {
	sess, err := s.session(videoID)
	if err != nil {
		return nil, err
	}
	return sess.mapping, nil
}

// Verdicts returns the per-observation quality verdicts recorded during
// Initialize, in observation order. Empty for restored sessions.
func (s *Service) Verdicts(videoID string) ([]QualityVerdict, error) {
	sess, err := s.session(videoID)
	if err != nil {
		return nil, err
	}
	return sess.verdicts, nil
}

// SourceObservations returns the retained observation set in index order,
// suitable for persistence.
func (s *Service) SourceObservations(videoID string) ([]Observation, error) {
	sess, err := s.session(videoID)
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(sess.mapping.SourceIndices))
	for _, idx := range sess.mapping.SourceIndices {
		out = append(out, *sess.observations[idx])
	}
	return out, nil
}

// SetSmoothingEnabled toggles the temporal smoothing filter for all reads.
func (s *Service) SetSmoothingEnabled(enabled bool) {
	s.mu.Lock()
	s.smoothingEnabled = enabled
	s.mu.Unlock()
}

// SetSmoothingParameters retunes process noise Q and measurement noise R on
// every live session's smoother and for sessions created afterwards.
func (s *Service) SetSmoothingParameters(q, r float64) error {
	if q <= 0 {
		return fmt.Errorf("%w: process noise must be positive, got %f", ErrConfiguration, q)
	}
	if r <= 0 {
		return fmt.Errorf("%w: measurement noise must be positive, got %f", ErrConfiguration, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ProcessNoise = q
	s.cfg.MeasurementNoise = r
	for _, sess := range s.sessions {
		if err := sess.smoother.SetParameters(q, r); err != nil {
			return err
		}
	}
	return nil
}

// ResetSmoothing discards the video's filter state and memoized smoothed
// frames, restarting the filter from the next read.
func (s *Service) ResetSmoothing(videoID string) error {
	sess, err := s.session(videoID)
	if err != nil {
		return err
	}
	sess.smoother.Reset()
	return nil
}

// CloseSession tears down a video session, dropping its smoother and purging
// cache entries keyed to its mapping. Queries after close fail with
// ErrNotInitialized.
func (s *Service) CloseSession(videoID string) {
	s.mu.Lock()
	sess, ok := s.sessions[videoID]
	delete(s.sessions, videoID)
	s.mu.Unlock()
	if ok {
		sess.cache.Purge()
	}
}

func (s *Service) session(videoID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[videoID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, videoID)
	}
	return sess, nil
}
