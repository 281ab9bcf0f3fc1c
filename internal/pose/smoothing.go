package pose

import (
	"fmt"
	"sync"
)

// initialErrorVariance seeds a channel's estimate uncertainty before the
// first measurement has been absorbed.
const initialErrorVariance = 1.0

// kalmanChannel is a scalar predict/update recursive filter for one
// coordinate channel. The constant-position model keeps the math to pure
// scalar operations:
//
//	estimate'      = estimate
//	errVariance'   = errVariance + Q
//	gain           = errVariance' / (errVariance' + R)
//	estimate       = estimate' + gain·(measurement − estimate')
//	errVariance    = (1 − gain)·errVariance'
type kalmanChannel struct {
	estimate    float64
	errVariance float64
	initialized bool
}

func (k *kalmanChannel) update(measurement, q, r float64) float64 {
	if !k.initialized {
		k.estimate = measurement
		k.errVariance = initialErrorVariance
		k.initialized = true
		return k.estimate
	}

	predicted := k.errVariance + q
	gain := predicted / (predicted + r)
	k.estimate += gain * (measurement - k.estimate)
	k.errVariance = (1 - gain) * predicted
	return k.estimate
}

// SessionSmoother damps residual jitter in reconciled keypoints with one
// kalmanChannel per (keypoint, coordinate). It is scoped to a single video
// session: the service creates one on Initialize and discards it on teardown,
// so filter state can never leak across videos.
//
// Filters have a true sequential dependency, so first-time smoothing must be
// fed in increasing frame order. Outputs are memoized per frame index, which
// makes replayed reads bit-identical and keeps random seeks from corrupting
// filter state.
type SessionSmoother struct {
	mu sync.Mutex

	q float64 // process noise
	r float64 // measurement noise

	channels [][3]kalmanChannel
	memo     map[int][]Keypoint
}

// NewSessionSmoother creates a smoother with the given process noise Q and
// measurement noise R. Higher R trusts measurements less, yielding smoother
// but laggier output.
func NewSessionSmoother(q, r float64) *SessionSmoother {
	return &SessionSmoother{
		q:    q,
		r:    r,
		memo: make(map[int][]Keypoint),
	}
}

// Smooth passes the keypoints for frameIndex through the per-channel filters
// and returns the smoothed copy. The input slice is never mutated. A frame
// index that was already smoothed returns its memoized output without
// touching filter state.
func (s *SessionSmoother) Smooth(frameIndex int, keypoints []Keypoint) []Keypoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.memo[frameIndex]; ok {
		return prev
	}

	// Channel banks are sized on the first frame seen.
	if len(s.channels) < len(keypoints) {
		grown := make([][3]kalmanChannel, len(keypoints))
		copy(grown, s.channels)
		s.channels = grown
	}

	out := make([]Keypoint, len(keypoints))
	for k, kp := range keypoints {
		ch := &s.channels[k]
		out[k] = Keypoint{
			Name:       kp.Name,
			X:          ch[0].update(kp.X, s.q, s.r),
			Y:          ch[1].update(kp.Y, s.q, s.r),
			Z:          ch[2].update(kp.Z, s.q, s.r),
			Confidence: kp.Confidence,
		}
	}

	s.memo[frameIndex] = out
	return out
}

// SetParameters retunes Q and R for subsequent updates. Already-memoized
// frames keep the output they were produced with.
func (s *SessionSmoother) SetParameters(q, r float64) error {
	if q <= 0 {
		return fmt.Errorf("%w: process noise must be positive, got %f", ErrConfiguration, q)
	}
	if r <= 0 {
		return fmt.Errorf("%w: measurement noise must be positive, got %f", ErrConfiguration, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = q
	s.r = r
	return nil
}

// Reset discards all filter state and memoized outputs, returning the
// smoother to its initial condition.
func (s *SessionSmoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = nil
	s.memo = make(map[int][]Keypoint)
}
