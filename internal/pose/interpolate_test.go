package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolateFrame(t *testing.T) {
	t.Parallel()

	t.Run("keypoints blend linearly", func(t *testing.T) {
		t.Parallel()
		a := observationAt(10, 0.2)
		b := observationAt(20, 0.4)

		frame := InterpolateFrame(&a, &b, 15, 0.5)
		require.True(t, frame.Interpolated)
		assert.Equal(t, [2]int{10, 20}, frame.SourceFrames)
		assert.InDelta(t, 0.5, frame.InterpolationFactor, 1e-9)
		assert.False(t, frame.Degraded)

		require.Len(t, frame.Keypoints, len(a.Keypoints))
		for k := range frame.Keypoints {
			assert.InDelta(t, (a.Keypoints[k].X+b.Keypoints[k].X)/2, frame.Keypoints[k].X, 1e-9)
			assert.InDelta(t, (a.Keypoints[k].Y+b.Keypoints[k].Y)/2, frame.Keypoints[k].Y, 1e-9)
			assert.Equal(t, a.Keypoints[k].Name, frame.Keypoints[k].Name)
		}
	})

	t.Run("convexity holds for every coordinate", func(t *testing.T) {
		t.Parallel()
		a := meshObservation(0, 0.2, 9)
		b := meshObservation(11, 0.5, 9)

		for i := 1; i <= 10; i++ {
			frame := InterpolateFrame(&a, &b, i, 0)
			for k := range frame.Keypoints {
				lo := math.Min(a.Keypoints[k].X, b.Keypoints[k].X)
				hi := math.Max(a.Keypoints[k].X, b.Keypoints[k].X)
				assert.GreaterOrEqual(t, frame.Keypoints[k].X, lo-1e-12)
				assert.LessOrEqual(t, frame.Keypoints[k].X, hi+1e-12)
			}
			for v := range frame.MeshVertices {
				lo := math.Min(a.MeshVertices[v][0], b.MeshVertices[v][0])
				hi := math.Max(a.MeshVertices[v][0], b.MeshVertices[v][0])
				assert.GreaterOrEqual(t, frame.MeshVertices[v][0], lo-1e-12)
				assert.LessOrEqual(t, frame.MeshVertices[v][0], hi+1e-12)
			}
		}
	})

	t.Run("mesh faces copy unchanged", func(t *testing.T) {
		t.Parallel()
		a := meshObservation(0, 0.2, 9)
		b := meshObservation(10, 0.3, 9)

		frame := InterpolateFrame(&a, &b, 5, 0)
		assert.Equal(t, a.MeshFaces, frame.MeshFaces)
		assert.Len(t, frame.MeshVertices, 9)
	})

	t.Run("mesh topology mismatch falls back to nearer source", func(t *testing.T) {
		t.Parallel()
		a := meshObservation(0, 0.2, 9)
		b := meshObservation(10, 0.3, 12)

		near := InterpolateFrame(&a, &b, 2, 0)
		assert.True(t, near.Degraded)
		assert.Equal(t, a.Keypoints, near.Keypoints)
		assert.Equal(t, a.MeshVertices, near.MeshVertices)

		far := InterpolateFrame(&a, &b, 8, 0)
		assert.True(t, far.Degraded)
		assert.Equal(t, b.Keypoints, far.Keypoints)
		assert.Equal(t, b.MeshVertices, far.MeshVertices)
	})

	t.Run("keypoint count mismatch falls back to nearer source", func(t *testing.T) {
		t.Parallel()
		a := observationAt(0, 0.2)
		b := observationAt(10, 0.3)
		b.Keypoints = b.Keypoints[:2]

		frame := InterpolateFrame(&a, &b, 3, 0)
		assert.True(t, frame.Degraded)
		assert.Equal(t, a.Keypoints, frame.Keypoints)
	})
}

func TestInterpolationFactor(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, InterpolationFactor(0, 10, 5), 1e-9)
	assert.InDelta(t, 1.0/11.0, InterpolationFactor(59, 70, 60), 1e-9)
	assert.InDelta(t, 10.0/11.0, InterpolationFactor(59, 70, 69), 1e-9)
}

func TestClampFrame(t *testing.T) {
	t.Parallel()

	src := observationAt(5, 0.2)

	t.Run("leading clamp", func(t *testing.T) {
		t.Parallel()
		frame := ClampFrame(&src, 2, 2.0/30.0)
		assert.True(t, frame.Interpolated)
		assert.Equal(t, [2]int{5, 5}, frame.SourceFrames)
		assert.Zero(t, frame.InterpolationFactor)
		assert.Equal(t, src.Keypoints, frame.Keypoints)
		assert.Equal(t, 2, frame.FrameNumber)
	})

	t.Run("trailing clamp", func(t *testing.T) {
		t.Parallel()
		frame := ClampFrame(&src, 9, 9.0/30.0)
		assert.Equal(t, 1.0, frame.InterpolationFactor)
		assert.Equal(t, 9, frame.FrameNumber)
	})
}
