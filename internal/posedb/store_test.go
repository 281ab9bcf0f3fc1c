package posedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiondata/posesync/internal/pose"
)

func newTestStore(t *testing.T) *FrameStore {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "pose_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFrameStore(db)
}

func testMapping(t *testing.T, total int, sources []int) *pose.FrameIndexMapping {
	t.Helper()
	m, err := pose.NewFrameIndexMapping(total, sources, pose.QualityStats{
		Kept:         len(sources),
		Interpolated: total - len(sources),
	})
	require.NoError(t, err)
	return m
}

func testObservations(frames []int) []pose.Observation {
	out := make([]pose.Observation, 0, len(frames))
	for _, f := range frames {
		out = append(out, pose.Observation{
			FrameNumber: f,
			Timestamp:   float64(f) / 30.0,
			Keypoints: []pose.Keypoint{
				{Name: "pelvis", X: 0.5, Y: 0.8, Confidence: 0.9},
				{Name: "neck", X: 0.5, Y: 0.3, Confidence: 0.85},
			},
		})
	}
	return out
}

func TestFrameStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	sources := []int{0, 1, 2, 5, 6, 9}
	mapping := testMapping(t, 10, sources)
	observations := testObservations(sources)
	require.NoError(t, store.SaveVideo("vid-1", 30, mapping, observations))

	rec, loadedMapping, loadedObs, err := store.LoadVideo("vid-1")
	require.NoError(t, err)

	assert.Equal(t, "vid-1", rec.VideoID)
	assert.NotEmpty(t, rec.IngestID)
	assert.Equal(t, 10, rec.TotalFrames)
	assert.Equal(t, 30.0, rec.FPS)
	assert.NotZero(t, rec.CreatedAtNs)
	assert.Nil(t, rec.UpdatedAtNs, "first save is not an update")

	assert.Equal(t, mapping.TotalFrames, loadedMapping.TotalFrames)
	assert.Equal(t, mapping.SourceIndices, loadedMapping.SourceIndices)
	assert.Equal(t, mapping.Stats, loadedMapping.Stats)
	// The restored mapping must answer lookups, proving revalidation rebuilt
	// its internal index.
	assert.True(t, loadedMapping.IsSource(5))
	assert.False(t, loadedMapping.IsSource(3))

	assert.Equal(t, observations, loadedObs)
}

func TestFrameStoreResaveReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveVideo("vid-re", 30,
		testMapping(t, 10, []int{0, 1, 2}), testObservations([]int{0, 1, 2})))

	first, _, _, err := store.LoadVideo("vid-re")
	require.NoError(t, err)

	// Re-ingest with a different retained set.
	require.NoError(t, store.SaveVideo("vid-re", 24,
		testMapping(t, 10, []int{4, 5}), testObservations([]int{4, 5})))

	second, mapping, obs, err := store.LoadVideo("vid-re")
	require.NoError(t, err)

	assert.NotEqual(t, first.IngestID, second.IngestID, "re-save mints a new ingest ID")
	assert.Equal(t, 24.0, second.FPS)
	require.NotNil(t, second.UpdatedAtNs)
	assert.Equal(t, []int{4, 5}, mapping.SourceIndices)
	require.Len(t, obs, 2)
	assert.Equal(t, 4, obs[0].FrameNumber)
}

func TestFrameStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, _, _, err := store.LoadVideo("no-such-video")
	assert.ErrorContains(t, err, "video not found")
}

func TestFrameStoreListVideos(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveVideo("vid-a", 30,
		testMapping(t, 5, []int{0, 4}), testObservations([]int{0, 4})))
	require.NoError(t, store.SaveVideo("vid-b", 60,
		testMapping(t, 8, []int{0, 7}), testObservations([]int{0, 7})))

	records, err := store.ListVideos()
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []string{records[0].VideoID, records[1].VideoID}
	assert.ElementsMatch(t, []string{"vid-a", "vid-b"}, ids)
	assert.GreaterOrEqual(t, records[0].CreatedAtNs, records[1].CreatedAtNs, "newest first")
}

func TestFrameStoreDeleteVideo(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveVideo("vid-del", 30,
		testMapping(t, 5, []int{0, 4}), testObservations([]int{0, 4})))
	require.NoError(t, store.DeleteVideo("vid-del"))

	_, _, _, err := store.LoadVideo("vid-del")
	assert.Error(t, err)

	records, err := store.ListVideos()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFrameStoreObservationsSurviveMesh(t *testing.T) {
	store := newTestStore(t)

	obs := testObservations([]int{0, 1})
	obs[1].Has3D = true
	obs[1].MeshVertices = []pose.Vertex{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8, 0.9}}
	obs[1].MeshFaces = []pose.Face{{0, 1, 2}}

	require.NoError(t, store.SaveVideo("vid-mesh", 30, testMapping(t, 2, []int{0, 1}), obs))

	_, _, loaded, err := store.LoadVideo("vid-mesh")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, obs[1].MeshVertices, loaded[1].MeshVertices)
	assert.Equal(t, obs[1].MeshFaces, loaded[1].MeshFaces)
	assert.True(t, loaded[1].Has3D)
}
