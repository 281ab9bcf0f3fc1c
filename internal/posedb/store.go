package posedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/motiondata/posesync/internal/pose"
)

// VideoRecord is the stored metadata row for one reconciled video.
type VideoRecord struct {
	VideoID     string  `json:"video_id"`
	IngestID    string  `json:"ingest_id"`
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	CreatedAtNs int64   `json:"created_at_ns"`
	UpdatedAtNs *int64  `json:"updated_at_ns,omitempty"`
}

// FrameStore persists frame index mappings and filtered observation sets,
// keyed by video ID.
type FrameStore struct {
	db *DB
}

// NewFrameStore creates a FrameStore backed by the given database.
func NewFrameStore(db *DB) *FrameStore {
	return &FrameStore{db: db}
}

// SaveVideo writes (or replaces) a video's mapping and its filtered
// observation set in one transaction. A fresh ingest ID is minted on every
// save so re-ingests are distinguishable.
func (s *FrameStore) SaveVideo(videoID string, fps float64, mapping *pose.FrameIndexMapping, observations []pose.Observation) error {
	mappingJSON, err := mapping.ToJSON()
	if err != nil {
		return fmt.Errorf("serialize mapping: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save video: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	_, err = tx.Exec(`
		INSERT INTO pose_videos (video_id, ingest_id, total_frames, fps, mapping_json, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			ingest_id = excluded.ingest_id,
			total_frames = excluded.total_frames,
			fps = excluded.fps,
			mapping_json = excluded.mapping_json,
			updated_at_ns = ?
	`, videoID, uuid.New().String(), mapping.TotalFrames, fps, mappingJSON, now, now)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", videoID, err)
	}

	if _, err := tx.Exec(`DELETE FROM pose_observations WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clear observations for %s: %w", videoID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO pose_observations (video_id, frame_number, observation_json)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i := range observations {
		payload, err := json.Marshal(&observations[i])
		if err != nil {
			return fmt.Errorf("serialize observation %d: %w", observations[i].FrameNumber, err)
		}
		if _, err := stmt.Exec(videoID, observations[i].FrameNumber, string(payload)); err != nil {
			return fmt.Errorf("insert observation %d: %w", observations[i].FrameNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save video %s: %w", videoID, err)
	}
	return nil
}

// LoadVideo retrieves the stored record, mapping, and filtered observations
// for a video. The mapping is revalidated during deserialization.
func (s *FrameStore) LoadVideo(videoID string) (*VideoRecord, *pose.FrameIndexMapping, []pose.Observation, error) {
	var rec VideoRecord
	var mappingJSON string
	var updatedAtNs sql.NullInt64

	err := s.db.QueryRow(`
		SELECT video_id, ingest_id, total_frames, fps, mapping_json, created_at_ns, updated_at_ns
		FROM pose_videos
		WHERE video_id = ?
	`, videoID).Scan(&rec.VideoID, &rec.IngestID, &rec.TotalFrames, &rec.FPS, &mappingJSON, &rec.CreatedAtNs, &updatedAtNs)
	if err == sql.ErrNoRows {
		return nil, nil, nil, fmt.Errorf("video not found: %s", videoID)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	if updatedAtNs.Valid {
		v := updatedAtNs.Int64
		rec.UpdatedAtNs = &v
	}

	mapping, err := pose.ParseFrameIndexMapping(mappingJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse mapping for %s: %w", videoID, err)
	}

	observations, err := s.loadObservations(videoID)
	if err != nil {
		return nil, nil, nil, err
	}

	return &rec, mapping, observations, nil
}

func (s *FrameStore) loadObservations(videoID string) ([]pose.Observation, error) {
	rows, err := s.db.Query(`
		SELECT observation_json
		FROM pose_observations
		WHERE video_id = ?
		ORDER BY frame_number
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query observations for %s: %w", videoID, err)
	}
	defer rows.Close()

	var observations []pose.Observation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		var obs pose.Observation
		if err := json.Unmarshal([]byte(payload), &obs); err != nil {
			return nil, fmt.Errorf("parse observation: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observation rows: %w", err)
	}

	return observations, nil
}

// ListVideos returns the stored video records, newest first.
func (s *FrameStore) ListVideos() ([]VideoRecord, error) {
	rows, err := s.db.Query(`
		SELECT video_id, ingest_id, total_frames, fps, created_at_ns, updated_at_ns
		FROM pose_videos
		ORDER BY created_at_ns DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var records []VideoRecord
	for rows.Next() {
		var rec VideoRecord
		var updatedAtNs sql.NullInt64
		if err := rows.Scan(&rec.VideoID, &rec.IngestID, &rec.TotalFrames, &rec.FPS, &rec.CreatedAtNs, &updatedAtNs); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		if updatedAtNs.Valid {
			v := updatedAtNs.Int64
			rec.UpdatedAtNs = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("video rows: %w", err)
	}

	return records, nil
}

// DeleteVideo removes a video's record and observations.
func (s *FrameStore) DeleteVideo(videoID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete video: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pose_observations WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete observations for %s: %w", videoID, err)
	}
	if _, err := tx.Exec(`DELETE FROM pose_videos WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}

	return tx.Commit()
}
