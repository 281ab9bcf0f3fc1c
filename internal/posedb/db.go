// Package posedb persists reconciliation results — the serialized frame
// index mapping and the filtered observation set per video — so a restart
// does not require re-running quality analysis.
package posedb

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle used by the frame store.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path and ensures
// the schema exists. For deployments that manage schema versions explicitly,
// use MigrateUp with the migrations directory instead of relying on the
// inline bootstrap.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pose_videos (
			video_id        TEXT PRIMARY KEY,
			ingest_id       TEXT NOT NULL,
			total_frames    INTEGER NOT NULL,
			fps             REAL NOT NULL,
			mapping_json    TEXT NOT NULL,
			created_at_ns   INTEGER NOT NULL,
			updated_at_ns   INTEGER
		);
		CREATE TABLE IF NOT EXISTS pose_observations (
			video_id         TEXT NOT NULL,
			frame_number     INTEGER NOT NULL,
			observation_json TEXT NOT NULL,
			PRIMARY KEY (video_id, frame_number)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}
