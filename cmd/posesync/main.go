package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/motiondata/posesync/internal/config"
	"github.com/motiondata/posesync/internal/pose"
	"github.com/motiondata/posesync/internal/posedb"
)

// estimatorBatch is the JSON batch produced by the upstream pose estimator
// pipeline: one entry per detected frame, each carrying the tracked persons.
// Only the primary person is reconciled.
type estimatorBatch struct {
	TotalFrames int              `json:"totalFrames"`
	FPS         float64          `json:"fps"`
	Frames      []estimatorFrame `json:"frames"`
}

type estimatorFrame struct {
	FrameNumber int               `json:"frameNumber"`
	Timestamp   float64           `json:"timestamp"`
	Persons     []estimatorPerson `json:"persons"`
}

type estimatorPerson struct {
	PersonID     int             `json:"personId"`
	Keypoints    []pose.Keypoint `json:"keypoints"`
	MeshVertices []pose.Vertex   `json:"meshVertices,omitempty"`
	MeshFaces    []pose.Face     `json:"meshFaces,omitempty"`
	Has3D        bool            `json:"has3d"`
}

func main() {
	var observationsPath string
	var videoID string
	var totalFrames int
	var fps float64
	var dbPath string
	var tuningPath string

	flag.StringVar(&observationsPath, "observations", "", "path to estimator batch JSON")
	flag.StringVar(&videoID, "video-id", "", "video identifier")
	flag.IntVar(&totalFrames, "total-frames", 0, "dense timeline length (0 = take from batch)")
	flag.Float64Var(&fps, "fps", 0, "frame rate (0 = take from batch)")
	flag.StringVar(&dbPath, "db", "posesync.db", "path to sqlite db")
	flag.StringVar(&tuningPath, "tuning", "", "optional tuning config JSON (defaults apply when empty)")
	flag.Parse()

	if observationsPath == "" || videoID == "" {
		log.Fatalf("observations and video-id must be provided")
	}

	data, err := os.ReadFile(observationsPath)
	if err != nil {
		log.Fatalf("read observations: %v", err)
	}
	var batch estimatorBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		log.Fatalf("parse observations: %v", err)
	}

	if totalFrames == 0 {
		totalFrames = batch.TotalFrames
	}
	if fps == 0 {
		fps = batch.FPS
	}

	observations := make([]pose.Observation, 0, len(batch.Frames))
	for _, f := range batch.Frames {
		if len(f.Persons) == 0 {
			continue
		}
		p := f.Persons[0]
		observations = append(observations, pose.Observation{
			FrameNumber:  f.FrameNumber,
			Timestamp:    f.Timestamp,
			Keypoints:    p.Keypoints,
			MeshVertices: p.MeshVertices,
			MeshFaces:    p.MeshFaces,
			Has3D:        p.Has3D,
		})
	}

	tuning := config.EmptyTuningConfig()
	if tuningPath != "" {
		tuning, err = config.LoadTuningConfig(tuningPath)
		if err != nil {
			log.Fatalf("load tuning config: %v", err)
		}
	}

	svc := pose.NewService(pose.EngineConfigFromTuning(tuning))
	mapping, err := svc.Initialize(videoID, totalFrames, fps, observations)
	if err != nil {
		log.Fatalf("initialize %s: %v", videoID, err)
	}

	dbConn, err := posedb.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	kept, err := svc.SourceObservations(videoID)
	if err != nil {
		log.Fatalf("collect source observations: %v", err)
	}
	store := posedb.NewFrameStore(dbConn)
	if err := store.SaveVideo(videoID, fps, mapping, kept); err != nil {
		log.Fatalf("save video %s: %v", videoID, err)
	}

	fmt.Printf("video %s: %d frames, %d kept, %d removed, %d interpolated\n",
		videoID, mapping.TotalFrames, mapping.Stats.Kept, mapping.Stats.Removed, mapping.Stats.Interpolated)
}
