// Command trajectory-plot renders a PNG comparing a keypoint's raw
// reconciled trace against its temporally smoothed trace over the full dense
// timeline of a stored video.
package main

import (
	"flag"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/motiondata/posesync/internal/config"
	"github.com/motiondata/posesync/internal/pose"
	"github.com/motiondata/posesync/internal/posedb"
)

func main() {
	var dbPath string
	var videoID string
	var keypointName string
	var output string

	flag.StringVar(&dbPath, "db", "posesync.db", "path to sqlite db")
	flag.StringVar(&videoID, "video-id", "", "video identifier")
	flag.StringVar(&keypointName, "keypoint", "pelvis", "keypoint name to trace")
	flag.StringVar(&output, "output", "trajectory.png", "output PNG path")
	flag.Parse()

	if videoID == "" {
		log.Fatalf("video-id must be provided")
	}

	dbConn, err := posedb.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	store := posedb.NewFrameStore(dbConn)
	rec, mapping, observations, err := store.LoadVideo(videoID)
	if err != nil {
		log.Fatalf("load video: %v", err)
	}

	cfg := pose.EngineConfigFromTuning(config.EmptyTuningConfig())
	cfg.SmoothingEnabled = false
	svc := pose.NewService(cfg)
	if err := svc.Restore(videoID, rec.FPS, mapping, observations); err != nil {
		log.Fatalf("restore session: %v", err)
	}

	raw, err := svc.GetFrameRange(videoID, 0, mapping.TotalFrames-1)
	if err != nil {
		log.Fatalf("read raw frames: %v", err)
	}

	svc.SetSmoothingEnabled(true)
	smoothed, err := svc.GetFrameRange(videoID, 0, mapping.TotalFrames-1)
	if err != nil {
		log.Fatalf("read smoothed frames: %v", err)
	}

	rawPts := tracePoints(raw, keypointName)
	smoothPts := tracePoints(smoothed, keypointName)
	if len(rawPts) == 0 {
		log.Fatalf("keypoint %q not present in video %s", keypointName, videoID)
	}

	p := plot.New()
	p.Title.Text = "Keypoint trajectory: " + keypointName + " (" + videoID + ")"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "X position"
	p.Legend.Top = true

	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		log.Fatalf("raw line: %v", err)
	}
	rawLine.Color = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	rawLine.Width = vg.Points(1)

	smoothLine, err := plotter.NewLine(smoothPts)
	if err != nil {
		log.Fatalf("smoothed line: %v", err)
	}
	smoothLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	smoothLine.Width = vg.Points(1.5)

	p.Add(rawLine, smoothLine)
	p.Legend.Add("raw", rawLine)
	p.Legend.Add("smoothed", smoothLine)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, output); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	log.Printf("wrote %s (%d frames)", output, len(rawPts))
}

// tracePoints extracts the named keypoint's X coordinate per frame.
func tracePoints(frames []*pose.ReconciledFrame, name string) plotter.XYs {
	pts := make(plotter.XYs, 0, len(frames))
	for _, frame := range frames {
		for _, kp := range frame.Keypoints {
			if kp.Name == name {
				pts = append(pts, plotter.XY{X: float64(frame.FrameNumber), Y: kp.X})
				break
			}
		}
	}
	return pts
}
