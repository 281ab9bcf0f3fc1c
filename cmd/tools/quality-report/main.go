// Command quality-report renders an HTML chart of a stored video's per-frame
// quality: average keypoint confidence across the retained frames, with the
// interpolated (gap) indices marked along the baseline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/motiondata/posesync/internal/pose"
	"github.com/motiondata/posesync/internal/posedb"
)

func main() {
	var dbPath string
	var videoID string
	var output string

	flag.StringVar(&dbPath, "db", "posesync.db", "path to sqlite db")
	flag.StringVar(&videoID, "video-id", "", "video identifier")
	flag.StringVar(&output, "output", "quality-report.html", "output HTML path")
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

	xAxis := make([]int, 0, len(observations))
	confidence := make([]opts.LineData, 0, len(observations))
	for _, obs := range observations {
		xAxis = append(xAxis, obs.FrameNumber)
		confidence = append(confidence, opts.LineData{Value: []interface{}{obs.FrameNumber, avgConfidence(obs.Keypoints)}})
	}

	// Interpolated indices sit on the baseline so gaps read as runs of dots.
	gaps := make([]opts.ScatterData, 0, mapping.Stats.Interpolated)
	for i := 0; i < mapping.TotalFrames; i++ {
		if !mapping.IsSource(i) {
			gaps = append(gaps, opts.ScatterData{Value: []interface{}{i, 0.0}})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Pose Quality Report",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Quality: %s", videoID),
			Subtitle: fmt.Sprintf("ingest=%s total=%d kept=%d removed=%d interpolated=%d",
				rec.IngestID, mapping.TotalFrames, mapping.Stats.Kept, mapping.Stats.Removed, mapping.Stats.Interpolated),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", Min: 0, Max: mapping.TotalFrames - 1}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Avg confidence", Min: 0, Max: 1}),
	)

	line.SetXAxis(xAxis)
	line.AddSeries("avg confidence", confidence,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false), ShowSymbol: opts.Bool(true)}))

	scatter := charts.NewScatter()
	scatter.AddSeries("interpolated", gaps,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	line.Overlap(scatter)

	f, err := os.Create(output)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	log.Printf("wrote %s", output)
}

func avgConfidence(keypoints []pose.Keypoint) float64 {
	if len(keypoints) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range keypoints {
		sum += kp.Confidence
	}
	return sum / float64(len(keypoints))
}
