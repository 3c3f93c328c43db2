package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/edmo-mood/clients"
	"github.com/maastricht-university/edmo-mood/emotion"
)

// Summary is the human readable digest written next to the timeline.
type Summary struct {
	SessionID    string             `yaml:"session_id"`
	GeneratedAt  time.Time          `yaml:"generated_at"`
	Since        time.Time          `yaml:"since"`
	TotalRecords int                `yaml:"total_records"`
	TotalMoods   int                `yaml:"total_moods"`
	Dominant     string             `yaml:"dominant_emotion,omitempty"`
	LatestMood   string             `yaml:"latest_mood,omitempty"`
	Families     map[string]float64 `yaml:"family_shares"`
	Frequency    []Frequency        `yaml:"emotion_frequency"`
	Windows      int                `yaml:"windows"`
}

type Export struct {
	SessionID    string   `json:"session_id"`
	Dir          string   `json:"dir"`
	TimelinePath string   `json:"timeline"`
	SummaryPath  string   `json:"summary"`
	ChartPath    string   `json:"chart,omitempty"`
	RemoteCharts []string `json:"remote_charts,omitempty"`
}

func mkSessionDir(outputsRoot, sessionID string, now time.Time) (string, error) {
	dir := filepath.Join(outputsRoot, "session_"+sessionID+"_"+now.Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Export writes timeline.json, summary.yaml and, when there is data,
// confidence.png for the session into a fresh directory under paths.outputs.
// With a visualization service configured the timeline and family radar are
// also sent there; failures of that step are logged, not returned.
func (p *Pipeline) Export(ctx context.Context, sessionID string, since time.Time) (*Export, error) {
	tl, err := p.Timeline(ctx, sessionID, since)
	if err != nil {
		return nil, err
	}
	now := p.now()
	dir, err := mkSessionDir(p.cfg.Paths.Outputs, sessionID, now)
	if err != nil {
		return nil, err
	}
	out := &Export{
		SessionID:    sessionID,
		Dir:          dir,
		TimelinePath: filepath.Join(dir, "timeline.json"),
		SummaryPath:  filepath.Join(dir, "summary.yaml"),
	}

	if err := writeJSON(out.TimelinePath, tl); err != nil {
		return nil, err
	}
	if err := writeYAML(out.SummaryPath, summarize(tl, now)); err != nil {
		return nil, err
	}
	if len(tl.Points) > 0 || len(tl.Moods) > 0 {
		out.ChartPath = filepath.Join(dir, "confidence.png")
		if err := confidenceChart(tl, out.ChartPath); err != nil {
			return nil, fmt.Errorf("confidence chart: %w", err)
		}
	}

	if url := p.cfg.Services.Visualization.URL; url != "" && len(tl.Points) > 0 {
		out.RemoteCharts = p.pushCharts(ctx, url, dir, tl)
	}
	p.log.WithField("session", sessionID).WithField("dir", dir).Info("session exported")
	return out, nil
}

func (p *Pipeline) pushCharts(ctx context.Context, url, dir string, tl *Timeline) []string {
	var paths []string
	req := clients.TimelineReq{SessionID: tl.SessionID, OutputDir: dir}
	for _, pt := range tl.Points {
		req.Timestamps = append(req.Timestamps, pt.Offset)
		req.Labels = append(req.Labels, pt.Emotion)
		req.Confidences = append(req.Confidences, pt.Confidence)
	}
	if r, err := p.http.GenerateTimeline(ctx, url, req); err != nil {
		p.log.WithError(err).Warn("visualization timeline failed")
	} else {
		paths = append(paths, r.Path)
	}

	shares := familyShares(tl.Points)
	radar := clients.RadarReq{StudentName: tl.SessionID, OutputDir: dir}
	for _, f := range emotion.Families() {
		radar.Categories = append(radar.Categories, string(f))
		radar.Values = append(radar.Values, shares[f])
	}
	if r, err := p.http.GenerateRadar(ctx, url, radar); err != nil {
		p.log.WithError(err).Warn("visualization radar failed")
	} else {
		paths = append(paths, r.Path)
	}
	return paths
}

func summarize(tl *Timeline, now time.Time) Summary {
	s := Summary{
		SessionID:    tl.SessionID,
		GeneratedAt:  now,
		Since:        tl.Since,
		TotalRecords: tl.TotalRecords,
		TotalMoods:   tl.TotalMoods,
		Frequency:    tl.Frequency,
		Windows:      len(tl.Windows),
		Families:     map[string]float64{},
	}
	if len(tl.Frequency) > 0 {
		s.Dominant = tl.Frequency[0].Emotion
	}
	if len(tl.Moods) > 0 {
		s.LatestMood = tl.Moods[len(tl.Moods)-1].Mood
	}
	for f, v := range familyShares(tl.Points) {
		s.Families[string(f)] = v
	}
	return s
}

var seriesColors = map[string]color.Color{
	string(emotion.Face):  color.RGBA{R: 46, G: 139, B: 87, A: 255},
	string(emotion.Voice): color.RGBA{R: 65, G: 105, B: 225, A: 255},
	"mood":                color.RGBA{R: 220, G: 20, B: 60, A: 255},
}

func confidenceChart(tl *Timeline, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s - confidence", tl.SessionID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Confidence"
	p.Y.Min, p.Y.Max = 0, 1

	var origin time.Time
	switch {
	case len(tl.Points) > 0:
		origin = tl.Points[0].Time
	case len(tl.Moods) > 0:
		origin = tl.Moods[0].Time
	}

	series := map[string]plotter.XYs{}
	for _, pt := range tl.Points {
		series[pt.Source] = append(series[pt.Source], plotter.XY{X: pt.Time.Sub(origin).Seconds(), Y: pt.Confidence})
	}
	for _, m := range tl.Moods {
		series["mood"] = append(series["mood"], plotter.XY{X: m.Time.Sub(origin).Seconds(), Y: m.Confidence})
	}

	for _, name := range []string{string(emotion.Face), string(emotion.Voice), "mood"} {
		pts := series[name]
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = seriesColors[name]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
