package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/pose"
)

// NewPlot creates a plot of the simulation: the ground truth
// trajectory and landmarks against an estimator's trajectory and
// feature map.
// It returns error if the plotters fail to be created.
func NewPlot(truth []pose.Pose, landmarks []pose.Point, result slam.Result) (*plot.Plot, error) {
	p := plot.New()

	p.Title.Text = "SLAM"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Legend.Top = true

	truthLine, err := plotter.NewLine(posePoints(truth))
	if err != nil {
		return nil, fmt.Errorf("failed to create truth plotter: %v", err)
	}
	truthLine.Color = color.RGBA{B: 255, A: 255}
	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	estimated := make([]pose.Pose, int(result.CurrentTimestep())+1)
	for t := range estimated {
		estimated[t] = result.State(slam.Timestep(t))
	}
	estimateLine, err := plotter.NewLine(posePoints(estimated))
	if err != nil {
		return nil, fmt.Errorf("failed to create estimate plotter: %v", err)
	}
	estimateLine.Color = color.RGBA{R: 255, A: 255}
	p.Add(estimateLine)
	p.Legend.Add("estimate", estimateLine)

	lmScatter, err := plotter.NewScatter(pointPoints(landmarks))
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark plotter: %v", err)
	}
	lmScatter.GlyphStyle.Color = color.RGBA{G: 128, A: 255}
	lmScatter.Shape = draw.PyramidGlyph{}
	lmScatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(lmScatter)
	p.Legend.Add("landmarks", lmScatter)

	var features []pose.Point
	result.FeatureMap().Each(func(_ slam.FeatureID, pt pose.Point) {
		features = append(features, pt)
	})
	featScatter, err := plotter.NewScatter(pointPoints(features))
	if err != nil {
		return nil, fmt.Errorf("failed to create feature plotter: %v", err)
	}
	featScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	featScatter.Shape = draw.CrossGlyph{}
	featScatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(featScatter)
	p.Legend.Add("features", featScatter)

	return p, nil
}

func posePoints(poses []pose.Pose) plotter.XYs {
	pts := make(plotter.XYs, len(poses))
	for i, p := range poses {
		pts[i].X = p.X
		pts[i].Y = p.Y
	}
	return pts
}

func pointPoints(points []pose.Point) plotter.XYs {
	pts := make(plotter.XYs, len(points))
	for i, p := range points {
		pts[i].X = p.X
		pts[i].Y = p.Y
	}
	return pts
}
