package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/tiltpilot/navsim/internal/evaluator"
)

// ErrEmptyTrack is returned when there is nothing to draw.
var ErrEmptyTrack = errors.New("track has no points")

var (
	trackColor  = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	hitColor    = color.RGBA{G: 160, A: 255}
	missColor   = color.RGBA{R: 220, A: 255}
	boundsColor = color.Gray{Y: 120}
)

// Options controls the rendered image.
type Options struct {
	Width, Height vg.Length
	Bounds        evaluator.Bounds
}

// DefaultOptions draws an 8 inch square with the stock board.
func DefaultOptions() Options {
	return Options{Width: 8 * vg.Inch, Height: 8 * vg.Inch, Bounds: evaluator.DefaultBounds}
}

// RenderTrack draws the flown path, the board edge and every waypoint with
// its hit circle, and saves the image to out. The format follows the file
// extension.
func RenderTrack(t *Track, out string, opts Options) error {
	p, err := NewTrackPlot(t, opts.Bounds)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}

// NewTrackPlot builds the plot without saving it.
func NewTrackPlot(t *Track, bounds evaluator.Bounds) (*plot.Plot, error) {
	if len(t.Points) == 0 {
		return nil, ErrEmptyTrack
	}

	p := plot.New()
	p.Title.Text = title(t)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	edge, err := plotter.NewLine(plotter.XYs{
		{X: bounds.Min, Y: bounds.Min},
		{X: bounds.Max, Y: bounds.Min},
		{X: bounds.Max, Y: bounds.Max},
		{X: bounds.Min, Y: bounds.Max},
		{X: bounds.Min, Y: bounds.Min},
	})
	if err != nil {
		return nil, err
	}
	edge.Color = boundsColor
	edge.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(edge)
	p.Legend.Add("board", edge)

	pts := make(plotter.XYs, len(t.Points))
	for i, v := range t.Points {
		pts[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	path, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	path.Color = trackColor
	path.Width = vg.Points(1.5)
	p.Add(path)
	p.Legend.Add(fmt.Sprintf("track (%.0f)", t.Length()), path)

	var hit, missed plotter.XYs
	for _, wp := range t.Waypoints {
		xy := plotter.XY{X: wp.Position.X, Y: wp.Position.Y}
		if wp.Hit {
			hit = append(hit, xy)
		} else {
			missed = append(missed, xy)
		}

		ring, err := plotter.NewLine(circle(xy, wp.HitRadius, 48))
		if err != nil {
			return nil, err
		}
		ring.Color = missColor
		if wp.Hit {
			ring.Color = hitColor
		}
		ring.Width = vg.Points(0.5)
		p.Add(ring)
	}
	if err := addWaypoints(p, hit, "hit", hitColor); err != nil {
		return nil, err
	}
	if err := addWaypoints(p, missed, "open", missColor); err != nil {
		return nil, err
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func addWaypoints(p *plot.Plot, xys plotter.XYs, label string, c color.Color) error {
	if len(xys) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = draw.CrossGlyph{}
	s.GlyphStyle.Radius = vg.Points(4)
	p.Add(s)
	p.Legend.Add(label, s)
	return nil
}

func circle(center plotter.XY, r float64, n int) plotter.XYs {
	out := make(plotter.XYs, n+1)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = plotter.XY{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)}
	}
	return out
}

func title(t *Track) string {
	name := t.Name
	if name == "" {
		name = t.RunUUID
	}
	if t.Outcome == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, t.Outcome)
}
