package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
)

const (
	width  = 8 * vg.Inch
	height = 5 * vg.Inch
)

var (
	colorPredicted = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorActual    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorReference = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorIdentity  = color.RGBA{R: 127, G: 127, B: 127, A: 255}
)

// Chart is a rendered PNG with a caption for the message it is sent in.
type Chart struct {
	PNG     []byte
	Caption string
}

// Parameter plots predicted (and, where known, measured) size against one
// parameter. ref, when set, is highlighted.
func Parameter(exps []experiments.Experiment, field params.Field, ref *experiments.Experiment) (Chart, error) {
	if len(exps) == 0 {
		return Chart{}, fmt.Errorf("%w: no experiments", ErrNotEnoughData)
	}

	var predicted, actual plotter.XYs
	for i := range exps {
		e := &exps[i]
		x := e.Params().Value(field)
		predicted = append(predicted, plotter.XY{X: x, Y: e.PredictedSize})
		if e.ActualSize != nil {
			actual = append(actual, plotter.XY{X: x, Y: *e.ActualSize})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Size vs %s", field)
	p.X.Label.Text = field.String()
	p.Y.Label.Text = "Size, nm"
	p.Add(plotter.NewGrid())

	if err := addScatter(p, "Predicted", predicted, colorPredicted, draw.CircleGlyph{}); err != nil {
		return Chart{}, err
	}
	if len(actual) > 0 {
		if err := addScatter(p, "Measured", actual, colorActual, draw.TriangleGlyph{}); err != nil {
			return Chart{}, err
		}
	}

	caption := fmt.Sprintf("%s: %d experiments, %d measured", field, len(predicted), len(actual))
	if ref != nil {
		x := ref.Params().Value(field)
		pts := plotter.XYs{{X: x, Y: ref.PredictedSize}}
		if ref.ActualSize != nil {
			pts = append(pts, plotter.XY{X: x, Y: *ref.ActualSize})
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return Chart{}, fmt.Errorf("reference scatter: %w", err)
		}
		s.GlyphStyle.Color = colorReference
		s.GlyphStyle.Shape = draw.RingGlyph{}
		s.GlyphStyle.Radius = vg.Points(7)
		p.Add(s)
		p.Legend.Add("Reference "+shortID(ref.ID), s)
		caption += "\nReference: " + ref.ID
	}
	p.Legend.Top = true

	png, err := encode(p)
	if err != nil {
		return Chart{}, err
	}
	return Chart{PNG: png, Caption: caption}, nil
}

// Correlation plots measured against predicted size with the identity line
// and the fitted regression line.
func Correlation(exps []experiments.Experiment) (Chart, error) {
	acc, err := Evaluate(exps)
	if err != nil {
		return Chart{}, err
	}
	m := measured(exps)

	pts := make(plotter.XYs, len(m.predSize))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range m.predSize {
		pts[i] = plotter.XY{X: m.predSize[i], Y: m.actSize[i]}
		lo = math.Min(lo, math.Min(m.predSize[i], m.actSize[i]))
		hi = math.Max(hi, math.Max(m.predSize[i], m.actSize[i]))
	}

	p := plot.New()
	p.Title.Text = "Measured vs predicted size"
	p.X.Label.Text = "Predicted size, nm"
	p.Y.Label.Text = "Measured size, nm"
	p.Add(plotter.NewGrid())

	if err := addScatter(p, "Experiments", pts, colorPredicted, draw.CircleGlyph{}); err != nil {
		return Chart{}, err
	}

	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return Chart{}, fmt.Errorf("identity line: %w", err)
	}
	identity.LineStyle.Color = colorIdentity
	identity.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(identity)
	p.Legend.Add("Ideal", identity)

	fit := plotter.NewFunction(func(x float64) float64 { return acc.Intercept + acc.Slope*x })
	fit.Color = colorActual
	fit.Width = vg.Points(1.5)
	p.Add(fit)
	p.Legend.Add("Fit", fit)
	p.X.Min, p.X.Max = lo, hi
	p.Legend.Top = true
	p.Legend.Left = true

	png, err := encode(p)
	if err != nil {
		return Chart{}, err
	}
	return Chart{PNG: png, Caption: acc.Caption()}, nil
}

func addScatter(p *plot.Plot, name string, pts plotter.XYs, c color.Color, shape draw.GlyphDrawer) error {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("%s scatter: %w", name, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Radius = vg.Points(3.5)
	p.Add(s)
	p.Legend.Add(name, s)
	return nil
}

func encode(p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart encode: %w", err)
	}
	return buf.Bytes(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
