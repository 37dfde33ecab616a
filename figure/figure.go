/*
Copyright © 2026 the Nansat authors.
This file is part of Nansat.

Nansat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Nansat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Nansat.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package figure renders raster bands to images. A Figure moves through
// the states Created, Configured, Rendered and Written; calling a method
// out of order returns ErrState.
package figure

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/palette"
)

var (
	// ErrState is returned when a Figure method is called in the wrong state.
	ErrState = errors.New("figure: invalid state")

	// ErrWriteError is returned when a figure cannot be written.
	ErrWriteError = errors.New("figure: write error")
)

// State is the stage a Figure has reached.
type State int

// Figure states.
const (
	Created State = iota
	Configured
	Rendered
	Written
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Configured:
		return "configured"
	case Rendered:
		return "rendered"
	case Written:
		return "written"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Layer is one band to be rendered.
type Layer struct {
	// Data holds the [rows, cols] values.
	Data *sparse.DenseArray

	NoData    float64
	HasNoData bool

	Name, LongName, Units string

	// MinMax, if not empty, holds the default color limits as "min max".
	MinMax string
}

func (l *Layer) missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || (l.HasNoData && v == l.NoData)
}

func (l *Layer) valid() []float64 {
	out := make([]float64, 0, len(l.Data.Elements))
	for _, v := range l.Data.Elements {
		if !l.missing(v) {
			out = append(out, v)
		}
	}
	return out
}

// Stretch selects the values mapped to the ends of the colormap. If
// Max > Min they are used directly; otherwise the limits are taken from
// the layer's MinMax field or, failing that, from the LowPercentile and
// HighPercentile of the valid values (2 and 98 if both are zero).
type Stretch struct {
	Min, Max                      float64
	LowPercentile, HighPercentile float64
}

// Options configure a Figure.
type Options struct {
	// Colormap is the name of the colormap for single-band figures.
	Colormap string

	Stretch Stretch

	// LogScale maps values logarithmically between the limits.
	LogScale bool

	// Gamma, if not zero, is applied to the stretched values as v^(1/Gamma).
	Gamma float64

	// Legend adds a color bar and caption below single-band figures.
	Legend bool

	// Caption overrides the default caption, "long_name [units]".
	Caption string

	// NoDataColor is the color of missing values. The default is transparent.
	NoDataColor color.NRGBA

	// Width is the output width in pixels. Zero keeps the band width.
	Width int
}

// Figure renders layers to an image.
type Figure struct {
	Log logrus.FieldLogger

	state   State
	opts    Options
	cm      palette.ColorMap
	img     image.Image
	lo, hi  []float64
	caption string
}

// New returns a Figure in the Created state.
func New() *Figure {
	return &Figure{Log: logrus.StandardLogger()}
}

// State returns the current state.
func (f *Figure) State() State { return f.state }

// Limits returns the color limits used for each rendered layer.
func (f *Figure) Limits() (lo, hi []float64) { return f.lo, f.hi }

// Image returns the rendered image.
func (f *Figure) Image() image.Image { return f.img }

// Configure sets the rendering options. It may be called repeatedly
// before Render.
func (f *Figure) Configure(o Options) error {
	if f.state != Created && f.state != Configured {
		return fmt.Errorf("%w: cannot configure a %s figure", ErrState, f.state)
	}
	cm, err := Colormap(o.Colormap)
	if err != nil {
		return err
	}
	s := o.Stretch
	if s.LowPercentile == 0 && s.HighPercentile == 0 {
		s.LowPercentile, s.HighPercentile = 2, 98
	}
	if s.LowPercentile < 0 || s.HighPercentile > 100 || s.LowPercentile >= s.HighPercentile {
		return fmt.Errorf("figure: invalid percentiles %g-%g", s.LowPercentile, s.HighPercentile)
	}
	o.Stretch = s
	if o.Gamma < 0 {
		return fmt.Errorf("figure: invalid gamma %g", o.Gamma)
	}
	f.opts = o
	f.cm = cm
	f.state = Configured
	return nil
}

// limits returns the color limits of l.
func (f *Figure) limits(l *Layer) (lo, hi float64) {
	s := f.opts.Stretch
	if s.Max > s.Min {
		return s.Min, s.Max
	}
	if mm := strings.Fields(strings.NewReplacer(",", " ", "[", " ", "]", " ").Replace(l.MinMax)); len(mm) == 2 {
		lo, err1 := strconv.ParseFloat(mm[0], 64)
		hi, err2 := strconv.ParseFloat(mm[1], 64)
		if err1 == nil && err2 == nil && hi > lo {
			return lo, hi
		}
	}
	v := l.valid()
	if len(v) == 0 {
		return 0, 1
	}
	sort.Float64s(v)
	lo = stat.Quantile(s.LowPercentile/100, stat.Empirical, v, nil)
	hi = stat.Quantile(s.HighPercentile/100, stat.Empirical, v, nil)
	if hi <= lo {
		lo, hi = v[0], v[len(v)-1]
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// normalize maps v to [0, 1] between lo and hi.
func (f *Figure) normalize(v, lo, hi float64) float64 {
	var x float64
	if f.opts.LogScale {
		if lo <= 0 {
			lo = math.SmallestNonzeroFloat32
		}
		if v <= 0 {
			return 0
		}
		x = (math.Log10(v) - math.Log10(lo)) / (math.Log10(hi) - math.Log10(lo))
	} else {
		x = (v - lo) / (hi - lo)
	}
	x = math.Max(0, math.Min(1, x))
	if f.opts.Gamma > 0 && f.opts.Gamma != 1 {
		x = math.Pow(x, 1/f.opts.Gamma)
	}
	return x
}

// Render draws one layer with the colormap, or three layers as the
// red, green and blue channels of the image.
func (f *Figure) Render(layers ...Layer) (image.Image, error) {
	if f.state != Configured {
		return nil, fmt.Errorf("%w: cannot render a %s figure", ErrState, f.state)
	}
	if len(layers) != 1 && len(layers) != 3 {
		return nil, fmt.Errorf("figure: need 1 or 3 layers, have %d", len(layers))
	}
	rows, cols := layers[0].Data.Shape[0], layers[0].Data.Shape[1]
	for _, l := range layers[1:] {
		if l.Data.Shape[0] != rows || l.Data.Shape[1] != cols {
			return nil, fmt.Errorf("figure: layer shapes differ: %v and %v", layers[0].Data.Shape, l.Data.Shape)
		}
	}
	f.lo, f.hi = make([]float64, len(layers)), make([]float64, len(layers))
	for i := range layers {
		f.lo[i], f.hi[i] = f.limits(&layers[i])
	}

	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.SetNRGBA(c, r, f.pixel(layers, r, c))
		}
	}
	f.Log.WithFields(logrus.Fields{"layers": len(layers), "min": f.lo, "max": f.hi}).Debug("rendered figure")

	var out image.Image = img
	if f.opts.Width > 0 && f.opts.Width != cols {
		h := int(math.Round(float64(rows) * float64(f.opts.Width) / float64(cols)))
		if h < 1 {
			h = 1
		}
		scaled := image.NewNRGBA(image.Rect(0, 0, f.opts.Width, h))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = scaled
	}
	if len(layers) == 1 {
		f.caption = f.opts.Caption
		if f.caption == "" {
			f.caption = caption(&layers[0])
		}
		if f.opts.Legend {
			var err error
			out, err = f.addLegend(out)
			if err != nil {
				return nil, err
			}
		}
	}
	f.img = out
	f.state = Rendered
	return out, nil
}

func (f *Figure) pixel(layers []Layer, r, c int) color.NRGBA {
	if len(layers) == 1 {
		l := &layers[0]
		v := l.Data.Get(r, c)
		if l.missing(v) {
			return f.opts.NoDataColor
		}
		clr, err := f.cm.At(f.normalize(v, f.lo[0], f.hi[0]))
		if err != nil {
			return f.opts.NoDataColor
		}
		return color.NRGBAModel.Convert(clr).(color.NRGBA)
	}
	var ch [3]uint8
	for i := range layers {
		v := layers[i].Data.Get(r, c)
		if layers[i].missing(v) {
			return f.opts.NoDataColor
		}
		ch[i] = uint8(math.Round(255 * f.normalize(v, f.lo[i], f.hi[i])))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}
}

func caption(l *Layer) string {
	name := l.LongName
	if name == "" {
		name = l.Name
	}
	if l.Units != "" {
		return fmt.Sprintf("%s [%s]", name, l.Units)
	}
	return name
}
