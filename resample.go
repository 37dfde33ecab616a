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


package nansat

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/domain"
)

// Resampling selects how values are computed when a band is moved onto
// another grid.
type Resampling int

const (
	// Nearest takes the value of the source pixel containing the target pixel center.
	Nearest Resampling = iota
	// Bilinear interpolates between the four source pixel centers around
	// the target pixel center.
	Bilinear
	// Average takes the mean of the source pixels whose centers fall in the
	// target pixel.
	Average
)

func (r Resampling) String() string {
	switch r {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case Average:
		return "average"
	}
	return fmt.Sprintf("Resampling(%d)", int(r))
}

// ParseResampling returns the resampling method with the given name.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "near", "":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	case "average", "mean":
		return Average, nil
	}
	return Nearest, fmt.Errorf("nansat: unknown resampling method %q", s)
}

// pixelMap holds the continuous source pixel coordinates of every target
// pixel center. NaN marks target pixels that could not be transformed.
type pixelMap struct {
	rows, cols []float64
}

func newPixelMap(src, dst *domain.Domain) (*pixelMap, error) {
	t, err := dst.SR().NewTransform(src.SR())
	if err != nil {
		return nil, err
	}
	h, w := dst.Shape()
	m := &pixelMap{rows: make([]float64, h*w), cols: make([]float64, h*w)}
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			x, y := dst.TransformToGeo(r, c)
			sx, sy, err := t(x, y)
			if err != nil || math.IsNaN(sx) || math.IsNaN(sy) || math.IsInf(sx, 0) || math.IsInf(sy, 0) {
				m.rows[i], m.cols[i] = math.NaN(), math.NaN()
				continue
			}
			m.rows[i], m.cols[i] = src.PixelCoords(sx, sy)
		}
	}
	return m, nil
}

// Reproject returns a new Nansat with every band resampled onto target.
// Categorical bands always use nearest-neighbour resampling. Target
// pixels outside of the source grid get the no-data value of the band,
// or NaN if the band has none.
func (n *Nansat) Reproject(target *domain.Domain, alg Resampling) (*Nansat, error) {
	if target == nil {
		return nil, fmt.Errorf("nansat: reproject: nil target domain")
	}
	out := n.newDerived(target)
	same := n.domain.Equal(target)
	var pm *pixelMap
	var fwd forwardMap
	if !same {
		var err error
		if pm, err = newPixelMap(n.domain, target); err != nil {
			return nil, fmt.Errorf("nansat: reproject: %w", err)
		}
	}
	for i := 1; i <= n.BandCount(); i++ {
		b, err := n.Band(i)
		if err != nil {
			return nil, err
		}
		meta := b.Metadata()
		a := alg
		if b.Categorical() {
			a = Nearest
		}
		var data *sparse.DenseArray
		switch {
		case same:
			data = b.Data()
		case a == Average:
			if fwd == nil {
				if fwd, err = newForwardMap(n.domain, target); err != nil {
					return nil, fmt.Errorf("nansat: reproject: %w", err)
				}
			}
			data = resampleAverage(b, pm, fwd, target)
		default:
			data = resample(b, pm, target, a)
		}
		if nd, ok := b.NoData(); ok {
			meta.SetFloat(FillValueKey, nd)
		}
		n.Log.WithFields(logrus.Fields{"band": i, "name": b.Name(), "method": a}).Debug("reprojected band")
		out.bands = append(out.bands, &bandEntry{meta: meta, data: data})
	}
	return out, nil
}

func missing(b *Band) float64 {
	if nd, ok := b.NoData(); ok {
		return nd
	}
	return math.NaN()
}

// resample computes nearest or bilinear values for every target pixel.
func resample(b *Band, pm *pixelMap, target *domain.Domain, alg Resampling) *sparse.DenseArray {
	h, w := target.Shape()
	sh, sw := b.Shape()
	out := sparse.ZerosDense(h, w)
	fill := missing(b)
	for i := range out.Elements {
		out.Elements[i] = sampleAt(b, pm.rows[i], pm.cols[i], sh, sw, alg, fill)
	}
	return out
}

// sampleAt returns the value of b at continuous pixel coordinates (rf, cf).
func sampleAt(b *Band, rf, cf float64, sh, sw int, alg Resampling, fill float64) float64 {
	if math.IsNaN(rf) || math.IsNaN(cf) || rf < -0.5 || cf < -0.5 || rf >= float64(sh)-0.5 || cf >= float64(sw)-0.5 {
		return fill
	}
	nr, nc := int(math.Floor(rf+0.5)), int(math.Floor(cf+0.5))
	nearest := b.At(nr, nc)
	if b.IsNoData(nearest) {
		return fill
	}
	if alg == Nearest {
		return nearest
	}
	r0, c0 := int(math.Floor(rf)), int(math.Floor(cf))
	fr, fc := rf-float64(r0), cf-float64(c0)
	var sum, wsum float64
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			r, c := r0+dr, c0+dc
			if r < 0 || c < 0 || r >= sh || c >= sw {
				continue
			}
			wr, wc := 1-fr, 1-fc
			if dr == 1 {
				wr = fr
			}
			if dc == 1 {
				wc = fc
			}
			wt := wr * wc
			if wt == 0 {
				continue
			}
			v := b.At(r, c)
			if b.IsNoData(v) {
				continue
			}
			sum += wt * v
			wsum += wt
		}
	}
	if wsum == 0 {
		return nearest
	}
	return sum / wsum
}

// forwardMap holds the target pixel index of every source pixel center,
// or -1 when it falls outside of the target grid.
type forwardMap []int

func newForwardMap(src, dst *domain.Domain) (forwardMap, error) {
	t, err := src.SR().NewTransform(dst.SR())
	if err != nil {
		return nil, err
	}
	h, w := src.Shape()
	_, dw := dst.Shape()
	m := make(forwardMap, h*w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			m[i] = -1
			x, y := src.TransformToGeo(r, c)
			tx, ty, err := t(x, y)
			if err != nil {
				continue
			}
			tr, tc, err := dst.TransformToPixel(tx, ty)
			if err != nil {
				continue
			}
			m[i] = tr*dw + tc
		}
	}
	return m, nil
}

// resampleAverage averages the valid source pixels falling in each target
// pixel. Target pixels that receive no source pixel center, as happens
// when the target grid is finer than the source, take the nearest value.
func resampleAverage(b *Band, pm *pixelMap, fwd forwardMap, target *domain.Domain) *sparse.DenseArray {
	h, w := target.Shape()
	sh, sw := b.Shape()
	sum := make([]float64, h*w)
	count := make([]int, h*w)
	invalid := make([]bool, h*w)
	for i, ti := range fwd {
		if ti < 0 {
			continue
		}
		v := b.data.Elements[i]
		if b.IsNoData(v) {
			invalid[ti] = true
			continue
		}
		sum[ti] += v
		count[ti]++
	}
	out := sparse.ZerosDense(h, w)
	fill := missing(b)
	for i := range out.Elements {
		switch {
		case count[i] > 0:
			out.Elements[i] = sum[i] / float64(count[i])
		case invalid[i]:
			out.Elements[i] = fill
		default:
			out.Elements[i] = sampleAt(b, pm.rows[i], pm.cols[i], sh, sw, Nearest, fill)
		}
	}
	return out
}

// resizeBilinear resamples a [rows, cols] array to a new shape covering
// the same area.
func resizeBilinear(a *sparse.DenseArray, rows, cols int, b *Band) *sparse.DenseArray {
	sh, sw := a.Shape[0], a.Shape[1]
	out := sparse.ZerosDense(rows, cols)
	fill := missing(b)
	for r := 0; r < rows; r++ {
		rf := (float64(r)+0.5)*float64(sh)/float64(rows) - 0.5
		for c := 0; c < cols; c++ {
			cf := (float64(c)+0.5)*float64(sw)/float64(cols) - 0.5
			rc := math.Min(math.Max(rf, -0.5), float64(sh)-0.5-1e-9)
			cc := math.Min(math.Max(cf, -0.5), float64(sw)-0.5-1e-9)
			out.Set(sampleAt(b, rc, cc, sh, sw, Bilinear, fill), r, c)
		}
	}
	return out
}

// ResizeMethod selects how Resize computes new values.
type ResizeMethod int

const (
	// ResizeAverage averages source pixels when shrinking and
	// interpolates bilinearly when enlarging.
	ResizeAverage ResizeMethod = iota
	// ResizeSubsample takes the nearest source pixel.
	ResizeSubsample
)

// Resize returns a new Nansat covering the same area with the number of
// rows and columns multiplied by factor.
func (n *Nansat) Resize(factor float64, method ResizeMethod) (*Nansat, error) {
	if !(factor > 0) {
		return nil, fmt.Errorf("%w: resize factor %g", ErrDegenerateDomain, factor)
	}
	h, w := n.domain.Shape()
	nw := int(math.Round(float64(w) * factor))
	nh := int(math.Round(float64(h) * factor))
	d, err := n.domain.Resized(nw, nh)
	if err != nil {
		return nil, err
	}
	alg := Nearest
	if method == ResizeAverage {
		alg = Bilinear
		if factor < 1 {
			alg = Average
		}
	}
	return n.Reproject(d, alg)
}

// Mosaic reprojects the named bands of every source onto target and
// averages the valid values. The result has one band per name and a
// "valid_count" band with the number of sources contributing to each pixel
// of the first band.
func Mosaic(sources []*Nansat, target *domain.Domain, bandNames []string, alg Resampling) (*Nansat, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("nansat: mosaic: no sources")
	}
	out := sources[0].newDerived(target)
	h, w := target.Shape()
	var counts0 []int
	for bi, name := range bandNames {
		sum := make([]float64, h*w)
		count := make([]int, h*w)
		var meta Metadata
		for _, s := range sources {
			i, err := s.BandNumber(name)
			if err != nil {
				continue
			}
			sb, err := s.Band(i)
			if err != nil {
				return nil, err
			}
			sub := s.newDerived(s.domain)
			sub.bands = []*bandEntry{{meta: sb.meta.Copy(), data: sb.data}}
			r, err := sub.Reproject(target, alg)
			if err != nil {
				return nil, err
			}
			b, err := r.Band(1)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				meta = b.Metadata()
			}
			for k, v := range b.data.Elements {
				if !b.IsNoData(v) {
					sum[k] += v
					count[k]++
				}
			}
		}
		if meta == nil {
			return nil, fmt.Errorf("%w: %q is not in any mosaic source", ErrBandNotFound, name)
		}
		data := sparse.ZerosDense(h, w)
		for k := range data.Elements {
			if count[k] == 0 {
				data.Elements[k] = math.NaN()
			} else {
				data.Elements[k] = sum[k] / float64(count[k])
			}
		}
		delete(meta, FillValueKey)
		out.bands = append(out.bands, &bandEntry{meta: meta, data: data})
		if bi == 0 {
			counts0 = count
		}
	}
	if counts0 != nil {
		c := sparse.ZerosDense(h, w)
		for k, v := range counts0 {
			c.Elements[k] = float64(v)
		}
		out.bands = append(out.bands, &bandEntry{meta: Metadata{NameKey: "valid_count"}, data: c})
	}
	return out, nil
}
