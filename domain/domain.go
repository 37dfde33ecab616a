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


// Package domain describes the pixel grid of a raster: its size, the affine
// transform from pixel indices to map coordinates, and its spatial reference.
package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/nansat/spatialref"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateDomain is returned when a domain would have no area or
// a geotransform that cannot be inverted.
var ErrDegenerateDomain = errors.New("domain: degenerate domain")

// ErrOutsideDomain is returned when a coordinate falls outside of the grid.
var ErrOutsideDomain = errors.New("domain: coordinate outside of domain")

// GeoTransform is an affine transform from pixel indices to
// map coordinates, in the order
// [x0, dx, rx, y0, ry, dy]:
//	x = x0 + col*dx + row*rx
//	y = y0 + col*ry + row*dy
// where col and row are measured from the upper-left corner of the grid.
type GeoTransform [6]float64

func (gt GeoTransform) det() float64 { return gt[1]*gt[5] - gt[2]*gt[4] }

// Apply maps continuous pixel edge coordinates to map coordinates.
func (gt GeoTransform) Apply(col, row float64) (x, y float64) {
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// Invert maps map coordinates to continuous pixel edge coordinates.
func (gt GeoTransform) Invert(x, y float64) (col, row float64) {
	dx, dy := x-gt[0], y-gt[3]
	d := gt.det()
	return (gt[5]*dx - gt[2]*dy) / d, (-gt[4]*dx + gt[1]*dy) / d
}

// NorthUp reports whether the transform has no rotation terms.
func (gt GeoTransform) NorthUp() bool { return gt[2] == 0 && gt[4] == 0 }

// GCP is a ground control point: a location on the pixel grid
// (measured at pixel edges) and its map coordinates.
type GCP struct {
	Pixel, Line float64
	X, Y        float64
}

// Domain is an immutable raster grid.
type Domain struct {
	width, height int
	gt            GeoTransform
	sr            *spatialref.SR
}

// New creates a new domain.
func New(width, height int, gt GeoTransform, sr *spatialref.SR) (*Domain, error) {
	if sr == nil {
		return nil, fmt.Errorf("domain: %w: missing spatial reference", spatialref.ErrInvalidCRS)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrDegenerateDomain, width, height)
	}
	for _, v := range gt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite geotransform %v", ErrDegenerateDomain, gt)
		}
	}
	if gt.det() == 0 {
		return nil, fmt.Errorf("%w: singular geotransform %v", ErrDegenerateDomain, gt)
	}
	return &Domain{width: width, height: height, gt: gt, sr: sr}, nil
}

// cellCount returns the number of cells of size res needed to cover span.
// A small tolerance keeps exact multiples from gaining a cell through
// floating point error.
func cellCount(span, res float64) int {
	n := span / res
	return int(math.Ceil(n - 1e-9*math.Max(1, n)))
}

// FromExtent creates a north-up domain covering the given extent at the
// given resolution. The upper-left corner of the grid is at (minX, maxY).
func FromExtent(minX, minY, maxX, maxY, resolution float64, sr *spatialref.SR) (*Domain, error) {
	if !(resolution > 0) {
		return nil, fmt.Errorf("%w: resolution %g", ErrDegenerateDomain, resolution)
	}
	if !(maxX > minX) || !(maxY > minY) {
		return nil, fmt.Errorf("%w: extent (%g, %g, %g, %g)", ErrDegenerateDomain, minX, minY, maxX, maxY)
	}
	cols := cellCount(maxX-minX, resolution)
	rows := cellCount(maxY-minY, resolution)
	return New(cols, rows, GeoTransform{minX, resolution, 0, maxY, 0, -resolution}, sr)
}

// FromCorners fits a geotransform to three or more ground control points
// by least squares. The grid size is taken from the largest pixel and line
// values of the points.
func FromCorners(corners []GCP, sr *spatialref.SR) (*Domain, error) {
	if len(corners) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 corners, have %d", ErrDegenerateDomain, len(corners))
	}
	n := len(corners)
	a := mat.NewDense(n, 3, nil)
	b := mat.NewDense(n, 2, nil)
	var maxPixel, maxLine float64
	for i, c := range corners {
		a.SetRow(i, []float64{1, c.Pixel, c.Line})
		b.SetRow(i, []float64{c.X, c.Y})
		maxPixel = math.Max(maxPixel, c.Pixel)
		maxLine = math.Max(maxLine, c.Line)
	}
	var coef mat.Dense
	if err := coef.Solve(a, b); err != nil {
		return nil, fmt.Errorf("%w: fitting corners: %v", ErrDegenerateDomain, err)
	}
	gt := GeoTransform{
		coef.At(0, 0), coef.At(1, 0), coef.At(2, 0),
		coef.At(0, 1), coef.At(1, 1), coef.At(2, 1),
	}
	return New(int(math.Ceil(maxPixel)), int(math.Ceil(maxLine)), gt, sr)
}

// Shape returns the number of rows and columns.
func (d *Domain) Shape() (rows, cols int) { return d.height, d.width }

// Width returns the number of columns.
func (d *Domain) Width() int { return d.width }

// Height returns the number of rows.
func (d *Domain) Height() int { return d.height }

// GeoTransform returns the affine transform of the grid.
func (d *Domain) GeoTransform() GeoTransform { return d.gt }

// SR returns the spatial reference of the grid.
func (d *Domain) SR() *spatialref.SR { return d.sr }

// TransformToGeo returns the map coordinates of the center of the
// pixel at (row, col).
func (d *Domain) TransformToGeo(row, col int) (x, y float64) {
	return d.gt.Apply(float64(col)+0.5, float64(row)+0.5)
}

// TransformToPixel returns the pixel that contains the point (x, y).
func (d *Domain) TransformToPixel(x, y float64) (row, col int, err error) {
	c, r := d.gt.Invert(x, y)
	col, row = int(math.Floor(c)), int(math.Floor(r))
	if math.IsNaN(c) || math.IsNaN(r) || col < 0 || row < 0 || col >= d.width || row >= d.height {
		return row, col, fmt.Errorf("%w: (%g, %g)", ErrOutsideDomain, x, y)
	}
	return row, col, nil
}

// PixelCoords returns the continuous pixel coordinates of (x, y), where
// integer values fall on pixel centers. Points outside of the grid
// return values outside of [0, width-1] and [0, height-1].
func (d *Domain) PixelCoords(x, y float64) (row, col float64) {
	c, r := d.gt.Invert(x, y)
	return r - 0.5, c - 0.5
}

// Corners returns the map coordinates of the outer corners of the grid,
// starting at the upper left and proceeding clockwise.
func (d *Domain) Corners() []geom.Point {
	w, h := float64(d.width), float64(d.height)
	pts := make([]geom.Point, 4)
	for i, p := range [][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		pts[i].X, pts[i].Y = d.gt.Apply(p[0], p[1])
	}
	return pts
}

// Extent returns the bounding box of the grid in its own coordinates.
func (d *Domain) Extent() *geom.Bounds {
	b := geom.NewBounds()
	for _, p := range d.Corners() {
		b.Extend(geom.NewBoundsPoint(p))
	}
	return b
}

// Resized returns a domain covering the same area with a different
// number of columns and rows.
func (d *Domain) Resized(width, height int) (*Domain, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrDegenerateDomain, width, height)
	}
	fx := float64(d.width) / float64(width)
	fy := float64(d.height) / float64(height)
	gt := d.gt
	gt[1] *= fx
	gt[4] *= fx
	gt[2] *= fy
	gt[5] *= fy
	return New(width, height, gt, d.sr)
}

// Equal reports whether d and o describe the same grid.
func (d *Domain) Equal(o *Domain) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.width == o.width && d.height == o.height && d.gt == o.gt && d.sr.Equals(o.sr)
}

func (d *Domain) String() string {
	e := d.Extent()
	return fmt.Sprintf("Domain:[%d x %d]\nGeoTransform: %v\nExtent: (%g, %g) to (%g, %g)\nProjection: %s",
		d.width, d.height, d.gt, e.Min.X, e.Min.Y, e.Max.X, e.Max.Y, d.sr)
}
