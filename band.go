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
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Band is a two-dimensional array of values with its metadata.
type Band struct {
	data      *sparse.DenseArray
	meta      Metadata
	noData    float64
	hasNoData bool
}

// NewBand creates a band from a [rows, cols] array. The no-data value
// is read from the _FillValue metadata entry, if present.
func NewBand(data *sparse.DenseArray, meta Metadata) *Band {
	if meta == nil {
		meta = make(Metadata)
	}
	b := &Band{data: data, meta: meta}
	if v, err := meta.Float(FillValueKey); err == nil {
		b.noData, b.hasNoData = v, true
	}
	return b
}

// Data returns a copy of the band values as a [rows, cols] array.
func (b *Band) Data() *sparse.DenseArray { return b.data.Copy() }

// Shape returns the number of rows and columns.
func (b *Band) Shape() (rows, cols int) { return b.data.Shape[0], b.data.Shape[1] }

// At returns the value at (row, col).
func (b *Band) At(row, col int) float64 { return b.data.Get(row, col) }

// Metadata returns a copy of the band metadata.
func (b *Band) Metadata() Metadata { return b.meta.Copy() }

// Name returns the band name.
func (b *Band) Name() string { return b.meta[NameKey] }

// NoData returns the no-data value of the band and whether it has one.
func (b *Band) NoData() (float64, bool) { return b.noData, b.hasNoData }

// IsNoData reports whether v is missing: NaN or equal to the no-data value.
func (b *Band) IsNoData(v float64) bool {
	return math.IsNaN(v) || (b.hasNoData && v == b.noData)
}

// Categorical reports whether the band holds class values that must
// not be interpolated.
func (b *Band) Categorical() bool {
	if c, err := b.meta.Bool(CategoricalKey); err == nil && c {
		return true
	}
	_, hasValues := b.meta["flag_values"]
	_, hasMeanings := b.meta["flag_meanings"]
	return hasValues || hasMeanings
}

// Valid returns the values of the band that are not missing.
func (b *Band) Valid() []float64 {
	out := make([]float64, 0, len(b.data.Elements))
	for _, v := range b.data.Elements {
		if !b.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// Stats holds summary statistics of the valid values of a band.
type Stats struct {
	Min, Max, Mean, StdDev float64
	N                      int
}

// Stats returns summary statistics of the valid values of the band.
func (b *Band) Stats() Stats {
	v := b.Valid()
	if len(v) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN()}
	}
	mean, std := stat.MeanStdDev(v, nil)
	if len(v) == 1 {
		std = 0
	}
	return Stats{Min: floats.Min(v), Max: floats.Max(v), Mean: mean, StdDev: std, N: len(v)}
}
