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
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/cloud"
	"github.com/spatialmodel/nansat/figure"
	"github.com/spatialmodel/nansat/internal/geotiff"
)

// FigureOptions select the bands of a figure and how they are drawn.
type FigureOptions struct {
	// Bands holds one band number for a colormapped figure or three for
	// an RGB composite. The default is band 1.
	Bands []int

	figure.Options
}

// Layer returns band i prepared for rendering.
func (n *Nansat) Layer(i int) (figure.Layer, error) {
	b, err := n.Band(i)
	if err != nil {
		return figure.Layer{}, err
	}
	nd, ok := b.NoData()
	return figure.Layer{
		Data:      b.data,
		NoData:    nd,
		HasNoData: ok,
		Name:      b.Name(),
		LongName:  b.meta[LongNameKey],
		Units:     b.meta[UnitsKey],
		MinMax:    b.meta[MinMaxKey],
	}, nil
}

// WriteFigure renders the selected bands and saves the image to path.
func (n *Nansat) WriteFigure(path string, opts FigureOptions) error {
	bands := opts.Bands
	if len(bands) == 0 {
		bands = []int{1}
	}
	layers := make([]figure.Layer, len(bands))
	for j, i := range bands {
		l, err := n.Layer(i)
		if err != nil {
			return err
		}
		layers[j] = l
	}
	f := figure.New()
	f.Log = n.Log
	if err := f.Configure(opts.Options); err != nil {
		return err
	}
	if _, err := f.Render(layers...); err != nil {
		return err
	}
	return n.writeOut(path, f.Write)
}

// WriteMap draws the footprint of the accessor on a longitude/latitude
// map and saves it to path.
func (n *Nansat) WriteMap(path string, opts figure.MapOptions) error {
	if opts.Log == nil {
		opts.Log = n.Log
	}
	if opts.Coastlines != "" {
		local, cleanup, err := cloud.Fetch(context.Background(), opts.Coastlines)
		if err != nil {
			return err
		}
		defer cleanup()
		opts.Coastlines = local
	}
	return n.writeOut(path, func(local string) error {
		return figure.WriteMap(local, n.domain, opts)
	})
}

// WriteGeoTIFFImage writes band i as an 8-bit color-mapped GeoTIFF for
// display in GIS tools. The colormap comes from the colormap metadata
// entry of the band and the color limits from its minmax entry, or from
// the range of its valid values. Missing values get index 0, which is
// also the no-data value of the file.
func (n *Nansat) WriteGeoTIFFImage(path string, i int) error {
	b, err := n.Band(i)
	if err != nil {
		return err
	}
	cmName := b.meta[ColormapKey]
	pal, err := figure.IndexedPalette(cmName)
	if err != nil {
		n.Log.WithFields(logrus.Fields{"band": i, "colormap": cmName}).Warn("unknown colormap, using default")
		if pal, err = figure.IndexedPalette(figure.DefaultColormap); err != nil {
			return err
		}
	}
	lo, hi := b.colorLimits()
	idx := make([]float64, len(b.data.Elements))
	for j, v := range b.data.Elements {
		if b.IsNoData(v) {
			continue
		}
		idx[j] = 1 + math.Round(254*math.Max(0, math.Min(1, (v-lo)/(hi-lo))))
	}
	sr := n.domain.SR()
	img := &geotiff.Image{
		Width:           n.domain.Width(),
		Height:          n.domain.Height(),
		Bands:           [][]float64{idx},
		GeoTransform:    n.domain.GeoTransform(),
		HasGeoTransform: true,
		EPSG:            sr.EPSG(),
		Geographic:      sr.IsGeographic(),
		HasNoData:       true,
		Metadata:        n.meta.Copy(),
		BandMetadata:    []map[string]string{b.Metadata()},
		Palette:         pal,
	}
	delete(img.BandMetadata[0], FillValueKey)
	img.BandMetadata[0][MinMaxKey] = fmt.Sprintf("%g %g", lo, hi)
	if img.EPSG == 0 {
		img.Citation = sr.String()
	}
	err = n.writeOut(path, func(local string) error {
		return geotiff.WriteFile(local, img)
	})
	if err != nil {
		return fmt.Errorf("nansat: writing GeoTIFF image %s: %w: %v", path, ErrWriteError, err)
	}
	n.Log.WithFields(logrus.Fields{"band": i, "path": path, "min": lo, "max": hi}).Info("wrote GeoTIFF image")
	return nil
}

// colorLimits returns the minmax metadata entry of b, or the range of
// its valid values.
func (b *Band) colorLimits() (lo, hi float64) {
	mm := strings.Fields(strings.NewReplacer(",", " ", "[", " ", "]", " ").Replace(b.meta[MinMaxKey]))
	if len(mm) == 2 {
		lo, err1 := strconv.ParseFloat(mm[0], 64)
		hi, err2 := strconv.ParseFloat(mm[1], 64)
		if err1 == nil && err2 == nil && hi > lo {
			return lo, hi
		}
	}
	s := b.Stats()
	if s.N == 0 {
		return 0, 1
	}
	if s.Max <= s.Min {
		return s.Min, s.Min + 1
	}
	return s.Min, s.Max
}
