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


package figure

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/domain"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MapOptions configure an overview map.
type MapOptions struct {
	// Width of the map in pixels. The default is 800.
	Width int

	// Coastlines is an optional shapefile or GeoJSON geometry file
	// with land polygons in longitude/latitude.
	Coastlines string

	OceanColor, LandColor, FootprintColor color.NRGBA

	// Graticule draws meridians and parallels.
	Graticule bool

	Log logrus.FieldLogger
}

func (o *MapOptions) defaults() {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.OceanColor == (color.NRGBA{}) {
		o.OceanColor = color.NRGBA{R: 198, G: 219, B: 239, A: 255}
	}
	if o.LandColor == (color.NRGBA{}) {
		o.LandColor = color.NRGBA{R: 217, G: 217, B: 217, A: 255}
	}
	if o.FootprintColor == (color.NRGBA{}) {
		o.FootprintColor = color.NRGBA{R: 203, G: 24, B: 29, A: 255}
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
}

// WriteMap draws the footprint of d on a longitude/latitude map and
// saves it as an image.
func WriteMap(path string, d *domain.Domain, o MapOptions) error {
	o.defaults()
	border, err := d.LonLatBorder(10)
	if err != nil {
		return err
	}
	b := border.Bounds()
	pad := math.Max(1, 0.1*math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y))
	W := math.Max(-180, b.Min.X-pad)
	E := math.Min(180, b.Max.X+pad)
	S := math.Max(-90, b.Min.Y-pad)
	N := math.Min(90, b.Max.Y+pad)

	h := int(math.Round(float64(o.Width) * (N - S) / (E - W)))
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, o.Width, h))
	c := vgimg.NewWith(vgimg.UseImage(img))
	dc := draw.New(c)
	dc.FillPolygon(o.OceanColor, []vg.Point{
		{X: dc.Min.X, Y: dc.Min.Y}, {X: dc.Max.X, Y: dc.Min.Y},
		{X: dc.Max.X, Y: dc.Max.Y}, {X: dc.Min.X, Y: dc.Max.Y},
	})
	m := carto.NewCanvas(N, S, E, W, dc)

	if o.Coastlines != "" {
		land, err := loadOverlay(o.Coastlines)
		if err != nil {
			return err
		}
		extent := &geom.Bounds{Min: geom.Point{X: W, Y: S}, Max: geom.Point{X: E, Y: N}}
		shore := draw.LineStyle{Color: o.LandColor, Width: vg.Points(0.5)}
		for _, g := range land.SearchIntersect(extent) {
			if err := m.DrawVector(g.(geom.Geom), o.LandColor, shore, draw.GlyphStyle{}); err != nil {
				return err
			}
		}
	}
	if o.Graticule {
		grid := draw.LineStyle{Color: color.NRGBA{R: 90, G: 90, B: 90, A: 160}, Width: vg.Points(0.5)}
		for _, l := range graticule(N, S, E, W) {
			if err := m.DrawVector(l, color.NRGBA{}, grid, draw.GlyphStyle{}); err != nil {
				return err
			}
		}
	}
	outline := draw.LineStyle{Color: o.FootprintColor, Width: vg.Points(1.5)}
	fill := o.FootprintColor
	fill.A = 60
	if err := m.DrawVector(border, fill, outline, draw.GlyphStyle{}); err != nil {
		return err
	}
	if err := writeImage(path, c.Image()); err != nil {
		return err
	}
	o.Log.WithFields(logrus.Fields{"path": path, "north": N, "south": S, "east": E, "west": W}).Info("wrote map")
	return nil
}

// loadOverlay reads land geometries into a spatial index.
func loadOverlay(path string) (*rtree.Rtree, error) {
	tree := rtree.NewTree(25, 50)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		dec, err := shp.NewDecoder(path)
		if err != nil {
			return nil, fmt.Errorf("figure: opening coastlines: %v", err)
		}
		defer dec.Close()
		var rec struct{ geom.Geom }
		for dec.DecodeRow(&rec) {
			if rec.Geom != nil {
				tree.Insert(rec.Geom)
			}
		}
		if err := dec.Error(); err != nil {
			return nil, fmt.Errorf("figure: reading coastlines: %v", err)
		}
	case ".json", ".geojson":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		g, err := geojson.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("figure: reading coastlines: %v", err)
		}
		if mp, ok := g.(geom.MultiPolygon); ok {
			for _, p := range mp {
				tree.Insert(p)
			}
		} else {
			tree.Insert(g)
		}
	default:
		return nil, fmt.Errorf("figure: unsupported coastline file %s", path)
	}
	return tree, nil
}

// graticule returns meridians and parallels spaced so that a handful
// cross the map.
func graticule(N, S, E, W float64) []geom.Geom {
	span := math.Max(N-S, E-W)
	step := 45.
	for _, s := range []float64{1, 2, 5, 10, 15, 30} {
		if span/s <= 8 {
			step = s
			break
		}
	}
	var lines []geom.Geom
	for lon := math.Ceil(W/step) * step; lon <= E; lon += step {
		lines = append(lines, geom.LineString{{X: lon, Y: S}, {X: lon, Y: N}})
	}
	for lat := math.Ceil(S/step) * step; lat <= N; lat += step {
		lines = append(lines, geom.LineString{{X: W, Y: lat}, {X: E, Y: lat}})
	}
	return lines
}
