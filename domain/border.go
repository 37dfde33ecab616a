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


package domain

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/spatialmodel/nansat/spatialref"
)

// Footprint returns the outline of the grid in its own coordinates as a
// closed ring with pointsPerEdge points along each edge.
func (d *Domain) Footprint(pointsPerEdge int) geom.Polygon {
	if pointsPerEdge < 1 {
		pointsPerEdge = 1
	}
	w, h := float64(d.width), float64(d.height)
	edges := [][4]float64{{0, 0, w, 0}, {w, 0, w, h}, {w, h, 0, h}, {0, h, 0, 0}}
	ring := make([]geom.Point, 0, 4*pointsPerEdge+1)
	for _, e := range edges {
		for i := 0; i < pointsPerEdge; i++ {
			f := float64(i) / float64(pointsPerEdge)
			x, y := d.gt.Apply(e[0]+f*(e[2]-e[0]), e[1]+f*(e[3]-e[1]))
			ring = append(ring, geom.Point{X: x, Y: y})
		}
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

// Border returns the footprint of the grid transformed to target.
func (d *Domain) Border(target *spatialref.SR, pointsPerEdge int) (geom.Polygon, error) {
	t, err := d.sr.NewTransform(target)
	if err != nil {
		return nil, err
	}
	fp := d.Footprint(pointsPerEdge)
	out := make(geom.Polygon, len(fp))
	for i, r := range fp {
		ring := make([]geom.Point, len(r))
		for j, p := range r {
			x, y, err := t(p.X, p.Y)
			if err != nil {
				return nil, fmt.Errorf("domain: transforming border: %v", err)
			}
			ring[j] = geom.Point{X: x, Y: y}
		}
		out[i] = ring
	}
	return out, nil
}

// LonLatBorder returns the footprint of the grid in geographic coordinates.
func (d *Domain) LonLatBorder(pointsPerEdge int) (geom.Polygon, error) {
	return d.Border(spatialref.WGS84(), pointsPerEdge)
}

func toOrb(p geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		ring := make(orb.Ring, len(r))
		for j, pt := range r {
			ring[j] = orb.Point{pt.X, pt.Y}
		}
		out[i] = ring
	}
	return out
}

// BorderWKT returns the geographic footprint of the grid as a WKT polygon.
func (d *Domain) BorderWKT(pointsPerEdge int) (string, error) {
	b, err := d.LonLatBorder(pointsPerEdge)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(toOrb(b)), nil
}

// BorderGeoJSON returns the geographic footprint of the grid as a
// GeoJSON feature.
func (d *Domain) BorderGeoJSON(pointsPerEdge int) ([]byte, error) {
	b, err := d.LonLatBorder(pointsPerEdge)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(toOrb(b))
	f.Properties["width"] = d.width
	f.Properties["height"] = d.height
	return f.MarshalJSON()
}

// GeolocationGrids returns the longitude and latitude of every pixel
// center as [rows, cols] arrays.
func (d *Domain) GeolocationGrids() (lon, lat *sparse.DenseArray, err error) {
	t, err := d.sr.NewTransform(spatialref.WGS84())
	if err != nil {
		return nil, nil, err
	}
	lon = sparse.ZerosDense(d.height, d.width)
	lat = sparse.ZerosDense(d.height, d.width)
	for r := 0; r < d.height; r++ {
		for c := 0; c < d.width; c++ {
			x, y := d.TransformToGeo(r, c)
			lo, la, err := t(x, y)
			if err != nil {
				return nil, nil, fmt.Errorf("domain: geolocating pixel (%d, %d): %v", r, c, err)
			}
			lon.Set(lo, r, c)
			lat.Set(la, r, c)
		}
	}
	return lon, lat, nil
}

// WriteFootprint writes the geographic footprint of the grid to a shapefile.
func (d *Domain) WriteFootprint(path string) error {
	b, err := d.LonLatBorder(10)
	if err != nil {
		return err
	}
	e, err := shp.NewEncoder(path, struct {
		geom.Polygon
		Width, Height int
	}{})
	if err != nil {
		return fmt.Errorf("domain: creating footprint shapefile: %v", err)
	}
	if err := e.EncodeFields(b, d.width, d.height); err != nil {
		return fmt.Errorf("domain: writing footprint shapefile: %v", err)
	}
	e.Close()
	return nil
}
