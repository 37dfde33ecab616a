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
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/spatialmodel/nansat/spatialref"
)

func TestFromExtent(t *testing.T) {
	sr := spatialref.WGS84()
	tests := []struct {
		minX, minY, maxX, maxY, res float64
		rows, cols                  int
	}{
		{0, 0, 10, 5, 1, 5, 10},
		{0, 0, 10, 5, 0.5, 10, 20},
		{-180, -90, 180, 90, 0.25, 720, 1440},
		{0, 0, 10.2, 5.1, 1, 6, 11},
		{0, 0, 1, 1, 0.1, 10, 10},
	}
	for _, test := range tests {
		d, err := FromExtent(test.minX, test.minY, test.maxX, test.maxY, test.res, sr)
		if err != nil {
			t.Fatal(err)
		}
		rows, cols := d.Shape()
		if rows != test.rows || cols != test.cols {
			t.Errorf("%v: have %dx%d, want %dx%d", test, rows, cols, test.rows, test.cols)
		}
		gt := d.GeoTransform()
		if gt[0] != test.minX || gt[3] != test.maxY || gt[1] != test.res || gt[5] != -test.res {
			t.Errorf("%v: geotransform %v", test, gt)
		}
	}
}

func TestDegenerate(t *testing.T) {
	sr := spatialref.WGS84()
	if _, err := FromExtent(0, 0, 10, 10, 0, sr); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("zero resolution: %v", err)
	}
	if _, err := FromExtent(0, 0, 10, 10, -1, sr); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("negative resolution: %v", err)
	}
	if _, err := FromExtent(10, 0, 10, 10, 1, sr); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("zero width: %v", err)
	}
	if _, err := New(10, 10, GeoTransform{0, 1, 1, 0, 1, 1}, sr); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("singular geotransform: %v", err)
	}
	if _, err := New(0, 10, GeoTransform{0, 1, 0, 0, 0, -1}, sr); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("zero size: %v", err)
	}
	if _, err := New(10, 10, GeoTransform{0, 1, 0, 0, 0, -1}, nil); !errors.Is(err, spatialref.ErrInvalidCRS) {
		t.Errorf("nil SR: %v", err)
	}
}

func TestTransformRoundTrip(t *testing.T) {
	sr := spatialref.WGS84()
	for name, gt := range map[string]GeoTransform{
		"northup": {10, 0.5, 0, 60, 0, -0.25},
		"rotated": {10, 0.5, 0.1, 60, 0.05, -0.25},
	} {
		t.Run(name, func(t *testing.T) {
			d, err := New(40, 30, gt, sr)
			if err != nil {
				t.Fatal(err)
			}
			for r := 0; r < 30; r += 7 {
				for c := 0; c < 40; c += 9 {
					x, y := d.TransformToGeo(r, c)
					r2, c2, err := d.TransformToPixel(x, y)
					if err != nil {
						t.Fatal(err)
					}
					if r2 != r || c2 != c {
						t.Errorf("(%d, %d) -> (%g, %g) -> (%d, %d)", r, c, x, y, r2, c2)
					}
					rf, cf := d.PixelCoords(x, y)
					if math.Abs(rf-float64(r)) > 1e-9 || math.Abs(cf-float64(c)) > 1e-9 {
						t.Errorf("PixelCoords(%g, %g) = (%g, %g)", x, y, rf, cf)
					}
				}
			}
		})
	}
}

func TestTransformToPixelOutside(t *testing.T) {
	d, err := FromExtent(0, 0, 10, 10, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.TransformToPixel(-0.5, 5); !errors.Is(err, ErrOutsideDomain) {
		t.Errorf("have %v, want ErrOutsideDomain", err)
	}
	// Within one pixel of the input.
	row, col, err := d.TransformToPixel(3.7, 8.2)
	if err != nil {
		t.Fatal(err)
	}
	x, y := d.TransformToGeo(row, col)
	if math.Abs(x-3.7) > 1 || math.Abs(y-8.2) > 1 {
		t.Errorf("(%g, %g) is more than one pixel from (3.7, 8.2)", x, y)
	}
}

func TestFromCorners(t *testing.T) {
	want := GeoTransform{100, 2, 0, 500, 0, -3}
	var gcps []GCP
	for _, pl := range [][2]float64{{0, 0}, {50, 0}, {50, 20}, {0, 20}, {25, 10}} {
		x := want[0] + pl[0]*want[1] + pl[1]*want[2]
		y := want[3] + pl[0]*want[4] + pl[1]*want[5]
		gcps = append(gcps, GCP{Pixel: pl[0], Line: pl[1], X: x, Y: y})
	}
	d, err := FromCorners(gcps, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	if d.Width() != 50 || d.Height() != 20 {
		t.Errorf("size: have %dx%d", d.Width(), d.Height())
	}
	have := d.GeoTransform()
	for i := range want {
		if math.Abs(have[i]-want[i]) > 1e-9 {
			t.Errorf("geotransform: have %v, want %v", have, want)
			break
		}
	}
	if _, err := FromCorners(gcps[:2], spatialref.WGS84()); !errors.Is(err, ErrDegenerateDomain) {
		t.Errorf("two corners: %v", err)
	}
}

func TestResized(t *testing.T) {
	d, err := FromExtent(0, 0, 10, 10, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	d2, err := d.Resized(5, 20)
	if err != nil {
		t.Fatal(err)
	}
	e1, e2 := d.Extent(), d2.Extent()
	if e1.Min != e2.Min || e1.Max != e2.Max {
		t.Errorf("extent changed: %v -> %v", e1, e2)
	}
	if d.Equal(d2) {
		t.Error("resized domain should differ")
	}
}

func TestEqualAcrossCRSForms(t *testing.T) {
	wkt, err := spatialref.FromWKT(`GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`)
	if err != nil {
		t.Fatal(err)
	}
	a, err := FromExtent(0, 0, 10, 10, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromExtent(0, 0, 10, 10, 1, wkt)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("grids on EPSG:4326 and its WKT should be equal")
	}
}

func TestBorder(t *testing.T) {
	d, err := FromExtent(-10, -5, 10, 5, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	w, err := d.BorderWKT(2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(w, "POLYGON((-10 5,0 5,10 5,") {
		t.Errorf("WKT: %s", w)
	}
	j, err := d.BorderGeoJSON(1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(j), `"Polygon"`) {
		t.Errorf("GeoJSON: %s", j)
	}
	lon, lat, err := d.GeolocationGrids()
	if err != nil {
		t.Fatal(err)
	}
	if lon.Get(0, 0) != -9.5 || lat.Get(0, 0) != 4.5 {
		t.Errorf("first pixel center: (%g, %g)", lon.Get(0, 0), lat.Get(0, 0))
	}
}

func TestWriteFootprint(t *testing.T) {
	dir, err := os.MkdirTemp("", "footprint")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	d, err := FromExtent(0, 0, 4, 2, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "footprint.shp")
	if err := d.WriteFootprint(path); err != nil {
		t.Fatal(err)
	}
	dec, err := shp.NewDecoder(path)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	var rec struct {
		geom.Polygon
		Width, Height int
	}
	n := 0
	for dec.DecodeRow(&rec) {
		n++
		if rec.Width != 4 || rec.Height != 2 {
			t.Errorf("attributes: have %dx%d, want 4x2", rec.Width, rec.Height)
		}
	}
	if err := dec.Error(); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("records: have %d, want 1", n)
	}
}
