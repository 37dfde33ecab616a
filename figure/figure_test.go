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
	"errors"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/spatialref"
)

func ramp(rows, cols int) *sparse.DenseArray {
	a := sparse.ZerosDense(rows, cols)
	for i := range a.Elements {
		a.Elements[i] = float64(i)
	}
	return a
}

func TestStateOrder(t *testing.T) {
	f := New()
	if _, err := f.Render(Layer{Data: ramp(2, 2)}); !errors.Is(err, ErrState) {
		t.Errorf("render before configure: %v", err)
	}
	if err := f.Write(filepath.Join(t.TempDir(), "x.png")); !errors.Is(err, ErrState) {
		t.Errorf("write before render: %v", err)
	}
	if err := f.Configure(Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Render(Layer{Data: ramp(2, 2)}); err != nil {
		t.Fatal(err)
	}
	if f.State() != Rendered {
		t.Errorf("state = %s", f.State())
	}
	if err := f.Configure(Options{}); !errors.Is(err, ErrState) {
		t.Errorf("configure after render: %v", err)
	}
	if _, err := f.Render(Layer{Data: ramp(2, 2)}); !errors.Is(err, ErrState) {
		t.Errorf("render twice: %v", err)
	}
}

func TestRenderSize(t *testing.T) {
	tests := []struct {
		name         string
		opts         Options
		wantW, wantH int
	}{
		{name: "native", wantW: 5, wantH: 4},
		{name: "scaled", opts: Options{Width: 10}, wantW: 10, wantH: 8},
		{name: "legend", opts: Options{Width: 200, Legend: true, Caption: "ramp"}, wantW: 200, wantH: 160 + legendHeight},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := New()
			if err := f.Configure(test.opts); err != nil {
				t.Fatal(err)
			}
			img, err := f.Render(Layer{Data: ramp(4, 5)})
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != test.wantW || b.Dy() != test.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), test.wantW, test.wantH)
			}
		})
	}
}

func TestRenderNoDataAndLimits(t *testing.T) {
	a := ramp(2, 3)
	a.Elements[0] = -1
	a.Elements[1] = math.NaN()
	f := New()
	nd := color.NRGBA{R: 1, G: 2, B: 3, A: 4}
	if err := f.Configure(Options{Colormap: "gray", NoDataColor: nd}); err != nil {
		t.Fatal(err)
	}
	img, err := f.Render(Layer{Data: a, NoData: -1, HasNoData: true, MinMax: "2 5"})
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := f.Limits()
	if lo[0] != 2 || hi[0] != 5 {
		t.Errorf("limits = %v %v", lo, hi)
	}
	for _, x := range []int{0, 1} {
		if c := color.NRGBAModel.Convert(img.At(x, 0)).(color.NRGBA); c != nd {
			t.Errorf("pixel %d = %v, want nodata color", x, c)
		}
	}
	dark := color.NRGBAModel.Convert(img.At(2, 0)).(color.NRGBA)
	light := color.NRGBAModel.Convert(img.At(2, 1)).(color.NRGBA)
	if dark.A != 255 || light.A != 255 || dark.R >= light.R {
		t.Errorf("gray ramp not increasing: %v %v", dark, light)
	}
}

func TestRenderPercentiles(t *testing.T) {
	f := New()
	if err := f.Configure(Options{Stretch: Stretch{LowPercentile: 10, HighPercentile: 90}}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Render(Layer{Data: ramp(10, 10)}); err != nil {
		t.Fatal(err)
	}
	lo, hi := f.Limits()
	if lo[0] < 8 || lo[0] > 10 || hi[0] < 88 || hi[0] > 90 {
		t.Errorf("limits = %v %v", lo, hi)
	}
}

func TestRenderRGB(t *testing.T) {
	r, g, b := ramp(2, 2), sparse.ZerosDense(2, 2), sparse.ZerosDense(2, 2)
	f := New()
	if err := f.Configure(Options{Stretch: Stretch{Min: 0, Max: 3}}); err != nil {
		t.Fatal(err)
	}
	img, err := f.Render(Layer{Data: r}, Layer{Data: g}, Layer{Data: b})
	if err != nil {
		t.Fatal(err)
	}
	want := color.NRGBA{R: 255, A: 255}
	if c := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA); c != want {
		t.Errorf("pixel = %v, want %v", c, want)
	}

	f = New()
	f.Configure(Options{})
	if _, err := f.Render(Layer{Data: r}, Layer{Data: g}); err == nil {
		t.Error("expected an error for two layers")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "a.jpg", "a.tif"} {
		f := New()
		f.Configure(Options{})
		if _, err := f.Render(Layer{Data: ramp(3, 4)}); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, name)
		if err := f.Write(path); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if f.State() != Written {
			t.Errorf("state = %s", f.State())
		}
	}
	r, err := os.Open(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	img, err := png.Decode(r)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("decoded size %v", b)
	}

	f := New()
	f.Configure(Options{})
	f.Render(Layer{Data: ramp(3, 4)})
	if err := f.Write(filepath.Join(dir, "a.bmp")); !errors.Is(err, ErrWriteError) {
		t.Errorf("bmp: %v", err)
	}
}

func TestColormap(t *testing.T) {
	if _, err := Colormap("nope"); err == nil {
		t.Error("expected an error")
	}
	for _, n := range Colormaps() {
		for _, name := range []string{n, n + "_r"} {
			cm, err := Colormap(name)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if _, err := cm.At(0.5); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		}
	}
	fwd, _ := Colormap("gray")
	rev, _ := Colormap("gray_r")
	a, _ := fwd.At(0)
	b, _ := rev.At(1)
	if color.NRGBAModel.Convert(a) != color.NRGBAModel.Convert(b) {
		t.Errorf("reversed colormap: %v != %v", a, b)
	}
}

func TestWriteMap(t *testing.T) {
	d, err := domain.FromExtent(-30, 40, -20, 50, 0.5, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	land := filepath.Join(dir, "land.geojson")
	if err := os.WriteFile(land, []byte(`{"type":"Polygon","coordinates":[[[-25,42],[-15,42],[-15,48],[-25,48],[-25,42]]]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	island, err := domain.FromExtent(-24, 43, -22, 45, 1, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	landShp := filepath.Join(dir, "land.shp")
	if err := island.WriteFootprint(landShp); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		opts MapOptions
	}{
		{name: "plain"},
		{name: "overlay", opts: MapOptions{Width: 300, Coastlines: land, Graticule: true}},
		{name: "overlay_geojson_only", opts: MapOptions{Width: 120, Coastlines: land}},
		{name: "overlay_shapefile", opts: MapOptions{Width: 200, Coastlines: landShp}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(dir, test.name+".png")
			if err := WriteMap(path, d, test.opts); err != nil {
				t.Fatal(err)
			}
			r, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if _, err := png.Decode(r); err != nil {
				t.Error(err)
			}
		})
	}
	if err := WriteMap(filepath.Join(dir, "x.png"), d, MapOptions{Coastlines: filepath.Join(dir, "land.txt")}); err == nil {
		t.Error("expected an error for an unsupported overlay")
	}
}
