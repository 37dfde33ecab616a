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


package mappers

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/internal/geotiff"
	"github.com/spatialmodel/nansat/spatialref"
)

func newRegistry() *nansat.Registry {
	r := new(nansat.Registry)
	Register(r)
	return r
}

func open(t *testing.T, path string, opts ...nansat.Option) *nansat.Nansat {
	t.Helper()
	opts = append([]nansat.Option{nansat.WithRegistry(newRegistry())}, opts...)
	n, err := nansat.Open(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func bandValues(t *testing.T, n *nansat.Nansat, i int) []float64 {
	t.Helper()
	b, err := n.Band(i)
	if err != nil {
		t.Fatal(err)
	}
	return b.Data().Elements
}

func TestRegisterOrder(t *testing.T) {
	want := []string{"landsat", "sstcci", "netcdf", "geotiff", "aaigrid", "pngworld"}
	if have := newRegistry().Names(); !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(p, []byte("hello"), 0644)
	_, err := nansat.Open(p, nansat.WithRegistry(newRegistry()))
	if !errors.Is(err, nansat.ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestGeoTIFF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scene.tif")
	img := &geotiff.Image{
		Width: 3, Height: 2,
		Bands:           [][]float64{{1, 2, 3, 4, 5, -1}, {10, 20, 30, 40, 50, 60}},
		GeoTransform:    [6]float64{10, 0.5, 0, 50, 0, -0.5},
		HasGeoTransform: true,
		EPSG:            4326,
		Geographic:      true,
		NoData:          -1,
		HasNoData:       true,
		Metadata:        map[string]string{"sensor": "test"},
		BandMetadata:    []map[string]string{{"name": "a"}, {"name": "b", "scale_factor": "0.5"}},
	}
	if err := geotiff.WriteFile(p, img); err != nil {
		t.Fatal(err)
	}
	n := open(t, p)
	if n.AdapterName() != "geotiff" {
		t.Errorf("adapter = %s", n.AdapterName())
	}
	if n.BandCount() != 2 {
		t.Fatalf("band count = %d", n.BandCount())
	}
	if v, _ := n.MetadataValue("sensor"); v != "test" {
		t.Errorf("sensor = %q", v)
	}
	if n.Domain().SR().EPSG() != 4326 {
		t.Errorf("EPSG = %d", n.Domain().SR().EPSG())
	}
	b, err := n.BandByName("a")
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsNoData(b.At(1, 2)) {
		t.Errorf("value %g should be missing", b.At(1, 2))
	}
	if have, want := bandValues(t, n, 2), []float64{5, 10, 15, 20, 25, 30}; !reflect.DeepEqual(have, want) {
		t.Errorf("scaled band: have %v, want %v", have, want)
	}
}

func TestGeoTIFFPRJ(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "grid.tif")
	img := &geotiff.Image{
		Width: 2, Height: 2,
		Bands:           [][]float64{{1, 2, 3, 4}},
		GeoTransform:    [6]float64{500000, 100, 0, 6000000, 0, -100},
		HasGeoTransform: true,
		BandMetadata:    []map[string]string{{}},
	}
	if err := geotiff.WriteFile(p, img); err != nil {
		t.Fatal(err)
	}
	_, err := nansat.Open(p, nansat.WithRegistry(newRegistry()))
	if !errors.Is(err, nansat.ErrCorruptFile) || !errors.Is(err, spatialref.ErrInvalidCRS) {
		t.Errorf("without .prj: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "grid.prj"), []byte("EPSG:32633\n"), 0644)
	n := open(t, p)
	if n.Domain().SR().EPSG() != 32633 {
		t.Errorf("EPSG = %d", n.Domain().SR().EPSG())
	}
	if name := n.Bands()[0][nansat.NameKey]; name != "band_1" {
		t.Errorf("name = %q", name)
	}
}

func writeNetCDF(t *testing.T, path string, h *cdf.Header, data map[string]interface{}) {
	t.Helper()
	h.Define()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	for v, d := range data {
		end := h.Lengths(v)
		if _, err := nc.Writer(v, make([]int, len(end)), end).Write(d); err != nil {
			t.Fatalf("%s: %v", v, err)
		}
	}
}

func TestNetCDFLatLon(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sst.nc")
	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{2, 3, 4})
	h.AddVariable("lat", []string{"lat"}, []float64{})
	h.AddVariable("lon", []string{"lon"}, []float64{})
	h.AddVariable("sst", []string{"time", "lat", "lon"}, []float32{})
	h.AddAttribute("sst", "_FillValue", []float32{-999})
	h.AddAttribute("sst", "units", "K")
	h.AddAttribute("", "title", "test")
	sst := make([]float32, 24)
	for i := range sst {
		sst[i] = float32(i)
	}
	sst[5] = -999
	writeNetCDF(t, p, h, map[string]interface{}{
		"lat": []float64{10.5, 11.5, 12.5},
		"lon": []float64{0.5, 1.5, 2.5, 3.5},
		"sst": sst,
	})

	n := open(t, p)
	if n.AdapterName() != "netcdf" {
		t.Errorf("adapter = %s", n.AdapterName())
	}
	if n.BandCount() != 2 {
		t.Fatalf("band count = %d", n.BandCount())
	}
	want := domain.GeoTransform{0, 1, 0, 10, 0, 1}
	if gt := n.Domain().GeoTransform(); gt != want {
		t.Errorf("geotransform = %v, want %v", gt, want)
	}
	if v, _ := n.MetadataValue("title"); v != "test" {
		t.Errorf("title = %q", v)
	}
	b, err := n.BandByName("sst_1")
	if err != nil {
		t.Fatal(err)
	}
	if b.At(0, 0) != 12 || b.At(2, 3) != 23 {
		t.Errorf("sst_1 = %v", b.Data().Elements)
	}
	b0, _ := n.BandByName("sst_0")
	if !b0.IsNoData(b0.At(1, 1)) {
		t.Errorf("value %g should be missing", b0.At(1, 1))
	}
	if u := b0.Metadata()[nansat.UnitsKey]; u != "K" {
		t.Errorf("units = %q", u)
	}
}

func writeSST(t *testing.T, path string) {
	t.Helper()
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{2, 3})
	h.AddVariable("lat", []string{"lat"}, []float64{})
	h.AddVariable("lon", []string{"lon"}, []float64{})
	h.AddVariable("analysed_sst", []string{"lat", "lon"}, []float32{})
	h.AddAttribute("analysed_sst", "units", "kelvin")
	writeNetCDF(t, path, h, map[string]interface{}{
		"lat":          []float64{-0.5, 0.5},
		"lon":          []float64{0.5, 1.5, 2.5},
		"analysed_sst": []float32{271, 272, 273, 274, 275, 276},
	})
}

func TestSSTCCI(t *testing.T) {
	const name = "20100501120000-ESACCI-L4_GHRSST-SSTdepth-OSTIA-GLOB_LT-v02.0-fv01.1.nc"
	archive := t.TempDir()
	day := filepath.Join(archive, "2010", "05", "01")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSST(t, filepath.Join(day, name))
	srv := httptest.NewServer(http.FileServer(http.Dir(archive)))
	defer srv.Close()

	a := SSTCCI{BaseURL: srv.URL + "/"}
	r := newRegistry()
	if err := r.Register(a, SSTCCIPriority); err != nil {
		t.Fatal(err)
	}

	t.Run("url", func(t *testing.T) {
		u, err := SSTCCI{}.URL(name)
		if err != nil {
			t.Fatal(err)
		}
		if want := SSTCCIBaseURL + "2010/05/01/" + name; u != want {
			t.Errorf("have %s, want %s", u, want)
		}
		if _, err := (SSTCCI{}).URL("sst.nc"); err == nil {
			t.Error("expected an error for another file name")
		}
	})
	t.Run("download", func(t *testing.T) {
		n, err := nansat.Open(name, nansat.WithRegistry(r))
		if err != nil {
			t.Fatal(err)
		}
		defer n.Close()
		if n.AdapterName() != "sstcci" {
			t.Errorf("adapter = %s", n.AdapterName())
		}
		tm, err := n.Time(1)
		if err != nil {
			t.Fatal(err)
		}
		if want := "2010-05-01T12:00:00Z"; tm.Format(time.RFC3339) != want {
			t.Errorf("time = %v, want %s", tm, want)
		}
		if u, _ := n.MetadataValue("source_url"); u != srv.URL+"/2010/05/01/"+name {
			t.Errorf("source_url = %q", u)
		}
		b, err := n.BandByName("analysed_sst")
		if err != nil {
			t.Fatal(err)
		}
		if b.At(0, 0) != 271 || b.At(1, 2) != 276 {
			t.Errorf("values = %v", b.Data().Elements)
		}
	})
	t.Run("local", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), name)
		writeSST(t, p)
		n := open(t, p)
		if n.AdapterName() != "sstcci" {
			t.Errorf("adapter = %s", n.AdapterName())
		}
		if _, err := n.MetadataValue("source_url"); err == nil {
			t.Error("local file should have no source_url")
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, err := nansat.Open("20100502120000-ESACCI-L4_GHRSST-SSTdepth-OSTIA-GLOB_LT-v02.0-fv01.1.nc", nansat.WithRegistry(r))
		if !errors.Is(err, nansat.ErrCorruptFile) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestNetCDFNoGeoreference(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bare.nc")
	h := cdf.NewHeader([]string{"y", "x"}, []int{2, 2})
	h.AddVariable("v", []string{"y", "x"}, []float32{})
	writeNetCDF(t, p, h, map[string]interface{}{"v": []float32{1, 2, 3, 4}})
	_, err := nansat.Open(p, nansat.WithRegistry(newRegistry()))
	if !errors.Is(err, nansat.ErrCorruptFile) {
		t.Errorf("err = %v", err)
	}
}

func newTestNansat(t *testing.T) *nansat.Nansat {
	t.Helper()
	d, err := domain.FromExtent(10, 20, 11.5, 21, 0.5, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	n, err := nansat.New(d)
	if err != nil {
		t.Fatal(err)
	}
	a := sparse.ZerosDense(2, 3)
	copy(a.Elements, []float64{1, 2, 3, 4, -9999, 6})
	if _, err := n.AddBand(a, nansat.Metadata{nansat.NameKey: "elevation", nansat.FillValueKey: "-9999", "units": "m"}); err != nil {
		t.Fatal(err)
	}
	n.SetMetadata("source", "unit test")
	return n
}

func TestExportRoundTrip(t *testing.T) {
	src := newTestNansat(t)
	dir := t.TempDir()
	tests := []struct {
		file    string
		format  nansat.Format
		adapter string
		tol     float64
	}{
		{"out.tif", nansat.GTiff, "geotiff", 0},
		{"out.nc", nansat.NetCDF, "netcdf", 0},
		{"out.asc", nansat.AAIGrid, "aaigrid", 0},
		{"out.png", nansat.PNG, "pngworld", 5.0 / 254},
	}
	for _, test := range tests {
		t.Run(test.file, func(t *testing.T) {
			p := filepath.Join(dir, test.file)
			if err := src.ExportBand(1, p, test.format); err != nil {
				t.Fatal(err)
			}
			n := open(t, p)
			if n.AdapterName() != test.adapter {
				t.Errorf("adapter = %s", n.AdapterName())
			}
			if !n.Domain().Equal(src.Domain()) {
				t.Errorf("domain = %v, want %v", n.Domain(), src.Domain())
			}
			b, err := n.BandByName("elevation")
			if err != nil {
				t.Fatal(err)
			}
			want := []float64{1, 2, 3, 4, -9999, 6}
			for i, v := range b.Data().Elements {
				if i == 4 {
					if !b.IsNoData(v) {
						t.Errorf("value %g should be missing", v)
					}
					continue
				}
				if math.Abs(v-want[i]) > test.tol {
					t.Errorf("value %d: have %g, want %g", i, v, want[i])
				}
			}
			if v, _ := n.MetadataValue("source"); v != "unit test" {
				t.Errorf("source = %q", v)
			}
		})
	}
}

func TestAAIGridCenter(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "dem.asc")
	os.WriteFile(p, []byte("ncols 2\nnrows 2\nxllcenter 0.5\nyllcenter 0.5\ncellsize 1\n1 2\n3 4\n"), 0644)
	os.WriteFile(filepath.Join(dir, "dem.prj"), []byte("EPSG:4326"), 0644)
	n := open(t, p)
	want := domain.GeoTransform{0, 1, 0, 2, 0, -1}
	if gt := n.Domain().GeoTransform(); gt != want {
		t.Errorf("geotransform = %v, want %v", gt, want)
	}
	if have := bandValues(t, n, 1); !reflect.DeepEqual(have, []float64{1, 2, 3, 4}) {
		t.Errorf("values = %v", have)
	}
}

func landsatTIFF(t *testing.T, width int, value float64) []byte {
	t.Helper()
	h := width / 2
	res := 4.0 / float64(width)
	v := make([]float64, width*h)
	for i := range v {
		v[i] = value
	}
	var buf bytes.Buffer
	err := geotiff.Encode(&buf, &geotiff.Image{
		Width: width, Height: h,
		Bands:           [][]float64{v},
		GeoTransform:    [6]float64{0, res, 0, 2, 0, -res},
		HasGeoTransform: true,
		EPSG:            4326,
		Geographic:      true,
		BandMetadata:    []map[string]string{{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLandsat(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"LC08_L1TP_B1.TIF": landsatTIFF(t, 4, 10),
		"LC08_L1TP_B2.TIF": landsatTIFF(t, 4, 20),
		"LC08_L1TP_B8.TIF": landsatTIFF(t, 8, 80),
		"README.txt":       []byte("not a band"),
	}
	archive := filepath.Join(dir, "LC08_L1TP.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, name := range []string{"LC08_L1TP_B1.TIF", "LC08_L1TP_B2.TIF", "LC08_L1TP_B8.TIF", "README.txt"} {
		tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(files[name])), Typeflag: tar.TypeReg})
		tw.Write(files[name])
	}
	tw.Close()
	gz.Close()
	f.Close()

	unpacked := filepath.Join(dir, "scene")
	os.Mkdir(unpacked, 0755)
	for name, b := range files {
		os.WriteFile(filepath.Join(unpacked, name), b, 0644)
	}

	tests := []struct {
		name   string
		path   string
		reg    func() *nansat.Registry
		bands  []string
		first  float64
		height int
	}{
		{
			name:   "archive",
			path:   archive,
			reg:    newRegistry,
			bands:  []string{"toa_outgoing_spectral_radiance_B1", "toa_outgoing_spectral_radiance_B2"},
			first:  1,
			height: 2,
		},
		{
			name:   "unpacked",
			path:   filepath.Join(unpacked, "LC08_L1TP_B2.TIF"),
			reg:    newRegistry,
			bands:  []string{"toa_outgoing_spectral_radiance_B1", "toa_outgoing_spectral_radiance_B2"},
			first:  1,
			height: 2,
		},
		{
			name: "high resolution",
			path: archive,
			reg: func() *nansat.Registry {
				r := newRegistry()
				r.Register(&Landsat{HighResolution: true}, LandsatPriority)
				return r
			},
			bands:  []string{"toa_outgoing_spectral_radiance_B8"},
			first:  8,
			height: 4,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n, err := nansat.Open(test.path, nansat.WithRegistry(test.reg()))
			if err != nil {
				t.Fatal(err)
			}
			defer n.Close()
			if n.AdapterName() != "landsat" {
				t.Errorf("adapter = %s", n.AdapterName())
			}
			var names []string
			for _, m := range n.Bands() {
				names = append(names, m[nansat.NameKey])
			}
			if !reflect.DeepEqual(names, test.bands) {
				t.Errorf("bands = %v, want %v", names, test.bands)
			}
			if h := n.Domain().Height(); h != test.height {
				t.Errorf("height = %d, want %d", h, test.height)
			}
			if v := bandValues(t, n, 1)[0]; math.Abs(v-test.first) > 1e-9 {
				t.Errorf("first value = %g, want %g", v, test.first)
			}
		})
	}
}
