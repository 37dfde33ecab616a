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


package nansatutil

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/spatialref"
	"gopkg.in/yaml.v3"
)

// writeProduct exports a one-band 4x2 GeoTIFF with values 0 to 7.
func writeProduct(t *testing.T, path string, minLon, minLat float64) {
	t.Helper()
	d, err := domain.FromExtent(minLon, minLat, minLon+2, minLat+1, 0.5, spatialref.WGS84())
	if err != nil {
		t.Fatal(err)
	}
	n, err := nansat.New(d)
	if err != nil {
		t.Fatal(err)
	}
	a := sparse.ZerosDense(d.Height(), d.Width())
	for i := range a.Elements {
		a.Elements[i] = float64(i)
	}
	meta := nansat.Metadata{nansat.NameKey: "sst", nansat.UnitsKey: "K", nansat.LongNameKey: "sea surface temperature"}
	if _, err := n.AddBand(a, meta); err != nil {
		t.Fatal(err)
	}
	n.SetMetadata("time", "2020-01-02T03:04:05Z")
	if err := n.ExportBand(1, path, nansat.GTiff); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, cfg *Cfg, args ...string) string {
	t.Helper()
	out := new(bytes.Buffer)
	cfg.Root.SetOut(out)
	cfg.Root.SetErr(new(bytes.Buffer))
	cfg.Root.SetArgs(args)
	if err := cfg.Root.Execute(); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	cfg := InitializeConfig()
	if out := run(t, cfg, "version"); out != "nansat v"+nansat.Version+"\n" {
		t.Errorf("version = %q", out)
	}
}

func TestAdaptersOrder(t *testing.T) {
	cfg := InitializeConfig()
	out := run(t, cfg, "adapters")
	if want := "landsat\nsstcci\nnetcdf\ngeotiff\naaigrid\npngworld\n"; out != want {
		t.Errorf("default order = %q, want %q", out, want)
	}

	cfg = InitializeConfig()
	cfg.Set("Adapters.Order", []string{"pngworld", "geotiff"})
	out = run(t, cfg, "adapters")
	if want := "pngworld\ngeotiff\nlandsat\nsstcci\nnetcdf\naaigrid\n"; out != want {
		t.Errorf("configured order = %q, want %q", out, want)
	}

	cfg = InitializeConfig()
	cfg.Set("Adapters.Order", []string{"hdf4"})
	cfg.Root.SetArgs([]string{"adapters"})
	cfg.Root.SetErr(new(bytes.Buffer))
	if err := cfg.Root.Execute(); err == nil {
		t.Error("unknown adapter should fail")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nansat.toml")
	const config = `loglevel = "debug"

[Figure]
Colormap = "gray"
Bands = [1]

[Reproject]
EPSG = 32633
`
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := InitializeConfig()
	cfg.Set("config", path)
	if err := cfg.Root.PersistentPreRunE(cfg.Root, nil); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.GetLevel() != logrus.DebugLevel {
		t.Errorf("log level = %v", cfg.Log.GetLevel())
	}
	if cm := cfg.GetString("Figure.Colormap"); cm != "gray" {
		t.Errorf("colormap = %q", cm)
	}
	if epsg := cfg.GetInt("Reproject.EPSG"); epsg != 32633 {
		t.Errorf("epsg = %d", epsg)
	}
	opts, err := cfg.figureOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Bands) != 1 || opts.Bands[0] != 1 || opts.Stretch.HighPercentile != 98 {
		t.Errorf("figure options = %+v", opts)
	}

	cfg = InitializeConfig()
	cfg.Set("config", filepath.Join(dir, "missing.toml"))
	if err := cfg.Root.PersistentPreRunE(cfg.Root, nil); err == nil {
		t.Error("missing configuration file should fail")
	}
}

func TestGetIntSlice(t *testing.T) {
	cfg := InitializeConfig()
	for _, v := range []interface{}{"[3,2,1]", "3 2 1", []interface{}{3, "2", 1.0}, []int{3, 2, 1}} {
		cfg.Set("Figure.Bands", v)
		got, err := cfg.getIntSlice("Figure.Bands")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
			t.Errorf("%#v: got %v", v, got)
		}
	}
	cfg.Set("Figure.Bands", "1,x")
	if _, err := cfg.getIntSlice("Figure.Bands"); err == nil {
		t.Error("expected error")
	}
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)

	t.Run("text", func(t *testing.T) {
		out := run(t, InitializeConfig(), "info", path)
		if !strings.Contains(out, "Band : 1 sst") {
			t.Errorf("text output:\n%s", out)
		}
	})
	t.Run("json", func(t *testing.T) {
		out := run(t, InitializeConfig(), "info", "--output", "json", path)
		var info productInfo
		if err := json.Unmarshal([]byte(out), &info); err != nil {
			t.Fatal(err)
		}
		checkInfo(t, &info, path)
	})
	t.Run("yaml", func(t *testing.T) {
		cfg := InitializeConfig()
		cfg.Set("output", "yaml")
		out := run(t, cfg, "info", path)
		var info productInfo
		if err := yaml.Unmarshal([]byte(out), &info); err != nil {
			t.Fatal(err)
		}
		checkInfo(t, &info, path)
	})
	t.Run("bad output", func(t *testing.T) {
		cfg := InitializeConfig()
		cfg.Set("output", "xml")
		cfg.Root.SetArgs([]string{"info", path})
		cfg.Root.SetOut(new(bytes.Buffer))
		cfg.Root.SetErr(new(bytes.Buffer))
		if err := cfg.Root.Execute(); err == nil {
			t.Error("expected error")
		}
	})
}

func checkInfo(t *testing.T, info *productInfo, path string) {
	t.Helper()
	if info.Path != path || info.Adapter != "geotiff" || info.Width != 4 || info.Height != 2 || info.EPSG != 4326 {
		t.Errorf("info = %+v", info)
	}
	if info.Time != "2020-01-02T03:04:05Z" {
		t.Errorf("time = %q", info.Time)
	}
	if len(info.GeoTransform) != 6 || info.GeoTransform[0] != 10 || info.GeoTransform[1] != 0.5 {
		t.Errorf("geotransform = %v", info.GeoTransform)
	}
	if len(info.Bands) != 1 || info.Bands[0].Number != 1 || info.Bands[0].Metadata[nansat.NameKey] != "sst" {
		t.Errorf("bands = %+v", info.Bands)
	}
	if !strings.HasPrefix(info.Border, "POLYGON") {
		t.Errorf("border = %q", info.Border)
	}
}

func TestBand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)

	for _, band := range []string{"1", "sst"} {
		out := run(t, InitializeConfig(), "band", path, band)
		for _, want := range []string{"Band : 1 sst", "units: K", "min: 0\n", "max: 7\n", "mean: 3.5\n", "valid: 8\n"} {
			if !strings.Contains(out, want) {
				t.Errorf("band %s: output missing %q:\n%s", band, want, out)
			}
		}
	}

	cfg := InitializeConfig()
	cfg.Root.SetArgs([]string{"band", path, "2"})
	cfg.Root.SetOut(new(bytes.Buffer))
	cfg.Root.SetErr(new(bytes.Buffer))
	if err := cfg.Root.Execute(); err == nil {
		t.Error("band 2 should not exist")
	}
}

func TestWatermask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)
	mosaic := filepath.Join(dir, "mod44w")
	if err := os.Mkdir(mosaic, 0o755); err != nil {
		t.Fatal(err)
	}
	writeProduct(t, filepath.Join(mosaic, nansat.WatermaskFile), 10, 60)
	t.Setenv(nansat.WatermaskEnv, "")

	for _, test := range []struct {
		name   string
		dir    string
		corner float64
	}{
		{name: "mosaic", dir: mosaic, corner: 7},
		{name: "missing", dir: t.TempDir(), corner: 0},
	} {
		t.Run(test.name, func(t *testing.T) {
			out := filepath.Join(dir, test.name+".asc")
			cfg := InitializeConfig()
			cfg.Set("Watermask.Dir", test.dir)
			cfg.Set("Export.Band", 1)
			run(t, cfg, "watermask", path, out)
			n, err := nansat.Open(out, nansat.WithRegistry(InitializeConfig().registry))
			if err != nil {
				t.Fatal(err)
			}
			defer n.Close()
			b, err := n.Band(1)
			if err != nil {
				t.Fatal(err)
			}
			if r, c := b.Shape(); r != 2 || c != 4 {
				t.Errorf("shape %dx%d", r, c)
			}
			if v := b.At(1, 3); v != test.corner {
				t.Errorf("value = %g, want %g", v, test.corner)
			}
		})
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)

	t.Run("all", func(t *testing.T) {
		out := filepath.Join(dir, "sst.nc")
		run(t, InitializeConfig(), "export", path, out)
		n, err := nansat.Open(out, nansat.WithRegistry(InitializeConfig().registry))
		if err != nil {
			t.Fatal(err)
		}
		defer n.Close()
		if n.AdapterName() != "netcdf" || n.BandCount() != 1 {
			t.Errorf("adapter %s, %d bands", n.AdapterName(), n.BandCount())
		}
	})
	t.Run("band", func(t *testing.T) {
		out := filepath.Join(dir, "sst.asc")
		cfg := InitializeConfig()
		cfg.Set("Export.Band", 1)
		run(t, cfg, "export", path, out)
		n, err := nansat.Open(out, nansat.WithRegistry(InitializeConfig().registry))
		if err != nil {
			t.Fatal(err)
		}
		defer n.Close()
		if n.AdapterName() != "aaigrid" {
			t.Errorf("adapter = %s", n.AdapterName())
		}
		b, err := n.Band(1)
		if err != nil {
			t.Fatal(err)
		}
		if v := b.At(1, 3); v != 7 {
			t.Errorf("value = %g", v)
		}
	})
	t.Run("image", func(t *testing.T) {
		out := filepath.Join(dir, "sst_image.tif")
		cfg := InitializeConfig()
		cfg.Set("Export.Image", true)
		run(t, cfg, "export", path, out)
		n, err := nansat.Open(out, nansat.WithRegistry(InitializeConfig().registry))
		if err != nil {
			t.Fatal(err)
		}
		defer n.Close()
		b, err := n.Band(1)
		if err != nil {
			t.Fatal(err)
		}
		if lo, hi := b.At(0, 0), b.At(1, 3); lo != 1 || hi != 255 {
			t.Errorf("indices %g and %g, want 1 and 255", lo, hi)
		}
	})
	t.Run("bad format", func(t *testing.T) {
		cfg := InitializeConfig()
		cfg.Set("Export.Band", 1)
		cfg.Set("Export.Format", "hdf5")
		cfg.Root.SetArgs([]string{"export", path, filepath.Join(dir, "sst.h5")})
		cfg.Root.SetOut(new(bytes.Buffer))
		cfg.Root.SetErr(new(bytes.Buffer))
		if err := cfg.Root.Execute(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestReproject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)
	out := filepath.Join(dir, "coarse.tif")

	cfg := InitializeConfig()
	cfg.Set("Reproject.Extent", "10,60,12,61")
	cfg.Set("Reproject.Resolution", 1.0)
	run(t, cfg, "reproject", "--resampling", "average", path, out)

	n, err := nansat.Open(out, nansat.WithRegistry(InitializeConfig().registry))
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()
	if w, h := n.Domain().Width(), n.Domain().Height(); w != 2 || h != 1 {
		t.Fatalf("shape = %dx%d", w, h)
	}
	b, err := n.Band(1)
	if err != nil {
		t.Fatal(err)
	}
	// Pixels 0,1,4,5 and 2,3,6,7 of the source.
	if b.At(0, 0) != 2.5 || b.At(0, 1) != 4.5 {
		t.Errorf("values = %g, %g", b.At(0, 0), b.At(0, 1))
	}
}

func TestReprojectDefaultExtent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)

	cfg := InitializeConfig()
	if err := cfg.Root.PersistentPreRunE(cfg.Root, nil); err != nil {
		t.Fatal(err)
	}
	n, err := cfg.open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()
	d, err := cfg.targetDomain(n)
	if err != nil {
		t.Fatal(err)
	}
	if d.Width() != 4 || d.Height() != 2 || d.SR().EPSG() != 4326 {
		t.Errorf("domain = %v", d)
	}
	cfg.Set("Reproject.Extent", "1,2,3")
	if _, err := cfg.targetDomain(n); err == nil {
		t.Error("three-value extent should fail")
	}
}

func TestFigure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)
	out := filepath.Join(dir, "sst.png")

	cfg := InitializeConfig()
	cfg.Set("Figure.Width", 8)
	run(t, cfg, "figure", "--Figure.Colormap", "gray", path, out)

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	c, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 8 || c.Height != 4 {
		t.Errorf("image size = %dx%d", c.Width, c.Height)
	}
}

func TestMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sst.tif")
	writeProduct(t, path, 10, 60)
	out := filepath.Join(dir, "map.png")

	cfg := InitializeConfig()
	cfg.Set("Map.Width", 200)
	run(t, cfg, "map", path, out)

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	c, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 200 {
		t.Errorf("width = %d", c.Width)
	}
}

func TestIndexSearch(t *testing.T) {
	dir := t.TempDir()
	north := filepath.Join(dir, "north.tif")
	south := filepath.Join(dir, "south.tif")
	writeProduct(t, north, 10, 60)
	writeProduct(t, south, 10, -40)
	dsn := filepath.Join(dir, "catalog.db")

	cfg := InitializeConfig()
	cfg.Set("Catalog.DSN", dsn)
	out := run(t, cfg, "index", north, south)
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Errorf("index output:\n%s", out)
	}

	cfg = InitializeConfig()
	cfg.Set("Catalog.DSN", dsn)
	out = run(t, cfg, "search", "0", "50", "20", "70")
	if !strings.Contains(out, north) || strings.Contains(out, south) {
		t.Errorf("search output:\n%s", out)
	}
	if !strings.Contains(out, "geotiff\t2020-01-02T03:04:05Z\t1\t") {
		t.Errorf("search output:\n%s", out)
	}

	cfg = InitializeConfig()
	cfg.Set("Catalog.DSN", dsn)
	cfg.Root.SetArgs([]string{"index", north, filepath.Join(dir, "missing.tif")})
	cfg.Root.SetOut(new(bytes.Buffer))
	cfg.Root.SetErr(new(bytes.Buffer))
	if err := cfg.Root.Execute(); err == nil {
		t.Error("indexing a missing file should fail")
	}
}
