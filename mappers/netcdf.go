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
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/spatialref"
)

// NetCDF reads classic netCDF files. The grid is taken, in order of
// preference, from GeoTransform and spatial_ref attributes, from a CF
// grid mapping with projected x/y coordinates, from regular lat/lon
// coordinate variables or from two-dimensional lat/lon arrays.
// Variables with three dimensions give one band per leading index,
// named var_i.
type NetCDF struct{}

// Name implements nansat.Adapter.
func (NetCDF) Name() string { return "netcdf" }

// Probe implements nansat.Adapter.
func (NetCDF) Probe(path string) bool {
	h := string(header(path, 4))
	return h == "CDF\x01" || h == "CDF\x02"
}

var (
	lonNames = []string{"lon", "longitude", "nav_lon"}
	latNames = []string{"lat", "latitude", "nav_lat"}
)

// Parse implements nansat.Adapter.
func (NetCDF) Parse(path string) (*nansat.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("netcdf: %v", err)
	}
	src, err := parseNetCDF(nc)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.Closer = f
	return src, nil
}

func parseNetCDF(nc *cdf.File) (*nansat.Source, error) {
	h := nc.Header
	meta := attributes(h, "")

	vars := h.Variables()
	skip := make(map[string]bool)
	for _, v := range vars {
		if gm := attrString(h.GetAttribute(v, "grid_mapping")); gm != "" {
			skip[gm] = true
		}
	}
	for _, v := range append(append([]string{}, lonNames...), latNames...) {
		skip[v] = true
	}
	var gridDims []string
	var dataVars []string
	for _, v := range vars {
		dims := h.Dimensions(v)
		if skip[v] || len(dims) < 2 || len(dims) > 3 {
			continue
		}
		if gridDims == nil {
			gridDims = dims[len(dims)-2:]
		}
		if dims[len(dims)-2] == gridDims[0] && dims[len(dims)-1] == gridDims[1] {
			dataVars = append(dataVars, v)
		}
	}
	if len(dataVars) == 0 {
		return nil, fmt.Errorf("netcdf: no two-dimensional variables")
	}
	lengths := h.Lengths(dataVars[0])
	rows, cols := lengths[len(lengths)-2], lengths[len(lengths)-1]

	d, err := netCDFDomain(nc, meta, dataVars[0], gridDims, rows, cols)
	if err != nil {
		return nil, err
	}
	delete(meta, "GeoTransform")
	delete(meta, "spatial_ref")

	src := &nansat.Source{Domain: d, Metadata: meta}
	for _, v := range dataVars {
		lengths := h.Lengths(v)
		vmeta := attributes(h, v)
		if _, ok := vmeta[nansat.FillValueKey]; !ok {
			if mv, ok := vmeta["missing_value"]; ok {
				vmeta[nansat.FillValueKey] = mv
			}
		}
		vmeta["SourceVariable"] = v
		if len(lengths) == 2 {
			bm := vmeta.Copy()
			bm[nansat.NameKey] = v
			src.Bands = append(src.Bands, nansat.SourceBand{
				Metadata: bm,
				Read:     slabReader(nc, v, nil, rows, cols),
			})
			continue
		}
		for i := 0; i < lengths[0]; i++ {
			bm := vmeta.Copy()
			bm[nansat.NameKey] = fmt.Sprintf("%s_%d", v, i)
			bm["SourceIndex"] = strconv.Itoa(i)
			src.Bands = append(src.Bands, nansat.SourceBand{
				Metadata: bm,
				Read:     slabReader(nc, v, []int{i}, rows, cols),
			})
		}
	}
	return src, nil
}

// netCDFDomain finds the georeferencing of variable v.
func netCDFDomain(nc *cdf.File, meta nansat.Metadata, v string, gridDims []string, rows, cols int) (*domain.Domain, error) {
	h := nc.Header
	if gt, ok := meta["GeoTransform"]; ok {
		sr, err := netCDFSR(h, meta["spatial_ref"], attrString(h.GetAttribute(v, "grid_mapping")))
		if err != nil {
			return nil, err
		}
		var g domain.GeoTransform
		f := strings.Fields(gt)
		if len(f) != 6 {
			return nil, fmt.Errorf("netcdf: invalid GeoTransform %q", gt)
		}
		for i, s := range f {
			if g[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("netcdf: invalid GeoTransform %q", gt)
			}
		}
		return domain.New(cols, rows, g, sr)
	}

	ydim, xdim := gridDims[0], gridDims[1]
	if gm := attrString(h.GetAttribute(v, "grid_mapping")); gm != "" {
		sr, err := netCDFSR(h, "", gm)
		if err != nil {
			return nil, err
		}
		x, err := readFloats(nc, xdim)
		if err != nil {
			return nil, err
		}
		y, err := readFloats(nc, ydim)
		if err != nil {
			return nil, err
		}
		return fromAxes(x, y, sr)
	}

	lon, lat := findVar(h, lonNames), findVar(h, latNames)
	if lon == "" || lat == "" {
		return nil, fmt.Errorf("%w: no georeferencing found", spatialref.ErrInvalidCRS)
	}
	x, err := readFloats(nc, lon)
	if err != nil {
		return nil, err
	}
	y, err := readFloats(nc, lat)
	if err != nil {
		return nil, err
	}
	if len(h.Dimensions(lon)) == 1 && len(h.Dimensions(lat)) == 1 {
		return fromAxes(x, y, spatialref.WGS84())
	}
	if len(x) != rows*cols || len(y) != rows*cols {
		return nil, fmt.Errorf("netcdf: geolocation arrays do not match the %dx%d grid", rows, cols)
	}
	return fromGeolocation(x, y, rows, cols)
}

// netCDFSR returns the spatial reference from a global spatial_ref
// attribute or from the attributes of the grid mapping variable gm.
func netCDFSR(h *cdf.Header, global, gm string) (*spatialref.SR, error) {
	if global != "" {
		return spatialref.Parse(global)
	}
	if gm == "" {
		return nil, fmt.Errorf("%w: no spatial reference in netCDF file", spatialref.ErrInvalidCRS)
	}
	for _, a := range []string{"spatial_ref", "crs_wkt", "proj4", "proj4text", "proj4_string", "epsg_code"} {
		if s := attrString(h.GetAttribute(gm, a)); s != "" {
			if _, err := strconv.Atoi(s); err == nil {
				s = "EPSG:" + s
			}
			return spatialref.Parse(s)
		}
	}
	return nil, fmt.Errorf("%w: grid mapping %s has no spatial reference", spatialref.ErrInvalidCRS, gm)
}

// fromAxes returns the grid with the given regularly spaced cell
// center coordinates.
func fromAxes(x, y []float64, sr *spatialref.SR) (*domain.Domain, error) {
	dx, err := spacing(x)
	if err != nil {
		return nil, err
	}
	dy, err := spacing(y)
	if err != nil {
		return nil, err
	}
	gt := domain.GeoTransform{x[0] - dx/2, dx, 0, y[0] - dy/2, 0, dy}
	return domain.New(len(x), len(y), gt, sr)
}

func spacing(c []float64) (float64, error) {
	if len(c) < 2 {
		return 0, fmt.Errorf("netcdf: coordinate axis with %d values", len(c))
	}
	d := (c[len(c)-1] - c[0]) / float64(len(c)-1)
	for i := 1; i < len(c); i++ {
		if math.Abs(c[i]-c[i-1]-d) > 1e-3*math.Abs(d) {
			return 0, fmt.Errorf("netcdf: irregular coordinate axis")
		}
	}
	return d, nil
}

// fromGeolocation fits an affine grid to the corners of two-dimensional
// longitude and latitude arrays.
func fromGeolocation(lon, lat []float64, rows, cols int) (*domain.Domain, error) {
	var gcps []domain.GCP
	for _, rc := range [][2]int{{0, 0}, {0, cols - 1}, {rows - 1, 0}, {rows - 1, cols - 1}} {
		i := rc[0]*cols + rc[1]
		gcps = append(gcps, domain.GCP{
			Pixel: float64(rc[1]) + 0.5,
			Line:  float64(rc[0]) + 0.5,
			X:     lon[i],
			Y:     lat[i],
		})
	}
	return domain.FromCorners(gcps, spatialref.WGS84())
}

func findVar(h *cdf.Header, names []string) string {
	vars := make(map[string]bool)
	for _, v := range h.Variables() {
		vars[v] = true
	}
	for _, n := range names {
		if vars[n] {
			return n
		}
	}
	return ""
}

// readFloats reads all values of v.
func readFloats(nc *cdf.File, v string) ([]float64, error) {
	lengths := nc.Header.Lengths(v)
	if lengths == nil {
		return nil, fmt.Errorf("netcdf: variable %s not found", v)
	}
	return readSlab(nc, v, make([]int, len(lengths)), lengths)
}

func readSlab(nc *cdf.File, v string, start, end []int) ([]float64, error) {
	n := 1
	for i := range end {
		n *= end[i] - start[i]
	}
	r := nc.Reader(v, start, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("netcdf: reading %s: %v", v, err)
	}
	return toFloats(buf)
}

// slabReader reads the [rows, cols] slab of v at the leading indices lead.
func slabReader(nc *cdf.File, v string, lead []int, rows, cols int) nansat.BandReader {
	return func() (*sparse.DenseArray, error) {
		start := append(append([]int{}, lead...), 0, 0)
		end := make([]int, 0, len(start))
		for _, i := range lead {
			end = append(end, i+1)
		}
		end = append(end, rows, cols)
		vals, err := readSlab(nc, v, start, end)
		if err != nil {
			return nil, err
		}
		return dense(rows, cols, vals), nil
	}
}

func toFloats(buf interface{}) ([]float64, error) {
	var out []float64
	switch b := buf.(type) {
	case []uint8:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []int16:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []int32:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []float32:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []float64:
		out = append(out, b...)
	default:
		return nil, fmt.Errorf("netcdf: unsupported data type %T", buf)
	}
	return out, nil
}

// attributes returns the attributes of v (or the global attributes if
// v is empty) as strings.
func attributes(h *cdf.Header, v string) nansat.Metadata {
	m := make(nansat.Metadata)
	for _, a := range h.Attributes(v) {
		m[a] = attrString(h.GetAttribute(v, a))
	}
	return m
}

func attrString(v interface{}) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimRight(a, "\x00")
	case []float32:
		s := make([]string, len(a))
		for i, f := range a {
			s[i] = strconv.FormatFloat(float64(f), 'g', -1, 64)
		}
		return strings.Join(s, " ")
	case []float64:
		s := make([]string, len(a))
		for i, f := range a {
			s[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(s, " ")
	}
	return strings.Trim(fmt.Sprint(v), "[]")
}
