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
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/ctessum/cdf"
)

// writeWorldFile writes the ESRI world file of the domain next to path,
// with the given extension.
func (n *Nansat) writeWorldFile(path, ext string) error {
	gt := n.domain.GeoTransform()
	p := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	x, y := gt.Apply(0.5, 0.5)
	s := fmt.Sprintf("%.12g\n%.12g\n%.12g\n%.12g\n%.12g\n%.12g\n", gt[1], gt[4], gt[2], gt[5], x, y)
	return os.WriteFile(p, []byte(s), 0644)
}

// writePNG writes b as an 8-bit grayscale image. Valid values are
// stretched linearly to 1-255 and missing values are written as 0.
// The stretch is recorded in the metadata sidecar as scale_factor and
// add_offset so the file can be read back in physical units.
func (n *Nansat) writePNG(path string, b *Band) error {
	rows, cols := b.Shape()
	st := b.Stats()
	lo, hi := st.Min, st.Max
	if st.N == 0 {
		lo, hi = 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	scale := (hi - lo) / 254
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := b.At(r, c)
			if b.IsNoData(v) {
				continue
			}
			img.SetGray(c, r, color.Gray{Y: uint8(1 + math.Round((v-lo)/scale))})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := n.writeWorldFile(path, ".pgw"); err != nil {
		return err
	}
	if err := n.writePRJ(path); err != nil {
		return err
	}
	meta := b.Metadata()
	meta.SetFloat("scale_factor", scale)
	meta.SetFloat("add_offset", lo-scale)
	meta.SetFloat(FillValueKey, 0)
	return WriteSidecar(path, &Sidecar{Metadata: n.meta.Copy(), Band: meta})
}

// writeAAIGrid writes b as an ESRI ASCII grid. The domain must be
// north-up with square pixels.
func (n *Nansat) writeAAIGrid(path string, b *Band) error {
	gt := n.domain.GeoTransform()
	if !gt.NorthUp() || gt[1] != -gt[5] {
		return fmt.Errorf("ESRI ASCII grids need north-up square pixels, have geotransform %v", gt)
	}
	rows, cols := b.Shape()
	nd, ok := b.NoData()
	if !ok {
		nd = -9999
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\nnrows %d\n", cols, rows)
	fmt.Fprintf(w, "xllcorner %.12g\nyllcorner %.12g\n", gt[0], gt[3]+float64(rows)*gt[5])
	fmt.Fprintf(w, "cellsize %.12g\nNODATA_value %s\n", gt[1], strconv.FormatFloat(nd, 'g', -1, 64))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := b.At(r, c)
			if b.IsNoData(v) {
				v = nd
			}
			if c > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := n.writePRJ(path); err != nil {
		return err
	}
	meta := b.Metadata()
	meta.SetFloat(FillValueKey, nd)
	return WriteSidecar(path, &Sidecar{Metadata: n.meta.Copy(), Band: meta})
}

// ncName converts s to a valid netCDF name.
func ncName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || r == '_'):
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsDigit(r) || r == '.' || r == '-') && i > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// writeNetCDF writes bands as float32 variables on (y, x) dimensions.
// The geotransform and spatial reference are stored as the global
// GeoTransform and spatial_ref attributes.
func (n *Nansat) writeNetCDF(path string, bands []*Band) error {
	rows, cols := n.domain.Shape()
	gt := n.domain.GeoTransform()
	h := cdf.NewHeader([]string{"y", "x"}, []int{rows, cols})
	h.AddVariable("y", []string{"y"}, []float64{})
	h.AddVariable("x", []string{"x"}, []float64{})
	xName, yName := "projection_x_coordinate", "projection_y_coordinate"
	if n.domain.SR().IsGeographic() {
		xName, yName = "longitude", "latitude"
	}
	h.AddAttribute("x", "standard_name", xName)
	h.AddAttribute("y", "standard_name", yName)

	used := map[string]bool{"x": true, "y": true}
	names := make([]string, len(bands))
	for i, b := range bands {
		name := ncName(b.Name())
		if b.Name() == "" {
			name = fmt.Sprintf("band_%d", i+1)
		}
		for base, k := name, 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		used[name] = true
		names[i] = name
		h.AddVariable(name, []string{"y", "x"}, []float32{})
		attrs := make(map[string]bool)
		meta := b.Metadata()
		if nd, ok := b.NoData(); ok {
			h.AddAttribute(name, FillValueKey, []float32{float32(nd)})
			attrs[FillValueKey] = true
		}
		for _, k := range meta.Keys() {
			a := ncName(k)
			if attrs[a] || meta[k] == "" || k == FillValueKey {
				continue
			}
			attrs[a] = true
			h.AddAttribute(name, a, meta[k])
		}
	}
	gattrs := map[string]bool{"GeoTransform": true, "spatial_ref": true}
	h.AddAttribute("", "GeoTransform", strings.Trim(fmt.Sprint(gt[:]), "[]"))
	h.AddAttribute("", "spatial_ref", n.domain.SR().String())
	for _, k := range n.meta.Keys() {
		a := ncName(k)
		if gattrs[a] || n.meta[k] == "" {
			continue
		}
		gattrs[a] = true
		h.AddAttribute("", a, n.meta[k])
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return err
	}
	x := make([]float64, cols)
	for c := range x {
		x[c], _ = gt.Apply(float64(c)+0.5, 0.5)
	}
	y := make([]float64, rows)
	for r := range y {
		_, y[r] = gt.Apply(0.5, float64(r)+0.5)
	}
	if err := writeNCF(cf, "x", x); err != nil {
		f.Close()
		return err
	}
	if err := writeNCF(cf, "y", y); err != nil {
		f.Close()
		return err
	}
	for i, b := range bands {
		data32 := make([]float32, len(b.data.Elements))
		for j, e := range b.data.Elements {
			data32[j] = float32(e)
		}
		if err := writeNCF(cf, names[i], data32); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func writeNCF(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing netCDF variable %s: %v", v, err)
	}
	return nil
}
