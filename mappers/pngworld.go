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
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// PNGWorld reads PNG images georeferenced by a world file (.pgw or
// .pngw) and a .prj file. Gray and paletted images have one band; other
// images have red, green and blue bands.
type PNGWorld struct{}

// Name implements nansat.Adapter.
func (PNGWorld) Name() string { return "pngworld" }

// Probe implements nansat.Adapter.
func (PNGWorld) Probe(path string) bool {
	return bytes.Equal(header(path, len(pngMagic)), pngMagic) && worldFile(path) != ""
}

func worldFile(path string) string {
	for _, ext := range []string{".pgw", ".pngw", ".PGW", ".wld"} {
		p := trimExt(path) + ext
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// readWorldFile returns the geotransform in an ESRI world file, which
// holds the pixel size and rotation terms followed by the center of
// the upper left pixel.
func readWorldFile(path string) (domain.GeoTransform, error) {
	var gt domain.GeoTransform
	b, err := os.ReadFile(path)
	if err != nil {
		return gt, err
	}
	f := strings.Fields(string(b))
	if len(f) != 6 {
		return gt, fmt.Errorf("pngworld: %s has %d values, want 6", path, len(f))
	}
	var v [6]float64
	for i, s := range f {
		if v[i], err = strconv.ParseFloat(s, 64); err != nil {
			return gt, fmt.Errorf("pngworld: %s: %v", path, err)
		}
	}
	a, d, bb, e, c, fy := v[0], v[1], v[2], v[3], v[4], v[5]
	return domain.GeoTransform{c - a/2 - bb/2, a, bb, fy - d/2 - e/2, d, e}, nil
}

// Parse implements nansat.Adapter.
func (PNGWorld) Parse(path string) (*nansat.Source, error) {
	wf := worldFile(path)
	if wf == "" {
		return nil, fmt.Errorf("pngworld: no world file for %s", path)
	}
	gt, err := readWorldFile(wf)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	cfg, err := png.DecodeConfig(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("pngworld: %v", err)
	}
	sr, err := readPRJ(path)
	if err != nil {
		return nil, err
	}
	d, err := domain.New(cfg.Width, cfg.Height, gt, sr)
	if err != nil {
		return nil, err
	}

	meta, band := make(nansat.Metadata), make(nansat.Metadata)
	if err := withSidecar(path, meta, band); err != nil {
		return nil, err
	}
	src := &nansat.Source{Domain: d, Metadata: meta}
	gray := cfg.ColorModel == color.GrayModel || cfg.ColorModel == color.Gray16Model
	_, paletted := cfg.ColorModel.(color.Palette)
	if gray || paletted {
		bandName(band, 1)
		src.Bands = []nansat.SourceBand{{Metadata: band, Read: pngReader(path, -1)}}
		return src, nil
	}
	for i, name := range []string{"red", "green", "blue"} {
		bm := band.Copy()
		bm[nansat.NameKey] = name
		src.Bands = append(src.Bands, nansat.SourceBand{Metadata: bm, Read: pngReader(path, i)})
	}
	return src, nil
}

// pngReader returns a reader for channel ch of the image at path, or of
// its gray or palette index values if ch is negative.
func pngReader(path string, ch int) nansat.BandReader {
	return func() (*sparse.DenseArray, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("pngworld: %v", err)
		}
		b := img.Bounds()
		a := sparse.ZerosDense(b.Dy(), b.Dx())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				a.Set(pixelValue(img, x, y, ch), y-b.Min.Y, x-b.Min.X)
			}
		}
		return a, nil
	}
}

func pixelValue(img image.Image, x, y, ch int) float64 {
	switch im := img.(type) {
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y)
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	case *image.Paletted:
		return float64(im.ColorIndexAt(x, y))
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	switch ch {
	case 0:
		return float64(c.R)
	case 1:
		return float64(c.G)
	case 2:
		return float64(c.B)
	}
	return float64(color.GrayModel.Convert(c).(color.Gray).Y)
}
