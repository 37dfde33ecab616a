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
	"os"
	"strings"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/internal/geotiff"
	"github.com/spatialmodel/nansat/spatialref"
)

// GeoTIFF reads GeoTIFF files.
type GeoTIFF struct{}

// Name implements nansat.Adapter.
func (GeoTIFF) Name() string { return "geotiff" }

// Probe implements nansat.Adapter.
func (GeoTIFF) Probe(path string) bool { return geotiff.IsTIFF(header(path, 4)) }

// Parse implements nansat.Adapter.
func (GeoTIFF) Parse(path string) (*nansat.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTIFF(path, data)
}

// parseTIFF returns a source for a TIFF held in memory. path is used to
// find a .prj sidecar when the file has no usable geokeys.
func parseTIFF(path string, data []byte) (*nansat.Source, error) {
	r, err := geotiff.NewReader(data)
	if err != nil {
		return nil, err
	}
	img, err := r.Info()
	if err != nil {
		return nil, err
	}
	d, err := tiffDomain(path, img)
	if err != nil {
		return nil, err
	}
	src := &nansat.Source{Domain: d, Metadata: nansat.Metadata(img.Metadata)}
	if src.Metadata == nil {
		src.Metadata = make(nansat.Metadata)
	}

	var (
		once  sync.Once
		bands [][]float64
		rerr  error
	)
	decode := func() ([][]float64, error) {
		once.Do(func() { bands, rerr = r.Bands() })
		return bands, rerr
	}
	for i, bm := range img.BandMetadata {
		meta := nansat.Metadata(bm).Copy()
		if meta == nil {
			meta = make(nansat.Metadata)
		}
		if img.HasNoData {
			if _, ok := meta[nansat.FillValueKey]; !ok {
				meta.SetFloat(nansat.FillValueKey, img.NoData)
			}
		}
		bandName(meta, i+1)
		i := i
		src.Bands = append(src.Bands, nansat.SourceBand{
			Metadata: meta,
			Read: func() (*sparse.DenseArray, error) {
				b, err := decode()
				if err != nil {
					return nil, err
				}
				if i >= len(b) {
					return nil, fmt.Errorf("geotiff: band %d missing", i+1)
				}
				return dense(img.Height, img.Width, b[i]), nil
			},
		})
	}
	return src, nil
}

// tiffDomain returns the grid of img. The spatial reference comes from
// the EPSG geokey, then the citation and finally a .prj sidecar.
func tiffDomain(path string, img *geotiff.Image) (*domain.Domain, error) {
	if !img.HasGeoTransform {
		return nil, fmt.Errorf("geotiff: %s is not georeferenced", path)
	}
	sr, err := tiffSR(path, img)
	if err != nil {
		return nil, err
	}
	return domain.New(img.Width, img.Height, domain.GeoTransform(img.GeoTransform), sr)
}

func tiffSR(path string, img *geotiff.Image) (*spatialref.SR, error) {
	if img.EPSG > 0 {
		if sr, err := spatialref.FromEPSG(img.EPSG); err == nil {
			return sr, nil
		}
	}
	if c := strings.TrimSpace(img.Citation); strings.HasPrefix(c, "+") ||
		strings.HasPrefix(c, "GEOGCS") || strings.HasPrefix(c, "PROJCS") {
		return spatialref.Parse(c)
	}
	sr, err := readPRJ(path)
	if err != nil && img.EPSG > 0 {
		return nil, fmt.Errorf("%w: unsupported EPSG code %d", spatialref.ErrInvalidCRS, img.EPSG)
	}
	return sr, err
}
