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


// Package mappers holds the file format adapters of nansat. Importing
// the package registers them with nansat.DefaultRegistry:
//
//	import _ "github.com/spatialmodel/nansat/mappers"
package mappers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/spatialref"
)

// Default adapter priorities. Lower values are tried first.
const (
	LandsatPriority  = 10
	SSTCCIPriority   = 15
	NetCDFPriority   = 20
	GeoTIFFPriority  = 30
	AAIGridPriority  = 40
	PNGWorldPriority = 50
)

func init() {
	Register(nansat.DefaultRegistry)
}

// Register adds all adapters to r with their default priorities.
func Register(r *nansat.Registry) {
	for _, a := range []struct {
		a nansat.Adapter
		p int
	}{
		{&Landsat{}, LandsatPriority},
		{SSTCCI{}, SSTCCIPriority},
		{NetCDF{}, NetCDFPriority},
		{GeoTIFF{}, GeoTIFFPriority},
		{AAIGrid{}, AAIGridPriority},
		{PNGWorld{}, PNGWorldPriority},
	} {
		if err := r.Register(a.a, a.p); err != nil {
			panic(err)
		}
	}
}

// header returns up to n leading bytes of the file at path.
func header(path string, n int) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	b := make([]byte, n)
	k, _ := io.ReadFull(f, b)
	return b[:k]
}

func hasExt(path string, exts ...string) bool {
	p := strings.ToLower(path)
	for _, e := range exts {
		if strings.HasSuffix(p, e) {
			return true
		}
	}
	return false
}

// trimExt removes the extension of path.
func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// readPRJ reads the spatial reference sidecar of path.
func readPRJ(path string) (*spatialref.SR, error) {
	p := trimExt(path) + ".prj"
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no spatial reference for %s", spatialref.ErrInvalidCRS, filepath.Base(path))
	} else if err != nil {
		return nil, err
	}
	return spatialref.Parse(strings.TrimSpace(string(b)))
}

// withSidecar merges the metadata sidecar of path into the product and
// band metadata.
func withSidecar(path string, meta, band nansat.Metadata) error {
	s, err := nansat.ReadSidecar(path)
	if err != nil || s == nil {
		return err
	}
	for k, v := range s.Metadata {
		meta[k] = v
	}
	for k, v := range s.Band {
		band[k] = v
	}
	return nil
}

// dense copies row-major values into a new [rows, cols] array.
func dense(rows, cols int, v []float64) *sparse.DenseArray {
	a := sparse.ZerosDense(rows, cols)
	copy(a.Elements, v)
	return a
}

func bandName(meta nansat.Metadata, i int) {
	if meta[nansat.NameKey] == "" {
		meta[nansat.NameKey] = fmt.Sprintf("band_%d", i)
	}
}
