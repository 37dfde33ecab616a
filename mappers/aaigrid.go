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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
)

// AAIGrid reads ESRI ASCII grids. The spatial reference is read from
// a .prj file next to the grid.
type AAIGrid struct{}

// Name implements nansat.Adapter.
func (AAIGrid) Name() string { return "aaigrid" }

// Probe implements nansat.Adapter.
func (AAIGrid) Probe(path string) bool {
	return bytes.HasPrefix(bytes.ToLower(bytes.TrimSpace(header(path, 64))), []byte("ncols"))
}

type asciiHeader struct {
	cols, rows     int
	x, y, cellSize float64
	center         bool
	noData         string
	lines          int
}

func readASCIIHeader(s *bufio.Scanner) (*asciiHeader, error) {
	h := &asciiHeader{}
	seen := make(map[string]bool)
	for len(seen) < 6 && s.Scan() {
		f := strings.Fields(s.Text())
		if len(f) > 0 && !unicode.IsLetter(rune(f[0][0])) {
			break
		}
		h.lines++
		if len(f) == 0 {
			continue
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("aaigrid: invalid header line %q", s.Text())
		}
		key := strings.ToLower(f[0])
		var err error
		switch key {
		case "ncols":
			h.cols, err = strconv.Atoi(f[1])
		case "nrows":
			h.rows, err = strconv.Atoi(f[1])
		case "xllcorner", "xllcenter":
			h.x, err = strconv.ParseFloat(f[1], 64)
			h.center = key == "xllcenter"
		case "yllcorner", "yllcenter":
			h.y, err = strconv.ParseFloat(f[1], 64)
		case "cellsize":
			h.cellSize, err = strconv.ParseFloat(f[1], 64)
		case "nodata_value":
			h.noData = f[1]
			_, err = strconv.ParseFloat(f[1], 64)
		default:
			return nil, fmt.Errorf("aaigrid: unknown header key %q", f[0])
		}
		if err != nil {
			return nil, fmt.Errorf("aaigrid: %s: %v", f[0], err)
		}
		seen[strings.TrimSuffix(strings.TrimSuffix(key, "corner"), "center")] = true
	}
	for _, k := range []string{"ncols", "nrows", "xll", "yll", "cellsize"} {
		if !seen[k] {
			return nil, fmt.Errorf("aaigrid: missing %s", k)
		}
	}
	return h, s.Err()
}

// Parse implements nansat.Adapter.
func (AAIGrid) Parse(path string) (*nansat.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	h, err := readASCIIHeader(newLineScanner(f))
	f.Close()
	if err != nil {
		return nil, err
	}
	sr, err := readPRJ(path)
	if err != nil {
		return nil, err
	}
	x0, y0 := h.x, h.y
	if h.center {
		x0 -= h.cellSize / 2
		y0 -= h.cellSize / 2
	}
	gt := domain.GeoTransform{x0, h.cellSize, 0, y0 + float64(h.rows)*h.cellSize, 0, -h.cellSize}
	d, err := domain.New(h.cols, h.rows, gt, sr)
	if err != nil {
		return nil, err
	}
	meta, band := make(nansat.Metadata), make(nansat.Metadata)
	if h.noData != "" {
		band[nansat.FillValueKey] = h.noData
	}
	if err := withSidecar(path, meta, band); err != nil {
		return nil, err
	}
	bandName(band, 1)
	return &nansat.Source{
		Domain:   d,
		Metadata: meta,
		Bands: []nansat.SourceBand{{
			Metadata: band,
			Read:     func() (*sparse.DenseArray, error) { return readASCIIData(path, h) },
		}},
	}, nil
}

func readASCIIData(path string, h *asciiHeader) (*sparse.DenseArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := newLineScanner(f)
	for i := 0; i < h.lines; i++ {
		s.Scan()
	}
	a := sparse.ZerosDense(h.rows, h.cols)
	n := 0
	for s.Scan() {
		for _, w := range strings.Fields(s.Text()) {
			if n >= len(a.Elements) {
				return nil, fmt.Errorf("aaigrid: more than %d values in %s", len(a.Elements), path)
			}
			v, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return nil, fmt.Errorf("aaigrid: value %d: %v", n, err)
			}
			a.Elements[n] = v
			n++
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if n != len(a.Elements) {
		return nil, fmt.Errorf("aaigrid: %d values in %s, want %d", n, path, len(a.Elements))
	}
	return a, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 256*1024*1024)
	return s
}
