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
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/internal/geotiff"
)

// Landsat reads Landsat scenes, either as a .tar, .tar.gz or .tgz
// archive or as one of the band files of an unpacked scene. Bands with
// different resolutions cannot share a grid, so only the bands with
// the lowest (the default) or highest resolution are kept.
type Landsat struct {
	// HighResolution keeps the bands with the largest width instead of
	// the smallest.
	HighResolution bool
}

// Name implements nansat.Adapter.
func (*Landsat) Name() string { return "landsat" }

func isArchive(path string) bool { return hasExt(path, ".tar", ".tar.gz", ".tgz") }

// sceneName matches Landsat scene and product identifiers such as
// LT50440342011 or LC08_L1TP.
var sceneName = regexp.MustCompile(`^[LM][A-Z][0-9]`)

// isBandFile reports whether name looks like a Landsat band GeoTIFF.
func isBandFile(name string) bool {
	base := filepath.Base(name)
	return sceneName.MatchString(base) && hasExt(base, ".tif")
}

// Probe implements nansat.Adapter.
func (*Landsat) Probe(path string) bool {
	if isArchive(path) {
		found := false
		err := walkTar(path, func(h *tar.Header, _ io.Reader) error {
			if isBandFile(h.Name) {
				found = true
				return io.EOF
			}
			return nil
		})
		return found && (err == nil || err == io.EOF)
	}
	return isBandFile(path) || (sceneName.MatchString(filepath.Base(path)) && strings.HasSuffix(path, "_MTL.txt"))
}

type landsatBand struct {
	name  string
	width int
	data  []byte // nil for files on disk
}

func (b *landsatBand) bytes() ([]byte, error) {
	if b.data != nil {
		return b.data, nil
	}
	return os.ReadFile(b.name)
}

// Parse implements nansat.Adapter.
func (l *Landsat) Parse(path string) (*nansat.Source, error) {
	var files []*landsatBand
	if isArchive(path) {
		err := walkTar(path, func(h *tar.Header, r io.Reader) error {
			if !isBandFile(h.Name) {
				return nil
			}
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			files = append(files, &landsatBand{name: h.Name, data: b})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("landsat: %v", err)
		}
	} else {
		core := strings.Split(trimExt(filepath.Base(path)), "_")[0]
		names, err := filepath.Glob(filepath.Join(filepath.Dir(path), core+"*.[tT][iI][fF]"))
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			files = append(files, &landsatBand{name: n})
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("landsat: no band files in %s", path)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	width := -1
	for _, f := range files {
		data, err := f.bytes()
		if err != nil {
			return nil, err
		}
		r, err := geotiff.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("landsat: %s: %v", f.name, err)
		}
		img, err := r.Info()
		if err != nil {
			return nil, fmt.Errorf("landsat: %s: %v", f.name, err)
		}
		f.width = img.Width
		if width < 0 || (l.HighResolution && img.Width > width) || (!l.HighResolution && img.Width < width) {
			width = img.Width
		}
	}

	var src *nansat.Source
	for _, f := range files {
		if f.width != width {
			continue
		}
		data, err := f.bytes()
		if err != nil {
			return nil, err
		}
		s, err := parseTIFF(f.name, data)
		if err != nil {
			return nil, fmt.Errorf("landsat: %s: %v", f.name, err)
		}
		if src == nil {
			src = &nansat.Source{Domain: s.Domain, Metadata: s.Metadata}
		} else if !src.Domain.Equal(s.Domain) {
			return nil, fmt.Errorf("landsat: %s is not on the grid of the other bands", f.name)
		}
		suffix := trimExt(filepath.Base(f.name))
		if i := strings.LastIndex(suffix, "_"); i >= 0 {
			suffix = suffix[i+1:]
		}
		if f.data == nil {
			// Band files on disk are read again when needed.
			s.Bands[0].Read = tiffFileReader(f.name)
		}
		meta := s.Bands[0].Metadata
		meta[nansat.NameKey] = "toa_outgoing_spectral_radiance_" + suffix
		meta["wkv"] = "toa_outgoing_spectral_radiance"
		meta["suffix"] = suffix
		meta["scale_ratio"] = "0.1"
		meta["SourceFilename"] = f.name
		src.Bands = append(src.Bands, s.Bands[0])
	}
	src.Metadata["sensor"] = "Landsat"
	return src, nil
}

func tiffFileReader(path string) nansat.BandReader {
	return func() (*sparse.DenseArray, error) {
		img, err := geotiff.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return dense(img.Height, img.Width, img.Bands[0]), nil
	}
}

// walkTar calls f for each regular file in the (optionally gzipped)
// tar archive at path. Returning io.EOF from f stops the walk.
func walkTar(path string, f func(*tar.Header, io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	var r io.Reader = file
	if hasExt(path, ".gz", ".tgz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		if err := f(h, tr); err != nil {
			return err
		}
	}
}
