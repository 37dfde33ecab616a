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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/cloud"
	"github.com/spatialmodel/nansat/internal/geotiff"
)

// Format is an output file format.
type Format int

const (
	// GTiff is a float32 GeoTIFF.
	GTiff Format = iota
	// PNG is an 8-bit grayscale PNG with a world file.
	PNG
	// NetCDF is a classic netCDF file.
	NetCDF
	// AAIGrid is an ESRI ASCII grid.
	AAIGrid
)

func (f Format) String() string {
	switch f {
	case GTiff:
		return "GTiff"
	case PNG:
		return "PNG"
	case NetCDF:
		return "netCDF"
	case AAIGrid:
		return "AAIGrid"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns the format with the given name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gtiff", "geotiff", "tif", "tiff":
		return GTiff, nil
	case "png":
		return PNG, nil
	case "netcdf", "nc":
		return NetCDF, nil
	case "aaigrid", "asc":
		return AAIGrid, nil
	}
	return GTiff, fmt.Errorf("nansat: unknown format %q", s)
}

// FormatFromPath returns the format implied by the extension of path.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Sidecar holds metadata that is written next to files whose format
// cannot hold it, as path + ".toml".
type Sidecar struct {
	Metadata Metadata `toml:"metadata"`
	Band     Metadata `toml:"band"`
}

// SidecarPath returns the path of the metadata sidecar of path.
func SidecarPath(path string) string { return path + ".toml" }

// WriteSidecar writes s next to path.
func WriteSidecar(path string, s *Sidecar) error {
	f, err := os.Create(SidecarPath(path))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSidecar reads the sidecar of path. It returns nil if there is none.
func ReadSidecar(path string) (*Sidecar, error) {
	p := SidecarPath(path)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil, nil
	}
	s := new(Sidecar)
	if _, err := toml.DecodeFile(p, s); err != nil {
		return nil, fmt.Errorf("nansat: reading %s: %v", p, err)
	}
	return s, nil
}

// writeOut calls write with a local path. If path is a blob, write gets
// a temporary path whose contents are then uploaded to path.
func (n *Nansat) writeOut(path string, write func(local string) error) error {
	if !cloud.IsBlob(path) {
		return write(path)
	}
	dir, err := os.MkdirTemp("", "nansat")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	local := filepath.Join(dir, uuid.New().String()+filepath.Ext(path))
	if err := write(local); err != nil {
		return err
	}
	n.Log.WithFields(logrus.Fields{"local": local, "dest": path}).Debug("uploading")
	return cloud.Upload(context.Background(), local, path)
}

// ExportBand writes band i to path in the given format.
func (n *Nansat) ExportBand(i int, path string, format Format) error {
	b, err := n.Band(i)
	if err != nil {
		return err
	}
	err = n.writeOut(path, func(local string) error {
		switch format {
		case GTiff:
			return n.writeGeoTIFF(local, []*Band{b})
		case PNG:
			return n.writePNG(local, b)
		case NetCDF:
			return n.writeNetCDF(local, []*Band{b})
		case AAIGrid:
			return n.writeAAIGrid(local, b)
		}
		return fmt.Errorf("unsupported format %v", format)
	})
	if err != nil {
		return fmt.Errorf("nansat: exporting band %d to %s: %w: %v", i, path, ErrWriteError, err)
	}
	n.Log.WithFields(logrus.Fields{"band": i, "path": path, "format": format}).Info("exported band")
	return nil
}

// Export writes every band to path, as netCDF unless the extension of
// path names another format that can hold several bands.
func (n *Nansat) Export(path string) error {
	bands := make([]*Band, n.BandCount())
	for i := range bands {
		b, err := n.Band(i + 1)
		if err != nil {
			return err
		}
		bands[i] = b
	}
	format, err := FormatFromPath(path)
	if err != nil || (format != GTiff && format != NetCDF) {
		format = NetCDF
	}
	err = n.writeOut(path, func(local string) error {
		if format == GTiff {
			return n.writeGeoTIFF(local, bands)
		}
		return n.writeNetCDF(local, bands)
	})
	if err != nil {
		return fmt.Errorf("nansat: exporting to %s: %w: %v", path, ErrWriteError, err)
	}
	n.Log.WithFields(logrus.Fields{"bands": len(bands), "path": path, "format": format}).Info("exported")
	return nil
}

func (n *Nansat) writeGeoTIFF(path string, bands []*Band) error {
	sr := n.domain.SR()
	img := &geotiff.Image{
		Width:           n.domain.Width(),
		Height:          n.domain.Height(),
		GeoTransform:    n.domain.GeoTransform(),
		HasGeoTransform: true,
		EPSG:            sr.EPSG(),
		Geographic:      sr.IsGeographic(),
		Metadata:        n.meta.Copy(),
	}
	if img.EPSG == 0 {
		img.Citation = sr.String()
	}
	for _, b := range bands {
		img.Bands = append(img.Bands, b.data.Elements)
		img.BandMetadata = append(img.BandMetadata, b.Metadata())
		if nd, ok := b.NoData(); ok && !img.HasNoData {
			img.NoData, img.HasNoData = nd, true
		}
	}
	return geotiff.WriteFile(path, img)
}

// writePRJ writes the spatial reference next to path.
func (n *Nansat) writePRJ(path string) error {
	p := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	return os.WriteFile(p, []byte(n.domain.SR().String()+"\n"), 0644)
}
