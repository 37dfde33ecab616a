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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/cloud"
)

// SSTCCIBaseURL is the archive of ESA SST CCI level 4 analyses. Files
// are stored under YYYY/MM/DD/.
const SSTCCIBaseURL = "http://dap.ceda.ac.uk/data/neodc/esacci/sst/data/lt/Analysis/L4/v01.1/"

var sstcciName = regexp.MustCompile(`^(\d{14})-ESACCI-L4_GHRSST-[^/]*\.nc$`)

// SSTCCI reads ESA SST CCI level 4 analyses by file name, such as
// 20100501120000-ESACCI-L4_GHRSST-SSTdepth-OSTIA-GLOB_LT-v02.0-fv01.1.nc.
// Files that are not found locally are downloaded from the archive.
// The time of the analysis is taken from the file name.
type SSTCCI struct {
	// BaseURL overrides SSTCCIBaseURL.
	BaseURL string
}

// Name implements nansat.Adapter.
func (SSTCCI) Name() string { return "sstcci" }

// Probe implements nansat.Adapter.
func (SSTCCI) Probe(path string) bool {
	return sstcciName.MatchString(filepath.Base(path))
}

// URL returns the archive location of the named file.
func (s SSTCCI) URL(name string) (string, error) {
	m := sstcciName.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", fmt.Errorf("sstcci: %s is not an SST CCI file name", name)
	}
	base := s.BaseURL
	if base == "" {
		base = SSTCCIBaseURL
	}
	stamp := m[1]
	return strings.TrimSuffix(base, "/") + "/" + stamp[:4] + "/" + stamp[4:6] + "/" + stamp[6:8] + "/" + m[0], nil
}

// Parse implements nansat.Adapter.
func (s SSTCCI) Parse(path string) (*nansat.Source, error) {
	m := sstcciName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return nil, fmt.Errorf("sstcci: %s is not an SST CCI file name", path)
	}
	t, err := time.Parse("20060102150405", m[1])
	if err != nil {
		return nil, fmt.Errorf("sstcci: %v", err)
	}
	local, cleanup := path, func() {}
	var url string
	if _, err := os.Stat(path); err != nil {
		if url, err = s.URL(path); err != nil {
			return nil, err
		}
		if local, cleanup, err = cloud.Fetch(context.Background(), url); err != nil {
			return nil, fmt.Errorf("sstcci: %v", err)
		}
	}
	src, err := NetCDF{}.Parse(local)
	if err != nil {
		cleanup()
		return nil, err
	}
	src.Metadata[nansat.TimeKey] = t.UTC().Format(time.RFC3339)
	if url != "" {
		src.Metadata["source_url"] = url
	}
	src.Closer = &cleanupCloser{c: src.Closer, cleanup: cleanup}
	return src, nil
}

// cleanupCloser closes c and then removes temporary files.
type cleanupCloser struct {
	c       io.Closer
	cleanup func()
}

func (c *cleanupCloser) Close() error {
	var err error
	if c.c != nil {
		err = c.c.Close()
	}
	c.cleanup()
	return err
}
