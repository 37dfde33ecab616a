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
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/domain"
)

// WatermaskFile is the name of the MODIS 44W water mask mosaic inside
// the water mask directory.
const WatermaskFile = "MOD44W.tif"

// WatermaskEnv names the environment variable that holds the water
// mask directory when none is given.
const WatermaskEnv = "MOD44WPATH"

// Watermask returns a single band Nansat named "watermask" on target,
// or on the domain of n if target is nil. Water is 1 and land is 0.
// Values come from the MOD44W mosaic in dir (or in $MOD44WPATH if dir
// is empty), resampled with nearest neighbour. If no mosaic is found
// the mask is all zeros. opts are used to open the mosaic.
func (n *Nansat) Watermask(dir string, target *domain.Domain, opts ...Option) (*Nansat, error) {
	if target == nil {
		target = n.domain
	}
	if dir == "" {
		dir = os.Getenv(WatermaskEnv)
	}
	meta := Metadata{NameKey: "watermask", LongNameKey: "water mask", CategoricalKey: "true"}
	out := n.newDerived(target)
	path := filepath.Join(dir, WatermaskFile)
	if _, err := os.Stat(path); dir == "" || err != nil {
		n.Log.WithFields(logrus.Fields{"dir": dir}).Warn("no MOD44W water mask found, using zeros")
		out.bands = append(out.bands, &bandEntry{
			meta: meta,
			data: sparse.ZerosDense(target.Height(), target.Width()),
		})
		return out, nil
	}

	src, err := Open(path, append([]Option{WithLogger(n.Log)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("nansat: opening water mask: %w", err)
	}
	defer src.Close()
	if src.BandCount() == 0 {
		return nil, fmt.Errorf("nansat: water mask %s: %w", path, ErrBandNotFound)
	}
	b, err := src.Band(1)
	if err != nil {
		return nil, err
	}
	var pm *pixelMap
	if !src.domain.Equal(target) {
		if pm, err = newPixelMap(src.domain, target); err != nil {
			return nil, fmt.Errorf("nansat: water mask: %w", err)
		}
	}
	var data *sparse.DenseArray
	if pm == nil {
		data = b.Data()
	} else {
		data = resample(b, pm, target, Nearest)
	}
	if nd, ok := b.NoData(); ok {
		meta.SetFloat(FillValueKey, nd)
	}
	out.bands = append(out.bands, &bandEntry{meta: meta, data: data})
	n.Log.WithFields(logrus.Fields{"path": path, "width": target.Width(), "height": target.Height()}).Info("created water mask")
	return out, nil
}
