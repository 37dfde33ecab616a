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


package nansatutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/figure"
	"github.com/spatialmodel/nansat/spatialref"
	"github.com/spf13/cast"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	var o []string
	for _, v := range s {
		if v = strings.TrimSpace(os.ExpandEnv(v)); v != "" {
			o = append(o, v)
		}
	}
	return o
}

// splitList splits a value that may be a slice or a string such as
// "[1,2,3]" or "1 2 3" into its elements.
func splitList(v interface{}) ([]string, error) {
	s, ok := v.(string)
	if !ok {
		return cast.ToStringSliceE(v)
	}
	s = strings.Trim(strings.TrimSpace(s), "[]")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}), nil
}

// getIntSlice returns the configuration value of key as integers.
func (cfg *Cfg) getIntSlice(key string) ([]int, error) {
	if v, ok := cfg.Get(key).([]int); ok {
		return v, nil
	}
	items, err := splitList(cfg.Get(key))
	if err != nil {
		return nil, fmt.Errorf("nansat: reading %s: %v", key, err)
	}
	o := make([]int, len(items))
	for i, item := range items {
		if o[i], err = cast.ToIntE(item); err != nil {
			return nil, fmt.Errorf("nansat: reading %s: %v", key, err)
		}
	}
	return o, nil
}

// getFloatSlice returns the configuration value of key as floats.
func (cfg *Cfg) getFloatSlice(key string) ([]float64, error) {
	items, err := splitList(cfg.Get(key))
	if err != nil {
		return nil, fmt.Errorf("nansat: reading %s: %v", key, err)
	}
	var o []float64
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(item))
		if err != nil {
			return nil, fmt.Errorf("nansat: reading %s: %v", key, err)
		}
		o = append(o, f)
	}
	return o, nil
}

// targetSR returns the coordinate reference system of reprojections.
func (cfg *Cfg) targetSR() (*spatialref.SR, error) {
	if def := os.ExpandEnv(cfg.GetString("Reproject.SpatialRef")); def != "" {
		return spatialref.Parse(def)
	}
	return spatialref.FromEPSG(cfg.GetInt("Reproject.EPSG"))
}

// targetDomain returns the domain that n is reprojected onto. Without an
// explicit extent the target covers the border of n, and without a
// resolution the target has about as many columns as n.
func (cfg *Cfg) targetDomain(n *nansat.Nansat) (*domain.Domain, error) {
	if like := cfg.GetString("Reproject.Like"); like != "" {
		ln, err := cfg.open(like)
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		return ln.Domain(), nil
	}
	sr, err := cfg.targetSR()
	if err != nil {
		return nil, err
	}
	ext, err := cfg.getFloatSlice("Reproject.Extent")
	if err != nil {
		return nil, err
	}
	switch len(ext) {
	case 0:
		border, err := n.Domain().Border(sr, 10)
		if err != nil {
			return nil, err
		}
		b := border.Bounds()
		ext = []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	case 4:
	default:
		return nil, fmt.Errorf("nansat: Reproject.Extent must have 4 values, has %d", len(ext))
	}
	res := cfg.GetFloat64("Reproject.Resolution")
	if res <= 0 {
		res = (ext[2] - ext[0]) / float64(n.Domain().Width())
	}
	return domain.FromExtent(ext[0], ext[1], ext[2], ext[3], res, sr)
}

// figureOptions returns the options of the figure command.
func (cfg *Cfg) figureOptions() (nansat.FigureOptions, error) {
	bands, err := cfg.getIntSlice("Figure.Bands")
	if err != nil {
		return nansat.FigureOptions{}, err
	}
	return nansat.FigureOptions{
		Bands: bands,
		Options: figure.Options{
			Colormap: cfg.GetString("Figure.Colormap"),
			Stretch: figure.Stretch{
				Min:            cfg.GetFloat64("Figure.Min"),
				Max:            cfg.GetFloat64("Figure.Max"),
				LowPercentile:  cfg.GetFloat64("Figure.LowPercentile"),
				HighPercentile: cfg.GetFloat64("Figure.HighPercentile"),
			},
			LogScale: cfg.GetBool("Figure.LogScale"),
			Gamma:    cfg.GetFloat64("Figure.Gamma"),
			Legend:   cfg.GetBool("Figure.Legend"),
			Caption:  cfg.GetString("Figure.Caption"),
			Width:    cfg.GetInt("Figure.Width"),
		},
	}, nil
}

// mapOptions returns the options of the map command.
func (cfg *Cfg) mapOptions() figure.MapOptions {
	return figure.MapOptions{
		Width:      cfg.GetInt("Map.Width"),
		Coastlines: os.ExpandEnv(cfg.GetString("Map.Coastlines")),
		Graticule:  cfg.GetBool("Map.Graticule"),
		Log:        cfg.Log,
	}
}

// exportFormat returns the named format, or the one implied by path.
func exportFormat(name, path string) (nansat.Format, error) {
	if name != "" {
		return nansat.ParseFormat(name)
	}
	return nansat.FormatFromPath(path)
}

// bandNumber interprets s as a band number or a band name.
func bandNumber(n *nansat.Nansat, s string) (int, error) {
	if i, err := cast.ToIntE(s); err == nil {
		if _, err := n.BandMetadata(i); err != nil {
			return 0, err
		}
		return i, nil
	}
	return n.BandNumber(s)
}
