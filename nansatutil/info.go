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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/catalog"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type bandInfo struct {
	Number   int             `json:"number" yaml:"number"`
	Metadata nansat.Metadata `json:"metadata" yaml:"metadata"`
}

// productInfo is the machine-readable description printed by info.
type productInfo struct {
	Path         string          `json:"path" yaml:"path"`
	Adapter      string          `json:"adapter" yaml:"adapter"`
	Width        int             `json:"width" yaml:"width"`
	Height       int             `json:"height" yaml:"height"`
	SpatialRef   string          `json:"spatial_ref" yaml:"spatial_ref"`
	EPSG         int             `json:"epsg,omitempty" yaml:"epsg,omitempty"`
	GeoTransform []float64       `json:"geotransform" yaml:"geotransform"`
	Border       string          `json:"border,omitempty" yaml:"border,omitempty"`
	Time         string          `json:"time,omitempty" yaml:"time,omitempty"`
	Metadata     nansat.Metadata `json:"metadata" yaml:"metadata"`
	Bands        []bandInfo      `json:"bands" yaml:"bands"`
}

func newProductInfo(n *nansat.Nansat) *productInfo {
	d := n.Domain()
	gt := d.GeoTransform()
	info := &productInfo{
		Path:         n.Path(),
		Adapter:      n.AdapterName(),
		Width:        d.Width(),
		Height:       d.Height(),
		SpatialRef:   d.SR().String(),
		EPSG:         d.SR().EPSG(),
		GeoTransform: gt[:],
		Metadata:     n.Metadata(),
	}
	if wkt, err := d.BorderWKT(10); err == nil {
		info.Border = wkt
	}
	if n.BandCount() > 0 {
		if t, err := n.Time(1); err == nil {
			info.Time = t.UTC().Format(time.RFC3339)
		}
	}
	for i, m := range n.Bands() {
		info.Bands = append(info.Bands, bandInfo{Number: i + 1, Metadata: m})
	}
	return info
}

// writeInfo describes n in the given output format.
func writeInfo(w io.Writer, n *nansat.Nansat, output string) error {
	switch strings.ToLower(output) {
	case "", "text":
		_, err := fmt.Fprint(w, n.String())
		return err
	case "json":
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(newProductInfo(n))
	case "yaml":
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(newProductInfo(n)); err != nil {
			return err
		}
		return e.Close()
	}
	return fmt.Errorf("nansat: unknown output %q; use text, json or yaml", output)
}

// writeBand prints the metadata and statistics of band i of n.
func writeBand(w io.Writer, n *nansat.Nansat, i int) error {
	b, err := n.Band(i)
	if err != nil {
		return err
	}
	rows, cols := b.Shape()
	fmt.Fprintf(w, "Band : %d %s\n", i, b.Name())
	fmt.Fprintf(w, "  shape: %d x %d\n", rows, cols)
	m := b.Metadata()
	for _, k := range m.Keys() {
		fmt.Fprintf(w, "  %s: %s\n", k, m[k])
	}
	s := b.Stats()
	_, err = fmt.Fprintf(w, "  min: %g\n  max: %g\n  mean: %g\n  stddev: %g\n  valid: %d\n",
		s.Min, s.Max, s.Mean, s.StdDev, s.N)
	return err
}

func (cfg *Cfg) openCatalog() (*catalog.Catalog, error) {
	c, err := catalog.Open(cfg.GetString("Catalog.DSN"))
	if err != nil {
		return nil, err
	}
	c.Log = cfg.Log
	return c, nil
}

// index adds the files in args to the catalog. Files that cannot be
// opened are reported and skipped.
func (cfg *Cfg) index(cmd *cobra.Command, args []string) error {
	c, err := cfg.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()
	var failed int
	for _, path := range expandStringSlice(args) {
		n, err := cfg.open(path)
		if err != nil {
			cfg.Log.WithFields(logrus.Fields{"path": path, "error": err}).Warn("skipping")
			failed++
			continue
		}
		p, err := c.Add(n)
		n.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Path)
	}
	if failed > 0 {
		return fmt.Errorf("nansat: %d of %d files could not be indexed", failed, len(args))
	}
	return nil
}

// search prints the catalog products overlapping the box in args.
func (cfg *Cfg) search(cmd *cobra.Command, args []string) error {
	var box [4]float64
	for i, a := range args {
		v, err := cast.ToFloat64E(a)
		if err != nil {
			return fmt.Errorf("nansat: search bounds: %v", err)
		}
		box[i] = v
	}
	c, err := cfg.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()
	products, err := c.Search(box[0], box[1], box[2], box[3])
	if err != nil {
		return err
	}
	for _, p := range products {
		t := "-"
		if p.Time != nil {
			t = p.Time.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\t[%g %g %g %g]\n", p.Path, p.Adapter, t,
			len(p.Bands), p.MinLon, p.MinLat, p.MaxLon, p.MaxLat)
	}
	return nil
}
