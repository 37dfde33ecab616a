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


// Package nansatutil contains the command-line interface of nansat.
package nansatutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/mappers"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information and the commands that use it.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	// Log receives messages from the commands.
	Log *logrus.Logger

	registry *nansat.Registry

	versionCmd, adaptersCmd, infoCmd, bandCmd, reprojectCmd, figureCmd,
	mapCmd, exportCmd, watermaskCmd, indexCmd, searchCmd *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the commands and binds the configuration
// options to them. Every call returns an independent configuration with
// its own adapter registry.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper:    viper.New(),
		Log:      logrus.New(),
		registry: new(nansat.Registry),
	}
	mappers.Register(cfg.registry)

	cfg.Root = &cobra.Command{
		Use:   "nansat",
		Short: "Read, reproject, plot and export geospatial rasters.",
		Long: `nansat opens satellite, model and other geospatial raster files through
a common interface. Use the subcommands specified below to inspect files,
reproject them, render figures and maps, export bands, and keep a catalog
of opened products.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'NANSAT_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Log.SetOutput(cmd.ErrOrStderr())
			return cfg.setConfig()
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of nansat.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nansat v%s\n", nansat.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.adaptersCmd = &cobra.Command{
		Use:   "adapters",
		Short: "List the file format adapters",
		Long: `adapters lists the file format adapters in the order in which they
are tried when a file is opened.`,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range cfg.registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
		DisableAutoGenTag: true,
	}

	cfg.infoCmd = &cobra.Command{
		Use:   "info FILE",
		Short: "Describe a file",
		Long: `info prints the adapter, domain, metadata and bands of a file. The
output flag selects text, json or yaml output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			return writeInfo(cmd.OutOrStdout(), n, cfg.GetString("output"))
		},
		DisableAutoGenTag: true,
	}

	cfg.bandCmd = &cobra.Command{
		Use:   "band FILE BAND",
		Short: "Describe a band",
		Long: `band prints the metadata and summary statistics of one band of a file.
BAND is a band number, starting at 1, or a band name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			i, err := bandNumber(n, args[1])
			if err != nil {
				return err
			}
			return writeBand(cmd.OutOrStdout(), n, i)
		},
		DisableAutoGenTag: true,
	}

	cfg.reprojectCmd = &cobra.Command{
		Use:   "reproject FILE OUTPUT",
		Short: "Reproject a file",
		Long: `reproject resamples every band of FILE onto the domain given by the
Reproject.EPSG, Reproject.Extent and Reproject.Resolution options, or onto
the domain of the file given by Reproject.Like, and exports the result
to OUTPUT.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			target, err := cfg.targetDomain(n)
			if err != nil {
				return err
			}
			alg, err := nansat.ParseResampling(cfg.GetString("resampling"))
			if err != nil {
				return err
			}
			out, err := n.Reproject(target, alg)
			if err != nil {
				return err
			}
			return cfg.export(out, os.ExpandEnv(args[1]))
		},
		DisableAutoGenTag: true,
	}

	cfg.figureCmd = &cobra.Command{
		Use:   "figure FILE OUTPUT",
		Short: "Render bands to an image",
		Long: `figure renders one band with a colormap, or three bands as an RGB
composite, and saves the image as PNG, JPEG or TIFF depending on the
extension of OUTPUT.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			opts, err := cfg.figureOptions()
			if err != nil {
				return err
			}
			out := os.ExpandEnv(args[1])
			if err := n.WriteFigure(out, opts); err != nil {
				return err
			}
			return cfg.maybeOpen(out)
		},
		DisableAutoGenTag: true,
	}

	cfg.mapCmd = &cobra.Command{
		Use:   "map FILE OUTPUT",
		Short: "Draw the footprint of a file on a map",
		Long: `map draws the border of the domain of FILE on a longitude/latitude
map, with optional coastlines and graticule, and saves the image to OUTPUT.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			out := os.ExpandEnv(args[1])
			if err := n.WriteMap(out, cfg.mapOptions()); err != nil {
				return err
			}
			return cfg.maybeOpen(out)
		},
		DisableAutoGenTag: true,
	}

	cfg.exportCmd = &cobra.Command{
		Use:   "export FILE OUTPUT",
		Short: "Export bands to another format",
		Long: `export writes the bands of FILE to OUTPUT. If Export.Band is zero all
bands are written to a netCDF or GeoTIFF file. Otherwise only the given
band is written, in the format named by Export.Format or implied by the
extension of OUTPUT. With Export.Image the band (band 1 if Export.Band
is zero) is written as an 8-bit color-mapped GeoTIFF for GIS display.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			return cfg.export(n, os.ExpandEnv(args[1]))
		},
		DisableAutoGenTag: true,
	}

	cfg.watermaskCmd = &cobra.Command{
		Use:   "watermask FILE OUTPUT",
		Short: "Create a water mask on the grid of a file",
		Long: `watermask resamples the MOD44W water mask mosaic in Watermask.Dir
(or $MOD44WPATH) onto the grid of FILE and exports it to OUTPUT as the
export command does. Water is 1 and land is 0. Without a mosaic the
mask is all zeros.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer n.Close()
			wm, err := n.Watermask(os.ExpandEnv(cfg.GetString("Watermask.Dir")), nil,
				nansat.WithRegistry(cfg.registry),
				nansat.WithCacheSize(cfg.GetInt("CacheSize")))
			if err != nil {
				return err
			}
			return cfg.export(wm, os.ExpandEnv(args[1]))
		},
		DisableAutoGenTag: true,
	}

	cfg.indexCmd = &cobra.Command{
		Use:   "index FILE...",
		Short: "Add files to the catalog",
		Long: `index opens each file and records its footprint, time and band
metadata in the catalog database given by Catalog.DSN. Files that have
not changed since they were last indexed are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.index(cmd, args)
		},
		DisableAutoGenTag: true,
	}

	cfg.searchCmd = &cobra.Command{
		Use:   "search MINLON MINLAT MAXLON MAXLAT",
		Short: "Search the catalog",
		Long: `search prints the catalog products whose longitude/latitude bounding
box overlaps the given box.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.search(cmd, args)
		},
		DisableAutoGenTag: true,
	}

	// Link the commands together.
	for _, c := range []*cobra.Command{cfg.versionCmd, cfg.adaptersCmd, cfg.infoCmd,
		cfg.bandCmd, cfg.reprojectCmd, cfg.figureCmd, cfg.mapCmd, cfg.exportCmd,
		cfg.watermaskCmd, cfg.indexCmd, cfg.searchCmd} {
		cfg.Root.AddCommand(c)
	}

	cfg.bindOptions(cfg.options())
	return cfg
}

// options returns the configuration options available to nansat.
func (cfg *Cfg) options() []option {
	openers := []*pflag.FlagSet{cfg.infoCmd.Flags(), cfg.bandCmd.Flags(),
		cfg.reprojectCmd.Flags(), cfg.figureCmd.Flags(), cfg.mapCmd.Flags(),
		cfg.exportCmd.Flags(), cfg.watermaskCmd.Flags(), cfg.indexCmd.Flags()}
	exporters := []*pflag.FlagSet{cfg.exportCmd.Flags(), cfg.reprojectCmd.Flags(), cfg.watermaskCmd.Flags()}
	return []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel sets the level of log messages: debug, info, warn
              or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "adapter",
			usage: `
              adapter forces the named file format adapter to be used
              instead of trying each adapter in turn.`,
			shorthand:  "a",
			defaultVal: "",
			flagsets:   openers,
		},
		{
			name: "Adapters.Order",
			usage: `
              Adapters.Order lists adapters that should be tried before
              the others, in order.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "Landsat.HighResolution",
			usage: `
              Landsat.HighResolution reads Landsat scenes at the resolution
              of the finest band instead of the coarsest.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "SSTCCI.BaseURL",
			usage: `
              SSTCCI.BaseURL is the archive that SST CCI analyses are
              downloaded from when they are opened by file name.`,
			defaultVal: mappers.SSTCCIBaseURL,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "CacheSize",
			usage: `
              CacheSize is the number of decoded bands kept in memory for
              each open file.`,
			defaultVal: 8,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "output",
			usage: `
              output selects the output of info: text, json or yaml.`,
			shorthand:  "o",
			defaultVal: "text",
			flagsets:   []*pflag.FlagSet{cfg.infoCmd.Flags()},
		},
		{
			name: "resampling",
			usage: `
              resampling is the resampling method: nearest, bilinear or
              average.`,
			shorthand:  "r",
			defaultVal: "nearest",
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Reproject.EPSG",
			usage: `
              Reproject.EPSG is the EPSG code of the target coordinate
              reference system.`,
			defaultVal: 4326,
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Reproject.SpatialRef",
			usage: `
              Reproject.SpatialRef is a PROJ.4 string, WKT or EPSG:n
              definition of the target coordinate reference system.
              It takes precedence over Reproject.EPSG.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Reproject.Extent",
			usage: `
              Reproject.Extent is the target extent as minx,miny,maxx,maxy
              in target coordinates.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Reproject.Resolution",
			usage: `
              Reproject.Resolution is the target pixel size in target
              coordinates.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Reproject.Like",
			usage: `
              Reproject.Like is a file whose domain is used as the target.
              It takes precedence over the other Reproject options.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.reprojectCmd.Flags()},
		},
		{
			name: "Figure.Bands",
			usage: `
              Figure.Bands holds one band number for a colormapped figure
              or three for an RGB composite.`,
			shorthand:  "b",
			defaultVal: []int{1},
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Colormap",
			usage: `
              Figure.Colormap is the colormap of single-band figures. Add
              '_r' to reverse it.`,
			defaultVal: "extended_black_body",
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Min",
			usage: `
              Figure.Min is the value drawn with the lowest color. It is
              used together with Figure.Max when Figure.Max > Figure.Min.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Max",
			usage: `
              Figure.Max is the value drawn with the highest color.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.LowPercentile",
			usage: `
              Figure.LowPercentile sets the lower limit when no explicit
              limits are given.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.HighPercentile",
			usage: `
              Figure.HighPercentile sets the upper limit when no explicit
              limits are given.`,
			defaultVal: 98.0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.LogScale",
			usage: `
              Figure.LogScale maps values logarithmically.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Gamma",
			usage: `
              Figure.Gamma is applied to stretched values as v^(1/gamma).`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Legend",
			usage: `
              Figure.Legend adds a color bar and caption.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Caption",
			usage: `
              Figure.Caption overrides the default legend caption.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Figure.Width",
			usage: `
              Figure.Width is the width of the figure in pixels. Zero keeps
              the width of the band.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags()},
		},
		{
			name: "Map.Coastlines",
			usage: `
              Map.Coastlines is a shapefile or GeoJSON file with land
              polygons in longitude/latitude. It may be a remote path.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.mapCmd.Flags()},
		},
		{
			name: "Map.Width",
			usage: `
              Map.Width is the width of the map in pixels.`,
			defaultVal: 800,
			flagsets:   []*pflag.FlagSet{cfg.mapCmd.Flags()},
		},
		{
			name: "Map.Graticule",
			usage: `
              Map.Graticule draws meridians and parallels.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{cfg.mapCmd.Flags()},
		},
		{
			name: "open",
			usage: `
              open shows the output image with the default viewer.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.figureCmd.Flags(), cfg.mapCmd.Flags()},
		},
		{
			name: "Export.Band",
			usage: `
              Export.Band is the band to export. Zero exports all bands.`,
			defaultVal: 0,
			flagsets:   exporters,
		},
		{
			name: "Export.Format",
			usage: `
              Export.Format is the format of single-band exports: GTiff,
              PNG, netCDF or AAIGrid. By default it is implied by the
              output file extension.`,
			defaultVal: "",
			flagsets:   exporters,
		},
		{
			name: "Export.Image",
			usage: `
              Export.Image writes an 8-bit color-mapped GeoTIFF using the
              colormap and minmax metadata of the band.`,
			defaultVal: false,
			flagsets:   exporters,
		},
		{
			name: "Watermask.Dir",
			usage: `
              Watermask.Dir is the directory holding the MOD44W.tif water
              mask mosaic. If empty, $MOD44WPATH is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.watermaskCmd.Flags()},
		},
		{
			name: "Catalog.DSN",
			usage: `
              Catalog.DSN is the path of the SQLite catalog database.`,
			defaultVal: "nansat.db",
			flagsets:   []*pflag.FlagSet{cfg.indexCmd.Flags(), cfg.searchCmd.Flags()},
		},
	}
}

func (cfg *Cfg) bindOptions(options []option) {
	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("NANSAT")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// setConfig finds and reads in the configuration file, if there is one,
// and applies the settings that are not specific to a command.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("nansat: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(cfg.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("nansat: %v", err)
	}
	cfg.Log.SetLevel(level)

	if cfg.registry.Frozen() {
		return nil
	}
	if cfg.GetBool("Landsat.HighResolution") {
		if err := cfg.registry.Register(&mappers.Landsat{HighResolution: true}, mappers.LandsatPriority); err != nil {
			return err
		}
	}
	if u := cfg.GetString("SSTCCI.BaseURL"); u != mappers.SSTCCIBaseURL {
		if err := cfg.registry.Register(mappers.SSTCCI{BaseURL: u}, mappers.SSTCCIPriority); err != nil {
			return err
		}
	}
	if order := expandStringSlice(cfg.GetStringSlice("Adapters.Order")); len(order) > 0 {
		return cfg.registry.SetOrder(order...)
	}
	return nil
}

// open opens path with the configured adapters.
func (cfg *Cfg) open(path string) (*nansat.Nansat, error) {
	return nansat.Open(os.ExpandEnv(path),
		nansat.WithRegistry(cfg.registry),
		nansat.WithLogger(cfg.Log),
		nansat.WithAdapter(cfg.GetString("adapter")),
		nansat.WithCacheSize(cfg.GetInt("CacheSize")),
	)
}

// export writes n to path as configured by the Export options.
func (cfg *Cfg) export(n *nansat.Nansat, path string) error {
	i := cfg.GetInt("Export.Band")
	if cfg.GetBool("Export.Image") {
		if i == 0 {
			i = 1
		}
		return n.WriteGeoTIFFImage(path, i)
	}
	if i == 0 {
		return n.Export(path)
	}
	format, err := exportFormat(cfg.GetString("Export.Format"), path)
	if err != nil {
		return err
	}
	return n.ExportBand(i, path, format)
}

// maybeOpen shows path with the default viewer if requested.
func (cfg *Cfg) maybeOpen(path string) error {
	if !cfg.GetBool("open") {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	cfg.Log.WithField("path", abs).Info("opening")
	return open.Run(abs)
}
