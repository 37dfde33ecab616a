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


package figure

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// DefaultColormap is used when Options.Colormap is empty.
const DefaultColormap = "extended_black_body"

var colormaps = map[string]func() (palette.ColorMap, error){
	"extended_black_body": func() (palette.ColorMap, error) { return moreland.ExtendedBlackBody(), nil },
	"black_body":          func() (palette.ColorMap, error) { return moreland.BlackBody(), nil },
	"smooth_blue_red":     func() (palette.ColorMap, error) { return moreland.SmoothBlueRed(), nil },
	"kindlmann":           func() (palette.ColorMap, error) { return moreland.Kindlmann(), nil },
	"extended_kindlmann":  func() (palette.ColorMap, error) { return moreland.ExtendedKindlmann(), nil },
	"gray": func() (palette.ColorMap, error) {
		return moreland.NewLuminance([]color.Color{
			color.NRGBA{A: 255},
			color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		})
	},
}

// Colormaps returns the names of the available colormaps. Any name may
// be suffixed with "_r" to reverse it.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for n := range colormaps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Colormap returns the named colormap spanning [0, 1].
func Colormap(name string) (palette.ColorMap, error) {
	if name == "" {
		name = DefaultColormap
	}
	base, reverse := strings.CutSuffix(name, "_r")
	f, ok := colormaps[base]
	if !ok {
		return nil, fmt.Errorf("figure: unknown colormap %q", name)
	}
	cm, err := f()
	if err != nil {
		return nil, err
	}
	cm.SetMax(1)
	cm.SetMin(0)
	if reverse {
		cm = palette.Reverse(cm)
	}
	return cm, nil
}

// IndexedPalette samples the named colormap into a 256 color palette.
// Index 0 is transparent and marks missing values; indices 1 to 255
// span the colormap from its low end to its high end.
func IndexedPalette(name string) (color.Palette, error) {
	cm, err := Colormap(name)
	if err != nil {
		return nil, err
	}
	p := make(color.Palette, 256)
	p[0] = color.NRGBA{}
	for i := 1; i < len(p); i++ {
		c, err := cm.At(float64(i-1) / 254)
		if err != nil {
			return nil, fmt.Errorf("figure: sampling colormap %q: %v", name, err)
		}
		p[i] = color.NRGBAModel.Convert(c)
	}
	return p, nil
}
