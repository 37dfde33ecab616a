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
	"image"
	stddraw "image/draw"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const legendHeight = 60

// addLegend appends a color bar with the caption below img.
func (f *Figure) addLegend(img image.Image) (image.Image, error) {
	cm, err := Colormap(f.opts.Colormap)
	if err != nil {
		return nil, err
	}
	cm.SetMax(f.hi[0])
	cm.SetMin(f.lo[0])

	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Add(&plotter.ColorBar{ColorMap: cm})
	p.HideY()
	p.X.Padding = 0
	p.X.Label.Text = f.caption

	w := img.Bounds().Dx()
	leg := image.NewRGBA(image.Rect(0, 0, w, legendHeight))
	c := vgimg.NewWith(vgimg.UseImage(leg))
	p.Draw(draw.New(c))

	out := image.NewNRGBA(image.Rect(0, 0, w, img.Bounds().Dy()+legendHeight))
	stddraw.Draw(out, img.Bounds().Sub(img.Bounds().Min), img, img.Bounds().Min, stddraw.Src)
	stddraw.Draw(out, image.Rect(0, img.Bounds().Dy(), w, out.Bounds().Dy()), c.Image(), image.Point{}, stddraw.Src)
	return out, nil
}
