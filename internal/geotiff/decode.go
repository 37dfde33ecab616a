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


package geotiff

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"
	"golang.org/x/image/tiff/lzw"
)

const (
	cNone       = 1
	cLZW        = 5
	cDeflate    = 8
	cDeflateOld = 32946

	sfUint  = 1
	sfInt   = 2
	sfFloat = 3
)

// layout describes how the samples of an image are stored.
type layout struct {
	width, height  int
	spp            int
	bits           int
	format         int
	compression    int
	planar         int
	predictor      int
	chunkW, chunkH int
	offsets        []uint64
	counts         []uint64
	tiled          bool
}

func (r *Reader) layout() (*layout, bool) {
	l := &layout{
		width:       int(r.int(tImageWidth, 0)),
		height:      int(r.int(tImageLength, 0)),
		spp:         r.samplesPerPixel(),
		format:      int(r.int(tSampleFormat, sfUint)),
		compression: int(r.int(tCompression, cNone)),
		planar:      int(r.int(tPlanarConfiguration, 1)),
		predictor:   int(r.int(tPredictor, 1)),
	}
	bps := r.ints(tBitsPerSample)
	if len(bps) == 0 {
		bps = []uint64{1}
	}
	l.bits = int(bps[0])
	for _, b := range bps {
		if int(b) != l.bits {
			return nil, false
		}
	}
	switch l.bits {
	case 8, 16, 32, 64:
	default:
		return nil, false
	}
	if l.format == sfFloat && l.bits < 32 {
		return nil, false
	}
	switch l.compression {
	case cNone, cLZW, cDeflate, cDeflateOld:
	default:
		return nil, false
	}
	if l.predictor != 1 && (l.predictor != 2 || l.format == sfFloat) {
		return nil, false
	}
	if _, ok := r.ifd[tTileWidth]; ok {
		l.tiled = true
		l.chunkW = int(r.int(tTileWidth, 0))
		l.chunkH = int(r.int(tTileLength, 0))
		l.offsets = r.ints(tTileOffsets)
		l.counts = r.ints(tTileByteCounts)
	} else {
		l.chunkW = l.width
		l.chunkH = int(r.int(tRowsPerStrip, uint64(l.height)))
		if l.chunkH > l.height {
			l.chunkH = l.height
		}
		l.offsets = r.ints(tStripOffsets)
		l.counts = r.ints(tStripByteCounts)
	}
	if l.chunkW <= 0 || l.chunkH <= 0 || len(l.offsets) == 0 || len(l.offsets) != len(l.counts) {
		return nil, false
	}
	return l, true
}

// Bands decodes the pixel values of every sample plane. Layouts that are
// not handled directly are decoded with golang.org/x/image/tiff.
func (r *Reader) Bands() ([][]float64, error) {
	l, ok := r.layout()
	if !ok {
		return r.fallback()
	}
	bands := make([][]float64, l.spp)
	for i := range bands {
		bands[i] = make([]float64, l.width*l.height)
	}
	across := (l.width + l.chunkW - 1) / l.chunkW
	down := (l.height + l.chunkH - 1) / l.chunkH
	perPlane := across * down
	nChunks := perPlane
	chunkSpp := l.spp
	if l.planar == 2 {
		nChunks *= l.spp
		chunkSpp = 1
	}
	if len(l.offsets) < nChunks {
		return nil, fmt.Errorf("%w: have %d chunks, want %d", ErrCorrupt, len(l.offsets), nChunks)
	}
	bytesPer := l.bits / 8
	for ci := 0; ci < nChunks; ci++ {
		plane := ci / perPlane
		cx := (ci % perPlane) % across
		cy := (ci % perPlane) / across
		buf, err := r.chunk(l, ci)
		if err != nil {
			return nil, err
		}
		rows := l.chunkH
		if !l.tiled && (cy+1)*l.chunkH > l.height {
			rows = l.height - cy*l.chunkH
		}
		rowLen := l.chunkW * chunkSpp
		if len(buf) < rows*rowLen*bytesPer {
			return nil, fmt.Errorf("%w: chunk %d is %d bytes, want %d", ErrCorrupt, ci, len(buf), rows*rowLen*bytesPer)
		}
		raw := make([]uint64, rowLen)
		for y := 0; y < rows; y++ {
			for i := range raw {
				raw[i] = l.sample(r, buf[(y*rowLen+i)*bytesPer:])
			}
			if l.predictor == 2 {
				mask := uint64(1)<<uint(l.bits) - 1
				if l.bits == 64 {
					mask = math.MaxUint64
				}
				for i := chunkSpp; i < rowLen; i++ {
					raw[i] = (raw[i] + raw[i-chunkSpp]) & mask
				}
			}
			row := cy*l.chunkH + y
			if row >= l.height {
				break
			}
			for x := 0; x < l.chunkW; x++ {
				col := cx*l.chunkW + x
				if col >= l.width {
					break
				}
				for s := 0; s < chunkSpp; s++ {
					band := s
					if l.planar == 2 {
						band = plane
					}
					bands[band][row*l.width+col] = l.value(raw[x*chunkSpp+s])
				}
			}
		}
	}
	return bands, nil
}

func (r *Reader) chunk(l *layout, i int) ([]byte, error) {
	off, n := l.offsets[i], l.counts[i]
	if off+n > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: chunk %d out of range", ErrCorrupt, i)
	}
	src := r.data[off : off+n]
	var rc io.ReadCloser
	var err error
	switch l.compression {
	case cNone:
		return src, nil
	case cLZW:
		rc = lzw.NewReader(bytes.NewReader(src), lzw.MSB, 8)
	case cDeflate, cDeflateOld:
		rc, err = zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, i, err)
		}
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, i, err)
	}
	return b, nil
}

func (l *layout) sample(r *Reader, b []byte) uint64 {
	switch l.bits {
	case 8:
		return uint64(b[0])
	case 16:
		return uint64(r.bo.Uint16(b))
	case 32:
		return uint64(r.bo.Uint32(b))
	default:
		return r.bo.Uint64(b)
	}
}

func (l *layout) value(u uint64) float64 {
	switch l.format {
	case sfFloat:
		if l.bits == 32 {
			return float64(math.Float32frombits(uint32(u)))
		}
		return math.Float64frombits(u)
	case sfInt:
		switch l.bits {
		case 8:
			return float64(int8(u))
		case 16:
			return float64(int16(u))
		case 32:
			return float64(int32(u))
		default:
			return float64(int64(u))
		}
	default:
		return float64(u)
	}
}

// fallback decodes the image with the x/image TIFF decoder, returning one
// band for gray and paletted images and red, green and blue bands otherwise.
func (r *Reader) fallback() ([][]float64, error) {
	img, err := tiff.Decode(bytes.NewReader(r.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch im := img.(type) {
	case *image.Gray:
		out := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return [][]float64{out}, nil
	case *image.Gray16:
		out := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return [][]float64{out}, nil
	case *image.Paletted:
		out := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(im.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return [][]float64{out}, nil
	}
	out := [][]float64{make([]float64, w*h), make([]float64, w*h), make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out[0][y*w+x] = float64(c.R)
			out[1][y*w+x] = float64(c.G)
			out[2][y*w+x] = float64(c.B)
		}
	}
	return out, nil
}
