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


// Package geotiff reads and writes the subset of GeoTIFF used for
// gridded satellite products: strip or tile organized images with
// integer or floating point samples, the model transformation tags,
// the GeoKey directory, and the GDAL metadata and no-data tags.
package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrNotTIFF is returned for data that does not start with a TIFF header.
var ErrNotTIFF = errors.New("geotiff: not a TIFF file")

// ErrCorrupt is returned when tag offsets or pixel data are out of range.
var ErrCorrupt = errors.New("geotiff: corrupt file")

// TIFF tags.
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tPlanarConfiguration       = 284
	tPredictor                 = 317
	tTileWidth                 = 322
	tTileLength                = 323
	tTileOffsets               = 324
	tTileByteCounts            = 325
	tColorMap                  = 320
	tExtraSamples              = 338
	tSampleFormat              = 339
	tModelPixelScale           = 33550
	tModelTiepoint             = 33922
	tModelTransformation       = 34264
	tGeoKeyDirectory           = 34735
	tGeoDoubleParams           = 34736
	tGeoASCIIParams            = 34737
	tGDALMetadata              = 42112
	tGDALNoData                = 42113
)

// GeoKeys.
const (
	kGTModelType       = 1024
	kGTRasterType      = 1025
	kGTCitation        = 1026
	kGeographicType    = 2048
	kGeogCitation      = 2049
	kProjectedCSType   = 3072
	kPCSCitation       = 3073
	userDefined        = 32767
	modelProjected     = 1
	modelGeographic    = 2
	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2
)

// Field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeSize = map[uint16]uint32{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8,
}

// Image holds the georeferencing, metadata and (optionally) the pixel values
// of a GeoTIFF. Band values are stored row-major.
type Image struct {
	Width, Height int
	Bands         [][]float64

	// GeoTransform is in the order [x0, dx, rx, y0, ry, dy].
	GeoTransform    [6]float64
	HasGeoTransform bool

	// EPSG is the EPSG code of the spatial reference, or 0 if it is user defined.
	EPSG       int
	Geographic bool
	Citation   string

	NoData    float64
	HasNoData bool

	Metadata     map[string]string
	BandMetadata []map[string]string

	// Palette, if not nil, makes a single band 8-bit color-mapped image
	// whose values are indices into the palette.
	Palette color.Palette
}

type entry struct {
	typ   uint16
	count uint32
	raw   []byte
}

// Reader decodes a TIFF file held in memory.
type Reader struct {
	data []byte
	bo   binary.ByteOrder
	ifd  map[uint16]entry
}

// IsTIFF reports whether header starts with a classic TIFF signature.
func IsTIFF(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	s := string(header[:4])
	return s == "II*\x00" || s == "MM\x00*"
}

// NewReader parses the TIFF header and the first image file directory.
func NewReader(data []byte) (*Reader, error) {
	if !IsTIFF(data) {
		return nil, ErrNotTIFF
	}
	r := &Reader{data: data, ifd: make(map[uint16]entry)}
	if data[0] == 'I' {
		r.bo = binary.LittleEndian
	} else {
		r.bo = binary.BigEndian
	}
	if len(data) < 8 {
		return nil, ErrCorrupt
	}
	off := r.bo.Uint32(data[4:8])
	if uint64(off)+2 > uint64(len(data)) {
		return nil, fmt.Errorf("%w: IFD offset %d", ErrCorrupt, off)
	}
	n := uint32(r.bo.Uint16(data[off : off+2]))
	if uint64(off)+2+uint64(n)*12 > uint64(len(data)) {
		return nil, fmt.Errorf("%w: IFD with %d entries", ErrCorrupt, n)
	}
	for i := uint32(0); i < n; i++ {
		p := data[off+2+i*12 : off+2+(i+1)*12]
		tag := r.bo.Uint16(p[0:2])
		e := entry{typ: r.bo.Uint16(p[2:4]), count: r.bo.Uint32(p[4:8])}
		size, ok := typeSize[e.typ]
		if !ok {
			continue
		}
		nb := uint64(size) * uint64(e.count)
		if nb <= 4 {
			e.raw = p[8 : 8+nb]
		} else {
			vo := uint64(r.bo.Uint32(p[8:12]))
			if vo+nb > uint64(len(data)) {
				return nil, fmt.Errorf("%w: tag %d out of range", ErrCorrupt, tag)
			}
			e.raw = data[vo : vo+nb]
		}
		r.ifd[tag] = e
	}
	if _, ok := r.ifd[tImageWidth]; !ok {
		return nil, fmt.Errorf("%w: missing image width", ErrCorrupt)
	}
	return r, nil
}

// ReadFile reads and fully decodes the GeoTIFF at path.
func ReadFile(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Decode fully decodes a GeoTIFF held in memory.
func Decode(data []byte) (*Image, error) {
	r, err := NewReader(data)
	if err != nil {
		return nil, err
	}
	img, err := r.Info()
	if err != nil {
		return nil, err
	}
	img.Bands, err = r.Bands()
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Reader) ints(tag uint16) []uint64 {
	e, ok := r.ifd[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case dtByte, dtUndefined:
			out[i] = uint64(e.raw[i])
		case dtShort:
			out[i] = uint64(r.bo.Uint16(e.raw[2*i:]))
		case dtLong:
			out[i] = uint64(r.bo.Uint32(e.raw[4*i:]))
		default:
			return nil
		}
	}
	return out
}

func (r *Reader) int(tag uint16, def uint64) uint64 {
	v := r.ints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

func (r *Reader) floats(tag uint16) []float64 {
	e, ok := r.ifd[tag]
	if !ok {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		switch e.typ {
		case dtDouble:
			out[i] = math.Float64frombits(r.bo.Uint64(e.raw[8*i:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(r.bo.Uint32(e.raw[4*i:])))
		case dtRational:
			out[i] = float64(r.bo.Uint32(e.raw[8*i:])) / float64(r.bo.Uint32(e.raw[8*i+4:]))
		case dtShort:
			out[i] = float64(r.bo.Uint16(e.raw[2*i:]))
		case dtLong:
			out[i] = float64(r.bo.Uint32(e.raw[4*i:]))
		default:
			return nil
		}
	}
	return out
}

func (r *Reader) ascii(tag uint16) string {
	e, ok := r.ifd[tag]
	if !ok || e.typ != dtASCII {
		return ""
	}
	return strings.TrimRight(string(e.raw), "\x00")
}

// Info returns the size, georeferencing and metadata of the image
// without decoding the pixel values.
func (r *Reader) Info() (*Image, error) {
	img := &Image{
		Width:  int(r.int(tImageWidth, 0)),
		Height: int(r.int(tImageLength, 0)),
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrCorrupt, img.Width, img.Height)
	}
	keys := r.geoKeys()
	pixelIsPoint := keys[kGTRasterType].value == rasterPixelIsPoint

	if m := r.floats(tModelTransformation); len(m) >= 16 {
		img.GeoTransform = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
		img.HasGeoTransform = true
	} else if s, tp := r.floats(tModelPixelScale), r.floats(tModelTiepoint); len(s) >= 2 && len(tp) >= 6 {
		img.GeoTransform = [6]float64{
			tp[3] - tp[0]*s[0], s[0], 0,
			tp[4] + tp[1]*s[1], 0, -s[1],
		}
		img.HasGeoTransform = true
	}
	if img.HasGeoTransform && pixelIsPoint {
		gt := &img.GeoTransform
		gt[0] -= 0.5*gt[1] + 0.5*gt[2]
		gt[3] -= 0.5*gt[4] + 0.5*gt[5]
	}

	img.Geographic = keys[kGTModelType].value == modelGeographic
	if img.Geographic {
		if c := keys[kGeographicType].value; c > 0 && c != userDefined {
			img.EPSG = int(c)
		}
	} else if c := keys[kProjectedCSType].value; c > 0 && c != userDefined {
		img.EPSG = int(c)
	}
	for _, k := range []uint16{kGTCitation, kPCSCitation, kGeogCitation} {
		if s := keys[k].text; s != "" {
			img.Citation = s
			break
		}
	}

	if nd := strings.TrimSpace(r.ascii(tGDALNoData)); nd != "" {
		v, err := strconv.ParseFloat(nd, 64)
		if err == nil {
			img.NoData, img.HasNoData = v, true
		}
	}
	if cm := r.ints(tColorMap); len(cm) > 0 && len(cm)%3 == 0 {
		k := len(cm) / 3
		img.Palette = make(color.Palette, k)
		for i := range img.Palette {
			img.Palette[i] = color.RGBA64{R: uint16(cm[i]), G: uint16(cm[k+i]), B: uint16(cm[2*k+i]), A: 0xffff}
		}
	}
	var err error
	img.Metadata, img.BandMetadata, err = parseGDALMetadata(r.ascii(tGDALMetadata), r.samplesPerPixel())
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Reader) samplesPerPixel() int { return int(r.int(tSamplesPerPixel, 1)) }

type geoKey struct {
	value uint64
	text  string
}

func (r *Reader) geoKeys() map[uint16]geoKey {
	out := make(map[uint16]geoKey)
	dir := r.ints(tGeoKeyDirectory)
	if len(dir) < 4 {
		return out
	}
	ascii := r.ascii(tGeoASCIIParams)
	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		e := dir[4+4*i : 8+4*i]
		id, loc, count, val := uint16(e[0]), e[1], e[2], e[3]
		switch loc {
		case 0:
			out[id] = geoKey{value: val}
		case tGeoASCIIParams:
			if val+count <= uint64(len(ascii)) {
				out[id] = geoKey{text: strings.TrimRight(ascii[val:val+count], "|\x00")}
			}
		}
	}
	return out
}
