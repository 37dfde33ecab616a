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
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

type gdalMetadata struct {
	XMLName xml.Name   `xml:"GDALMetadata"`
	Items   []gdalItem `xml:"Item"`
}

type gdalItem struct {
	Name   string `xml:"name,attr"`
	Sample string `xml:"sample,attr,omitempty"`
	Role   string `xml:"role,attr,omitempty"`
	Value  string `xml:",chardata"`
}

func parseGDALMetadata(s string, nBands int) (map[string]string, []map[string]string, error) {
	meta := make(map[string]string)
	bands := make([]map[string]string, nBands)
	for i := range bands {
		bands[i] = make(map[string]string)
	}
	if s == "" {
		return meta, bands, nil
	}
	var m gdalMetadata
	if err := xml.Unmarshal([]byte(s), &m); err != nil {
		return nil, nil, fmt.Errorf("%w: GDAL metadata: %v", ErrCorrupt, err)
	}
	for _, it := range m.Items {
		switch it.Role {
		case "":
		case "scale":
			it.Name = "scale_factor"
		case "offset":
			it.Name = "add_offset"
		default:
			continue
		}
		if it.Sample == "" {
			meta[it.Name] = it.Value
			continue
		}
		i, err := strconv.Atoi(it.Sample)
		if err != nil || i < 0 || i >= nBands {
			continue
		}
		bands[i][it.Name] = it.Value
	}
	return meta, bands, nil
}

func formatGDALMetadata(meta map[string]string, bands []map[string]string) (string, error) {
	var m gdalMetadata
	for _, k := range sortedKeys(meta) {
		m.Items = append(m.Items, gdalItem{Name: k, Value: meta[k]})
	}
	for i, bm := range bands {
		for _, k := range sortedKeys(bm) {
			m.Items = append(m.Items, gdalItem{Name: k, Sample: strconv.Itoa(i), Value: bm[k]})
		}
	}
	if len(m.Items) == 0 {
		return "", nil
	}
	b, err := xml.Marshal(m)
	return string(b), err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type wEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

type entryBuilder struct {
	bo      binary.ByteOrder
	entries []wEntry
}

func (b *entryBuilder) shorts(tag uint16, v ...uint16) {
	d := make([]byte, 2*len(v))
	for i, x := range v {
		b.bo.PutUint16(d[2*i:], x)
	}
	b.entries = append(b.entries, wEntry{tag, dtShort, uint32(len(v)), d})
}

func (b *entryBuilder) longs(tag uint16, v ...uint32) {
	d := make([]byte, 4*len(v))
	for i, x := range v {
		b.bo.PutUint32(d[4*i:], x)
	}
	b.entries = append(b.entries, wEntry{tag, dtLong, uint32(len(v)), d})
}

func (b *entryBuilder) doubles(tag uint16, v ...float64) {
	d := make([]byte, 8*len(v))
	for i, x := range v {
		b.bo.PutUint64(d[8*i:], math.Float64bits(x))
	}
	b.entries = append(b.entries, wEntry{tag, dtDouble, uint32(len(v)), d})
}

func (b *entryBuilder) ascii(tag uint16, s string) {
	d := append([]byte(s), 0)
	b.entries = append(b.entries, wEntry{tag, dtASCII, uint32(len(d)), d})
}

// geoKeyDirectory returns the GeoKey directory and ASCII parameters for img.
func geoKeyDirectory(img *Image) ([]uint16, string) {
	if img.EPSG == 0 && img.Citation == "" {
		return nil, ""
	}
	type key struct{ id, loc, count, val uint16 }
	var keys []key
	var ascii string
	model := uint16(modelProjected)
	if img.Geographic {
		model = modelGeographic
	}
	keys = append(keys, key{kGTModelType, 0, 1, model}, key{kGTRasterType, 0, 1, rasterPixelIsArea})
	if img.Citation != "" {
		ascii = img.Citation + "|"
		keys = append(keys, key{kGTCitation, tGeoASCIIParams, uint16(len(ascii)), 0})
	}
	code := uint16(userDefined)
	if img.EPSG > 0 && img.EPSG < userDefined {
		code = uint16(img.EPSG)
	}
	if img.Geographic {
		keys = append(keys, key{kGeographicType, 0, 1, code})
	} else {
		keys = append(keys, key{kProjectedCSType, 0, 1, code})
	}
	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k.id, k.loc, k.count, k.val)
	}
	return dir, ascii
}

// Encode writes img as a little-endian, uncompressed, pixel-interleaved
// float32 GeoTIFF, or as an 8-bit color-mapped GeoTIFF if img has a
// palette.
func Encode(w io.Writer, img *Image) error {
	spp := len(img.Bands)
	if spp == 0 {
		return fmt.Errorf("geotiff: no bands to write")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("geotiff: invalid image size %dx%d", img.Width, img.Height)
	}
	n := img.Width * img.Height
	for i, b := range img.Bands {
		if len(b) != n {
			return fmt.Errorf("geotiff: band %d has %d values, want %d", i, len(b), n)
		}
	}
	paletted := img.Palette != nil
	if paletted && (spp != 1 || len(img.Palette) > 256) {
		return fmt.Errorf("geotiff: a color-mapped image needs one band and at most 256 colors")
	}
	bo := binary.LittleEndian
	sampleSize := 4
	if paletted {
		sampleSize = 1
	}
	pixBytes := uint32(n * spp * sampleSize)

	eb := &entryBuilder{bo: bo}
	eb.longs(tImageWidth, uint32(img.Width))
	eb.longs(tImageLength, uint32(img.Height))
	bits := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bits {
		bits[i], formats[i] = 32, sfFloat
	}
	photometric := uint16(1)
	if paletted {
		bits[0], formats[0] = 8, sfUint
		photometric = 3
		cm := make([]uint16, 3*256)
		for i, c := range img.Palette {
			r, g, b, _ := c.RGBA()
			cm[i], cm[256+i], cm[512+i] = uint16(r), uint16(g), uint16(b)
		}
		eb.shorts(tColorMap, cm...)
	}
	eb.shorts(tBitsPerSample, bits...)
	eb.shorts(tCompression, cNone)
	eb.shorts(tPhotometricInterpretation, photometric)
	eb.longs(tStripOffsets, 0)
	eb.shorts(tSamplesPerPixel, uint16(spp))
	eb.longs(tRowsPerStrip, uint32(img.Height))
	eb.longs(tStripByteCounts, pixBytes)
	eb.shorts(tPlanarConfiguration, 1)
	if spp > 1 {
		eb.shorts(tExtraSamples, make([]uint16, spp-1)...)
	}
	eb.shorts(tSampleFormat, formats...)
	if img.HasGeoTransform {
		gt := img.GeoTransform
		if gt[2] == 0 && gt[4] == 0 {
			eb.doubles(tModelPixelScale, gt[1], -gt[5], 0)
			eb.doubles(tModelTiepoint, 0, 0, 0, gt[0], gt[3], 0)
		} else {
			eb.doubles(tModelTransformation,
				gt[1], gt[2], 0, gt[0],
				gt[4], gt[5], 0, gt[3],
				0, 0, 0, 0,
				0, 0, 0, 1)
		}
	}
	if dir, ascii := geoKeyDirectory(img); dir != nil {
		eb.shorts(tGeoKeyDirectory, dir...)
		if ascii != "" {
			eb.ascii(tGeoASCIIParams, ascii)
		}
	}
	md, err := formatGDALMetadata(img.Metadata, img.BandMetadata)
	if err != nil {
		return fmt.Errorf("geotiff: encoding metadata: %v", err)
	}
	if md != "" {
		eb.ascii(tGDALMetadata, md)
	}
	if img.HasNoData {
		eb.ascii(tGDALNoData, strconv.FormatFloat(img.NoData, 'g', -1, 64))
	}
	entries := eb.entries
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Layout: header, IFD, out-of-line values, pixel data.
	ifdSize := uint32(2 + 12*len(entries) + 4)
	extraOff := 8 + ifdSize
	var extra bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = extraOff + uint32(extra.Len())
			extra.Write(e.data)
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
		}
	}
	pixOff := extraOff + uint32(extra.Len())
	for i := range entries {
		if entries[i].tag == tStripOffsets {
			bo.PutUint32(entries[i].data, pixOff)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, uint32(8))
	binary.Write(&buf, bo, uint16(len(entries)))
	for i, e := range entries {
		binary.Write(&buf, bo, e.tag)
		binary.Write(&buf, bo, e.typ)
		binary.Write(&buf, bo, e.count)
		var v [4]byte
		if len(e.data) > 4 {
			bo.PutUint32(v[:], offsets[i])
		} else {
			copy(v[:], e.data)
		}
		buf.Write(v[:])
	}
	binary.Write(&buf, bo, uint32(0))
	buf.Write(extra.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}

	pix := make([]byte, pixBytes)
	if paletted {
		for p, v := range img.Bands[0] {
			switch {
			case math.IsNaN(v) || v <= 0:
			case v >= 255:
				pix[p] = 255
			default:
				pix[p] = byte(math.Round(v))
			}
		}
		_, err = w.Write(pix)
		return err
	}
	for p := 0; p < n; p++ {
		for s := 0; s < spp; s++ {
			bo.PutUint32(pix[(p*spp+s)*4:], math.Float32bits(float32(img.Bands[s][p])))
		}
	}
	_, err = w.Write(pix)
	return err
}

// WriteFile encodes img to the file at path.
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
