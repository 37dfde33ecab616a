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

// Package spatialref describes coordinate reference systems and transforms
// points between them.
package spatialref

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ctessum/geom/proj"
)

// ErrInvalidCRS is returned when a coordinate reference system
// definition cannot be parsed or is not supported.
var ErrInvalidCRS = errors.New("spatialref: invalid coordinate reference system")

// SR is an immutable spatial reference. Two SRs are equal when they
// resolve to the same EPSG code, or otherwise when their normalized
// definitions are equal.
type SR struct {
	def  string
	epsg int
	wkt  bool
	p    *proj.SR
}

// FromEPSG returns the spatial reference for the given EPSG code.
// Only the codes listed in the internal table are supported.
func FromEPSG(code int) (*SR, error) {
	def, ok := epsgDef(code)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported EPSG code %d", ErrInvalidCRS, code)
	}
	sr, err := FromProj4(def)
	if err != nil {
		return nil, err
	}
	sr.epsg = code
	return sr, nil
}

// FromWKT parses an OGC well-known-text definition.
func FromWKT(text string) (*SR, error) {
	if !strings.Contains(strings.ToUpper(text), "GEOGCS") &&
		!strings.Contains(strings.ToUpper(text), "PROJCS") {
		return nil, fmt.Errorf("%w: not a WKT definition: %q", ErrInvalidCRS, text)
	}
	norm := normalizeWKT(text)
	p, err := parse(norm)
	if err != nil {
		return nil, err
	}
	return &SR{def: norm, epsg: wktAuthority(norm), wkt: true, p: p}, nil
}

// FromProj4 parses a proj4 definition such as "+proj=longlat +datum=WGS84".
func FromProj4(text string) (*SR, error) {
	if !strings.HasPrefix(strings.TrimSpace(text), "+") {
		return nil, fmt.Errorf("%w: not a proj4 definition: %q", ErrInvalidCRS, text)
	}
	norm := normalizeProj4(text)
	p, err := parse(norm)
	if err != nil {
		return nil, err
	}
	return &SR{def: norm, epsg: lookupEPSG(norm), p: p}, nil
}

// Parse accepts "EPSG:<code>", a WKT definition, or a proj4 definition.
func Parse(def string) (*SR, error) {
	def = strings.TrimSpace(def)
	switch {
	case def == "":
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidCRS)
	case strings.HasPrefix(strings.ToUpper(def), "EPSG:"):
		code, err := strconv.Atoi(strings.TrimSpace(def[5:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCRS, def, err)
		}
		return FromEPSG(code)
	case strings.HasPrefix(def, "+"):
		return FromProj4(def)
	default:
		return FromWKT(def)
	}
}

// parse hands the definition to the projection library and makes sure
// that a transformer exists for it.
func parse(def string) (*proj.SR, error) {
	p, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCRS, err)
	}
	if _, _, err = p.Transformers(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCRS, err)
	}
	return p, nil
}

// Equals reports whether sr and other name the same EPSG code or, when
// either code is unknown, have the same normalized definition.
func (sr *SR) Equals(other *SR) bool {
	if sr == nil || other == nil {
		return sr == other
	}
	if sr.epsg != 0 && other.epsg != 0 {
		return sr.epsg == other.epsg
	}
	return sr.def == other.def
}

// Equivalent reports whether the parsed projection parameters of sr and other
// match, even if their definitions are written differently.
func (sr *SR) Equivalent(other *SR) bool {
	if sr.Equals(other) {
		return true
	}
	if sr == nil || other == nil {
		return false
	}
	return sr.p.Equal(other.p, 3)
}

// NewTransform returns a function that transforms points from sr to target.
func (sr *SR) NewTransform(target *SR) (proj.Transformer, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrInvalidCRS)
	}
	if sr.Equals(target) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	t, err := sr.p.NewTransform(target.p)
	if err != nil {
		return nil, fmt.Errorf("spatialref: creating transform from %s to %s: %v", sr, target, err)
	}
	return t, nil
}

// TransformPoint transforms a single point from sr to target.
func (sr *SR) TransformPoint(target *SR, x, y float64) (float64, float64, error) {
	t, err := sr.NewTransform(target)
	if err != nil {
		return 0, 0, err
	}
	return t(x, y)
}

// String returns the normalized definition.
func (sr *SR) String() string {
	if sr == nil {
		return "<nil>"
	}
	return sr.def
}

// EPSG returns the EPSG code of sr, or 0 if it is not known.
func (sr *SR) EPSG() int { return sr.epsg }

// IsWKT reports whether sr was defined by well-known text.
func (sr *SR) IsWKT() bool { return sr.wkt }

// IsGeographic reports whether the coordinates of sr are longitude and latitude.
func (sr *SR) IsGeographic() bool { return sr.p.Name == "longlat" }

// Proj returns the underlying projection. It must not be modified.
func (sr *SR) Proj() *proj.SR { return sr.p }

// normalizeProj4 sorts the parameters of a proj4 string.
func normalizeProj4(text string) string {
	fields := strings.Fields(text)
	params := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(f, "+")
		if f == "" {
			continue
		}
		params = append(params, "+"+f)
	}
	sort.Strings(params)
	return strings.Join(params, " ")
}

// normalizeWKT removes whitespace and upper-cases keywords outside of
// quoted names.
func normalizeWKT(text string) string {
	var b strings.Builder
	quoted := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r == '"':
			quoted = !quoted
			b.WriteRune(r)
		case quoted:
			b.WriteRune(r)
		case unicode.IsSpace(r):
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// wktAuthority returns the EPSG code of the outermost AUTHORITY
// node of a normalized WKT string.
func wktAuthority(wkt string) int {
	const key = `AUTHORITY["EPSG","`
	depth := 0
	code := 0
	for i := 0; i < len(wkt); i++ {
		switch wkt[i] {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth == 1 && strings.HasPrefix(wkt[i:], ","+key) {
			rest := wkt[i+1+len(key):]
			if end := strings.IndexByte(rest, '"'); end > 0 {
				if c, err := strconv.Atoi(rest[:end]); err == nil {
					code = c
				}
			}
		}
	}
	return code
}
