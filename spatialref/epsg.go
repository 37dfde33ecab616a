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


package spatialref

import (
	"fmt"
	"sync"
)

const webMapProj = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// fixedEPSG holds the EPSG codes that are not part of a numbered zone series.
var fixedEPSG = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4269: "+proj=longlat +datum=NAD83 +no_defs",
	4258: "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	3857: webMapProj,
	3395: "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
}

// epsgDef returns the proj4 definition of an EPSG code.
func epsgDef(code int) (string, bool) {
	if def, ok := fixedEPSG[code]; ok {
		return def, true
	}
	switch {
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), true
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), true
	case code >= 26901 && code <= 26923:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=NAD83 +units=m +no_defs", code-26900), true
	}
	return "", false
}

// SupportedEPSG returns all EPSG codes that FromEPSG accepts.
func SupportedEPSG() []int {
	var codes []int
	for _, r := range [][2]int{{3395, 3395}, {3857, 3857}, {4258, 4258}, {4269, 4269},
		{4326, 4326}, {5070, 5070}, {26901, 26923}, {32601, 32660}, {32701, 32760}} {
		for c := r[0]; c <= r[1]; c++ {
			codes = append(codes, c)
		}
	}
	return codes
}

var (
	reverseOnce sync.Once
	reverseEPSG map[string]int
)

// lookupEPSG returns the EPSG code whose table definition normalizes to def.
func lookupEPSG(def string) int {
	reverseOnce.Do(func() {
		reverseEPSG = make(map[string]int)
		for _, c := range SupportedEPSG() {
			d, _ := epsgDef(c)
			reverseEPSG[normalizeProj4(d)] = c
		}
	})
	return reverseEPSG[def]
}

// WGS84 returns the geographic WGS 84 spatial reference (EPSG:4326).
func WGS84() *SR {
	sr, err := FromEPSG(4326)
	if err != nil {
		panic(err)
	}
	return sr
}
