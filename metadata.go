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


package nansat

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Metadata keys with a special meaning.
const (
	NameKey        = "name"
	FillValueKey   = "_FillValue"
	CategoricalKey = "categorical"
	ExpressionKey  = "expression"
	TimeKey        = "time"
	MinMaxKey      = "minmax"
	ColormapKey    = "colormap"
	UnitsKey       = "units"
	LongNameKey    = "long_name"
)

// Metadata holds string key-value pairs describing a product or a band.
type Metadata map[string]string

// Get returns the value of key.
func (m Metadata) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

// Float returns the value of key as a float.
func (m Metadata) Float(key string) (float64, error) {
	v, err := m.Get(key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("nansat: metadata %s: %v", key, err)
	}
	return f, nil
}

// Floats returns the value of key as a list of floats separated by
// spaces or commas.
func (m Metadata) Floats(key string) ([]float64, error) {
	v, err := m.Get(key)
	if err != nil {
		return nil, err
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]float64, len(fields))
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, fmt.Errorf("nansat: metadata %s: %v", key, err)
		}
	}
	return out, nil
}

// Int returns the value of key as an integer.
func (m Metadata) Int(key string) (int, error) {
	v, err := m.Get(key)
	if err != nil {
		return 0, err
	}
	i, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("nansat: metadata %s: %v", key, err)
	}
	return i, nil
}

// Bool returns the value of key as a boolean.
func (m Metadata) Bool(key string) (bool, error) {
	v, err := m.Get(key)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("nansat: metadata %s: %v", key, err)
	}
	return b, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02",
	"2006002",
}

// Time returns the value of key as a time.
func (m Metadata) Time(key string) (time.Time, error) {
	v, err := m.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	v = strings.TrimSpace(v)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("nansat: metadata %s: unrecognized time %q", key, v)
}

// Keys returns the sorted keys.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a copy of m.
func (m Metadata) Copy() Metadata {
	o := make(Metadata, len(m))
	for k, v := range m {
		o[k] = v
	}
	return o
}

// Set sets key to value.
func (m Metadata) Set(key, value string) { m[key] = value }

// SetFloat sets key to the shortest representation of v.
func (m Metadata) SetFloat(key string, v float64) {
	m[key] = strconv.FormatFloat(v, 'g', -1, 64)
}
