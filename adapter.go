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
	"io"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/nansat/domain"
)

// BandReader returns the raw [rows, cols] values of a band.
type BandReader func() (*sparse.DenseArray, error)

// SourceBand is a band that an adapter found in a file.
// Values are only read when Read is called.
type SourceBand struct {
	Metadata Metadata
	Read     BandReader
}

// Source is the result of parsing a file with an adapter.
type Source struct {
	Domain   *domain.Domain
	Metadata Metadata
	Bands    []SourceBand

	// Closer, if not nil, releases the resources held by the band readers.
	Closer io.Closer
}

// An Adapter reads one family of file formats.
type Adapter interface {
	// Name identifies the adapter.
	Name() string

	// Probe reports whether the adapter claims the file at path,
	// typically from its extension or leading bytes.
	Probe(path string) bool

	// Parse reads the georeferencing and metadata of the file and
	// prepares its bands for reading. If Parse returns an error it must
	// not hold any open resources unless they are released by the
	// Closer of a non-nil Source.
	Parse(path string) (*Source, error)
}

type adapterEntry struct {
	a        Adapter
	priority int
	seq      int
}

// Registry holds an ordered set of adapters. Adapters with lower
// priority values are tried first. A Registry becomes frozen the first
// time it is used to open a file.
type Registry struct {
	mu      sync.Mutex
	entries []adapterEntry
	frozen  bool
	seq     int
}

// DefaultRegistry is used by Open unless another registry is given.
var DefaultRegistry = new(Registry)

// Register adds an adapter with the given priority. Registering an
// adapter with an existing name replaces it.
func (r *Registry) Register(a Adapter, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: registering %s", ErrRegistryFrozen, a.Name())
	}
	for i, e := range r.entries {
		if e.a.Name() == a.Name() {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.seq++
	r.entries = append(r.entries, adapterEntry{a: a, priority: priority, seq: r.seq})
	r.sort()
	return nil
}

func (r *Registry) sort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority < r.entries[j].priority
		}
		return r.entries[i].seq < r.entries[j].seq
	})
}

// SetOrder moves the named adapters to the front, in the given order.
// Adapters that are not named keep their relative order after them.
func (r *Registry) SetOrder(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: reordering adapters", ErrRegistryFrozen)
	}
	rank := make(map[string]int, len(names))
	for i, n := range names {
		rank[n] = i
	}
	for _, n := range names {
		if r.find(n) == nil {
			return fmt.Errorf("nansat: unknown adapter %q", n)
		}
	}
	sort.SliceStable(r.entries, func(i, j int) bool {
		ri, iok := rank[r.entries[i].a.Name()]
		rj, jok := rank[r.entries[j].a.Name()]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return false
	})
	for i := range r.entries {
		r.entries[i].priority = i
	}
	return nil
}

func (r *Registry) find(name string) Adapter {
	for _, e := range r.entries {
		if e.a.Name() == name {
			return e.a
		}
	}
	return nil
}

// Names returns the adapter names in the order they are tried.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.a.Name()
	}
	return names
}

// Frozen reports whether the registry can still be changed.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// freeze returns the adapters in the order they should be tried, with
// the named adapter, if any, first. It freezes the registry.
func (r *Registry) freeze(first string) ([]Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	out := make([]Adapter, 0, len(r.entries))
	if first != "" {
		a := r.find(first)
		if a == nil {
			return nil, fmt.Errorf("%w: unknown adapter %q", ErrUnsupportedFormat, first)
		}
		out = append(out, a)
	}
	for _, e := range r.entries {
		if e.a.Name() != first {
			out = append(out, e.a)
		}
	}
	return out, nil
}

// RegisterAdapter adds an adapter to the default registry.
func RegisterAdapter(a Adapter, priority int) error {
	return DefaultRegistry.Register(a, priority)
}

// SetAdapterOrder reorders the adapters of the default registry.
func SetAdapterOrder(names ...string) error {
	return DefaultRegistry.SetOrder(names...)
}

// Adapters returns the names of the adapters in the default registry
// in the order they are tried.
func Adapters() []string { return DefaultRegistry.Names() }
