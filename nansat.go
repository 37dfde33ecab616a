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
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/golang/groupcache/lru"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat/cloud"
	"github.com/spatialmodel/nansat/domain"
)

// Nansat holds the bands, domain and metadata of a raster product.
// A Nansat is not safe for concurrent use.
type Nansat struct {
	// Log receives progress and diagnostic messages.
	Log logrus.FieldLogger

	path    string
	adapter string
	domain  *domain.Domain
	meta    Metadata
	bands   []*bandEntry
	closer  io.Closer
	cleanup func()
	cache   *lru.Cache
}

// bandEntry holds either band values in memory or a reader for them.
type bandEntry struct {
	meta Metadata
	read BandReader
	data *sparse.DenseArray
}

type options struct {
	log       logrus.FieldLogger
	adapter   string
	cacheSize int
	registry  *Registry
	ctx       context.Context
}

// Option configures Open and New.
type Option func(*options)

// WithAdapter makes Open try the named adapter first, without probing.
func WithAdapter(name string) Option { return func(o *options) { o.adapter = name } }

// WithLogger sets the logger of the returned Nansat.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// WithCacheSize sets the number of decoded bands that are kept in memory.
// A size of zero disables caching.
func WithCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// WithRegistry makes Open use r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option { return func(o *options) { o.registry = r } }

// WithContext sets the context used to fetch remote files.
func WithContext(ctx context.Context) Option { return func(o *options) { o.ctx = ctx } }

func newOptions(opts []Option) *options {
	o := &options{
		log:       logrus.StandardLogger(),
		cacheSize: 8,
		registry:  DefaultRegistry,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) newNansat(d *domain.Domain) *Nansat {
	n := &Nansat{Log: o.log, domain: d, meta: make(Metadata), cleanup: func() {}}
	if o.cacheSize > 0 {
		n.cache = lru.New(o.cacheSize)
	}
	return n
}

// New returns a Nansat without bands on the given domain.
func New(d *domain.Domain, opts ...Option) (*Nansat, error) {
	if d == nil {
		return nil, fmt.Errorf("nansat: nil domain")
	}
	return newOptions(opts).newNansat(d), nil
}

// Open reads the file at path with the first adapter that claims and
// parses it. Remote paths (gs://, s3://, file://, http(s)://) are
// downloaded first. The returned Nansat must be closed.
func Open(path string, opts ...Option) (*Nansat, error) {
	o := newOptions(opts)
	log := o.log.WithField("path", path)

	adapters, err := o.registry.freeze(o.adapter)
	if err != nil {
		return nil, err
	}
	local, cleanup, err := cloud.Fetch(o.ctx, path)
	if err != nil {
		return nil, fmt.Errorf("nansat: opening %s: %w", path, err)
	}

	var parseErrs []error
	for i, a := range adapters {
		forced := i == 0 && o.adapter != ""
		if !forced && !a.Probe(local) {
			continue
		}
		log.WithField("adapter", a.Name()).Debug("parsing")
		src, err := a.Parse(local)
		if err == nil && src.Domain == nil {
			err = fmt.Errorf("no domain")
		}
		if err != nil {
			if src != nil && src.Closer != nil {
				src.Closer.Close()
			}
			log.WithFields(logrus.Fields{"adapter": a.Name(), "error": err}).Debug("adapter failed")
			parseErrs = append(parseErrs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		n := o.newNansat(src.Domain)
		n.path = path
		n.adapter = a.Name()
		n.closer = src.Closer
		n.cleanup = cleanup
		if src.Metadata != nil {
			n.meta = src.Metadata.Copy()
		}
		for _, b := range src.Bands {
			meta := b.Metadata.Copy()
			if meta == nil {
				meta = make(Metadata)
			}
			n.bands = append(n.bands, &bandEntry{meta: meta, read: b.Read})
		}
		log.WithFields(logrus.Fields{"adapter": a.Name(), "bands": len(n.bands)}).Info("opened")
		return n, nil
	}
	cleanup()
	if len(parseErrs) == 0 {
		return nil, fmt.Errorf("nansat: opening %s: %w", path, ErrUnsupportedFormat)
	}
	return nil, fmt.Errorf("nansat: opening %s: %w: %w", path, ErrCorruptFile, errors.Join(parseErrs...))
}

// Close releases the file handles and temporary files of n.
func (n *Nansat) Close() error {
	var err error
	if n.closer != nil {
		err = n.closer.Close()
		n.closer = nil
	}
	if n.cleanup != nil {
		n.cleanup()
		n.cleanup = nil
	}
	if n.cache != nil {
		n.cache.Clear()
	}
	return err
}

// Path returns the path the product was opened from.
func (n *Nansat) Path() string { return n.path }

// AdapterName returns the name of the adapter that read the product.
func (n *Nansat) AdapterName() string { return n.adapter }

// Domain returns the grid of the product.
func (n *Nansat) Domain() *domain.Domain { return n.domain }

// BandCount returns the number of bands.
func (n *Nansat) BandCount() int { return len(n.bands) }

func (n *Nansat) entry(i int) (*bandEntry, error) {
	if i < 1 || i > len(n.bands) {
		return nil, fmt.Errorf("%w: band %d of %d", ErrBandNotFound, i, len(n.bands))
	}
	return n.bands[i-1], nil
}

// Band returns band i, where the first band is 1. Values are decoded,
// scaled, and cached on first access.
func (n *Nansat) Band(i int) (*Band, error) {
	e, err := n.entry(i)
	if err != nil {
		return nil, err
	}
	if e.data != nil {
		return NewBand(e.data, e.meta.Copy()), nil
	}
	if n.cache != nil {
		if b, ok := n.cache.Get(i); ok {
			return b.(*Band), nil
		}
	}
	raw, err := e.read()
	if err != nil {
		return nil, fmt.Errorf("nansat: reading band %d of %s: %w", i, n.path, err)
	}
	rows, cols := n.domain.Shape()
	if len(raw.Shape) != 2 || raw.Shape[0] != rows || raw.Shape[1] != cols {
		return nil, fmt.Errorf("nansat: band %d of %s has shape %v, want [%d %d]", i, n.path, raw.Shape, rows, cols)
	}
	meta := e.meta.Copy()
	if err := applyScaling(raw, meta); err != nil {
		return nil, fmt.Errorf("nansat: band %d of %s: %w", i, n.path, err)
	}
	b := NewBand(raw, meta)
	n.Log.WithFields(logrus.Fields{"band": i, "name": b.Name()}).Debug("decoded band")
	if n.cache != nil {
		n.cache.Add(i, b)
	}
	return b, nil
}

// BandNumber returns the number of the band with the given name.
func (n *Nansat) BandNumber(name string) (int, error) {
	for i, e := range n.bands {
		if e.meta[NameKey] == name {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBandNotFound, name)
}

// BandByName returns the band with the given name.
func (n *Nansat) BandByName(name string) (*Band, error) {
	i, err := n.BandNumber(name)
	if err != nil {
		return nil, err
	}
	return n.Band(i)
}

// Bands returns the metadata of every band, in band order.
func (n *Nansat) Bands() []Metadata {
	out := make([]Metadata, len(n.bands))
	for i, e := range n.bands {
		out[i] = e.meta.Copy()
	}
	return out
}

// Metadata returns a copy of the product metadata.
func (n *Nansat) Metadata() Metadata { return n.meta.Copy() }

// MetadataValue returns the product metadata value for key.
func (n *Nansat) MetadataValue(key string) (string, error) { return n.meta.Get(key) }

// BandMetadata returns a copy of the metadata of band i.
func (n *Nansat) BandMetadata(i int) (Metadata, error) {
	e, err := n.entry(i)
	if err != nil {
		return nil, err
	}
	return e.meta.Copy(), nil
}

// SetMetadata sets a product metadata value.
func (n *Nansat) SetMetadata(key, value string) { n.meta.Set(key, value) }

// SetBandMetadata sets a metadata value of band i.
func (n *Nansat) SetBandMetadata(i int, key, value string) error {
	e, err := n.entry(i)
	if err != nil {
		return err
	}
	e.meta.Set(key, value)
	if n.cache != nil {
		n.cache.Remove(i)
	}
	return nil
}

// Time returns the time of band i, falling back to the product time.
func (n *Nansat) Time(i int) (time.Time, error) {
	e, err := n.entry(i)
	if err != nil {
		return time.Time{}, err
	}
	if t, err := e.meta.Time(TimeKey); err == nil {
		return t, nil
	}
	for _, k := range []string{TimeKey, "time_coverage_start", "start_time"} {
		t, err := n.meta.Time(k)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return time.Time{}, err
		}
	}
	return time.Time{}, fmt.Errorf("%w: time of band %d", ErrKeyNotFound, i)
}

// AddBand appends a band and returns its number. Arrays whose shape
// differs from the domain are resized bilinearly.
func (n *Nansat) AddBand(data *sparse.DenseArray, meta Metadata) (int, error) {
	if len(data.Shape) != 2 {
		return 0, fmt.Errorf("nansat: AddBand: array must be 2-D, have shape %v", data.Shape)
	}
	rows, cols := n.domain.Shape()
	arr := data.Copy()
	if data.Shape[0] != rows || data.Shape[1] != cols {
		arr = resizeBilinear(arr, rows, cols, NewBand(arr, meta))
	}
	if meta == nil {
		meta = make(Metadata)
	} else {
		meta = meta.Copy()
	}
	if meta[NameKey] == "" {
		meta[NameKey] = fmt.Sprintf("band_%d", len(n.bands)+1)
	}
	n.bands = append(n.bands, &bandEntry{meta: meta, data: arr})
	return len(n.bands), nil
}

// ListBands returns a human-readable list of the bands and their metadata.
func (n *Nansat) ListBands() string {
	var b strings.Builder
	for i, e := range n.bands {
		fmt.Fprintf(&b, "Band : %d %s\n", i+1, e.meta[NameKey])
		for _, k := range e.meta.Keys() {
			fmt.Fprintf(&b, "  %s: %s\n", k, e.meta[k])
		}
	}
	return b.String()
}

func (n *Nansat) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", n.path)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 40))
	b.WriteString(n.ListBands())
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 40))
	b.WriteString(n.domain.String())
	return b.String()
}

// newDerived returns an empty Nansat that shares the logger and
// metadata of n.
func (n *Nansat) newDerived(d *domain.Domain) *Nansat {
	o := &Nansat{Log: n.Log, domain: d, meta: n.meta.Copy(), path: n.path, adapter: n.adapter, cleanup: func() {}}
	if n.cache != nil {
		o.cache = lru.New(n.cache.MaxEntries)
	}
	return o
}

func nanArray(rows, cols int) *sparse.DenseArray {
	a := sparse.ZerosDense(rows, cols)
	for i := range a.Elements {
		a.Elements[i] = math.NaN()
	}
	return a
}
