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


// Package catalog keeps a SQLite index of raster products and their
// footprints so that products covering an area can be found without
// opening every file.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/nansat"
	"github.com/spatialmodel/nansat/internal/hash"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a product is not in the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// Product is a catalog entry for one file.
type Product struct {
	ID          string `gorm:"primaryKey"`
	Path        string `gorm:"uniqueIndex"`
	Adapter     string
	Fingerprint string
	Width       int
	Height      int
	EPSG        int
	SpatialRef  string

	// Bounding box of the footprint in longitude and latitude.
	MinLon, MinLat, MaxLon, MaxLat float64

	// Footprint is the WKT longitude/latitude border.
	Footprint string
	Time      *time.Time
	Metadata  string

	Bands     []Band `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Band is a catalog entry for one band of a product.
type Band struct {
	ID        string `gorm:"primaryKey"`
	ProductID string `gorm:"index"`
	Number    int
	Name      string
	Units     string
	Metadata  string
}

// Catalog is a product index stored in a SQLite database.
type Catalog struct {
	Log logrus.FieldLogger
	db  *gorm.DB
}

// Open opens or creates the catalog database at dsn.
func Open(dsn string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Product{}, &Band{}); err != nil {
		return nil, fmt.Errorf("catalog: creating tables: %w", err)
	}
	return &Catalog{Log: logrus.StandardLogger(), db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fingerprint identifies the contents of a product. It changes when the
// file, grid or metadata change.
func fingerprint(n *nansat.Nansat) string {
	var key struct {
		Path    string
		Size    int64
		ModTime int64
		Domain  string
		Meta    nansat.Metadata
		Bands   []nansat.Metadata
	}
	key.Path = n.Path()
	if fi, err := os.Stat(n.Path()); err == nil {
		key.Size, key.ModTime = fi.Size(), fi.ModTime().UnixNano()
	}
	key.Domain = n.Domain().String()
	key.Meta = n.Metadata()
	key.Bands = n.Bands()
	return hash.Hash(key)
}

func encodeMetadata(m nansat.Metadata) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := yaml.Marshal(m)
	return string(b), err
}

// DecodeMetadata parses the Metadata field of a Product or Band.
func DecodeMetadata(s string) (nansat.Metadata, error) {
	m := make(nansat.Metadata)
	if s == "" {
		return m, nil
	}
	err := yaml.Unmarshal([]byte(s), &m)
	return m, err
}

// newProduct builds the catalog entry for n.
func newProduct(n *nansat.Nansat) (*Product, error) {
	d := n.Domain()
	border, err := d.LonLatBorder(10)
	if err != nil {
		return nil, err
	}
	wkt, err := d.BorderWKT(10)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMetadata(n.Metadata())
	if err != nil {
		return nil, err
	}
	b := border.Bounds()
	p := &Product{
		ID:          uuid.New().String(),
		Path:        n.Path(),
		Adapter:     n.AdapterName(),
		Fingerprint: fingerprint(n),
		Width:       d.Width(),
		Height:      d.Height(),
		EPSG:        d.SR().EPSG(),
		SpatialRef:  d.SR().String(),
		MinLon:      b.Min.X,
		MinLat:      b.Min.Y,
		MaxLon:      b.Max.X,
		MaxLat:      b.Max.Y,
		Footprint:   wkt,
		Metadata:    meta,
	}
	if n.BandCount() > 0 {
		if t, err := n.Time(1); err == nil {
			p.Time = &t
		}
	}
	for i, bm := range n.Bands() {
		m, err := encodeMetadata(bm)
		if err != nil {
			return nil, err
		}
		p.Bands = append(p.Bands, Band{
			ID:        uuid.New().String(),
			ProductID: p.ID,
			Number:    i + 1,
			Name:      bm[nansat.NameKey],
			Units:     bm[nansat.UnitsKey],
			Metadata:  m,
		})
	}
	return p, nil
}

// Add inserts n into the catalog, replacing any earlier entry with the
// same path. Adding an unchanged product does nothing.
func (c *Catalog) Add(n *nansat.Nansat) (*Product, error) {
	if n.Path() == "" {
		return nil, fmt.Errorf("catalog: product has no path")
	}
	p, err := newProduct(n)
	if err != nil {
		return nil, fmt.Errorf("catalog: adding %s: %w", n.Path(), err)
	}
	log := c.Log.WithField("path", n.Path())
	old, err := c.Get(n.Path())
	switch {
	case err == nil && old.Fingerprint == p.Fingerprint:
		log.Debug("product unchanged")
		return old, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}
	err = c.db.Transaction(func(tx *gorm.DB) error {
		if old != nil {
			if err := tx.Where("product_id = ?", old.ID).Delete(&Band{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(old).Error; err != nil {
				return err
			}
		}
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: adding %s: %w", n.Path(), err)
	}
	log.WithFields(logrus.Fields{"id": p.ID, "bands": len(p.Bands), "replaced": old != nil}).Info("added product")
	return p, nil
}

// Get returns the entry for path.
func (c *Catalog) Get(path string) (*Product, error) {
	p := new(Product)
	err := c.db.Preload("Bands", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Where("path = ?", path).First(p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return p, nil
}

// Search returns the products whose footprint bounding boxes overlap the
// given longitude/latitude box, ordered by path.
func (c *Catalog) Search(minLon, minLat, maxLon, maxLat float64) ([]Product, error) {
	var out []Product
	err := c.db.Preload("Bands", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Where("max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?",
		minLon, maxLon, minLat, maxLat).Order("path").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return out, nil
}

// Remove deletes the entry for path.
func (c *Catalog) Remove(path string) error {
	p, err := c.Get(path)
	if err != nil {
		return err
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", p.ID).Delete(&Band{}).Error; err != nil {
			return err
		}
		return tx.Delete(p).Error
	})
}
