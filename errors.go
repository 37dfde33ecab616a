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


// Package nansat provides access to gridded satellite products. A Nansat
// value holds the bands of one product together with its Domain and
// metadata. Products are read through an ordered chain of format adapters,
// can be reprojected onto other domains, exported, and rendered to images.
package nansat

import (
	"errors"

	"github.com/spatialmodel/nansat/domain"
	"github.com/spatialmodel/nansat/figure"
	"github.com/spatialmodel/nansat/spatialref"
)

// Version gives the version number.
const Version = "1.0.0"

var (
	// ErrUnsupportedFormat is returned when no adapter claims a file.
	ErrUnsupportedFormat = errors.New("nansat: unsupported format")

	// ErrCorruptFile is returned when an adapter claims a file but cannot
	// parse it, and no other adapter can either.
	ErrCorruptFile = errors.New("nansat: corrupt file")

	// ErrBandNotFound is returned for band numbers or names that do not exist.
	ErrBandNotFound = errors.New("nansat: band not found")

	// ErrKeyNotFound is returned for missing metadata keys.
	ErrKeyNotFound = errors.New("nansat: metadata key not found")

	// ErrWriteError is returned when output cannot be written.
	ErrWriteError = figure.ErrWriteError

	// ErrRegistryFrozen is returned when adapters are registered or
	// reordered after the first file has been opened.
	ErrRegistryFrozen = errors.New("nansat: adapter registry is frozen")

	// ErrInvalidCRS is returned for unparseable or unsupported
	// coordinate reference systems.
	ErrInvalidCRS = spatialref.ErrInvalidCRS

	// ErrDegenerateDomain is returned for domains without area.
	ErrDegenerateDomain = domain.ErrDegenerateDomain
)
