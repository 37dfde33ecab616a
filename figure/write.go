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


package figure

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// Write saves the rendered figure. The format is chosen from the file
// extension: .png, .jpg, .jpeg, .tif or .tiff. Other extensions fail
// with ErrWriteError.
func (f *Figure) Write(path string) error {
	if f.state != Rendered && f.state != Written {
		return fmt.Errorf("%w: cannot write a %s figure", ErrState, f.state)
	}
	if err := writeImage(path, f.img); err != nil {
		return err
	}
	f.Log.WithField("path", path).Info("wrote figure")
	f.state = Written
	return nil
}

func writeImage(path string, img image.Image) error {
	enc, err := encoder(path)
	if err != nil {
		return err
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteError, err)
	}
	if err := enc(w, img); err != nil {
		w.Close()
		return fmt.Errorf("%w: %s: %v", ErrWriteError, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteError, err)
	}
	return nil
}

func encoder(path string) (func(io.Writer, image.Image) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
		}, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}, nil
	}
	return nil, fmt.Errorf("%w: unsupported image type %q", ErrWriteError, filepath.Ext(path))
}
