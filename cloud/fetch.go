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


package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
)

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// IsHTTP returns whether the given filename is an http or https URL.
func IsHTTP(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// IsRemote returns whether the file at path needs to be fetched before
// it can be read.
func IsRemote(path string) bool { return IsBlob(path) || IsHTTP(path) }

// companions returns the given file, the sidecar files that must
// accompany it, and the sidecar files that accompany it if they exist.
func companions(filename string) (required, optional []string) {
	required = []string{filename}
	ext := filepath.Ext(filename)
	base := filename[0 : len(filename)-len(ext)]
	switch strings.ToLower(ext) {
	case ".shp":
		required = append(required, base+".dbf", base+".shx")
		optional = append(optional, base+".prj")
	case ".asc":
		optional = append(optional, base+".prj", filename+".toml")
	case ".png":
		optional = append(optional, base+".pgw", base+".pngw", base+".prj", filename+".toml")
	case ".tif", ".tiff":
		optional = append(optional, base+".prj")
	}
	return required, optional
}

// Fetch makes the file at path available locally. Local paths are
// returned unchanged. Remote files, and their sidecar files, are
// downloaded to a temporary directory that is removed by cleanup.
func Fetch(ctx context.Context, path string) (local string, cleanup func(), err error) {
	cleanup = func() {}
	if !IsRemote(path) {
		return path, cleanup, nil
	}
	dir, err := os.MkdirTemp("", "nansat")
	if err != nil {
		return "", cleanup, fmt.Errorf("cloud: creating temporary download directory: %v", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	var get func(string) (io.ReadCloser, error)
	if IsHTTP(path) {
		get = getHTTP
	} else {
		loc, err := parseBlob(path)
		if err != nil {
			cleanup()
			return "", func() {}, err
		}
		bucket, err := loc.open(ctx)
		if err != nil {
			cleanup()
			return "", func() {}, fmt.Errorf("cloud: opening bucket for %s: %v", path, err)
		}
		defer bucket.Close()
		get = func(p string) (io.ReadCloser, error) {
			s, err := loc.sibling(p)
			if err != nil {
				return nil, err
			}
			return bucket.NewReader(ctx, s.key, nil)
		}
	}

	required, optional := companions(path)
	for i, f := range append(required, optional...) {
		err := download(get, f, filepath.Join(dir, baseName(f)))
		if err != nil && i < len(required) {
			cleanup()
			return "", func() {}, fmt.Errorf("cloud: downloading %s: %v", f, err)
		}
	}
	return filepath.Join(dir, baseName(path)), cleanup, nil
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p
}

func getHTTP(p string) (io.ReadCloser, error) {
	resp, err := http.Get(p)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", p, resp.Status)
	}
	return resp.Body, nil
}

func download(get func(string) (io.ReadCloser, error), src, dst string) error {
	r, err := get(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		os.Remove(dst)
		return err
	}
	return w.Close()
}

// Upload copies the local file, and any sidecar files that exist next
// to it, to the blob storage location dest.
func Upload(ctx context.Context, local, dest string) error {
	if !IsBlob(dest) {
		return fmt.Errorf("cloud: upload destination %s is not a blob", dest)
	}
	loc, err := parseBlob(dest)
	if err != nil {
		return err
	}
	key := loc.key
	bucket, err := loc.open(ctx)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket to upload file '%s': %v", dest, err)
	}
	defer bucket.Close()
	localReq, localOpt := companions(local)
	keyReq, keyOpt := companions(key)
	locals := append(localReq, localOpt...)
	keys := append(keyReq, keyOpt...)
	if len(keys) != len(locals) {
		locals, keys = localReq[:1], keyReq[:1]
	}
	for i, f := range locals {
		if _, err := os.Stat(f); err != nil {
			if i < len(localReq) {
				return fmt.Errorf("cloud: opening file '%s' for upload: %v", f, err)
			}
			continue
		}
		if err := uploadFile(ctx, bucket, f, keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, bucket *blob.Bucket, local, key string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %v", local, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: opening writer to upload file '%s': %v", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", local, key, err)
	}
	return w.Close()
}
