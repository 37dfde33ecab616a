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


// Package cloud moves raster products between local files and
// remote storage: HTTP servers and gs://, s3:// or file:// buckets.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// blobPath is a product location inside a bucket.
type blobPath struct {
	scheme, bucket, key string
}

// parseBlob splits p into its bucket and key. A file:// path without a
// host lives in a bucket rooted at its parent directory.
func parseBlob(p string) (blobPath, error) {
	u, err := url.Parse(p)
	if err != nil {
		return blobPath{}, fmt.Errorf("cloud: parsing blob path %q: %v", p, err)
	}
	if u.Scheme == "file" && u.Host == "" {
		return blobPath{scheme: "file", bucket: path.Dir(u.Path), key: path.Base(u.Path)}, nil
	}
	return blobPath{scheme: u.Scheme, bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}, nil
}

// sibling returns the location of another object in the same bucket.
func (b blobPath) sibling(p string) (blobPath, error) {
	s, err := parseBlob(p)
	if err != nil {
		return blobPath{}, err
	}
	if s.scheme != b.scheme || s.bucket != b.bucket {
		return blobPath{}, fmt.Errorf("cloud: %s is not in bucket %s://%s", p, b.scheme, b.bucket)
	}
	return s, nil
}

// open opens the bucket that holds b. Google Cloud Storage uses the
// application default credentials; S3 reads AWS_REGION,
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func (b blobPath) open(ctx context.Context) (*blob.Bucket, error) {
	switch b.scheme {
	case "file":
		return fileblob.OpenBucket(b.bucket, nil)
	case "gs":
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		return gcsblob.OpenBucket(ctx, c, b.bucket, nil)
	case "s3":
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-2"
		}
		s, err := session.NewSession(&aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewEnvCredentials(),
		})
		if err != nil {
			return nil, err
		}
		return s3blob.OpenBucket(ctx, s, b.bucket, nil)
	}
	return nil, fmt.Errorf("cloud: unsupported storage provider %q", b.scheme)
}
