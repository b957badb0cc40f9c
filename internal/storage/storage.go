// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage opens pipeline inputs from the local file system or from
// Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/googlegenomics/bamtarget/internal/fault"
)

const gcsScheme = "gs://"

// Options control how Cloud Storage requests are authorized.
type Options struct {
	// Anonymous disables all client authorization.  It can only be used to
	// read publicly-readable objects.
	Anonymous bool
	// Token is an OAuth2 bearer token.  When empty, the application default
	// credentials are used.
	Token string
}

func (o Options) clientOptions() []option.ClientOption {
	switch {
	case o.Anonymous:
		return []option.ClientOption{option.WithHTTPClient(http.DefaultClient)}
	case o.Token != "":
		token := oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: o.Token,
		}
		return []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(&token))}
	}
	return nil
}

// Opener opens local paths and gs://bucket/object URLs.  The Cloud Storage
// client is only created once a remote path is opened.
type Opener struct {
	options []option.ClientOption

	initialize sync.Once
	client     *storage.Client
	err        error
}

// NewOpener returns an Opener that authorizes requests according to opts.
func NewOpener(opts Options) *Opener {
	return &Opener{options: opts.clientOptions()}
}

// NewOpenerWithClient returns an Opener that uses client for remote paths.
func NewOpenerWithClient(client *storage.Client) *Opener {
	o := &Opener{client: client}
	o.initialize.Do(func() {})
	return o
}

// IsRemote reports whether path names a Cloud Storage object.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, gcsScheme)
}

// ParseURL splits a gs://bucket/object URL into its bucket and object.
func ParseURL(url string) (bucket, object string, err error) {
	if !IsRemote(url) {
		return "", "", fmt.Errorf("%q is not a %s URL", url, gcsScheme)
	}
	fields := strings.SplitN(strings.TrimPrefix(url, gcsScheme), "/", 2)
	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return "", "", fmt.Errorf("%q does not name a bucket and an object", url)
	}
	return fields[0], fields[1], nil
}

// Open returns a reader for the contents of path.
func (o *Opener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !IsRemote(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fault.New(fault.IOFailure, "opening "+path, err)
		}
		return f, nil
	}

	bucket, object, err := ParseURL(path)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "opening "+path, err)
	}
	client, err := o.storageClient(ctx)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "creating storage client", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, newStorageError("opening "+path, err)
	}
	return r, nil
}

// Close releases the Cloud Storage client, if one was created.
func (o *Opener) Close() error {
	if o.client == nil {
		return nil
	}
	return o.client.Close()
}

func (o *Opener) storageClient(ctx context.Context) (*storage.Client, error) {
	o.initialize.Do(func() {
		o.client, o.err = storage.NewClient(ctx, o.options...)
	})
	return o.client, o.err
}

func newStorageError(context string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fault.New(fault.IOFailure, context+": object does not exist", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fault.New(fault.IOFailure, context+": invalid authentication", err)
		case http.StatusForbidden:
			return fault.New(fault.IOFailure, context+": permission denied", err)
		}
	}
	return fault.New(fault.IOFailure, context, err)
}
