/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package storage provides a uniform blob store facade over the local
// filesystem and S3-compatible object stores. Paths are POSIX-style and
// relative to a store-configured root.
package storage

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// Common errors returned by storage implementations.
var (
	// ErrBlobNotFound is returned when an object does not exist.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidPath is returned when a path escapes the store root or is
	// otherwise malformed.
	ErrInvalidPath = errors.New("invalid blob path")
)

// Blob describes one entry returned by List.
type Blob struct {
	// Path is the object path relative to the store root.
	Path string
	// Size is the object size in bytes. Zero for directories.
	Size int64
	// IsDir reports whether the entry is a directory (filesystem backend)
	// or a common prefix (S3 backend).
	IsDir bool
}

// ListFilter restricts List results. A nil filter accepts everything.
type ListFilter func(Blob) bool

// Storage is the blob store facade shared by the chart engine and the
// avatar handlers. Implementations must be safe for concurrent use.
type Storage interface {
	// Open reads an object. Returns (nil, nil) when the object does not
	// exist so callers can distinguish absence from I/O failure.
	Open(ctx context.Context, path string) ([]byte, error)

	// Upload writes or overwrites an object. The filesystem backend
	// creates missing parent directories.
	Upload(ctx context.Context, path string, data []byte, contentType string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// Exists is a cheap existence check.
	Exists(ctx context.Context, path string) (bool, error)

	// List enumerates entries under prefix, filtered by filter.
	List(ctx context.Context, prefix string, filter ListFilter) ([]Blob, error)
}

// ResolveContentType sniffs the media type of data. Used on upload when the
// caller did not declare one.
func ResolveContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
