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

package storage

import (
	"context"
	"bytes"
	"strings"
	"testing"
)

func newTestFilesystemStorage(t *testing.T) *FilesystemStorage {
	t.Helper()
	store, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage failed: %v", err)
	}
	return store
}

func TestFilesystemStorage_UploadCreatesParents(t *testing.T) {
	store := newTestFilesystemStorage(t)
	ctx := context.Background()

	// Intermediate directories do not exist yet.
	err := store.Upload(ctx, "repositories/1/2/tarballs/1.0.0.tgz", []byte("tarball"), "application/gzip")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	data, err := store.Open(ctx, "repositories/1/2/tarballs/1.0.0.tgz")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(data, []byte("tarball")) {
		t.Errorf("Open = %q, want %q", data, "tarball")
	}
}

func TestFilesystemStorage_OpenMissing(t *testing.T) {
	store := newTestFilesystemStorage(t)

	data, err := store.Open(context.Background(), "metadata/1/index.yaml")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if data != nil {
		t.Errorf("Open of missing object = %q, want nil", data)
	}
}

func TestFilesystemStorage_DeleteIdempotent(t *testing.T) {
	store := newTestFilesystemStorage(t)
	ctx := context.Background()

	if err := store.Upload(ctx, "a/b.txt", []byte("x"), "text/plain"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Delete(ctx, "a/b.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Second delete must not fail.
	if err := store.Delete(ctx, "a/b.txt"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	exists, err := store.Exists(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Exists after delete = true, want false")
	}
}

func TestFilesystemStorage_List(t *testing.T) {
	store := newTestFilesystemStorage(t)
	ctx := context.Background()

	for _, p := range []string{
		"repositories/1/2/tarballs/1.0.0.tgz",
		"repositories/1/2/tarballs/2.0.0.tgz",
		"repositories/1/2/tarballs/notes.txt",
	} {
		if err := store.Upload(ctx, p, []byte("x"), ""); err != nil {
			t.Fatalf("Upload(%s) failed: %v", p, err)
		}
	}

	blobs, err := store.List(ctx, "repositories/1/2/tarballs", func(b Blob) bool {
		return strings.HasSuffix(b.Path, ".tgz")
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(blobs) != 2 {
		t.Fatalf("len(blobs) = %d, want 2", len(blobs))
	}
	for _, b := range blobs {
		if !strings.HasPrefix(b.Path, "repositories/1/2/tarballs/") {
			t.Errorf("blob path %q missing prefix", b.Path)
		}
	}

	// Listing directories one level up reports them as dirs.
	dirs, err := store.List(ctx, "repositories/1", nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(dirs) != 1 || !dirs[0].IsDir {
		t.Errorf("List(repositories/1) = %+v, want a single directory", dirs)
	}
}

func TestFilesystemStorage_RejectsEscapingPaths(t *testing.T) {
	store := newTestFilesystemStorage(t)

	// ".." cleans to the store root itself, which is not a valid object.
	if _, err := store.Open(context.Background(), ".."); err == nil {
		t.Error("Open(..) succeeded, want error")
	}
	if _, err := store.Open(context.Background(), ""); err == nil {
		t.Error("Open of empty path succeeded, want error")
	}
}

func TestResolveContentType(t *testing.T) {
	gzipMagic := []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}
	if ct := ResolveContentType(gzipMagic); !strings.Contains(ct, "gzip") {
		t.Errorf("ResolveContentType(gzip magic) = %q, want gzip", ct)
	}
}
