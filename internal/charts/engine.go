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

package charts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/charted-dev/charted/internal/storage"
)

// Engine failures the HTTP layer maps onto typed error codes.
var (
	ErrNoReleases           = errors.New("repository has no releases")
	ErrReleaseNotFound      = errors.New("release not found")
	ErrPrereleaseNotAllowed = errors.New("pre-release versions are not allowed")
	ErrVersionMismatch      = errors.New("tarball Chart.yaml version does not match the requested version")
)

// latestAliases are version identifiers resolved against the sorted
// release list instead of being parsed as SemVer.
var latestAliases = map[string]bool{"latest": true, "current": true}

// Engine owns the chart artifact lifecycle on top of the blob store:
// validated uploads, version resolution, and per-owner index documents.
// Index regeneration is serialized per owner; uploads for different owners
// proceed in parallel.
type Engine struct {
	storage storage.Storage
	baseURL string
	logger  logr.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewEngine creates a chart engine. baseURL is the externally reachable
// server address used for tarball URLs inside index documents.
func NewEngine(store storage.Storage, baseURL string, logger logr.Logger) *Engine {
	return &Engine{
		storage: store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.WithName("charts"),
		now:     time.Now,
		locks:   map[uint64]*sync.Mutex{},
	}
}

// ownerLock returns the mutex serializing index writes for one owner. The
// map grows with the number of distinct owners, which is bounded.
func (e *Engine) ownerLock(owner uint64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[owner]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[owner] = lock
	}
	return lock
}

// Upload validates a chart tarball and publishes it as version under the
// repository, then rewrites the owner's index. Either both writes land or
// neither does: when the index rewrite fails the tarball is removed before
// the error is returned.
func (e *Engine) Upload(ctx context.Context, owner, repo uint64, version string, data []byte) (*Metadata, error) {
	metadata, err := ValidateTarball(data)
	if err != nil {
		return nil, err
	}
	if metadata.Version != "" && metadata.Version != version {
		return nil, fmt.Errorf("%w: %s != %s", ErrVersionMismatch, metadata.Version, version)
	}

	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	tarball := TarballPath(owner, repo, version)
	if err := e.storage.Upload(ctx, tarball, data, "application/gzip"); err != nil {
		return nil, fmt.Errorf("failed to store tarball: %w", err)
	}

	if err := e.regenerateIndex(ctx, owner); err != nil {
		if delErr := e.storage.Delete(ctx, tarball); delErr != nil {
			e.logger.Error(delErr, "failed to clean up tarball after index failure",
				"owner", owner, "repository", repo, "version", version)
		}
		return nil, fmt.Errorf("failed to rewrite index: %w", err)
	}
	return metadata, nil
}

// GetTarball resolves a version request and returns the archive bytes.
// "latest" and "current" substitute the highest release by SemVer
// precedence.
func (e *Engine) GetTarball(ctx context.Context, owner, repo uint64, version string, allowPrereleases bool) ([]byte, string, error) {
	if latestAliases[version] {
		sorted, err := e.SortedVersions(ctx, owner, repo, allowPrereleases)
		if err != nil {
			return nil, "", err
		}
		if len(sorted) == 0 {
			return nil, "", ErrNoReleases
		}
		version = sorted[0]
	} else if !allowPrereleases && IsPrerelease(version) {
		return nil, "", ErrPrereleaseNotAllowed
	}

	data, err := e.storage.Open(ctx, TarballPath(owner, repo, version))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read tarball: %w", err)
	}
	if data == nil {
		return nil, "", ErrReleaseNotFound
	}
	return data, version, nil
}

// DeleteTarball removes a release archive and rewrites the owner's index.
// Deleting a missing version only rewrites the index.
func (e *Engine) DeleteTarball(ctx context.Context, owner, repo uint64, version string) error {
	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	if err := e.storage.Delete(ctx, TarballPath(owner, repo, version)); err != nil {
		return fmt.Errorf("failed to delete tarball: %w", err)
	}
	return e.regenerateIndex(ctx, owner)
}

// SortedVersions lists a repository's release identifiers descending by
// SemVer precedence. Blobs whose names do not parse are logged and
// skipped.
func (e *Engine) SortedVersions(ctx context.Context, owner, repo uint64, allowPrereleases bool) ([]string, error) {
	blobs, err := e.storage.List(ctx, TarballsPath(owner, repo), func(b storage.Blob) bool {
		return !b.IsDir && strings.HasSuffix(b.Path, ".tgz")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tarballs: %w", err)
	}

	versions := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		name := blob.Path
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		versions = append(versions, strings.TrimSuffix(name, ".tgz"))
	}

	sorted := SortVersions(versions, allowPrereleases)
	if len(sorted) != len(versions) {
		e.logger.V(1).Info("skipped unparseable or filtered versions",
			"owner", owner, "repository", repo, "kept", len(sorted), "seen", len(versions))
	}
	return sorted, nil
}

// GetIndex returns the owner's index document, generating an empty one on
// first read.
func (e *Engine) GetIndex(ctx context.Context, owner uint64) ([]byte, error) {
	data, err := e.storage.Open(ctx, IndexPath(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if data != nil {
		return data, nil
	}

	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	if err := e.regenerateIndex(ctx, owner); err != nil {
		return nil, err
	}
	data, err = e.storage.Open(ctx, IndexPath(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return data, nil
}

// CreateIndex writes an empty index document for a new owner.
func (e *Engine) CreateIndex(ctx context.Context, owner uint64) error {
	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	return e.writeIndex(ctx, owner, NewIndex(e.now().UTC()))
}

// DeleteIndex removes an owner's index document.
func (e *Engine) DeleteIndex(ctx context.Context, owner uint64) error {
	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	if err := e.storage.Delete(ctx, IndexPath(owner)); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return nil
}

// RegenerateIndex rebuilds the owner's index from the blob store under the
// per-owner lock.
func (e *Engine) RegenerateIndex(ctx context.Context, owner uint64) error {
	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	return e.regenerateIndex(ctx, owner)
}

// regenerateIndex walks every repository of the owner, reads each
// tarball's Chart.yaml, and rewrites index.yaml. Callers hold the owner
// lock.
func (e *Engine) regenerateIndex(ctx context.Context, owner uint64) error {
	index := NewIndex(e.now().UTC())

	repos, err := e.storage.List(ctx, OwnerPath(owner), func(b storage.Blob) bool { return b.IsDir })
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	for _, repoDir := range repos {
		name := repoDir.Path
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		repo, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			e.logger.V(1).Info("skipping non-numeric repository directory", "owner", owner, "dir", repoDir.Path)
			continue
		}

		versions, err := e.SortedVersions(ctx, owner, repo, true)
		if err != nil {
			return err
		}
		for _, version := range versions {
			data, err := e.storage.Open(ctx, TarballPath(owner, repo, version))
			if err != nil {
				return fmt.Errorf("failed to read tarball %s: %w", version, err)
			}
			if data == nil {
				continue
			}

			metadata, err := ValidateTarball(data)
			if err != nil {
				e.logger.Error(err, "skipping invalid tarball during index rebuild",
					"owner", owner, "repository", repo, "version", version)
				continue
			}

			digest := sha256.Sum256(data)
			entry := IndexEntry{
				Metadata: *metadata,
				URLs: []string{fmt.Sprintf("%s/v1/repositories/%d/releases/%s/tarball",
					e.baseURL, repo, version)},
				Created: e.now().UTC(),
				Digest:  "sha256:" + hex.EncodeToString(digest[:]),
			}
			if entry.Version == "" {
				entry.Version = version
			}
			index.Entries[metadata.Name] = append(index.Entries[metadata.Name], entry)
		}
	}

	return e.writeIndex(ctx, owner, index)
}

// writeIndex marshals and stores the index document.
func (e *Engine) writeIndex(ctx context.Context, owner uint64, index *Index) error {
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := e.storage.Upload(ctx, IndexPath(owner), data, "application/yaml"); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}
