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

// Package charts implements the chart artifact engine: tarball validation,
// the per-owner blob layout, SemVer ordering, and Helm index generation.
package charts

import "fmt"

// Blob store layout. Everything the engine writes lives under four
// namespaces relative to the store root.
const (
	metadataNamespace     = "metadata"
	repositoriesNamespace = "repositories"
	avatarsNamespace      = "avatars"
)

// IndexPath is the owner's Helm index document.
func IndexPath(owner uint64) string {
	return fmt.Sprintf("%s/%d/index.yaml", metadataNamespace, owner)
}

// OwnerPath is the directory holding every repository of an owner.
func OwnerPath(owner uint64) string {
	return fmt.Sprintf("%s/%d", repositoriesNamespace, owner)
}

// TarballsPath is the directory holding a repository's release archives.
func TarballsPath(owner, repo uint64) string {
	return fmt.Sprintf("%s/%d/%d/tarballs", repositoriesNamespace, owner, repo)
}

// TarballPath is one release archive.
func TarballPath(owner, repo uint64, version string) string {
	return fmt.Sprintf("%s/%d/%d/tarballs/%s.tgz", repositoriesNamespace, owner, repo, version)
}

// UserAvatarPath is a user's uploaded avatar image.
func UserAvatarPath(id uint64, hash, ext string) string {
	return fmt.Sprintf("%s/users/%d/%s.%s", avatarsNamespace, id, hash, ext)
}

// OrganizationAvatarPath is an organization's uploaded icon image.
func OrganizationAvatarPath(id uint64, hash, ext string) string {
	return fmt.Sprintf("%s/organizations/%d/%s.%s", avatarsNamespace, id, hash, ext)
}

// RepositoryIconPath is a repository's uploaded icon image.
func RepositoryIconPath(id uint64, hash, ext string) string {
	return fmt.Sprintf("%s/repositories/%d/%s.%s", avatarsNamespace, id, hash, ext)
}

// RepositoryIconPrefix is the directory holding a repository's icon blobs.
func RepositoryIconPrefix(id uint64) string {
	return fmt.Sprintf("%s/repositories/%d", avatarsNamespace, id)
}
