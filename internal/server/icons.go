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

package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/charts"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/storage"
)

// maxIconBytes caps a repository icon upload.
const maxIconBytes = 2 << 20

// iconExtensions maps the accepted sniffed media types to the blob
// extension they are stored under.
var iconExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// readIconPart streams the single file part out of a multipart body. The
// media type is decided by sniffing the bytes, not by the declared header.
func readIconPart(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if r.Header.Get("Content-Type") == "" {
		api.WriteError(w, api.NewError(api.MissingContentType, "requests must carry a Content-Type header"))
		return nil, "", false
	}
	mr, err := r.MultipartReader()
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidContentType, "uploads must be multipart/form-data"))
		return nil, "", false
	}

	var file *multipart.Part
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			api.WriteError(w, api.NewError(api.ValidationFailed, "malformed multipart body"))
			return nil, "", false
		}
		if part.FileName() != "" {
			file = part
			break
		}
		_ = part.Close()
	}
	if file == nil {
		api.WriteError(w, api.NewError(api.MissingFile, "multipart body has no file part"))
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxIconBytes+1))
	if err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, "failed to read the uploaded file"))
		return nil, "", false
	}
	if len(data) > maxIconBytes {
		api.WriteError(w, api.NewError(api.ObjectTooLarge,
			fmt.Sprintf("icons may not exceed %d bytes", maxIconBytes)))
		return nil, "", false
	}

	mediaType, _, _ := strings.Cut(storage.ResolveContentType(data), ";")
	mediaType = strings.TrimSpace(mediaType)
	if _, ok := iconExtensions[mediaType]; !ok {
		api.WriteError(w, api.NewErrorWithDetails(api.InvalidContentType,
			"icons must be PNG, JPEG, WebP, or GIF images", map[string]string{"content_type": mediaType}))
		return nil, "", false
	}
	return data, mediaType, true
}

func (inst *Instance) handleUploadRepositoryIcon(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}
	data, mediaType, ok := readIconPart(w, r)
	if !ok {
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := inst.deleteIconBlobs(r, repo.ID); err != nil {
		inst.internalError(w, err, "failed to clear previous icon", "repository", repo.ID)
		return
	}
	path := charts.RepositoryIconPath(repo.ID, hash, iconExtensions[mediaType])
	if err := inst.Storage.Upload(r.Context(), path, data, mediaType); err != nil {
		inst.internalError(w, err, "failed to store icon", "repository", repo.ID)
		return
	}
	if err := inst.Repositories.Patch(r.Context(), repo.ID, database.PatchRepositoryPayload{IconHash: &hash}); err != nil {
		inst.internalError(w, err, "failed to record icon hash", "repository", repo.ID)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]string{"icon_hash": hash})
}

func (inst *Instance) handleGetRepositoryIcon(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return
	}
	if repo.IconHash == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "repository has no icon"))
		return
	}

	for mediaType, ext := range iconExtensions {
		path := charts.RepositoryIconPath(repo.ID, *repo.IconHash, ext)
		data, err := inst.Storage.Open(r.Context(), path)
		if err != nil {
			inst.internalError(w, err, "failed to read icon", "repository", repo.ID)
			return
		}
		if data == nil {
			continue
		}
		w.Header().Set("Content-Type", mediaType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	api.WriteError(w, api.NewError(api.EntityNotFound, "repository has no icon"))
}

func (inst *Instance) handleDeleteRepositoryIcon(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}
	if err := inst.deleteIconBlobs(r, repo.ID); err != nil {
		inst.internalError(w, err, "failed to delete icon", "repository", repo.ID)
		return
	}

	// An empty string clears the nullable column.
	cleared := ""
	if err := inst.Repositories.Patch(r.Context(), repo.ID, database.PatchRepositoryPayload{IconHash: &cleared}); err != nil {
		inst.internalError(w, err, "failed to clear icon hash", "repository", repo.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

// deleteIconBlobs removes every stored icon blob of the repository.
func (inst *Instance) deleteIconBlobs(r *http.Request, repoID uint64) error {
	blobs, err := inst.Storage.List(r.Context(), charts.RepositoryIconPrefix(repoID), func(b storage.Blob) bool {
		return !b.IsDir
	})
	if err != nil {
		return err
	}
	for _, blob := range blobs {
		if err := inst.Storage.Delete(r.Context(), blob.Path); err != nil {
			return err
		}
	}
	return nil
}
