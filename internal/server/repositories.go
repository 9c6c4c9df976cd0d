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
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/charted-dev/charted/internal/api"
	"github.com/charted-dev/charted/internal/auth"
	"github.com/charted-dev/charted/internal/charts"
	"github.com/charted-dev/charted/internal/database"
	"github.com/charted-dev/charted/internal/types"
)

// maxTarballBytes caps a single chart upload.
const maxTarballBytes = 50 << 20

func (inst *Instance) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var payload database.CreateRepositoryPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	name, err := types.NewName(payload.Name)
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidName, "repository name must match ^[A-Za-z0-9_-]{1,32}$"))
		return
	}
	if payload.Type == "" {
		payload.Type = database.ChartTypeApplication
	}
	if !payload.Type.Valid() {
		api.WriteError(w, api.NewError(api.ValidationFailed, "type must be \"application\" or \"library\""))
		return
	}

	existing, err := inst.Repositories.GetByOwnerAndName(r.Context(), id.User.ID, name)
	if err != nil {
		inst.internalError(w, err, "failed to check repository uniqueness", "name", name)
		return
	}
	if existing != nil {
		api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
			"you already have a repository with this name", map[string]string{"name": name.String()}))
		return
	}

	repoID, err := inst.NewID()
	if err != nil {
		inst.internalError(w, err, "failed to generate repository id")
		return
	}
	now := time.Now().UTC()
	repo := &database.Repository{
		ID:          repoID,
		Name:        name,
		Owner:       id.User.ID,
		Description: payload.Description,
		Type:        payload.Type,
		Private:     payload.Private,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := inst.Repositories.Create(r.Context(), payload, repo); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewErrorWithDetails(api.EntityAlreadyExists,
				"you already have a repository with this name", map[string]string{"name": name.String()}))
			return
		}
		inst.internalError(w, err, "failed to create repository", "name", name)
		return
	}
	api.WriteJSON(w, http.StatusCreated, repo)
}

// fetchRepository resolves {idOrName} and hides private repositories from
// callers who cannot manage them.
func (inst *Instance) fetchRepository(w http.ResponseWriter, r *http.Request) (*database.Repository, bool) {
	ref, ok := pathNameOrID(w, r, "idOrName")
	if !ok {
		return nil, false
	}
	repo, err := inst.Repositories.GetBy(r.Context(), ref)
	if err != nil {
		inst.internalError(w, err, "failed to fetch repository", "ref", ref.String())
		return nil, false
	}
	if repo != nil && repo.Private {
		visible := false
		if id := auth.FromContext(r.Context()); id != nil && id.User != nil {
			manage, err := inst.canManageOwner(r, id.User, repo.Owner)
			if err != nil {
				inst.internalError(w, err, "failed to check repository visibility", "repository", repo.ID)
				return nil, false
			}
			visible = manage
		}
		if !visible {
			repo = nil
		}
	}
	if repo == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "repository not found"))
		return nil, false
	}
	return repo, true
}

// resolveManagedRepository fetches the repository and enforces that the
// caller may administer it.
func (inst *Instance) resolveManagedRepository(w http.ResponseWriter, r *http.Request) (*database.Repository, bool) {
	id, ok := identity(w, r)
	if !ok {
		return nil, false
	}
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return nil, false
	}
	manage, err := inst.canManageOwner(r, id.User, repo.Owner)
	if err != nil {
		inst.internalError(w, err, "failed to check repository ownership", "repository", repo.ID)
		return nil, false
	}
	if !manage {
		writeForbiddenOwner(w)
		return nil, false
	}
	return repo, true
}

func (inst *Instance) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, repo)
}

func (inst *Instance) handlePatchRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}

	var payload database.PatchRepositoryPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Name != nil {
		if _, err := types.NewName(*payload.Name); err != nil {
			api.WriteError(w, api.NewError(api.InvalidName, "repository name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
	}
	if payload.Type != nil && !payload.Type.Valid() {
		api.WriteError(w, api.NewError(api.ValidationFailed, "type must be \"application\" or \"library\""))
		return
	}

	if err := inst.Repositories.Patch(r.Context(), repo.ID, payload); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			api.WriteError(w, api.NewError(api.EntityAlreadyExists, "the new repository name is taken"))
			return
		}
		if errors.Is(err, types.ErrInvalidName) {
			api.WriteError(w, api.NewError(api.InvalidName, "repository name must match ^[A-Za-z0-9_-]{1,32}$"))
			return
		}
		inst.internalError(w, err, "failed to patch repository", "repository", repo.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}

	if err := inst.Repositories.Delete(r.Context(), repo.ID); err != nil {
		inst.internalError(w, err, "failed to delete repository", "repository", repo.ID)
		return
	}
	if err := inst.Engine.RegenerateIndex(r.Context(), repo.Owner); err != nil {
		inst.Logger.Error(err, "failed to regenerate index after repository delete",
			"owner", repo.Owner, "repository", repo.ID)
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

// listRepositoriesFor pages through ownerID's repositories, hiding private
// ones from callers who cannot manage the owner.
func (inst *Instance) listRepositoriesFor(w http.ResponseWriter, r *http.Request, ownerID uint64) {
	req, err := parsePagination(r)
	if err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, err.Error()))
		return
	}
	req.OwnerID = ownerID

	page, err := inst.Repositories.Paginate(r.Context(), req)
	if err != nil {
		inst.internalError(w, err, "failed to paginate repositories", "owner", ownerID)
		return
	}

	showPrivate := false
	if id := auth.FromContext(r.Context()); id != nil && id.User != nil {
		showPrivate, err = inst.canManageOwner(r, id.User, ownerID)
		if err != nil {
			inst.internalError(w, err, "failed to check owner visibility", "owner", ownerID)
			return
		}
	}
	if !showPrivate {
		visible := page.Data[:0]
		for _, repo := range page.Data {
			if !repo.Private {
				visible = append(visible, repo)
			}
		}
		page.Data = visible
	}
	api.WriteJSON(w, http.StatusOK, page)
}

func (inst *Instance) handleListReleases(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return
	}
	req, err := parsePagination(r)
	if err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, err.Error()))
		return
	}
	req.Metadata = map[string]uint64{"repository": repo.ID}

	page, err := inst.Releases.Paginate(r.Context(), req)
	if err != nil {
		inst.internalError(w, err, "failed to paginate releases", "repository", repo.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}

// resolveReleaseTag turns "latest"/"current" into a concrete version and
// validates everything else as SemVer. Reports its own errors.
func (inst *Instance) resolveReleaseTag(w http.ResponseWriter, r *http.Request, repo *database.Repository) (string, bool) {
	version := r.PathValue("version")
	if version == "latest" || version == "current" {
		sorted, err := inst.Engine.SortedVersions(r.Context(), repo.Owner, repo.ID, false)
		if err != nil {
			inst.internalError(w, err, "failed to list release versions", "repository", repo.ID)
			return "", false
		}
		if len(sorted) == 0 {
			api.WriteError(w, api.NewError(api.EntityNotFound, "repository has no releases"))
			return "", false
		}
		return sorted[0], true
	}
	if _, err := semver.NewVersion(version); err != nil {
		api.WriteError(w, api.NewError(api.UnableToParsePathParameter,
			fmt.Sprintf("%q is not a valid SemVer version", version)))
		return "", false
	}
	return version, true
}

func (inst *Instance) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return
	}
	tag, ok := inst.resolveReleaseTag(w, r, repo)
	if !ok {
		return
	}
	release, err := inst.Releases.GetByTag(r.Context(), repo.ID, tag)
	if err != nil {
		inst.internalError(w, err, "failed to fetch release", "repository", repo.ID, "tag", tag)
		return
	}
	if release == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "release not found"))
		return
	}
	api.WriteJSON(w, http.StatusOK, release)
}

func (inst *Instance) handlePatchRelease(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}
	tag, ok := inst.resolveReleaseTag(w, r, repo)
	if !ok {
		return
	}
	release, err := inst.Releases.GetByTag(r.Context(), repo.ID, tag)
	if err != nil {
		inst.internalError(w, err, "failed to fetch release", "repository", repo.ID, "tag", tag)
		return
	}
	if release == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "release not found"))
		return
	}

	var payload database.PatchRepositoryReleasePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := inst.Releases.Patch(r.Context(), release.ID, payload); err != nil {
		inst.internalError(w, err, "failed to patch release", "release", release.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

func (inst *Instance) handleDeleteRelease(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}
	tag, ok := inst.resolveReleaseTag(w, r, repo)
	if !ok {
		return
	}
	release, err := inst.Releases.GetByTag(r.Context(), repo.ID, tag)
	if err != nil {
		inst.internalError(w, err, "failed to fetch release", "repository", repo.ID, "tag", tag)
		return
	}
	if release == nil {
		api.WriteError(w, api.NewError(api.EntityNotFound, "release not found"))
		return
	}

	if err := inst.Engine.DeleteTarball(r.Context(), repo.Owner, repo.ID, tag); err != nil {
		inst.internalError(w, err, "failed to delete tarball", "repository", repo.ID, "tag", tag)
		return
	}
	if err := inst.Releases.Delete(r.Context(), release.ID); err != nil {
		inst.internalError(w, err, "failed to delete release", "release", release.ID)
		return
	}
	api.WriteJSON(w, http.StatusOK, nil)
}

// readTarballPart streams the single file part out of a multipart body,
// enforcing the size cap and the tarball content types.
func readTarballPart(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Header.Get("Content-Type") == "" {
		api.WriteError(w, api.NewError(api.MissingContentType, "requests must carry a Content-Type header"))
		return nil, false
	}
	mr, err := r.MultipartReader()
	if err != nil {
		api.WriteError(w, api.NewError(api.InvalidContentType, "uploads must be multipart/form-data"))
		return nil, false
	}

	var file *multipart.Part
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			api.WriteError(w, api.NewError(api.ValidationFailed, "malformed multipart body"))
			return nil, false
		}
		if part.FileName() != "" {
			file = part
			break
		}
		_ = part.Close()
	}
	if file == nil {
		api.WriteError(w, api.NewError(api.MissingFile, "multipart body has no file part"))
		return nil, false
	}
	defer file.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		api.WriteError(w, api.NewError(api.MissingContentType, "the file part has no Content-Type"))
		return nil, false
	}
	if !charts.AllowedContentType(contentType) {
		api.WriteError(w, api.NewErrorWithDetails(api.InvalidContentType,
			"chart tarballs must be gzip or tar archives", map[string]string{"content_type": contentType}))
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxTarballBytes+1))
	if err != nil {
		api.WriteError(w, api.NewError(api.ValidationFailed, "failed to read the uploaded file"))
		return nil, false
	}
	if len(data) > maxTarballBytes {
		api.WriteError(w, api.NewError(api.ObjectTooLarge,
			fmt.Sprintf("chart tarballs may not exceed %d bytes", maxTarballBytes)))
		return nil, false
	}
	return data, true
}

func (inst *Instance) handleUploadTarball(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.resolveManagedRepository(w, r)
	if !ok {
		return
	}
	version := r.PathValue("version")
	if _, err := semver.NewVersion(version); err != nil {
		api.WriteError(w, api.NewError(api.UnableToParsePathParameter,
			fmt.Sprintf("%q is not a valid SemVer version", version)))
		return
	}

	data, ok := readTarballPart(w, r)
	if !ok {
		return
	}

	metadata, err := inst.Engine.Upload(r.Context(), repo.Owner, repo.ID, version, data)
	inst.metrics().RecordChartUpload(err == nil)
	if err != nil {
		switch {
		case errors.Is(err, charts.ErrVersionMismatch):
			api.WriteError(w, api.NewError(api.ValidationFailed,
				"the tarball's Chart.yaml version does not match the URL version"))
		case errors.Is(err, charts.ErrInvalidTarball),
			errors.Is(err, charts.ErrMissingChartYaml),
			errors.Is(err, charts.ErrUnsafeEntry),
			errors.Is(err, charts.ErrDisallowedEntry):
			api.WriteError(w, api.NewError(api.ValidationFailed, err.Error()))
		default:
			inst.internalError(w, err, "failed to store chart release",
				"repository", repo.ID, "version", version)
		}
		return
	}

	release, err := inst.Releases.GetByTag(r.Context(), repo.ID, version)
	if err != nil {
		inst.internalError(w, err, "failed to fetch release row", "repository", repo.ID, "tag", version)
		return
	}
	if release == nil {
		id, err := inst.NewID()
		if err != nil {
			inst.internalError(w, err, "failed to generate release id")
			return
		}
		now := time.Now().UTC()
		release = &database.RepositoryRelease{
			ID:         id,
			Repository: repo.ID,
			Tag:        version,
			Prerelease: charts.IsPrerelease(version),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		payload := database.CreateRepositoryReleasePayload{Tag: version}
		if err := inst.Releases.Create(r.Context(), payload, release); err != nil && !errors.Is(err, database.ErrAlreadyExists) {
			inst.internalError(w, err, "failed to create release row", "repository", repo.ID, "tag", version)
			return
		}
	}

	api.WriteJSON(w, http.StatusCreated, map[string]any{
		"release": release,
		"chart":   metadata,
	})
}

func (inst *Instance) handleDownloadTarball(w http.ResponseWriter, r *http.Request) {
	repo, ok := inst.fetchRepository(w, r)
	if !ok {
		return
	}
	version := r.PathValue("version")
	allowPrereleases := r.URL.Query().Get("allow_prereleases") == "true"

	data, resolved, err := inst.Engine.GetTarball(r.Context(), repo.Owner, repo.ID, version, allowPrereleases)
	inst.metrics().RecordChartDownload(err == nil)
	if err != nil {
		switch {
		case errors.Is(err, charts.ErrNoReleases), errors.Is(err, charts.ErrReleaseNotFound):
			api.WriteError(w, api.NewError(api.EntityNotFound, "release not found"))
		case errors.Is(err, charts.ErrPrereleaseNotAllowed):
			api.WriteError(w, api.NewError(api.PrereleaseNotAllowed,
				"pre-release versions require allow_prereleases=true"))
		default:
			inst.internalError(w, err, "failed to fetch tarball",
				"repository", repo.ID, "version", version)
		}
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resolved+".tgz"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
