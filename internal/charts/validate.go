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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validation failures.
var (
	ErrInvalidTarball   = errors.New("invalid chart tarball")
	ErrMissingChartYaml = errors.New("chart tarball has no Chart.yaml")
	ErrUnsafeEntry      = errors.New("chart tarball contains an unsafe entry")
	ErrDisallowedEntry  = errors.New("chart tarball contains a disallowed entry")
)

// AllowedContentTypes are the declared types accepted for tarball uploads.
var AllowedContentTypes = []string{"application/gzip", "application/tar+gzip"}

// AllowedContentType reports whether a declared upload type is acceptable.
// Parameters like charset are ignored.
func AllowedContentType(contentType string) bool {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	for _, allowed := range AllowedContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// exactNames are the archive members allowed at the chart's top level.
var exactNames = map[string]bool{
	"Chart.yaml":         true,
	"Chart.lock":         true,
	"values.yaml":        true,
	"values.schema.json": true,
	".helmignore":        true,
	"README.md":          true,
}

// allowedEntry checks one archive member path relative to the chart root.
func allowedEntry(rel string) bool {
	if exactNames[rel] {
		return true
	}
	if strings.HasPrefix(rel, "templates/") {
		switch path.Ext(rel) {
		case ".txt", ".tpl", ".yaml", ".yml":
			return true
		}
		return false
	}
	if strings.HasPrefix(rel, "charts/") {
		return strings.HasSuffix(rel, ".tgz") || strings.HasSuffix(rel, ".tar.gz")
	}
	return false
}

// ValidateTarball decodes a gzipped chart archive, walks every member, and
// returns the parsed Chart.yaml. Rejections: undeclared member paths,
// symlinks and hard links, absolute paths, parent traversal, and any gzip
// or tar format error. Concatenated gzip members are handled by the
// decoder's multistream mode.
func ValidateTarball(data []byte) (*Metadata, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarball, err)
	}
	defer func() { _ = gz.Close() }()

	var metadata *Metadata
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarball, err)
		}

		switch header.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		case tar.TypeSymlink, tar.TypeLink:
			return nil, fmt.Errorf("%w: %s is a link", ErrUnsafeEntry, header.Name)
		case tar.TypeDir, tar.TypeReg:
		default:
			return nil, fmt.Errorf("%w: %s has type %q", ErrUnsafeEntry, header.Name, header.Typeflag)
		}

		name := header.Name
		if strings.HasPrefix(name, "/") {
			return nil, fmt.Errorf("%w: %s is absolute", ErrUnsafeEntry, name)
		}
		for _, segment := range strings.Split(name, "/") {
			if segment == ".." {
				return nil, fmt.Errorf("%w: %s escapes the archive", ErrUnsafeEntry, name)
			}
		}

		if header.Typeflag == tar.TypeDir {
			continue
		}

		// Helm archives nest everything under a single chart directory;
		// bare members at the archive root are tolerated too.
		rel := name
		if i := strings.IndexByte(name, '/'); i >= 0 {
			rel = name[i+1:]
		}
		if !allowedEntry(rel) {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedEntry, name)
		}

		if rel == "Chart.yaml" {
			contents, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTarball, err)
			}
			var m Metadata
			if err := yaml.Unmarshal(contents, &m); err != nil {
				return nil, fmt.Errorf("%w: Chart.yaml: %v", ErrInvalidTarball, err)
			}
			metadata = &m
		}
	}

	if metadata == nil {
		return nil, ErrMissingChartYaml
	}
	return metadata, nil
}
