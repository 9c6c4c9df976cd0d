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
	"sort"

	"github.com/Masterminds/semver/v3"
)

// parsedVersion keeps the original identifier so build metadata survives
// sorting; precedence comparison ignores it per SemVer 2.
type parsedVersion struct {
	raw    string
	parsed *semver.Version
}

// SortVersions orders version identifiers descending by SemVer precedence.
// Identifiers that do not parse are dropped, as are pre-releases unless
// allowPrereleases is set. The first element of the result is "latest".
func SortVersions(versions []string, allowPrereleases bool) []string {
	parsed := make([]parsedVersion, 0, len(versions))
	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !allowPrereleases && v.Prerelease() != "" {
			continue
		}
		parsed = append(parsed, parsedVersion{raw: raw, parsed: v})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].parsed.GreaterThan(parsed[j].parsed)
	})

	sorted := make([]string, len(parsed))
	for i, v := range parsed {
		sorted[i] = v.raw
	}
	return sorted
}

// IsPrerelease reports whether a version identifier carries a pre-release
// component. Unparseable identifiers report false.
func IsPrerelease(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}
