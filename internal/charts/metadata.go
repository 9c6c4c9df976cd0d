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

import "time"

// Metadata is the subset of Chart.yaml the registry cares about. Unknown
// keys are preserved-free: they simply do not round-trip into the index.
type Metadata struct {
	APIVersion  string            `yaml:"apiVersion,omitempty" json:"apiVersion,omitempty"`
	Name        string            `yaml:"name" json:"name"`
	Version     string            `yaml:"version" json:"version"`
	KubeVersion string            `yaml:"kubeVersion,omitempty" json:"kubeVersion,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string            `yaml:"type,omitempty" json:"type,omitempty"`
	Keywords    []string          `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Home        string            `yaml:"home,omitempty" json:"home,omitempty"`
	Sources     []string          `yaml:"sources,omitempty" json:"sources,omitempty"`
	Icon        string            `yaml:"icon,omitempty" json:"icon,omitempty"`
	AppVersion  string            `yaml:"appVersion,omitempty" json:"appVersion,omitempty"`
	Deprecated  bool              `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	Maintainers []Maintainer      `yaml:"maintainers,omitempty" json:"maintainers,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// Maintainer is one Chart.yaml maintainers entry.
type Maintainer struct {
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
	URL   string `yaml:"url,omitempty" json:"url,omitempty"`
}

// IndexEntry is one released version inside the owner's index document,
// in the format the Helm client consumes.
type IndexEntry struct {
	Metadata `yaml:",inline" json:",inline"`

	URLs    []string  `yaml:"urls" json:"urls"`
	Created time.Time `yaml:"created,omitempty" json:"created,omitempty"`
	Digest  string    `yaml:"digest,omitempty" json:"digest,omitempty"`
}

// Index is the per-owner index.yaml document enumerating every release of
// every chart the owner publishes.
type Index struct {
	APIVersion string                  `yaml:"apiVersion" json:"apiVersion"`
	Entries    map[string][]IndexEntry `yaml:"entries" json:"entries"`
	Generated  time.Time               `yaml:"generated" json:"generated"`
}

// NewIndex creates an empty index document.
func NewIndex(generated time.Time) *Index {
	return &Index{
		APIVersion: "v1",
		Entries:    map[string][]IndexEntry{},
		Generated:  generated,
	}
}
