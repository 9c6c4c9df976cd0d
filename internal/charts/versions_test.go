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
	"reflect"
	"testing"
)

func TestSortVersions_DropsPrereleases(t *testing.T) {
	input := []string{"0.1.0-beta", "0.2.1", "1.0.0-beta.1", "2023.3.24", "1.0.0+d1cebae"}

	got := SortVersions(input, false)
	want := []string{"2023.3.24", "1.0.0+d1cebae", "0.2.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortVersions(false) = %v, want %v", got, want)
	}
}

func TestSortVersions_KeepsPrereleases(t *testing.T) {
	input := []string{"0.1.0-beta", "0.2.1", "1.0.0-beta.1", "2023.3.24", "1.0.0+d1cebae"}

	got := SortVersions(input, true)
	want := []string{"2023.3.24", "1.0.0+d1cebae", "1.0.0-beta.1", "0.2.1", "0.1.0-beta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortVersions(true) = %v, want %v", got, want)
	}
}

func TestSortVersions_DropsUnparseable(t *testing.T) {
	got := SortVersions([]string{"not-a-version", "1.2.3", "also bad"}, true)
	want := []string{"1.2.3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortVersions = %v, want %v", got, want)
	}
}

func TestIsPrerelease(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"1.0.0", false},
		{"1.0.0-beta.1", true},
		{"1.0.0+d1cebae", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := IsPrerelease(tt.version); got != tt.want {
			t.Errorf("IsPrerelease(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestAllowedContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/gzip", true},
		{"application/tar+gzip", true},
		{"application/gzip; charset=utf-8", true},
		{"application/zip", false},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AllowedContentType(tt.contentType); got != tt.want {
			t.Errorf("AllowedContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
