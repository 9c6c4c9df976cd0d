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
	"testing"
)

// tarEntry describes one member to pack into a test archive.
type tarEntry struct {
	name     string
	body     []byte
	typeflag byte
	linkname string
}

func buildTarball(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		typeflag := entry.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		header := &tar.Header{
			Name:     entry.name,
			Mode:     0644,
			Size:     int64(len(entry.body)),
			Typeflag: typeflag,
			Linkname: entry.linkname,
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("WriteHeader(%s) failed: %v", entry.name, err)
		}
		if len(entry.body) > 0 {
			if _, err := tw.Write(entry.body); err != nil {
				t.Fatalf("Write(%s) failed: %v", entry.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close failed: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

func chartTarball(t *testing.T, name, version string) []byte {
	t.Helper()
	return buildTarball(t, []tarEntry{
		{name: name + "/Chart.yaml", body: []byte(fmt.Sprintf("apiVersion: v2\nname: %s\nversion: %s\n", name, version))},
		{name: name + "/values.yaml", body: []byte("replicas: 1\n")},
		{name: name + "/templates/deployment.yaml", body: []byte("kind: Deployment\n")},
		{name: name + "/templates/NOTES.txt", body: []byte("installed\n")},
		{name: name + "/.helmignore", body: []byte("*.swp\n")},
	})
}

func TestValidateTarball_Valid(t *testing.T) {
	metadata, err := ValidateTarball(chartTarball(t, "hazel", "1.2.3"))
	if err != nil {
		t.Fatalf("ValidateTarball failed: %v", err)
	}
	if metadata.Name != "hazel" || metadata.Version != "1.2.3" {
		t.Errorf("metadata = %+v, want name hazel version 1.2.3", metadata)
	}
}

func TestValidateTarball_ConcatenatedGzipMembers(t *testing.T) {
	// Two gzip members back to back; the decoder must treat them as one
	// stream.
	first := chartTarball(t, "hazel", "1.2.3")

	var second bytes.Buffer
	gz := gzip.NewWriter(&second)
	if _, err := gz.Write([]byte{}); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateTarball(append(first, second.Bytes()...)); err != nil {
		t.Errorf("ValidateTarball on concatenated members failed: %v", err)
	}
}

func TestValidateTarball_MissingChartYaml(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/values.yaml", body: []byte("replicas: 1\n")},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrMissingChartYaml) {
		t.Errorf("ValidateTarball = %v, want ErrMissingChartYaml", err)
	}
}

func TestValidateTarball_RejectsSymlink(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/Chart.yaml", body: []byte("name: hazel\nversion: 1.0.0\n")},
		{name: "hazel/values.yaml", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrUnsafeEntry) {
		t.Errorf("ValidateTarball = %v, want ErrUnsafeEntry", err)
	}
}

func TestValidateTarball_RejectsAbsolutePath(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "/etc/Chart.yaml", body: []byte("name: evil\nversion: 1.0.0\n")},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrUnsafeEntry) {
		t.Errorf("ValidateTarball = %v, want ErrUnsafeEntry", err)
	}
}

func TestValidateTarball_RejectsParentTraversal(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/../../Chart.yaml", body: []byte("name: evil\nversion: 1.0.0\n")},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrUnsafeEntry) {
		t.Errorf("ValidateTarball = %v, want ErrUnsafeEntry", err)
	}
}

func TestValidateTarball_RejectsDisallowedEntry(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/Chart.yaml", body: []byte("name: hazel\nversion: 1.0.0\n")},
		{name: "hazel/secrets.env", body: []byte("TOKEN=x\n")},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrDisallowedEntry) {
		t.Errorf("ValidateTarball = %v, want ErrDisallowedEntry", err)
	}
}

func TestValidateTarball_RejectsTemplateWithBadExtension(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/Chart.yaml", body: []byte("name: hazel\nversion: 1.0.0\n")},
		{name: "hazel/templates/run.sh", body: []byte("#!/bin/sh\n")},
	})
	if _, err := ValidateTarball(data); !errors.Is(err, ErrDisallowedEntry) {
		t.Errorf("ValidateTarball = %v, want ErrDisallowedEntry", err)
	}
}

func TestValidateTarball_AllowsSubcharts(t *testing.T) {
	data := buildTarball(t, []tarEntry{
		{name: "hazel/Chart.yaml", body: []byte("name: hazel\nversion: 1.0.0\n")},
		{name: "hazel/charts/dep.tgz", body: []byte("subchart")},
	})
	if _, err := ValidateTarball(data); err != nil {
		t.Errorf("ValidateTarball failed: %v", err)
	}
}

func TestValidateTarball_NotGzip(t *testing.T) {
	if _, err := ValidateTarball([]byte("plain text")); !errors.Is(err, ErrInvalidTarball) {
		t.Errorf("ValidateTarball = %v, want ErrInvalidTarball", err)
	}
}
