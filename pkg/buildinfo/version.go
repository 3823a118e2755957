// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/linkcard/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/linkcard/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/linkcard/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

var (
	// Version is the semantic version (e.g., "v1.2.3").
	// Set via ldflags: -X github.com/matzehuels/linkcard/pkg/buildinfo.Version=...
	Version = "dev"

	// Commit is the git commit SHA.
	// Set via ldflags: -X github.com/matzehuels/linkcard/pkg/buildinfo.Commit=...
	Commit = "none"

	// Date is the build timestamp.
	// Set via ldflags: -X github.com/matzehuels/linkcard/pkg/buildinfo.Date=...
	Date = "unknown"
)

// EngineVersions lists the rendering backends whose output bytes depend on
// their version. Bump an entry when upgrading the corresponding module so
// that every cached image is re-rendered.
var EngineVersions = map[string]string{
	"qjs":      "v0.0.6",
	"graphviz": "v0.2.9",
	"canvas":   "v0.0.0-20250728095813",
	"rod":      "v0.116.2",
	"imaging":  "v1.6.2",
	"layout":   "1",
}

// Namespace returns the cache namespace version derived from EngineVersions.
// The value is stable for a given set of engine versions and changes whenever
// any of them does, which invalidates all prior cache entries without a purge.
func Namespace() string {
	keys := make([]string, 0, len(EngineVersions))
	for k := range EngineVersions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, EngineVersions[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "v-" + hex.EncodeToString(sum[:])[:12]
}

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\nnamespace: %s", Version, Commit, Date, Namespace())
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
