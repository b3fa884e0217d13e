// Package flags extracts module identifiers from a compiler-flags string.
package flags

import (
	"regexp"
	"strings"

	"github.com/k8ika0s/autobuild/internal/failure"
)

var defineToken = regexp.MustCompile(`-D([A-Z0-9_]+)`)

var (
	// ErrEmpty is returned for an empty or blank flags string.
	ErrEmpty = failure.Configf("CXXFLAGS not defined. Example: CXXFLAGS=\"-DLDK -DLND\" autobuild")
	// ErrNoModules is returned when no -D<IDENTIFIER> token is present.
	ErrNoModules = failure.Configf("no -D<MODULE> tokens found in CXXFLAGS")
)

// Parse returns the distinct identifiers of every -D<IDENTIFIER> token in
// cxxflags, in order of first appearance.
func Parse(cxxflags string) ([]string, error) {
	if strings.TrimSpace(cxxflags) == "" {
		return nil, ErrEmpty
	}
	matches := defineToken.FindAllStringSubmatch(cxxflags, -1)
	if len(matches) == 0 {
		return nil, ErrNoModules
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return Dedupe(ids), nil
}

// Dedupe keeps the first occurrence of each identifier.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
