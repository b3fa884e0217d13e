// Package module maps module identifiers to their build directory and
// scheduling requirements.
//
// The mapping is a closed table: named exceptions first, then prefix rules,
// then the default rule (lowercase, underscores removed, under ModulesDir).
package module

import (
	"path"
	"strings"
)

const (
	// ModulesDir holds one subdirectory per module.
	ModulesDir = "modules"
	// CustomMutatorDir is shared by every CUSTOM_MUTATOR_* identifier.
	CustomMutatorDir = "custommutator"
	// CustomMutatorPrefix selects the custom mutator rule.
	CustomMutatorPrefix = "CUSTOM_MUTATOR_"
)

// Spec describes how a module is built.
type Spec struct {
	ID  string
	Dir string
	// PinnedToolchain modules switch the rust toolchain to nightly before building.
	PinnedToolchain bool
	// Sequential modules never build concurrently with each other.
	Sequential bool
}

type prefixRule struct {
	prefix     string
	dir        string
	sequential bool
}

var namedDirs = map[string]string{
	"BITCOIN_CORE": path.Join(ModulesDir, "bitcoin"),
}

var prefixRules = []prefixRule{
	{prefix: CustomMutatorPrefix, dir: CustomMutatorDir, sequential: true},
}

var pinnedToolchain = map[string]struct{}{
	"RUST_BITCOIN":      {},
	"RUST_MINISCRIPT":   {},
	"LDK":               {},
	"TINY_MINISCRIPT":   {},
	"RUSTBITCOINKERNEL": {},
}

var sequential = map[string]struct{}{
	"SECP256K1":     {},
	"BITCOINJ":      {},
	"LIGHTNING_KMP": {},
}

// Resolve returns the Spec for id. It never fails; directory existence is
// checked by the builder.
func Resolve(id string) Spec {
	spec := Spec{ID: id, Dir: DefaultDir(id)}
	_, spec.PinnedToolchain = pinnedToolchain[id]
	_, spec.Sequential = sequential[id]
	for _, r := range prefixRules {
		if strings.HasPrefix(id, r.prefix) {
			spec.Dir = r.dir
			spec.Sequential = spec.Sequential || r.sequential
			return spec
		}
	}
	if dir, ok := namedDirs[id]; ok {
		spec.Dir = dir
	}
	return spec
}

// DefaultDir applies the default naming rule.
func DefaultDir(id string) string {
	return path.Join(ModulesDir, strings.ReplaceAll(strings.ToLower(id), "_", ""))
}
