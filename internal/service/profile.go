package service

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/k8ika0s/autobuild/internal/builder"
	"github.com/k8ika0s/autobuild/internal/failure"
)

// Profile overrides the command lines used for building and cleaning.
//
//	commands:
//	  build: make -j4
//	  pinned: ["rustup default nightly", "make cargo", "make"]
type Profile struct {
	Commands builder.Commands `yaml:"commands"`
}

// LoadProfile reads a YAML profile. An empty path yields the default commands.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return p, failure.Configf("read build profile %s: %v", path, err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return p, failure.Configf("parse build profile %s: %v", path, err)
		}
	}
	p.Commands = p.Commands.WithDefaults()
	return p, nil
}
