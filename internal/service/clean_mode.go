package service

import "strings"

// CleanMode selects what gets cleaned before building.
type CleanMode int

const (
	CleanNone CleanMode = iota
	// CleanFull cleans every module directory plus the custom mutator.
	CleanFull
	// CleanRequested cleans the modules about to be built.
	CleanRequested
	// CleanList cleans an explicit list of modules.
	CleanList
)

// CleanStep is a parsed CLEAN_BUILD value.
type CleanStep struct {
	Mode    CleanMode
	Modules []string
}

// ParseCleanMode interprets CLEAN_BUILD: empty skips, FULL and CLEAN are
// keywords, anything else is a whitespace separated module list.
func ParseCleanMode(v string) CleanStep {
	switch v = strings.TrimSpace(v); v {
	case "":
		return CleanStep{Mode: CleanNone}
	case "FULL":
		return CleanStep{Mode: CleanFull}
	case "CLEAN":
		return CleanStep{Mode: CleanRequested}
	}
	return CleanStep{Mode: CleanList, Modules: strings.Fields(v)}
}
