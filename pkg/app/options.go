package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the command line flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks Options and returns a slice of found errs.
	Validate() error
}

// NamedFlagSetOptions is kept as the name used by command option structs.
type NamedFlagSetOptions = CliOptions
