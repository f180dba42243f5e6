// Package api is the public surface of the bundler. It wires the concrete
// resolver and loader to the core and turns finalized bundles into printed
// output files.
package api

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/spackle-js/spackle/internal/bundler"
	"github.com/spackle-js/spackle/internal/config"
	"github.com/spackle-js/spackle/internal/loader"
	"github.com/spackle-js/spackle/internal/printer"
	"github.com/spackle-js/spackle/internal/resolver"
)

// Format selects the output framing.
type Format string

const (
	FormatESM  Format = "esm"
	FormatIIFE Format = "iife"
)

// BuildOptions configures one Build call.
type BuildOptions struct {
	// Entries maps bundle names to entry paths.
	Entries map[string]string

	// Require enables CommonJS require() detection.
	Require bool

	// DisableInliner keeps synthesized temporaries for debugging.
	DisableInliner bool

	// External lists specifiers that stay imports at the bundle boundary.
	External []string

	// Libs maps shared-library bundle names to module paths.
	Libs map[string]string

	// Format is the output framing; empty means ESM.
	Format Format

	// FS is the filesystem to resolve and load against; nil means the OS
	// filesystem.
	FS afero.Fs

	// Logger receives debug traces; nil means a discarding logger.
	Logger logrus.FieldLogger
}

// OutputFile is one printed bundle.
type OutputFile struct {
	// Name is the bundle name ("main", a lib name, …).
	Name string
	// Kind is "named", "dynamic" or "lib".
	Kind string
	// Contents is the printed JavaScript.
	Contents string
}

// Build bundles the given entries and prints each result.
func Build(opts BuildOptions) ([]OutputFile, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		l.SetLevel(logrus.PanicLevel)
		log = l
	}

	cfg := &config.Config{
		Require:         opts.Require,
		DisableInliner:  opts.DisableInliner,
		ExternalModules: opts.External,
		LibModules:      opts.Libs,
		Entries:         opts.Entries,
	}
	if opts.Format == FormatIIFE {
		cfg.Module = config.ModuleIIFE
	}

	b := bundler.New(cfg, resolver.New(fs, log), loader.New(fs, log), log)
	results, err := b.Bundle(opts.Entries)
	if err != nil {
		return nil, err
	}

	out := make([]OutputFile, 0, len(results))
	for _, res := range results {
		out = append(out, OutputFile{
			Name:     res.Name,
			Kind:     res.Kind.String(),
			Contents: printer.Print(res),
		})
	}
	return out, nil
}
