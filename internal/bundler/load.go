package bundler

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spackle-js/spackle/internal/analyzer"
	"github.com/spackle-js/spackle/internal/chunker"
	"github.com/spackle-js/spackle/internal/scope"
)

// loadEntries drives loadTransformed for every entry concurrently. Entry
// failures are isolated: the surviving entries are returned along with one
// joined error describing everything that went wrong.
func (b *Bundler) loadEntries(names []string, entries map[string]string) ([]chunker.Entry, error) {
	type outcome struct {
		entry chunker.Entry
		err   error
	}
	outcomes := make([]outcome, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			file, err := b.resolveEntryPath(entries[name])
			if err != nil {
				outcomes[i] = outcome{err: fmt.Errorf("failed to bundle entry %q: %w", name, err)}
				return nil
			}
			if err := b.loadTransformed(file, true); err != nil {
				outcomes[i] = outcome{err: fmt.Errorf("failed to bundle entry %q: %w", name, err)}
				return nil
			}
			outcomes[i] = outcome{entry: chunker.Entry{Name: name, ID: b.scope.Get(file).ID}}
			return nil
		})
	}
	_ = g.Wait()

	var roots []chunker.Entry
	var errs []error
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		roots = append(roots, o.entry)
	}
	return roots, errors.Join(errs...)
}

// resolveEntryPath resolves a caller-supplied entry path against the
// filesystem root.
func (b *Bundler) resolveEntryPath(path string) (scope.FileName, error) {
	specifier := path
	if !strings.HasPrefix(specifier, "/") && !strings.HasPrefix(specifier, "./") &&
		!strings.HasPrefix(specifier, "../") {
		specifier = "./" + specifier
	}
	return b.resolver.Resolve(scope.AnonFile(), specifier)
}

// loadTransformed turns a file identity into a fully analyzed registry
// entry, including its transitive dependencies.
//
// The registry's Begin call is the single-flight guard: exactly one caller
// produces a module, everyone else waits. Publishing happens before the
// recursion into dependencies, which is what makes dependency cycles safe:
// a cycling partner that comes back around observes the already-published
// record instead of parking behind its own ancestor.
func (b *Bundler) loadTransformed(path scope.FileName, isEntry bool) error {
	rec := b.scope.Get(path)
	if !b.scope.Begin(rec.ID) {
		_, err := b.scope.Wait(rec.ID)
		return err
	}

	file, err := b.loader.Load(path)
	if err != nil {
		b.scope.Fail(rec.ID, err)
		return err
	}

	if !file.IsModule && b.cfg.Require {
		// A script consumed from module code is CommonJS: its exports are
		// runtime state, so it always gets its own function scope.
		b.scope.MarkCJS(rec.ID)
		b.scope.MarkWrapRequired(rec.ID)
	}

	imports, marks, exports, err := analyzer.Analyze(b, path, file.Program, rec.LocalMark, b.log)
	if err != nil {
		err = fmt.Errorf("failed to analyze %s: %w", path, err)
		b.scope.Fail(rec.ID, err)
		return err
	}

	b.scope.Publish(rec.ID, file.Program, imports, marks, exports)

	// Follow the edges. Resolution already happened during analysis; what
	// is left is loading every internal target. Failures are collected so
	// one pass reports every broken edge of this module, not just the
	// first.
	var g errgroup.Group
	var errs []error
	childErrs := make([]error, len(imports.Specifiers)+len(imports.Forwards))
	for i, spec := range imports.Specifiers {
		i, spec := i, spec
		if spec.External {
			continue
		}
		if spec.Unresolvable {
			errs = append(errs, fmt.Errorf("failed to resolve %q from %s", spec.Source, path))
			continue
		}
		g.Go(func() error {
			childErrs[i] = b.loadTransformed(spec.Resolved, false)
			return nil
		})
	}
	for i, fwd := range imports.Forwards {
		i, fwd := len(imports.Specifiers)+i, fwd
		if fwd.External {
			continue
		}
		if fwd.Unresolvable {
			errs = append(errs, fmt.Errorf("failed to resolve %q from %s", fwd.Source, path))
			continue
		}
		g.Go(func() error {
			childErrs[i] = b.loadTransformed(fwd.Resolved, false)
			return nil
		})
	}
	_ = g.Wait()
	errs = append(errs, childErrs...)
	return errors.Join(errs...)
}
