// Package loader reads and parses modules. Loading is treated as expensive:
// results are cached, and concurrent first loads of one path collapse into
// a single read+parse via singleflight. The registry already serializes
// per-module production inside one bundler; the loader-level guard keeps
// the "parse once" property when a loader is shared between bundlers.
package loader

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/go-sourcemap/sourcemap"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/spackle-js/spackle/internal/scope"
)

// ModuleFile is one parsed source file.
type ModuleFile struct {
	Name    scope.FileName
	Program *ast.Program
	// SourceMap is the input map referenced by the file, when present and
	// readable. The bundler records it; map merging is out of scope.
	SourceMap *sourcemap.Consumer
	// IsModule reports whether the file uses ES module syntax. Files
	// without import/export are treated as scripts (CommonJS candidates).
	IsModule bool
}

// Error is a load failure.
type Error struct {
	Path  scope.FileName
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Loader reads, parses and caches module files.
type Loader struct {
	fs    afero.Fs
	log   logrus.FieldLogger
	cache *lru.Cache[scope.FileName, *ModuleFile]
	group singleflight.Group
}

func New(fs afero.Fs, log logrus.FieldLogger) *Loader {
	cache, _ := lru.New[scope.FileName, *ModuleFile](1024)
	return &Loader{fs: fs, log: log, cache: cache}
}

// Load returns the parsed file for path. Safe for concurrent use; a given
// path is read and parsed at most once per cache lifetime.
func (l *Loader) Load(path scope.FileName) (*ModuleFile, error) {
	if !path.IsReal() {
		return nil, &Error{Path: path, Cause: fmt.Errorf("not a loadable file")}
	}
	if cached, ok := l.cache.Get(path); ok {
		return cached, nil
	}
	v, err, _ := l.group.Do(path.Text, func() (interface{}, error) {
		if cached, ok := l.cache.Get(path); ok {
			return cached, nil
		}
		mf, err := l.load(path)
		if err != nil {
			return nil, err
		}
		l.cache.Add(path, mf)
		return mf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModuleFile), nil
}

func (l *Loader) load(path scope.FileName) (*ModuleFile, error) {
	src, err := afero.ReadFile(l.fs, path.Text)
	if err != nil {
		return nil, &Error{Path: path, Cause: err}
	}

	prog, err := parser.ParseFile(new(file.FileSet), path.Text, string(src), 0)
	if err != nil {
		return nil, &Error{Path: path, Cause: err}
	}

	mf := &ModuleFile{
		Name:     path,
		Program:  prog,
		IsModule: hasModuleSyntax(prog),
	}
	mf.SourceMap = l.readSourceMap(path.Text, string(src))
	l.log.WithField("path", path.String()).
		Debugf("loaded %d top-level statements (module=%v)", len(prog.Body), mf.IsModule)
	return mf, nil
}

func hasModuleSyntax(prog *ast.Program) bool {
	for _, st := range prog.Body {
		switch st.(type) {
		case *ast.ImportDeclaration, *ast.ExportDeclaration:
			return true
		}
	}
	return false
}

const sourceMapPrefix = "//# sourceMappingURL="

// readSourceMap resolves a trailing sourceMappingURL comment: inline
// base64 data URLs are decoded, anything else is read as a sibling file.
// A missing or unparsable map is not an error; the file still bundles.
func (l *Loader) readSourceMap(path, src string) *sourcemap.Consumer {
	idx := strings.LastIndex(src, sourceMapPrefix)
	if idx < 0 {
		return nil
	}
	url := strings.TrimSpace(src[idx+len(sourceMapPrefix):])
	if nl := strings.IndexByte(url, '\n'); nl >= 0 {
		url = strings.TrimSpace(url[:nl])
	}

	var data []byte
	if strings.HasPrefix(url, "data:") {
		comma := strings.IndexByte(url, ',')
		if comma < 0 || !strings.Contains(url[:comma], "base64") {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(url[comma+1:])
		if err != nil {
			l.log.WithField("path", path).Debugf("bad inline source map: %v", err)
			return nil
		}
		data = decoded
	} else {
		raw, err := afero.ReadFile(l.fs, filepath.Join(filepath.Dir(path), url))
		if err != nil {
			l.log.WithField("path", path).Debugf("source map %q unreadable: %v", url, err)
			return nil
		}
		data = raw
	}

	consumer, err := sourcemap.Parse(url, data)
	if err != nil {
		l.log.WithField("path", path).Debugf("source map %q unparsable: %v", url, err)
		return nil
	}
	return consumer
}
