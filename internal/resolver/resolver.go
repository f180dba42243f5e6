// Package resolver implements the node-style specifier resolution the
// bundler core consumes. It is deliberately a subset: relative and absolute
// paths with extension and index probing, bare specifiers through
// node_modules with the browser/module/main package.json fields, and the
// node builtin table mapped to synthetic file names. Everything runs on an
// afero filesystem so tests use an in-memory tree.
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/spackle-js/spackle/internal/scope"
)

// extensions are probed in order when a path has no match as written.
var extensions = []string{".js", ".mjs", ".cjs", ".json"}

// mainFields is the package.json entry-point preference. Browser builds
// prefer "browser" over "module" over "main"; this resolver serves a
// bundler, so it uses that order unconditionally.
var mainFields = []string{"browser", "module", "main"}

// Error is a resolve failure carrying the context the error chain needs.
type Error struct {
	From      scope.FileName
	Specifier string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to resolve %q from %s: %s", e.Specifier, e.From, e.Reason)
}

// Resolver resolves import specifiers to canonical file names.
type Resolver struct {
	fs  afero.Fs
	log logrus.FieldLogger

	// pkgCache memoizes the chosen package.json entry point per directory.
	pkgCache *lru.Cache[string, string]
	// resCache memoizes whole resolutions. The key embeds the base
	// directory because relative specifiers depend on it.
	resCache *lru.Cache[string, scope.FileName]
}

func New(fs afero.Fs, log logrus.FieldLogger) *Resolver {
	pkgCache, _ := lru.New[string, string](512)
	resCache, _ := lru.New[string, scope.FileName](2048)
	return &Resolver{fs: fs, log: log, pkgCache: pkgCache, resCache: resCache}
}

// Resolve maps (base, specifier) to a canonical FileName. It is a pure
// function of filesystem state; results are cached.
func (r *Resolver) Resolve(base scope.FileName, specifier string) (scope.FileName, error) {
	if specifier == "" {
		return scope.FileName{}, &Error{From: base, Specifier: specifier, Reason: "empty specifier"}
	}
	if name, ok := builtins[strings.TrimPrefix(specifier, "node:")]; ok {
		return scope.CustomFile(name), nil
	}

	baseDir := "/"
	if base.IsReal() {
		baseDir = filepath.Dir(base.Text)
	}
	key := baseDir + "\x00" + specifier
	if cached, ok := r.resCache.Get(key); ok {
		return cached, nil
	}

	var (
		resolved string
		found    bool
	)
	switch {
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		resolved, found = r.loadPath(filepath.Join(baseDir, specifier))
	case strings.HasPrefix(specifier, "/"):
		resolved, found = r.loadPath(filepath.Clean(specifier))
	default:
		resolved, found = r.loadNodeModules(baseDir, specifier)
	}
	if !found {
		return scope.FileName{}, &Error{From: base, Specifier: specifier, Reason: "no matching file"}
	}

	name := scope.RealFile(resolved)
	r.resCache.Add(key, name)
	r.log.WithFields(logrus.Fields{"from": base.String(), "specifier": specifier}).
		Debugf("resolved to %s", resolved)
	return name, nil
}

// loadPath implements LOAD_AS_FILE followed by LOAD_AS_DIRECTORY.
func (r *Resolver) loadPath(path string) (string, bool) {
	if r.isFile(path) {
		return path, true
	}
	for _, ext := range extensions {
		if r.isFile(path + ext) {
			return path + ext, true
		}
	}
	if r.isDir(path) {
		return r.loadDirectory(path)
	}
	return "", false
}

func (r *Resolver) loadDirectory(dir string) (string, bool) {
	if main, ok := r.packageMain(dir); ok {
		if resolved, found := r.loadPath(filepath.Join(dir, main)); found {
			return resolved, true
		}
		// A broken "main" falls through to the index probe, matching node.
	}
	for _, ext := range extensions {
		index := filepath.Join(dir, "index"+ext)
		if r.isFile(index) {
			return index, true
		}
	}
	return "", false
}

// packageMain returns the preferred entry point named by dir/package.json.
func (r *Resolver) packageMain(dir string) (string, bool) {
	if cached, ok := r.pkgCache.Get(dir); ok {
		return cached, cached != ""
	}
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, "package.json"))
	if err != nil {
		r.pkgCache.Add(dir, "")
		return "", false
	}
	main := ""
	for _, field := range mainFields {
		if v := gjson.GetBytes(data, field); v.Type == gjson.String {
			main = v.String()
			break
		}
	}
	r.pkgCache.Add(dir, main)
	return main, main != ""
}

// loadNodeModules walks node_modules directories from dir upward.
func (r *Resolver) loadNodeModules(dir, specifier string) (string, bool) {
	for {
		candidate := filepath.Join(dir, "node_modules", specifier)
		if resolved, found := r.loadPath(candidate); found {
			return resolved, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *Resolver) isDir(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && info.IsDir()
}
