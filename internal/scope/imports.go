package scope

// BindingKind says how an import declaration binds a name.
type BindingKind uint8

const (
	// BindDefault is `import x from "m"`.
	BindDefault BindingKind = iota
	// BindNamed is `import {a} from "m"` or `import {a as b} from "m"`.
	BindNamed
	// BindNamespace is `import * as ns from "m"`.
	BindNamespace
	// BindBare is `import "m"`, kept only for its side effects.
	BindBare
	// BindRequire is a `require("m")` edge, bound (`const x = require("m")`)
	// or not.
	BindRequire
)

func (k BindingKind) String() string {
	switch k {
	case BindDefault:
		return "default"
	case BindNamed:
		return "named"
	case BindNamespace:
		return "namespace"
	case BindBare:
		return "bare"
	case BindRequire:
		return "require"
	}
	return "unknown"
}

// Binding is one bound name of a specifier record.
type Binding struct {
	Kind BindingKind
	// Orig is the name inside the source module. Empty for namespace, bare
	// and require bindings; "default" for default imports.
	Orig string
	// Local is the identifier the importing module sees. Empty for bare
	// imports and for require calls that bind no name.
	Local string
}

// Specifier is one import edge of a module, in source order.
type Specifier struct {
	// Source is the specifier string as written.
	Source string
	// Resolved is valid when neither External nor Unresolvable is set.
	Resolved     FileName
	External     bool
	Unresolvable bool
	Bindings     []Binding
}

// ForwardName is one renamed entry of `export {a as b} from "m"`.
type ForwardName struct {
	Orig  string
	Alias string
}

// Forward is a re-export edge. Forwards are represented verbatim by the
// analyzer and expanded by the chunker against the source module's export
// table.
type Forward struct {
	Source       string
	Resolved     FileName
	External     bool
	Unresolvable bool
	// All marks `export * from "m"`.
	All   bool
	Names []ForwardName
}

// ImportedName records where an imported local identifier came from, for
// cross-module linking during chunking.
type ImportedName struct {
	From ModuleID
	Orig string
	Kind BindingKind
}

// RawImports is the analyzer's result for one module.
type RawImports struct {
	// Specifiers of top-level statements in source order, followed by
	// require edges found inside nested code; the order is preserved into
	// the bundle so side-effecting imports keep their sequence.
	Specifiers []Specifier
	Forwards   []Forward

	// IdentsToDeglob maps a formerly namespace-bound local name to the
	// member names the module actually touches. Populated only when every
	// usage was a static member access.
	IdentsToDeglob map[string][]string

	// LocalToSource maps imported local identifiers to their origin.
	LocalToSource map[string]ImportedName
}

// NewRawImports returns an empty record with allocated maps.
func NewRawImports() *RawImports {
	return &RawImports{
		IdentsToDeglob: make(map[string][]string),
		LocalToSource:  make(map[string]ImportedName),
	}
}
