package scope

import "fmt"

// FileNameKind distinguishes the three identities a module can have.
type FileNameKind uint8

const (
	// FileReal is a canonicalized absolute path on the real filesystem.
	FileReal FileNameKind = iota

	// FileCustom is a synthetic identity such as a node builtin ("fs",
	// "path") or a virtual module injected by the host.
	FileCustom

	// FileAnon is an anonymous placeholder used for in-memory sources that
	// have no stable name.
	FileAnon
)

// FileName identifies a module. It is produced by the resolver, compared
// structurally, and never mutated. The zero value is an anonymous name.
type FileName struct {
	Kind FileNameKind
	Text string
}

// RealFile returns the identity of a canonicalized absolute path.
func RealFile(path string) FileName {
	return FileName{Kind: FileReal, Text: path}
}

// CustomFile returns a synthetic identity.
func CustomFile(name string) FileName {
	return FileName{Kind: FileCustom, Text: name}
}

// AnonFile returns the anonymous placeholder.
func AnonFile() FileName {
	return FileName{Kind: FileAnon}
}

func (f FileName) String() string {
	switch f.Kind {
	case FileCustom:
		return "<" + f.Text + ">"
	case FileAnon:
		return "<anon>"
	default:
		return f.Text
	}
}

// IsReal reports whether the name points at the real filesystem.
func (f FileName) IsReal() bool { return f.Kind == FileReal }

var _ fmt.Stringer = FileName{}
