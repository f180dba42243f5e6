package resolver

// builtins maps node builtin specifiers to the synthetic module name the
// registry tracks them under. Builtins are never loaded from disk; they
// survive bundling as external imports.
var builtins = map[string]string{
	"assert":         "assert",
	"buffer":         "buffer",
	"child_process":  "child_process",
	"cluster":        "cluster",
	"console":        "console",
	"constants":      "constants",
	"crypto":         "crypto",
	"dgram":          "dgram",
	"dns":            "dns",
	"events":         "events",
	"fs":             "fs",
	"http":           "http",
	"http2":          "http2",
	"https":          "https",
	"module":         "module",
	"net":            "net",
	"os":             "os",
	"path":           "path",
	"perf_hooks":     "perf_hooks",
	"process":        "process",
	"punycode":       "punycode",
	"querystring":    "querystring",
	"readline":       "readline",
	"repl":           "repl",
	"stream":         "stream",
	"string_decoder": "string_decoder",
	"timers":         "timers",
	"tls":            "tls",
	"tty":            "tty",
	"url":            "url",
	"util":           "util",
	"v8":             "v8",
	"vm":             "vm",
	"worker_threads": "worker_threads",
	"zlib":           "zlib",
}
