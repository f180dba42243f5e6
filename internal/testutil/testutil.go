// Package testutil carries the shared test helpers: a logger that routes
// through the test runner and an in-memory filesystem builder.
package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// NewLogger returns a debug-level logger whose output lands in t.Log, so
// traces show up only for failing tests.
func NewLogger(t testing.TB) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetOutput(testWriter{t: t})
	return l
}

// MemFS builds an in-memory filesystem from path → contents.
func MemFS(files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for path, contents := range files {
		if err := afero.WriteFile(fs, path, []byte(contents), 0o644); err != nil {
			panic(err)
		}
	}
	return fs
}
