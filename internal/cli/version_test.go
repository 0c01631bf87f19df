package cli

import (
	"bytes"
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, v, c, d string) {
	t.Helper()
	origV, origC, origD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = origV, origC, origD })
}

func TestResolveVersionInfo(t *testing.T) {
	t.Run("ldflags win", func(t *testing.T) {
		withBuildVars(t, "v0.4.0", "abc1234", "2026-01-02")
		v, c, d := resolveVersionInfo()
		assert.Equal(t, "v0.4.0", v)
		assert.Equal(t, "abc1234", c)
		assert.Equal(t, "2026-01-02", d)
	})

	t.Run("dev build falls back to build info", func(t *testing.T) {
		withBuildVars(t, "dev", "unknown", "unknown")
		v, c, d := resolveVersionInfo()
		assert.NotEmpty(t, v)
		assert.NotEmpty(t, c)
		assert.NotEmpty(t, d)
	})
}

func TestPrintVersionInfo(t *testing.T) {
	withBuildVars(t, "v1.0.0", "deadbeef", "2026-03-04")
	var out bytes.Buffer
	printVersionInfo(&out)

	want := fmt.Sprintf("roachtx v1.0.0 (deadbeef, 2026-03-04) %s/%s\n", runtime.GOOS, runtime.GOARCH)
	assert.Equal(t, want, out.String())
}

func TestVersionCommand(t *testing.T) {
	withBuildVars(t, "v1.0.0", "deadbeef", "2026-03-04")
	out, err := executeRoot(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "roachtx v1.0.0 (deadbeef")
}
