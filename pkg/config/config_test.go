package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speakeasy-api/simplify/optimize"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	f, err := Load(write(t, "simplify.yaml", `
vm:
  max-address-visits: 20
  max-execution-time: 5s
  emulate-jdk: false
optimize:
  peephole: false
workers: 3
store: out.db
`))
	require.NoError(t, err)
	opts := f.Options()
	def := optimize.DefaultOptions()

	assert.Equal(t, 20, opts.VM.MaxAddressVisits)
	assert.Equal(t, 5*time.Second, opts.VM.MaxExecutionTime)
	assert.False(t, opts.VM.EmulateJDK)
	assert.False(t, opts.Peephole)
	assert.Equal(t, def.VM.MaxCallDepth, opts.VM.MaxCallDepth)
	assert.Equal(t, def.DeadCode, opts.DeadCode)
	assert.Nil(t, opts.Logger)
	assert.Equal(t, 3, f.Workers)
	assert.Equal(t, "out.db", f.Store)
}

func TestLoadTOML(t *testing.T) {
	f, err := Load(write(t, "simplify.toml", `
workers = 2

[vm]
max-call-depth = 2
run-static-initializers = true

[optimize]
max-passes = 7

[log]
level = "off"
`))
	require.NoError(t, err)
	opts := f.Options()
	assert.Equal(t, 2, opts.VM.MaxCallDepth)
	assert.True(t, opts.VM.RunStaticInitializers)
	assert.Equal(t, 7, opts.MaxOptimizationPasses)
	assert.NotNil(t, opts.Logger)
	assert.Same(t, opts.Logger, opts.VM.Logger)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name, file, content, err string
	}{
		{"unknown key", "c.yaml", "vm:\n  visits: 3\n", "field visits not found"},
		{"negative budget", "c.yaml", "vm:\n  max-call-depth: 0\n", "vm.max-call-depth must be positive"},
		{"bad duration", "c.toml", "[vm]\nmax-execution-time = \"soon\"\n", "vm.max-execution-time"},
		{"bad level", "c.yml", "log:\n  level: loud\n", "unknown log level"},
		{"bad extension", "c.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestLoggerLayout(t *testing.T) {
	var buf bytes.Buffer
	f := &File{Log: Log{Level: "info", TimeLayout: "none"}}
	f.Logger(&buf).Infof("hello")
	assert.Equal(t, "[INFO] hello\n", buf.String())

	buf.Reset()
	f.Log.TimeLayout = "%Y"
	f.Logger(&buf).Infof("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "[INFO] 2"), buf.String())
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	f, err := Load(write(t, "empty.yaml", ""))
	require.NoError(t, err)
	opts := f.Options()
	opts.Logger, opts.VM.Logger = nil, nil
	assert.Equal(t, optimize.DefaultOptions(), opts)
}
