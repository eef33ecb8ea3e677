package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `
.class public LT;
.super Ljava/lang/Object;

.method public static f()I
    .registers 2
    const/4 v0, 0x5
    const/4 v1, 0x5
    if-eq v0, v1, :same
    const/4 v0, 0x0
    return v0
    :same
    const/4 v0, 0x1
    return v0
.end method

.method public static id(I)I
    .registers 1
    return p0
.end method
`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "T.smali")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestOptimizeAndStore(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir)
	db := filepath.Join(dir, "db")

	out, _, err := run(t, "optimize", file, "--store", db, "--log-level", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "# LT;->f()I changed=true")
	assert.Contains(t, out, "const v0, 0x1\n    return v0\n")
	assert.Contains(t, out, "# LT;->id(I)I changed=false")

	out, _, err = run(t, "store", "list", "--store", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "  LT;->f()I"))

	out, _, err = run(t, "store", "show", "LT;->f()I", "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, ".method public static f()I")

	_, _, err = run(t, "store", "show", "LT;->id(I)I", "--store", db)
	assert.ErrorContains(t, err, "not in the store")
}

func TestOptimizeYAMLOutput(t *testing.T) {
	file := writeSource(t, t.TempDir())
	out, _, err := run(t, "optimize", file, "-m", "LT;->f()I", "-o", "yaml", "--log-level", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "signature: LT;->f()I")
	assert.Contains(t, out, "assembly: |")
	assert.NotContains(t, out, "LT;->id(I)I")
}

func TestGraph(t *testing.T) {
	file := writeSource(t, t.TempDir())
	out, _, err := run(t, "graph", file, "-m", "LT;->id(I)I", "--seed", "p0=7", "--log-level", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "LT;->id(I)I")
	assert.Contains(t, out, "returns: ")
	assert.Contains(t, out, "fingerprint: ")

	out, _, err = run(t, "graph", file, "-m", "LT;->f()I", "--table", "--log-level", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "taken")
	assert.NotContains(t, out, "    3  ")

	_, _, err = run(t, "graph", file, "-m", "LT;->nope()V")
	assert.Error(t, err)
}

func TestDisasm(t *testing.T) {
	file := writeSource(t, t.TempDir())
	out, _, err := run(t, "disasm", file, "--comments", "address")
	require.NoError(t, err)
	assert.Contains(t, out, ".class public LT;")
	assert.Contains(t, out, "if-eq v0, v1, :cond_0")
	assert.Contains(t, out, "# @2")

	_, _, err = run(t, "disasm", file, "--comments", "colour")
	assert.ErrorContains(t, err, "invalid comment kind")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir)
	cfg := filepath.Join(dir, "simplify.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[optimize]\nunreachable-code = false\ndead-code = false\nconstant-propagation = false\npeephole = false\n\n[log]\nlevel = \"off\"\n"), 0o644))
	out, _, err := run(t, "optimize", file, "-c", cfg, "-m", "LT;->f()I")
	require.NoError(t, err)
	assert.Contains(t, out, "changed=false")

	_, _, err = run(t, "optimize", file, "-c", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
