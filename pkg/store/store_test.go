package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dex "github.com/speakeasy-api/simplify"
)

const source = `
.class public LT;
.super Ljava/lang/Object;

.method public static f(I)I
    .registers 3
    :try_start
    packed-switch p0, :table
    div-int v0, p0, p0
    invoke-static {}, LT;->g()V
    :try_end
    .catchall {:try_start .. :try_end} :all
    const-wide v0, -0x1L
    const-string v1, "s"
    return p0
    :one
    const/4 v0, 0x1
    return v0
    :all
    const/4 v0, 0x2
    return v0
    :table
    .packed-switch 0x1
        :one
    .end packed-switch
.end method

.method public static g()V
    .registers 0
    return-void
.end method
`

func catalog(t *testing.T) *dex.Catalog {
	t.Helper()
	cat, err := dex.ParseCatalog(source)
	require.NoError(t, err)
	return cat
}

func TestMarshalMethodIsCanonical(t *testing.T) {
	m, ok := catalog(t).Method("LT;->f(I)I")
	require.True(t, ok)
	a, err := MarshalMethod(m)
	require.NoError(t, err)
	b, err := MarshalMethod(m.Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	back, err := UnmarshalMethod(a)
	require.NoError(t, err)
	assert.Equal(t, m.Instructions, back.Instructions)
	assert.Equal(t, m.Handlers, back.Handlers)
	assert.Equal(t, m.Signature(), back.Signature())
	assert.Equal(t, m.Access, back.Access)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := UnmarshalMethod([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestStoreReadWrite(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	cat := catalog(t)
	m, _ := cat.Method("LT;->g()V")
	require.NoError(t, s.WriteMethod("LT;->g()V", m))
	assert.Error(t, s.WriteMethod("LT;->h()V", m))

	got, ok, err := s.ReadMethod("LT;->g()V")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.Instructions, got.Instructions)

	_, ok, err = s.ReadMethod("LT;->missing()V")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete("LT;->g()V"))
	_, ok, _ = s.ReadMethod("LT;->g()V")
	assert.False(t, ok)
}

func TestStoreImportAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "methods")
	s, err := Open(dir)
	require.NoError(t, err)

	n, err := s.Import(catalog(t), "LT;")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	fp, err := s.Fingerprint("LT;->f(I)I")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	sigs, err := s.Signatures("LT;->f")
	require.NoError(t, err)
	assert.Equal(t, []string{"LT;->f(I)I"}, sigs)
	all, err := s.Signatures("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	again, err := s.Fingerprint("LT;->f(I)I")
	require.NoError(t, err)
	assert.Equal(t, fp, again)
}
