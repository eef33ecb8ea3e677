package smalifmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dex "github.com/speakeasy-api/simplify"
)

const roundTripSource = `
.method public static f(I[I)I
    .registers 5
    .throws Ljava/io/IOException;
    :try_start
    if-lez p0, :neg
    div-int v0, p0, p0
    fill-array-data p1, :data
    :try_end
    .catch Ljava/lang/ArithmeticException; {:try_start .. :try_end} :h
    .catchall {:try_start .. :try_end} :all
    packed-switch p0, :ps
    sparse-switch p0, :ss
    const-wide v0, 0x100000000L
    const-string v2, "tab\there ✓"
    goto :neg
    :c1
    const/4 v0, -0x1
    return v0
    :neg
    const/4 v0, 0x0
    return v0
    :h
    move-exception v0
    throw v0
    :all
    const/4 v0, 0x2
    return v0
    :ps
    .packed-switch 0x1
        :c1
        :neg
    .end packed-switch
    :ss
    .sparse-switch
        0x5 -> :c1
        0x64 -> :neg
    .end sparse-switch
    :data
    .array-data 4
        0x1 0x2 -0x3
    .end array-data
.end method`

func parse(t *testing.T, src string) *dex.Method {
	t.Helper()
	m, err := dex.ParseMethod("LT;", src)
	require.NoError(t, err)
	return m
}

func TestFormatRoundTrip(t *testing.T) {
	m := parse(t, roundTripSource)
	for _, cfg := range []Config{
		{},
		{Addresses: true},
		{Params: true, Indent: 2},
		{Comments: []string{"Address", "successors", "HANDLERS"}},
	} {
		text, err := Format(m, cfg)
		require.NoError(t, err)
		back, err := dex.ParseMethod("LT;", text)
		require.NoError(t, err, text)
		assert.Equal(t, m.Instructions, back.Instructions, text)
		assert.Equal(t, m.Handlers, back.Handlers, text)
		assert.Equal(t, m.Throws, back.Throws)
		assert.Equal(t, m.Signature(), back.Signature())
		assert.Equal(t, m.Registers, back.Registers)
	}
}

func TestFormatLabels(t *testing.T) {
	m := parse(t, `
.method static f(I)I
    .registers 2
    if-eqz p0, :zero
    goto :zero
    :zero
    return p0
.end method`)
	text, err := Format(m, Config{Params: true})
	require.NoError(t, err)
	want := `.method static f(I)I
    .registers 2
    if-eqz p0, :cond_0
    goto :goto_0
    :cond_0
    :goto_0
    return p0
.end method
`
	assert.Equal(t, want, text)

	text, err = Format(m, Config{Addresses: true})
	require.NoError(t, err)
	assert.Contains(t, text, "if-eqz v1, :a2\n")
	assert.Contains(t, text, "goto :a2\n")
	assert.Equal(t, 1, strings.Count(text, "\n    :a2\n"))
}

func TestFormatPrunedPackedSwitchIsInline(t *testing.T) {
	m := parse(t, `
.method static f(I)I
    .registers 1
    packed-switch p0, 0x1 -> :a, 0x3 -> :a
    return p0
    :a
    const/4 p0, 0x0
    return p0
.end method`)
	text, err := Format(m, Config{})
	require.NoError(t, err)
	assert.Contains(t, text, "packed-switch v0, 0x1 -> :pswitch_0, 0x3 -> :pswitch_0")
	back, err := dex.ParseMethod("LT;", text)
	require.NoError(t, err)
	assert.Equal(t, m.Instructions, back.Instructions)
}

func TestCommentsAreAligned(t *testing.T) {
	m := parse(t, `
.method static f()V
    .registers 1
    const-string v0, "字字"
    return-void
.end method`)
	text, err := Format(m, Config{Comments: []string{"address"}})
	require.NoError(t, err)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 6)
	// Each CJK rune takes two columns.
	assert.Equal(t, `    const-string v0, "字字"  # @0`, lines[2])
	assert.Equal(t, "    return-void"+strings.Repeat(" ", 14)+"# @1", lines[3])
}

func TestValidateConfig(t *testing.T) {
	cfg, err := ValidateConfig(Config{Comments: []string{" Successors"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"successors"}, cfg.Comments)
	assert.Equal(t, 4, cfg.Indent)

	_, err = ValidateConfig(Config{Comments: []string{"liveness"}})
	assert.ErrorContains(t, err, "invalid comment kind")
	_, err = ValidateConfig(Config{Indent: 40})
	assert.Error(t, err)
}

func TestFormatClass(t *testing.T) {
	classes, err := dex.ParseClasses(`
.class public LT;
.super Ljava/lang/Object;
.field static final K:I = 0x5
.method static k()I
    .registers 1
    sget v0, LT;->K:I
    return v0
.end method`)
	require.NoError(t, err)
	text, err := FormatClass(classes[0], Config{})
	require.NoError(t, err)
	back, err := dex.ParseClasses(text)
	require.NoError(t, err, text)
	require.Len(t, back, 1)
	assert.Equal(t, classes[0].Fields, back[0].Fields)
	assert.Equal(t, classes[0].Methods[0].Instructions, back[0].Methods[0].Instructions)
}
