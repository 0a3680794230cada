package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferralGuard_New(t *testing.T) {
	g := NewDeferralGuard()
	require.NotNil(t, g)
	assert.Equal(t, 0, g.Len())
}

func TestDeferralGuard_FirstDeferral(t *testing.T) {
	g := NewDeferralGuard()
	assert.False(t, g.WouldRepeat("rep:/a.md:default", "rep:/b.md:default"))
}

func TestDeferralGuard_AfterRecord(t *testing.T) {
	g := NewDeferralGuard()
	g.Record("rep:/a.md:default", "rep:/b.md:default")

	assert.True(t, g.WouldRepeat("rep:/a.md:default", "rep:/b.md:default"))
	assert.False(t, g.WouldRepeat("rep:/a.md:default", "rep:/c.md:default"), "different dependency")
	assert.False(t, g.WouldRepeat("rep:/c.md:default", "rep:/b.md:default"), "different rep")
	assert.Equal(t, 1, g.Deferrals("rep:/a.md:default"))
}

func TestDeferralGuard_Clear(t *testing.T) {
	g := NewDeferralGuard()
	g.Record("rep:/a.md:default", "rep:/b.md:default")
	g.Record("rep:/a.md:default", "rep:/c.md:default")
	g.Record("rep:/d.md:default", "rep:/b.md:default")
	assert.Equal(t, 2, g.Len())

	g.Clear("rep:/a.md:default")
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 0, g.Deferrals("rep:/a.md:default"))
	assert.False(t, g.WouldRepeat("rep:/a.md:default", "rep:/b.md:default"))
	assert.True(t, g.WouldRepeat("rep:/d.md:default", "rep:/b.md:default"))

	g.Clear("rep:/unknown:default")
	assert.Equal(t, 1, g.Len())
}
