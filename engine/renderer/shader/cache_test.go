package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gpu/internal/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectionCacheMemoizesByText(t *testing.T) {
	c, err := NewReflectionCache(0)
	require.NoError(t, err)

	a := NewSource(sceneShader, WithLabel("a"))
	b := NewSource(sceneShader, WithLabel("b"))

	r1 := c.Reflect(a)
	r2 := c.Reflect(a)
	r3 := c.Reflect(b)

	assert.Same(t, r1, r2)
	assert.Same(t, r1, r3)
	assert.Equal(t, 1, c.Len())
}

func TestReflectionCacheEntryPoint(t *testing.T) {
	c, err := NewReflectionCache(4)
	require.NoError(t, err)

	ep, err := c.EntryPoint(NewSource(sceneShader), StageFragment)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", ep.Name)

	_, err = c.EntryPoint(NewSource(sceneShader, WithEntryPoint("nope"), WithLabel("scene")), StageVertex)
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
	assert.Contains(t, err.Error(), "scene")
}

func TestModuleCache(t *testing.T) {
	dev := gputest.NewDevice()
	c := NewModuleCache(dev, false)

	m1, err := c.Module(NewSource(sceneShader))
	require.NoError(t, err)
	m2, err := c.Module(NewSource(sceneShader))
	require.NoError(t, err)
	m3, err := c.Module(NewSource(computeShader))
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.NotSame(t, m1, m3)
	assert.Equal(t, 2, dev.Count("ShaderModule"))

	c.Purge()
	assert.True(t, m1.(*gputest.Handle).Released)
	assert.Equal(t, 0, c.Len())
}

func TestModuleCacheCreateFailure(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailOn("ShaderModule", nil)
	c := NewModuleCache(dev, false)

	_, err := c.Module(NewSource(sceneShader))
	assert.ErrorIs(t, err, gputest.ErrInjected)
	assert.Equal(t, 0, c.Len())
}

func TestModuleCacheValidationRejectsInvalidSource(t *testing.T) {
	dev := gputest.NewDevice()
	c := NewModuleCache(dev, true)

	_, err := c.Module(NewSource("fn broken( {", WithLabel("broken")))
	assert.Error(t, err)
	assert.Equal(t, 0, dev.Count("ShaderModule"))
}
