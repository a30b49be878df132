package definition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-container/errcode"
)

func newDef(name string) *Definition {
	return &Definition{Name: name, Constructor: noopConstructor}
}

// TestRegistry_Register basic registration
func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newDef("a")))
	assert.True(t, r.Has("a"))
	assert.Equal(t, 1, r.Len())

	def, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", def.Name)
}

// TestRegistry_Register_Nil nil definition is rejected
func TestRegistry_Register_Nil(t *testing.T) {
	r := NewRegistry()

	err := r.Register(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionInvalid))
}

// TestRegistry_Register_Conflict duplicate name is rejected by default
func TestRegistry_Register_Conflict(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newDef("a")))

	err := r.Register(newDef("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionConflict))
	assert.Equal(t, 1, r.Len())
}

// TestRegistry_Register_Override compatible override replaces, keeps order slot
func TestRegistry_Register_Override(t *testing.T) {
	r := NewRegistry(WithOverride(true))

	first := newDef("a")
	first.SetProperty("version", 1)
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(newDef("b")))

	second := newDef("a")
	second.SetProperty("version", 2)
	require.NoError(t, r.Register(second))

	// 覆盖后保留原注册位次
	assert.Equal(t, []string{"a", "b"}, r.Names())

	def, _ := r.Get("a")
	v, _ := def.GetProperty("version")
	assert.Equal(t, 2, v)
}

// TestRegistry_Register_IncompatibleOverride scope mismatch is still a conflict
func TestRegistry_Register_IncompatibleOverride(t *testing.T) {
	r := NewRegistry(WithOverride(true))
	require.NoError(t, r.Register(newDef("a")))

	proto := newDef("a")
	proto.Scope = ScopePrototype

	err := r.Register(proto)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrIncompatibleOverride))
}

// TestRegistry_Remove removal updates order
func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newDef("a")))
	require.NoError(t, r.Register(newDef("b")))
	require.NoError(t, r.Register(newDef("c")))

	require.NoError(t, r.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, r.Names())

	err := r.Remove("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionNotFound))
}

// TestRegistry_Freeze frozen registry rejects structural mutation
func TestRegistry_Freeze(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newDef("a")))

	r.Freeze()
	assert.True(t, r.Frozen())

	err := r.Register(newDef("b"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrRegistryFrozen))

	err = r.Remove("a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrRegistryFrozen))

	// 只读操作不受影响
	assert.True(t, r.Has("a"))
	assert.Equal(t, []string{"a"}, r.Names())
}

// TestRegistry_Names registration order preserved
func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(newDef(name)))
	}

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())
}

// TestRegistry_NamesOfCapability capability lookup in registration order
func TestRegistry_NamesOfCapability(t *testing.T) {
	r := NewRegistry()

	regExt := newDef("regExt")
	regExt.Capabilities = CapRegistryExtension
	require.NoError(t, r.Register(regExt))

	require.NoError(t, r.Register(newDef("plain")))

	both := newDef("both")
	both.Capabilities = CapRegistryExtension | CapInstanceExtension
	require.NoError(t, r.Register(both))

	instExt := newDef("instExt")
	instExt.Capabilities = CapInstanceExtension
	require.NoError(t, r.Register(instExt))

	assert.Equal(t, []string{"regExt", "both"}, r.NamesOfCapability(CapRegistryExtension))
	assert.Equal(t, []string{"both", "instExt"}, r.NamesOfCapability(CapInstanceExtension))
	assert.Equal(t, []string{"both"}, r.NamesOfCapability(CapRegistryExtension|CapInstanceExtension))
}

// TestRegistry_MustRegister panics on failure
func TestRegistry_MustRegister(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newDef("a"))

	assert.Panics(t, func() {
		r.MustRegister(newDef("a"))
	})
}
