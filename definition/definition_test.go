package definition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-container/errcode"
)

func noopConstructor(ctx context.Context, r Resolver) (any, error) {
	return struct{}{}, nil
}

// TestDefinition_Validate valid definition passes
func TestDefinition_Validate(t *testing.T) {
	def := &Definition{
		Name:        "userService",
		Scope:       ScopeSingleton,
		Constructor: noopConstructor,
	}

	assert.NoError(t, def.Validate())
}

// TestDefinition_Validate_MissingName name is required
func TestDefinition_Validate_MissingName(t *testing.T) {
	def := &Definition{
		Constructor: noopConstructor,
	}

	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionInvalid))

	var layered *errcode.LayeredError
	require.True(t, errors.As(err, &layered))
	fields, ok := layered.Data()["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "Name")
}

// TestDefinition_Validate_InvalidScope scope must be a known value
func TestDefinition_Validate_InvalidScope(t *testing.T) {
	def := &Definition{
		Name:        "userService",
		Scope:       Scope("request"),
		Constructor: noopConstructor,
	}

	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionInvalid))
}

// TestDefinition_Validate_MissingConstructor constructor is required
func TestDefinition_Validate_MissingConstructor(t *testing.T) {
	def := &Definition{Name: "userService"}

	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrDefinitionInvalid))
}

// TestDefinition_Normalize defaults are applied on registration
func TestDefinition_Normalize(t *testing.T) {
	def := &Definition{Name: "userService", Constructor: noopConstructor}

	r := NewRegistry()
	require.NoError(t, r.Register(def))

	registered, ok := r.Get("userService")
	require.True(t, ok)
	assert.Equal(t, ScopeSingleton, registered.Scope)
	assert.NotNil(t, registered.Properties)
	assert.True(t, registered.IsSingleton())
}

// TestDefinition_Properties metadata read/write
func TestDefinition_Properties(t *testing.T) {
	def := &Definition{Name: "userService", Constructor: noopConstructor}

	_, ok := def.GetProperty("proxy.target")
	assert.False(t, ok)

	def.SetProperty("proxy.target", "userServiceImpl")
	v, ok := def.GetProperty("proxy.target")
	require.True(t, ok)
	assert.Equal(t, "userServiceImpl", v)
}

// TestCapability_Has capability bit set
func TestCapability_Has(t *testing.T) {
	both := CapRegistryExtension | CapInstanceExtension

	assert.True(t, both.Has(CapRegistryExtension))
	assert.True(t, both.Has(CapInstanceExtension))
	assert.False(t, CapRegistryExtension.Has(CapInstanceExtension))
	assert.True(t, both.Has(both))
}

// TestRole_String role labels
func TestRole_String(t *testing.T) {
	assert.Equal(t, "application", RoleApplication.String())
	assert.Equal(t, "support", RoleSupport.String())
	assert.Equal(t, "infrastructure", RoleInfrastructure.String())
	assert.Equal(t, "unknown", Role(99).String())
}
