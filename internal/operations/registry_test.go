package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("parse")))
	assert.True(t, r.Has("parse"))
	assert.Equal(t, 1, r.Count())

	assert.Error(t, r.Register(nil), "nil step")
	assert.Error(t, r.Register(newFakeStep("")), "empty id")
	assert.Error(t, r.Register(newFakeStep("parse")), "duplicate id")
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("parse")))

	require.NoError(t, r.Unregister("parse"))
	assert.False(t, r.Has("parse"))
	assert.Empty(t, r.ListIDs())

	assert.Error(t, r.Unregister("parse"), "already removed")
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	step := newFakeStep("parse")
	require.NoError(t, r.Register(step))

	got, err := r.Get("parse")
	require.NoError(t, err)
	assert.Same(t, step, got.(*fakeStep))

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("c")))
	require.NoError(t, r.Register(newFakeStep("a")))
	require.NoError(t, r.Register(newFakeStep("b")))

	assert.Equal(t, []string{"c", "a", "b"}, r.ListIDs())

	steps := r.List()
	require.Len(t, steps, 3)
	assert.Equal(t, "c", steps[0].ID())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("a")))
	require.NoError(t, r.Register(newFakeStep("b")))

	r.Clear()
	assert.Zero(t, r.Count())
	assert.Empty(t, r.ListIDs())
}

func TestRegistryDependencyOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("export", "format")))
	require.NoError(t, r.Register(newFakeStep("parse")))
	require.NoError(t, r.Register(newFakeStep("format", "parse")))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{"parse", "format", "export"}, ids)
}

func TestRegistryDependencyOrderRegistrationTiebreak(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("b")))
	require.NoError(t, r.Register(newFakeStep("a")))
	require.NoError(t, r.Register(newFakeStep("c")))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids, "independent steps keep registration order")
}

func TestRegistryDependencyOrderMissingDependency(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("join", "aggregate")))

	_, err := r.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent")
}

func TestRegistryDependencyOrderCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("a", "b")))
	require.NoError(t, r.Register(newFakeStep("b", "a")))

	_, err := r.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRegistryValidateDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("parse")))
	require.NoError(t, r.Register(newFakeStep("validate", "parse")))

	assert.NoError(t, r.ValidateDependencies())

	require.NoError(t, r.Register(newFakeStep("join", "aggregate")))
	assert.Error(t, r.ValidateDependencies())
}

func TestRegistryGetDependents(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("parse")))
	require.NoError(t, r.Register(newFakeStep("validate", "parse")))
	require.NoError(t, r.Register(newFakeStep("aggregate", "validate")))

	dependents := r.GetDependents("parse")
	require.Len(t, dependents, 1)
	assert.Equal(t, "validate", dependents[0].ID())

	assert.Empty(t, r.GetDependents("aggregate"))
}

func TestRegistryClone(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("parse")))

	clone := r.Clone()
	require.NoError(t, clone.Register(newFakeStep("validate", "parse")))

	assert.True(t, clone.Has("validate"))
	assert.False(t, r.Has("validate"), "clone is independent")
}
