package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapProvider map[string]any

func (p mapProvider) Fields() []Field {
	fields := make([]Field, 0, len(p))
	for k := range p {
		fields = append(fields, Field{Path: k, TypeTag: "any"})
	}
	return fields
}

func (p mapProvider) Get(path string) (any, error) {
	v, ok := p[path]
	if !ok {
		return nil, fmt.Errorf("no such field %q", path)
	}
	return v, nil
}

func TestRouter_RegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("vision", mapProvider{"ball.x": 1.0}))

	v, err := r.Get("vision", "ball.x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestRouter_DuplicateRegistrationFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("vision", mapProvider{}))
	assert.Error(t, r.Register("vision", mapProvider{}))
}

func TestRouter_UnknownInstance(t *testing.T) {
	r := New()
	_, err := r.Get("missing", "x")
	assert.Error(t, err)
}

func TestRouter_UnregisterThenMissing(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("vision", mapProvider{"x": 1}))
	r.Unregister("vision")

	_, err := r.Get("vision", "x")
	assert.Error(t, err)
}

func TestRouter_InstancesSorted(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("motion", mapProvider{}))
	require.NoError(t, r.Register("vision", mapProvider{}))
	require.NoError(t, r.Register("audio", mapProvider{}))

	assert.Equal(t, []string{"audio", "motion", "vision"}, r.Instances())
}
