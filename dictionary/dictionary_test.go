package dictionary

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ballPosition struct {
	X float64
	Y float64
}

type visionOutputs struct {
	Balls   map[string]ballPosition
	Closest *ballPosition `path:"closest"`
}

func TestResolve(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterRoot("vision", visionOutputs{}))

	typ, err := d.Resolve([]string{"vision", "closest", "X"})
	require.NoError(t, err)
	assert.Equal(t, reflect.Float64, typ.Kind())

	typ, err = d.Resolve([]string{"vision", "Balls"})
	require.NoError(t, err)
	assert.Equal(t, reflect.Map, typ.Kind())
}

func TestResolve_UnknownField(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterRoot("vision", visionOutputs{}))

	_, err := d.Resolve([]string{"vision", "nope"})
	assert.Error(t, err)
}

func TestResolve_UnknownRoot(t *testing.T) {
	d := New()
	_, err := d.Resolve([]string{"missing", "x"})
	assert.Error(t, err)
}

func TestRegisterRoot_RejectsNonStruct(t *testing.T) {
	d := New()
	err := d.RegisterRoot("x", 5)
	assert.Error(t, err)
}
