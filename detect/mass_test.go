package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnclosedMass(t *testing.T) {
	t.Parallel()

	x := []float64{1, 2, 3}
	rho := []float64{3, 2, 1}
	encm := EnclosedMass(x, rho, 1)

	shell := func(rho, r0, r1 float64) float64 {
		return 4.0 / 3.0 * math.Pi * rho * (r1*r1*r1 - r0*r0*r0) / SolarMass
	}

	want0 := shell(3, 0, 1)
	want1 := want0 + shell(2, 1, 2)
	want2 := want1 + shell(1, 2, 3)

	require.Len(t, encm, 3)
	require.InEpsilon(t, want0, encm[0], 1e-12)
	require.InEpsilon(t, want1, encm[1], 1e-12)
	require.InEpsilon(t, want2, encm[2], 1e-12)
}

func TestEnclosedMass_Unit(t *testing.T) {
	t.Parallel()

	cm := EnclosedMass([]float64{1e5}, []float64{1}, 1)
	km := EnclosedMass([]float64{1}, []float64{1}, 1e5)

	require.InEpsilon(t, cm[0], km[0], 1e-12)
}

func TestEnclosedMass_ShapeMismatch(t *testing.T) {
	t.Parallel()

	require.Nil(t, EnclosedMass([]float64{1, 2}, []float64{1}, 1))
	require.Empty(t, EnclosedMass(nil, nil, 1))
}

func TestMassAt(t *testing.T) {
	t.Parallel()

	encm := []float64{0.5, 1.0}
	require.InDelta(t, 1.0, MassAt(encm, 1), 0)
	require.Zero(t, MassAt(encm, 2))
	require.Zero(t, MassAt(encm, -1))
	require.Zero(t, MassAt(nil, 0))
}
