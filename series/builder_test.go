package series

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/shocktrack/types"
)

func sampleRow(i int) Row {
	return Row{
		Time:       float64(i) * 0.01,
		Detection:  types.Detection{ShockIndex: 100 + i, ShockRadius: 1e7 + float64(i), CoreIndex: 10 + i, CoreRadius: 3e6},
		CoreMass:   1.4,
		ShockMass:  1.6,
		Luminosity: [types.NumSpecies]float64{1e52, 2e52, float64(i)},
	}
}

func TestNewBuilder(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(10, types.WorkInterval{Start: 2, End: 5})
	require.NoError(t, err)
	require.Equal(t, -1, b.PreviousShockIndex())
	require.Equal(t, types.WorkInterval{Start: 2, End: 5}, b.Interval())

	for _, name := range Columns {
		require.Len(t, b.Arrays()[name], 10)
	}

	_, err = NewBuilder(4, types.WorkInterval{Start: 2, End: 5})
	require.ErrorIs(t, err, types.ErrOutsideInterval)

	_, err = NewBuilder(-1, types.WorkInterval{})
	require.ErrorIs(t, err, types.ErrSeriesLength)

	idle, err := NewBuilder(0, types.WorkInterval{})
	require.NoError(t, err)
	require.Empty(t, idle.Part(3).Columns)
}

func TestBuilder_Record(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(6, types.WorkInterval{Start: 2, End: 4})
	require.NoError(t, err)

	require.NoError(t, b.Record(2, sampleRow(2)))
	require.Equal(t, 102, b.PreviousShockIndex())
	require.NoError(t, b.Record(3, sampleRow(3)))
	require.Equal(t, 103, b.PreviousShockIndex())

	err = b.Record(4, sampleRow(4))
	require.ErrorIs(t, err, types.ErrOutsideInterval)
	err = b.Record(1, sampleRow(1))
	require.ErrorIs(t, err, types.ErrOutsideInterval)
	require.Equal(t, 2, b.Recorded())

	arrays := b.Arrays()
	require.Equal(t, []float64{0, 0, 102, 103, 0, 0}, arrays[ColShockIndex])
	require.Equal(t, []float64{0, 0, 0.02, 0.03, 0, 0}, arrays[ColTime])
	require.Equal(t, []float64{0, 0, 2, 3, 0, 0}, arrays[ColLumNux])

	arrays[ColTime][0] = 42
	require.Zero(t, b.Arrays()[ColTime][0], "Arrays must return copies")

}

func TestBuilder_SetPreviousShock(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(6, types.WorkInterval{Start: 3, End: 6})
	require.NoError(t, err)
	require.Equal(t, -1, b.PreviousShockIndex())

	b.SetPreviousShock(41)
	require.Equal(t, 41, b.PreviousShockIndex())

	b.SetPreviousShock(-7)
	require.Equal(t, -1, b.PreviousShockIndex())

	b.SetPreviousShock(41)
	require.NoError(t, b.Record(3, sampleRow(3)))
	require.Equal(t, 103, b.PreviousShockIndex(), "recording replaces the seed")
}

func TestBuilder_Part(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(6, types.WorkInterval{Start: 2, End: 4})
	require.NoError(t, err)
	require.NoError(t, b.Record(3, sampleRow(3)))

	part := b.Part(1)

	require.Equal(t, 1, part.Rank)
	require.Equal(t, types.WorkInterval{Start: 2, End: 4}, part.Interval)
	require.Len(t, part.Columns, len(Columns))
	require.Equal(t, []float64{0, 103}, part.Columns[ColShockIndex])
	require.Equal(t, []float64{0, 13}, part.Columns[ColCoreIndex])
}

func TestRow_RoundTrip(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(3, types.WorkInterval{Start: 0, End: 3})
	require.NoError(t, err)
	require.NoError(t, b.Record(1, sampleRow(1)))

	s := &Series{NumFiles: 3, Columns: b.Arrays()}

	require.Equal(t, sampleRow(1), s.Row(1))
	require.Equal(t, Row{}, s.Row(0))
	require.Equal(t, Row{}, s.Row(7))
}
