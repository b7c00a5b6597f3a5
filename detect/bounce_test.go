package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/source"
	"github.com/arloliu/shocktrack/types"
)

func profile(i int, t, bounceTime, maxRho float64) *types.Profile {
	return &types.Profile{
		Index:      i,
		Time:       t,
		BounceTime: bounceTime,
		Radius:     []float64{1, 2},
		Density:    []float64{maxRho, 1e9},
		Velocity:   []float64{0, -1},
	}
}

func TestScanBounceFinder(t *testing.T) {
	t.Parallel()

	t.Run("density held above nuclear for the delay", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{
			profile(0, 0.000, 0, 1e12),
			profile(1, 0.001, 0, 3e14),
			profile(2, 0.002, 0, 3e14),
			profile(3, 0.0035, 0, 3e14),
			profile(4, 0.005, 0, 3e14),
		})
		f := NewScanBounceFinder(2*time.Millisecond, logging.NewTest(t))

		bounce, err := f.FindBounce(t.Context(), src, "s15", 5)

		require.NoError(t, err)
		require.Equal(t, 3, bounce)
	})

	t.Run("header bounce time wins", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{
			profile(0, 0.0, 0, 1e12),
			profile(1, 0.1, 0.05, 1e12),
		})
		f := NewScanBounceFinder(DefaultBounceDelay, nil)

		bounce, err := f.FindBounce(t.Context(), src, "s15", 2)

		require.NoError(t, err)
		require.Equal(t, 1, bounce)
	})

	t.Run("missing snapshots are skipped", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{
			profile(2, 0.1, 0.05, 1e12),
		})
		f := NewScanBounceFinder(DefaultBounceDelay, nil)

		bounce, err := f.FindBounce(t.Context(), src, "s15", 3)

		require.NoError(t, err)
		require.Equal(t, 2, bounce)
	})

	t.Run("no bounce", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{
			profile(0, 0.0, 0, 1e12),
			profile(1, 0.1, 0, 1e13),
		})
		f := NewScanBounceFinder(DefaultBounceDelay, nil)

		_, err := f.FindBounce(t.Context(), src, "s15", 2)

		require.ErrorIs(t, err, types.ErrBounceNotFound)
	})
}

func TestHeaderBounceFinder(t *testing.T) {
	t.Parallel()

	t.Run("walks back to the earliest bounced snapshot", func(t *testing.T) {
		profiles := make([]*types.Profile, 0, 10)
		for i := range 10 {
			bt := 0.0
			if i >= 4 {
				bt = 0.35
			}
			profiles = append(profiles, profile(i, float64(i)*0.1, bt, 1e12))
		}
		src := source.NewStatic("s15", profiles)
		f := NewHeaderBounceFinder(logging.NewTest(t))

		bounce, err := f.FindBounce(t.Context(), src, "s15", 10)

		require.NoError(t, err)
		require.Equal(t, 4, bounce)
	})

	t.Run("not bounced yet", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{
			profile(0, 0.0, 0, 1e12),
			profile(1, 0.1, 0, 1e12),
		})
		f := NewHeaderBounceFinder(nil)

		_, err := f.FindBounce(t.Context(), src, "s15", 2)

		require.ErrorIs(t, err, types.ErrBounceNotFound)
	})

	t.Run("too few snapshots", func(t *testing.T) {
		src := source.NewStatic("s15", []*types.Profile{profile(0, 0, 0.1, 1e12)})
		f := NewHeaderBounceFinder(nil)

		_, err := f.FindBounce(t.Context(), src, "s15", 1)

		require.ErrorIs(t, err, types.ErrBounceNotFound)
	})
}
