package detect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// NuclearDensity is the density in g/cm^3 above which the core has bounced.
const NuclearDensity = 2e14

// DefaultBounceDelay is the time the central density must stay above
// NuclearDensity before the bounce is accepted.
const DefaultBounceDelay = 2 * time.Millisecond

// ScanBounceFinder finds the bounce by scanning snapshots from the start.
//
// A snapshot marks the bounce when either its maximum density has exceeded
// NuclearDensity for longer than the configured delay, or its header
// already carries a positive bounce time.
type ScanBounceFinder struct {
	delay  float64
	logger types.Logger
}

var _ types.BounceFinder = (*ScanBounceFinder)(nil)

// NewScanBounceFinder creates a scanning bounce finder.
//
// Parameters:
//   - delay: Time above nuclear density before accepting the bounce
//   - logger: Logger for skipped snapshots (nil for no logging)
//
// Returns:
//   - *ScanBounceFinder: Initialized finder
func NewScanBounceFinder(delay time.Duration, logger types.Logger) *ScanBounceFinder {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ScanBounceFinder{delay: delay.Seconds(), logger: logger}
}

// FindBounce scans snapshots 0..numFiles-1 in order.
//
// Missing or unreadable snapshots are skipped.
func (f *ScanBounceFinder) FindBounce(ctx context.Context, reader types.SnapshotReader, dataset string, numFiles int) (int, error) {
	crossed := false
	crossedAt := 0.0

	for i := range numFiles {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		p, err := reader.Read(ctx, dataset, i)
		if err != nil {
			if types.IsSkippable(err) {
				f.logger.Debug("bounce scan skipped snapshot", "dataset", dataset, "index", i, "error", err)
				continue
			}

			return 0, fmt.Errorf("read snapshot %d: %w", i, err)
		}

		if len(p.Density) > 0 && slices.Max(p.Density) > NuclearDensity {
			if !crossed {
				crossed = true
				crossedAt = p.Time
			}
			if p.Time-crossedAt > f.delay {
				return i, nil
			}
		}

		if p.BounceTime > 0 {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: dataset %s, %d snapshots scanned", types.ErrBounceNotFound, dataset, numFiles)
}

// HeaderBounceFinder derives the bounce from the header of the last snapshot.
//
// The last snapshot's bounce time and the spacing of the last two snapshots
// give an anchor index; the finder then walks backwards to the earliest
// snapshot that still carries a non-zero bounce time. This reads only a
// handful of snapshots instead of the whole series.
type HeaderBounceFinder struct {
	logger types.Logger
}

var _ types.BounceFinder = (*HeaderBounceFinder)(nil)

// NewHeaderBounceFinder creates a header-based bounce finder.
func NewHeaderBounceFinder(logger types.Logger) *HeaderBounceFinder {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &HeaderBounceFinder{logger: logger}
}

// FindBounce estimates and refines the bounce index from snapshot headers.
func (f *HeaderBounceFinder) FindBounce(ctx context.Context, reader types.SnapshotReader, dataset string, numFiles int) (int, error) {
	if numFiles < 2 {
		return 0, fmt.Errorf("%w: dataset %s needs at least two snapshots", types.ErrBounceNotFound, dataset)
	}

	last, err := reader.Read(ctx, dataset, numFiles-1)
	if err != nil {
		return 0, fmt.Errorf("read last snapshot: %w", err)
	}
	if last.BounceTime == 0 {
		f.logger.Warn("bounce has not occurred yet", "dataset", dataset)
		return 0, fmt.Errorf("%w: dataset %s has not bounced yet", types.ErrBounceNotFound, dataset)
	}

	prev, err := reader.Read(ctx, dataset, numFiles-2)
	if err != nil {
		return 0, fmt.Errorf("read snapshot before last: %w", err)
	}

	dt := last.Time - prev.Time
	if dt <= 0 {
		return 0, fmt.Errorf("%w: non-increasing snapshot times in %s", types.ErrBounceNotFound, dataset)
	}

	anchor := min(int(last.BounceTime/dt)+1, numFiles-1)
	bounce := anchor
	for i := anchor; i > 0; i-- {
		p, err := reader.Read(ctx, dataset, i)
		if err != nil {
			if errors.Is(err, types.ErrSnapshotNotFound) {
				break
			}

			return 0, fmt.Errorf("read snapshot %d: %w", i, err)
		}
		if p.BounceTime == 0 {
			break
		}
		bounce = i
	}

	return bounce, nil
}
