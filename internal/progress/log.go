package progress

import (
	"context"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// milestones is the number of progress log lines per interval.
const milestones = 10

// Log reports progress milestones through a logger.
type Log struct {
	logger types.Logger
}

var _ types.ProgressReporter = (*Log)(nil)

// NewLog creates a reporter logging every tenth of an interval.
func NewLog(logger types.Logger) *Log {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Log{logger: logger}
}

// Report logs p when it crosses a milestone or completes the interval.
func (l *Log) Report(_ context.Context, p types.Progress) error {
	if !crossesMilestone(p) {
		return nil
	}

	l.logger.Info("progress",
		"dataset", p.Dataset,
		"rank", p.Rank,
		"done", p.Done,
		"total", p.Total,
		"percent", percent(p.Done, p.Total),
	)

	return nil
}

func crossesMilestone(p types.Progress) bool {
	if p.Total <= 0 || p.Done <= 0 {
		return false
	}
	if p.Done >= p.Total {
		return true
	}

	return p.Done*milestones/p.Total != (p.Done-1)*milestones/p.Total
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}

	return done * 100 / total
}
