package progress

import (
	"context"

	"github.com/arloliu/shocktrack/types"
)

// Nop discards progress reports.
type Nop struct{}

var _ types.ProgressReporter = (*Nop)(nil)

// NewNop returns a reporter that does nothing.
func NewNop() *Nop {
	return &Nop{}
}

// Report implements types.ProgressReporter.
func (n *Nop) Report(_ context.Context, _ types.Progress) error {
	return nil
}
