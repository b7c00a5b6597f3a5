// Package logging provides the types.Logger implementations of shocktrack:
// a log/slog adapter for the command, a discarding logger used when nothing
// is injected, and a testing.TB logger for tests.
package logging

import "github.com/arloliu/shocktrack/types"

// Nop discards every message. Fatal does not exit.
type Nop struct{}

var _ types.Logger = Nop{}

// NewNop returns a logger that discards all messages.
//
// Components fall back to it when no logger is injected.
func NewNop() types.Logger {
	return Nop{}
}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (Nop) Fatal(string, ...any) {}
