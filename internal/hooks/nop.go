// Package hooks provides the default Runner hooks.
package hooks

import (
	"context"

	"github.com/arloliu/shocktrack/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.Assignment) error             = (*NopHooks)(nil).OnAssignment
	_ func(context.Context, string, map[string][]float64) error = (*NopHooks)(nil).OnSeriesReduced
	_ func(context.Context, types.State, types.State) error     = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, error) error                        = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnAssignment:    h.OnAssignment,
		OnSeriesReduced: h.OnSeriesReduced,
		OnStateChanged:  h.OnStateChanged,
		OnError:         h.OnError,
	}
}

// Fill returns hooks with every nil callback of h replaced by a no-op.
//
// Parameters:
//   - h: Caller-supplied hooks, may be nil
//
// Returns:
//   - types.Hooks: Hooks whose callbacks are all non-nil
func Fill(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}

	if h.OnAssignment != nil {
		out.OnAssignment = h.OnAssignment
	}
	if h.OnSeriesReduced != nil {
		out.OnSeriesReduced = h.OnSeriesReduced
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnAssignment is a no-op implementation.
func (h *NopHooks) OnAssignment(_ context.Context, _ types.Assignment) error {
	return nil
}

// OnSeriesReduced is a no-op implementation.
func (h *NopHooks) OnSeriesReduced(_ context.Context, _ string, _ map[string][]float64) error {
	return nil
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
