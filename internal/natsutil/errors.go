// Package natsutil holds NATS helpers shared by the bus-backed components.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/shocktrack/types"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// A collective operation failing this way stalls the whole pool, so callers
// surface it as types.ErrConnectivity instead of a generic KV failure.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Wrap annotates a KV error with the failed operation.
//
// Connectivity failures additionally match types.ErrConnectivity.
//
// Parameters:
//   - op: Operation description (e.g., "put assignment")
//   - err: Error returned by NATS, may be nil
//
// Returns:
//   - error: nil when err is nil
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConnectivityError(err) && !errors.Is(err, types.ErrConnectivity) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
