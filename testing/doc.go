// Package testing provides test utilities for the shocktrack library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for bus-backed communicator tests. It follows Go's
// convention of providing testing utilities in a dedicated package (similar
// to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - SyntheticProfiles: Snapshot series with a known shock trajectory
//
// Example usage:
//
//	import (
//	    "testing"
//	    sttest "github.com/arloliu/shocktrack/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := sttest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
