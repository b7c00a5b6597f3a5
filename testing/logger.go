package testing

import (
	"testing"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// NewTestLogger returns a logger that writes through t, so runner and
// communicator logs appear with the test output.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}
