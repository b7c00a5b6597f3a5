package logging

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arloliu/shocktrack/types"
)

// TestLogger writes records through testing.TB so they show up next to the
// failing test.
type TestLogger struct {
	tb testing.TB
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a logger bound to tb. Fatal fails the test.
func NewTest(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.log("WARN", msg, keysAndValues) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.tb.Helper()
	l.tb.Fatalf("FATAL %s%s", msg, formatPairs(keysAndValues))
}

func (l *TestLogger) log(level, msg string, keysAndValues []any) {
	l.tb.Helper()
	l.tb.Logf("%s %s%s", level, msg, formatPairs(keysAndValues))
}

// formatPairs renders " k=v k=v"; a dangling key is shown as k=<missing>.
func formatPairs(keysAndValues []any) string {
	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=<missing>", keysAndValues[i])
		}
	}

	return b.String()
}
