// internal/common/logger/loggertest/loggertest.go
package loggertest

import (
	"testing"

	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"

	"go.uber.org/zap/zaptest"
)

// New returns a Logger that writes to the test's log.
func New(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
