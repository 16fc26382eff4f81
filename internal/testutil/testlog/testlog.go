package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/logging"
)

// Start configures test logging and returns a logger that writes through
// t.Log, so output is attributed to the test that produced it.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
	logger.Info().Msg("test start")
	return logger
}
