package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var root atomic.Pointer[zerolog.Logger]

func install(cfg Config) {
	var out io.Writer = os.Stderr
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	zerolog.SetGlobalLevel(cfg.Level)
	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()
	root.Store(&logger)
	log.Logger = logger
}

// Root returns the process logger, configuring the runtime profile if nothing
// has been configured yet.
func Root() zerolog.Logger {
	if l := root.Load(); l != nil {
		return *l
	}
	ConfigureRuntime()
	return *root.Load()
}

// New returns a child of the process logger tagged with component.
func New(component string) zerolog.Logger {
	return Root().With().Str("component", component).Logger()
}
