package ulogger

import (
	"github.com/ordishs/gocore"
)

// GoCoreLogger logs through gocore, which always writes to stdout and can have its level
// changed at runtime from the gocore stats page. Selected with logger_type=gocore.
type GoCoreLogger struct {
	*gocore.Logger
}

func NewGoCoreLogger(service string, options ...Option) *GoCoreLogger {
	if service == "" {
		service = "bundleminer"
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	return &GoCoreLogger{gocore.Log(service, gocore.NewLogLevelFromString(opts.logLevel))}
}

func (g *GoCoreLogger) New(service string, _ ...Option) Logger {
	return &GoCoreLogger{gocore.Log(service, g.Logger.GetLogLevel())}
}

// Duplicate shares the underlying gocore logger, so the level option is ignored.
func (g *GoCoreLogger) Duplicate(_ ...Option) Logger {
	return &GoCoreLogger{g.Logger}
}

// SetLogLevel is a no-op; gocore fixes the level when the logger is created.
func (g *GoCoreLogger) SetLogLevel(string) {}
