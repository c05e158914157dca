package ulogger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ordishs/gocore"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const callerWidth = 32

var zerologLevels = map[string]zerolog.Level{
	"DEBUG": zerolog.DebugLevel,
	"INFO":  zerolog.InfoLevel,
	"WARN":  zerolog.WarnLevel,
	"ERROR": zerolog.ErrorLevel,
	"FATAL": zerolog.FatalLevel,
	"PANIC": zerolog.PanicLevel,
}

var levelColors = map[string]int{
	"debug": colorBlue,
	"info":  colorGreen,
	"warn":  colorYellow,
	"error": colorRed,
	"fatal": colorRed,
	"panic": colorRed,
}

// ZLoggerWrapper is the default Logger. With PRETTY_LOGS (the default) it writes aligned console
// lines with the service in its own column; otherwise it writes JSON with a "service" field.
type ZLoggerWrapper struct {
	zerolog.Logger
	service string
	w       io.Writer
}

func NewZeroLogger(service string, options ...Option) *ZLoggerWrapper {
	if service == "" {
		service = "bundleminer"
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	var z *ZLoggerWrapper
	if gocore.Config().GetBool("PRETTY_LOGS", true) {
		z = prettyZeroLogger(opts.writer, service)
	} else {
		z = &ZLoggerWrapper{
			Logger: zerolog.New(opts.writer).With().
				Str("service", service).
				CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1).
				Timestamp().
				Logger(),
			service: service,
			w:       opts.writer,
		}
	}

	z.SetLogLevel(opts.logLevel)

	return z
}

func prettyZeroLogger(writer io.Writer, service string) *ZLoggerWrapper {
	noColor := !term.IsTerminal(int(os.Stdout.Fd()))

	output := zerolog.ConsoleWriter{
		Out:        writer,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}

	output.FormatLevel = func(i interface{}) string {
		level, _ := i.(string)
		return "| " + colorize(strings.ToUpper(fmt.Sprintf("%-6s", level)), levelColors[level], noColor) + "|"
	}

	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-11s| %s", service, i)
	}

	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}

	output.FormatCaller = func(i interface{}) string {
		c, _ := i.(string)
		if c == "" {
			return ""
		}

		return colorize(fmt.Sprintf("%-*s", callerWidth, shortCaller(c, callerWidth)), colorBold, noColor)
	}

	return &ZLoggerWrapper{
		Logger: zerolog.New(output).With().
			CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1).
			Timestamp().
			Logger(),
		service: service,
		w:       writer,
	}
}

// shortCaller keeps as many trailing path elements of the caller as fit in width.
func shortCaller(caller string, width int) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, caller); err == nil {
			caller = rel
		}
	}

	parts := strings.Split(caller, "/")
	short := parts[len(parts)-1]

	for i := len(parts) - 2; i >= 0; i-- {
		if len(short)+len(parts[i])+1 > width {
			break
		}

		short = parts[i] + "/" + short
	}

	return short
}

// New creates a logger for another service that writes to the same writer at the same level,
// unless options say otherwise.
func (z *ZLoggerWrapper) New(service string, options ...Option) Logger {
	o := []Option{
		WithWriter(z.w),
		WithLevel(z.Logger.GetLevel().String()),
	}

	return NewZeroLogger(service, append(o, options...)...)
}

func (z *ZLoggerWrapper) Duplicate(options ...Option) Logger {
	opts := &Options{
		writer:   z.w,
		logLevel: z.Logger.GetLevel().String(),
	}

	for _, o := range options {
		o(opts)
	}

	newLogger := &ZLoggerWrapper{Logger: z.Logger.Output(opts.writer), service: z.service, w: opts.writer}
	newLogger.SetLogLevel(opts.logLevel)

	return newLogger
}

// SetLogLevel accepts the level names in any case; unknown names mean INFO.
func (z *ZLoggerWrapper) SetLogLevel(logLevel string) {
	level, ok := zerologLevels[strings.ToUpper(logLevel)]
	if !ok {
		level = zerolog.InfoLevel
	}

	z.Logger = z.Logger.Level(level)
}

func (z *ZLoggerWrapper) LogLevel() int {
	switch z.Logger.GetLevel() {
	case zerolog.DebugLevel:
		return int(gocore.DEBUG)
	case zerolog.WarnLevel:
		return int(gocore.WARN)
	case zerolog.ErrorLevel:
		return int(gocore.ERROR)
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return int(gocore.FATAL)
	default:
		return int(gocore.INFO)
	}
}

func (z *ZLoggerWrapper) Debugf(format string, args ...interface{}) {
	z.Logger.Debug().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Infof(format string, args ...interface{}) {
	z.Logger.Info().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Warnf(format string, args ...interface{}) {
	z.Logger.Warn().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Errorf(format string, args ...interface{}) {
	z.Logger.Error().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Fatalf(format string, args ...interface{}) {
	z.Logger.Fatal().Msgf(format, args...)
}

// colorize wraps s in ANSI code c unless disabled, c is 0, or NO_COLOR is set.
func colorize(s string, c int, disabled bool) string {
	if disabled || c == 0 || os.Getenv("NO_COLOR") != "" {
		return s
	}

	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", c, s)
}
