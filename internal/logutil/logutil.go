// Package logutil configures loggers from a cli context.
package logutil

import (
	"io"
	"os"

	"github.com/lthibault/log"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v2"
)

// New logger from a cli context. The logger is cached on the app, so every
// call for the same app returns the same instance.
func New(c *cli.Context) log.Logger {
	if logger := get(c); logger != nil {
		return logger
	}

	return bind(c)
}

// WithLevel returns a log.Option that configures a logger's level.
func WithLevel(c *cli.Context) log.Option {
	if c.String("logfmt") == "none" {
		return log.WithLevel(log.FatalLevel)
	}

	return Level(c.String("loglvl"))
}

// Level maps a level name or its first letter to a level option. Unknown
// names yield info.
func Level(name string) log.Option {
	switch name {
	case "trace", "t":
		return log.WithLevel(log.TraceLevel)
	case "debug", "d":
		return log.WithLevel(log.DebugLevel)
	case "warn", "warning", "w":
		return log.WithLevel(log.WarnLevel)
	case "error", "err", "e":
		return log.WithLevel(log.ErrorLevel)
	case "fatal", "f":
		return log.WithLevel(log.FatalLevel)
	default:
		return log.WithLevel(log.InfoLevel)
	}
}

// WithFormat returns an option that configures a logger's format. "auto"
// picks text when w is a terminal and json otherwise.
func WithFormat(c *cli.Context) log.Option {
	return log.WithFormatter(Formatter(c.String("logfmt"), errWriter(c)))
}

// Formatter resolves a format name for output w.
func Formatter(name string, w io.Writer) logrus.Formatter {
	switch name {
	case "none":
		return nil
	case "json":
		return new(logrus.JSONFormatter)
	case "text":
		return new(logrus.TextFormatter)
	}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return new(logrus.JSONFormatter)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// key with random component to avoid collision
const key = "hioload.util.log:q7#Vd]0s~L!x"

func bind(c *cli.Context) log.Logger {
	logger := log.New(
		WithLevel(c),
		WithFormat(c),
		log.WithWriter(errWriter(c)))

	if c.App != nil {
		if c.App.Metadata == nil {
			c.App.Metadata = map[string]interface{}{}
		}
		c.App.Metadata[key] = func() log.Logger {
			return logger
		}
	}

	return logger
}

func get(c *cli.Context) log.Logger {
	if c.App == nil {
		return nil
	}
	if logger, ok := c.App.Metadata[key].(func() log.Logger); ok {
		return logger()
	}

	return nil
}

// NewEventHook logs supervisor events.
func NewEventHook(log log.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch e.Type() {
		case suture.EventTypeServicePanic:
			log.WithFields(e.Map()).Error("service panicked")

		case suture.EventTypeBackoff:
			log.WithFields(e.Map()).Debug("entered backoff state")

		case suture.EventTypeResume:
			log.WithFields(e.Map()).Debug("resumed")

		case suture.EventTypeServiceTerminate:
			log.WithFields(e.Map()).Warn("service terminated")

		case suture.EventTypeStopTimeout:
			log.WithFields(e.Map()).Error("service did not stop in time")
		}
	}
}
