package logutil_test

import (
	"bytes"
	"flag"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v2"

	"github.com/momentics/hioload-net/internal/logutil"
)

func context(t *testing.T, w *bytes.Buffer, args ...string) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("logfmt", "auto", "")
	set.String("loglvl", "info", "")
	require.NoError(t, set.Parse(args))

	app := &cli.App{Name: "test", ErrWriter: w, Metadata: map[string]interface{}{}}
	return cli.NewContext(app, set, nil)
}

func TestFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.Nil(t, logutil.Formatter("none", &buf))
	assert.IsType(t, &logrus.JSONFormatter{}, logutil.Formatter("json", &buf))
	assert.IsType(t, &logrus.TextFormatter{}, logutil.Formatter("text", &buf))
	assert.IsType(t, &logrus.JSONFormatter{}, logutil.Formatter("auto", &buf),
		"non-terminal output falls back to json")
}

func TestNewIsCachedPerApp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := context(t, &buf, "--logfmt", "json", "--loglvl", "warn")

	logger := logutil.New(c)
	assert.Equal(t, logger, logutil.New(c))

	logger.Info("hidden")
	assert.Zero(t, buf.Len(), "info is below warn")

	logger.WithField("k", "v").Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestEventHookIgnoresUnknownEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	hook := logutil.NewEventHook(logutil.New(context(t, &buf, "--logfmt", "json", "--loglvl", "debug")))

	hook(suture.EventResume{SupervisorName: "root"})
	assert.Contains(t, buf.String(), "resumed")
}
