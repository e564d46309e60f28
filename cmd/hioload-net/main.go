// File: cmd/hioload-net/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-net runs an echo server on top of the completion-based TCP core.

package main

import (
	"os"

	"github.com/lthibault/log"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

var flags = []cli.Flag{
	&cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "load settings from YAML `file`; flags take precedence",
		EnvVars: []string{"HIOLOAD_CONFIG"},
	},
	// Listener
	&cli.StringFlag{
		Name:    "host",
		Usage:   "bind to IPv4 `address` (0.0.0.0 for all interfaces)",
		Value:   "0.0.0.0",
		EnvVars: []string{"HIOLOAD_HOST"},
	},
	&cli.IntFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Usage:   "listen on `port`",
		Value:   7979,
		EnvVars: []string{"HIOLOAD_PORT"},
	},
	&cli.IntFlag{
		Name:    "backlog",
		Usage:   "pending connection queue `depth`",
		Value:   100,
		EnvVars: []string{"HIOLOAD_BACKLOG"},
	},
	&cli.IntFlag{
		Name:    "accept-cpu",
		Usage:   "pin the accept loop to `cpu` (-1 disables)",
		Value:   -1,
		EnvVars: []string{"HIOLOAD_ACCEPT_CPU"},
	},
	// Sizing
	&cli.IntFlag{
		Name:    "max-conn",
		Usage:   "serve at most `n` concurrent connections",
		Value:   1000,
		EnvVars: []string{"HIOLOAD_MAX_CONN"},
	},
	&cli.IntFlag{
		Name:    "segment-size",
		Usage:   "receive/send buffer `bytes` per connection",
		Value:   1024,
		EnvVars: []string{"HIOLOAD_SEGMENT_SIZE"},
	},
	// Logging
	&cli.StringFlag{
		Name:    "logfmt",
		Aliases: []string{"f"},
		Usage:   "`format` logs as auto, text, json or none",
		Value:   "auto",
		EnvVars: []string{"HIOLOAD_LOGFMT"},
	},
	&cli.StringFlag{
		Name:    "loglvl",
		Usage:   "set logging `level` to trace, debug, info, warn, error or fatal",
		Value:   "info",
		EnvVars: []string{"HIOLOAD_LOGLVL"},
	},
	// Statsd
	&cli.StringFlag{
		Name:        "statsd",
		Aliases:     []string{"metrics"},
		Usage:       "send metrics to udp `host:port`",
		EnvVars:     []string{"HIOLOAD_STATSD"},
		DefaultText: "disabled",
	},
	&cli.DurationFlag{
		Name:    "report-interval",
		Usage:   "log connection stats every `interval` (0 disables)",
		Value:   defaultReportInterval,
		EnvVars: []string{"HIOLOAD_REPORT_INTERVAL"},
	},
}

func main() {
	run(&cli.App{
		Name:      "hioload-net",
		Usage:     "completion-based TCP echo server",
		UsageText: "hioload-net [global options]",
		Version:   version,
		Flags:     flags,
		Action:    serve,
		Metadata: map[string]interface{}{
			"version": version,
		},
	})
}

func run(app *cli.App) {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
