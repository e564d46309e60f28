package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lthibault/log"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/internal/logutil"
	"github.com/momentics/hioload-net/server"
	"github.com/momentics/hioload-net/session"
)

const (
	defaultReportInterval = 10 * time.Second
	startTimeout          = 15 * time.Second
	stopTimeout           = 15 * time.Second
)

var modules = fx.Options(
	fx.Provide(
		logutil.New,
		newConfig,
		newMetrics,
		control.NewDebugProbes,
		newRegistry,
		newService,
		newSupervisor),
	fx.Invoke(bind))

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := fx.New(fx.NopLogger,
		fx.Supply(c),
		modules)

	if err := start(ctx, app); err != nil {
		return err
	}

	<-ctx.Done()
	logutil.New(c).Warn("shutting down")

	return shutdown(app)
}

func start(ctx context.Context, app *fx.App) error {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	return app.Start(ctx)
}

func shutdown(app *fx.App) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err = app.Stop(ctx); err == context.Canceled {
		err = nil
	}

	return
}

// newConfig loads the YAML file, if any, and overlays explicitly set flags.
func newConfig(c *cli.Context) (*server.Config, error) {
	cfg := server.DefaultConfig()
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = server.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	overlayInt(c, "port", &cfg.Port)
	overlayInt(c, "backlog", &cfg.Backlog)
	overlayInt(c, "accept-cpu", &cfg.AcceptCPU)
	overlayInt(c, "max-conn", &cfg.MaxConnections)
	overlayInt(c, "segment-size", &cfg.SegmentSize)
	if c.IsSet("statsd") {
		cfg.Statsd = c.String("statsd")
	}
	if c.IsSet("report-interval") {
		cfg.ReportInterval = c.Duration("report-interval")
	}

	return cfg, cfg.Validate()
}

func overlayInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func newMetrics(cfg *server.Config, log log.Logger, lx fx.Lifecycle) *control.Registry {
	sink := control.NewStatsd(cfg.Statsd, log)
	if s, ok := sink.(control.Statsd); ok {
		lx.Append(fx.Hook{
			OnStop: func(context.Context) error {
				s.Close()
				return nil
			},
		})
	}

	return control.NewRegistry(sink)
}

func newRegistry() *session.Registry {
	return session.NewRegistry(0)
}

type serviceConfig struct {
	fx.In

	Config    *server.Config
	Log       log.Logger
	Metrics   *control.Registry
	Probes    *control.DebugProbes
	Sessions  *session.Registry
	Lifecycle fx.Lifecycle
}

func (config serviceConfig) Options() []server.Option {
	return []server.Option{
		server.WithLogger(config.Log),
		server.WithMetrics(config.Metrics.WithPrefix("server")),
		server.WithDebugProbes(config.Probes),
		server.WithAcceptCPU(config.Config.AcceptCPU),
		server.WithTokenFactory(session.Factory(echo)),
		server.WithSessionCreated(func(t server.Token) {
			config.Sessions.Track(t.(*session.Token))
		}),
	}
}

func newService(config serviceConfig) (*server.NetworkService, error) {
	svc := server.NewNetworkService(config.Options()...)

	cfg := config.Config
	if err := svc.Initialize(cfg.MaxConnections, cfg.SegmentSize); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	config.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return svc.Listen(cfg.Host, cfg.Port, cfg.Backlog)
		},
		OnStop: func(context.Context) error {
			return svc.Close()
		},
	})

	return svc, nil
}

// echo writes every received chunk back to its sender.
func echo(t *session.Token, p []byte) {
	if err := t.Send(p); err != nil {
		t.Close()
	}
}

func newSupervisor(c *cli.Context, log log.Logger) *suture.Supervisor {
	return suture.New(c.App.Name, suture.Spec{
		EventHook: logutil.NewEventHook(log),
	})
}

type runtimeConfig struct {
	fx.In

	Config     *server.Config
	Log        log.Logger
	Service    *server.NetworkService
	Sessions   *session.Registry
	Metrics    *control.Registry
	Probes     *control.DebugProbes
	Supervisor *suture.Supervisor
	Lifecycle  fx.Lifecycle
}

func (config runtimeConfig) Reporter() *reporter {
	return &reporter{
		log:      config.Log,
		svc:      config.Service,
		sessions: config.Sessions,
		metrics:  config.Metrics,
		probes:   config.Probes,
		interval: config.Config.ReportInterval,
	}
}

// bind hooks the supervisor into the application lifecycle.
func bind(c *cli.Context, config runtimeConfig) {
	ctx, cancel := context.WithCancel(c.Context) // cancelled by stop hook

	if config.Config.ReportInterval > 0 {
		config.Supervisor.Add(config.Reporter())
	}

	var cherr <-chan error

	config.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cherr = config.Supervisor.ServeBackground(ctx)
			config.Log.
				WithField("addr", config.Service.Addr().String()).
				WithField("version", version).
				Info("hioload-net started")
			return nil
		},
		OnStop: func(ctx context.Context) (err error) {
			cancel()

			select {
			case err = <-cherr:
				if errors.Is(err, context.Canceled) {
					err = nil
				}
				return err

			case <-ctx.Done():
				return fmt.Errorf("shutdown: %w", ctx.Err())
			}
		},
	})
}
