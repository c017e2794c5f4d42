package main

import (
	"context"
	"log/slog"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	cmdutil "github.com/dukex/flowtransfer/pkg/cmd"
	"github.com/dukex/flowtransfer/pkg/config"
	"github.com/dukex/flowtransfer/pkg/eventbus"
	"github.com/dukex/flowtransfer/pkg/otelhelper"
	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"go.opentelemetry.io/otel/trace"
)

// runtime holds the collaborators shared by every manager built for one command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	source   *apiclient.Client
	target   *apiclient.Client
	bus      eventbus.EventBus
	tracer   trace.Tracer
	shutdown otelhelper.ShutdownFunc
}

type runtimeOptions struct {
	eventBus bool
	tracing  bool
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		tracer: otelhelper.NoopTracer(),
	}

	reg, err := cmdutil.NewRegistry(logger, cfg.OutputDir, cfg.PluginsPath)
	if err != nil {
		return nil, err
	}

	rt.registry = reg

	rt.source, rt.target, err = cmdutil.NewAPIClients(cfg, logger)
	if err != nil {
		return nil, err
	}

	if opts.eventBus {
		rt.bus, err = cmdutil.NewEventBus(cfg.EventBus, cfg.Brokers, logger)
		if err != nil {
			return nil, err
		}
	}

	if opts.tracing {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "flowtransfer")
		if err != nil {
			rt.close(ctx)

			return nil, err
		}

		rt.tracer = tracer
		rt.shutdown = shutdown
	}

	return rt, nil
}

func (rt *runtime) newManager() *transfer.Manager {
	opts := []transfer.Option{transfer.WithTracer(rt.tracer)}

	if rt.bus != nil {
		opts = append(opts, transfer.WithEventPublisher(rt.bus))
	}

	return transfer.NewManager(rt.source, rt.target, rt.registry, rt.logger, opts...)
}

func (rt *runtime) close(ctx context.Context) {
	if rt.bus != nil {
		err := rt.bus.Close()
		if err != nil {
			rt.logger.Warn("Failed to close event bus", "error", err)
		}
	}

	if rt.shutdown != nil {
		err := rt.shutdown(ctx)
		if err != nil {
			rt.logger.Warn("Failed to flush traces", "error", err)
		}
	}
}
