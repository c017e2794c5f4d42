package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdutil "github.com/dukex/flowtransfer/pkg/cmd"
	"github.com/dukex/flowtransfer/pkg/log"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/scheduler"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/dukex/flowtransfer/pkg/web"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var errTransferIncomplete = errors.New("some workflows failed to transfer")

func TransferCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Copy the selected workflows from source to target",
		Flags: transferFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(logLevel(command))
			logger := log.WithModule("cli")

			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			opts, err := buildOptions(command, cfg)
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{
				eventBus: cfg.EventBus != "" && cfg.EventBus != "none",
				tracing:  command.Bool("tracing"),
			})
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if rt.bus != nil {
				err = watchProgress(ctx, rt.bus, os.Stdout)
				if err != nil {
					return err
				}
			}

			if cfg.Schedule != "" {
				return runScheduled(ctx, rt, opts, int(command.Int("status-port")))
			}

			return runOnce(ctx, rt, opts, int(command.Int("status-port")))
		},
	}
}

func runOnce(ctx context.Context, rt *runtime, opts transfer.Options, port int) error {
	manager := rt.newManager()

	serveCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if port > 0 {
		server := web.NewServer(rt.logger, manager, cmdutil.StatsOf(rt.source, rt.target), rt.registry)

		go func() {
			err := server.Start(serveCtx, port)
			if err != nil {
				rt.logger.Error("Status server stopped", "error", err)
			}
		}()
	}

	summary, err := manager.Transfer(ctx, opts)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, summary)

	if summary.Failed > 0 {
		return errTransferIncomplete
	}

	return nil
}

func runScheduled(ctx context.Context, rt *runtime, opts transfer.Options, port int) error {
	sched, err := scheduler.New(rt.cfg.Schedule, opts, rt.newManager, rt.logger)
	if err != nil {
		return err
	}

	sched.OnRun(func(summary *models.Summary, err error) {
		if err == nil {
			printSummary(os.Stdout, summary)
		}
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if port > 0 {
		server := web.NewServer(rt.logger, sched, cmdutil.StatsOf(rt.source, rt.target), rt.registry)

		g.Go(func() error {
			return server.Start(gctx, port)
		})
	}

	err = sched.Start(gctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Scheduled transfers with %q, press Ctrl+C to stop\n", rt.cfg.Schedule)

	<-gctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = sched.Stop(stopCtx)
	if err != nil {
		rt.logger.Warn("Scheduler did not stop cleanly", "error", err)
	}

	return g.Wait()
}
