package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/build"
	"github.com/roasbeef/pagesum/internal/config"
	"github.com/roasbeef/pagesum/internal/coordinator"
	"github.com/roasbeef/pagesum/internal/engine"
	"github.com/roasbeef/pagesum/internal/extractor"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/lifecycle"
	"github.com/roasbeef/pagesum/internal/transport"
)

// run wires every component and blocks until ctx is cancelled or a server
// fails.
func run(ctx context.Context, cfg *config.Config) error {
	logs, err := build.NewLogging(cfg.LogConfig(), os.Stdout)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logs.Close()

	actor.UseLogger(logs.SubLogger("ACTR"))
	transport.UseLogger(logs.SubLogger("TRNS"))

	log := logs.Root
	log.Info("Starting pagesumd", "version", build.Version(),
		"commit", build.CommitHash(), "go", build.GoVersion())

	kv, err := cfg.Store.OpenStore(log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error("Closing store", "error", err)
		}
	}()

	system := actor.NewActorSystem()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), cfg.Gateway.CallTimeout,
		)
		defer cancel()

		if err := system.Shutdown(shutdownCtx); err != nil {
			log.Error("Actor system shutdown", "error", err)
		}
	}()

	// The hub is spawned with the coordinator, after the engine exists.
	// Progress is only reported once a request reaches the engine.
	var hub transport.HubRef
	eng := engine.NewManager(
		cfg.EngineManagerConfig(),
		engine.NewOpenAIBackend(cfg.OpenAIConfig(), log),
		log,
		engine.WithProgressHandler(func(p float64) {
			if hub != nil {
				transport.Publish(
					ctx, hub, transport.ModelLoadProgress{
						Progress: p,
					},
				)
			}
		}),
	)

	hist := history.NewManager(cfg.HistoryManagerConfig(), kv, log)

	coordRef, hub := coordinator.Spawn(
		ctx, system, coordinator.Config{
			CleanupMaxAge: cfg.History.CleanupMaxAge,
		}, hist, fn.Some[coordinator.Releaser](eng), log,
	)

	extractRef := extractor.Spawn(
		system, extractor.New(extractor.DefaultConfig(), nil, log),
	)

	client := transport.NewClient(
		transport.DefaultClientConfig(), coordRef, log,
	)

	ctrl := lifecycle.NewController(
		cfg.ControllerConfig(), client, eng,
		transport.NewExtractClient(
			extractRef, cfg.Controller.ExtractTimeout,
		),
		fn.Some(lifecycle.HubObserver(hub)), log,
	)

	err = startCoordinator(ctx, client.Ping, ctrl.Recover, log)
	if err != nil {
		return err
	}

	gateway := transport.NewGateway(
		cfg.GatewayConfig(), coordRef, hub, ctrl, log,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.ListenAndServe(gctx)
	})
	g.Go(func() error {
		hist.RunCleanupLoop(gctx)
		return nil
	})

	log.Info("Gateway listening", "addr", cfg.Gateway.ListenAddr)

	err = g.Wait()

	eng.Teardown()
	log.Info("pagesumd stopped")

	if err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// startCoordinator waits for the coordinator to answer a ping and then runs
// crash recovery. A failed recovery is retried lazily by the controller.
func startCoordinator(ctx context.Context, ping func(context.Context) error,
	recoverItems func(context.Context) (int, error), log *slog.Logger) error {

	if err := ping(ctx); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	switch n, err := recoverItems(ctx); {
	case err != nil:
		log.Warn("Crash recovery deferred", "error", err)

	case n > 0:
		log.Warn("Recovered interrupted summaries", "count", n)
	}

	return nil
}
