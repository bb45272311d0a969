// serve.go and worker.go wire the full subsystem graph: Distributor,
// Worker Pool, Delay Scheduler, HTTP Loop Scheduler, HIL Coordinator (plus
// its timeout processor), Resumption Service, and Cleanup Service (spec.md
// §2, §4.1-§4.10). Grounded on the teacher's graph/engine.go
// goroutine-per-subsystem shape, generalized from one engine.Run() call
// into an errgroup of independently cancellable background loops sharing
// one store.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openobserve/swisspipe-engine/pkg/cleanup"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/email"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/delay"
	"github.com/openobserve/swisspipe-engine/pkg/emit"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/hil"
	"github.com/openobserve/swisspipe-engine/pkg/httploop"
	"github.com/openobserve/swisspipe-engine/pkg/llm"
	"github.com/openobserve/swisspipe-engine/pkg/logging"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/resumption"
	"github.com/openobserve/swisspipe-engine/pkg/script"
	"github.com/openobserve/swisspipe-engine/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the distributor, worker pool, schedulers, and resumption pass in one process",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd.Context(), true)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runEngine builds every collaborator and background loop and blocks until
// ctx is cancelled. withSchedulers is false for the `worker` subcommand:
// additional worker-only replicas share one store with a single `serve`
// process that owns the Delay/HTTP-Loop/HIL schedulers and the
// Resumption/Cleanup services (spec.md §1 Non-goals: "horizontal scale is
// achieved by replicating the process").
func runEngine(ctx context.Context, withSchedulers bool) error {
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	q := queue.New(st)
	limiters := collaborators.NewLimiters(cfg.HTTPRateLimitPerSec, cfg.EmailRateLimitPerSec, cfg.LLMRateLimitPerSec)
	httpClient := httpclient.New(limiters)
	emailSender := email.New(email.Config{Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom}, limiters)
	llmDispatch := llm.NewDispatch(llm.Keys{Anthropic: cfg.AnthropicAPIKey, OpenAI: cfg.OpenAIAPIKey, Google: cfg.GoogleAPIKey}, limiters)
	scriptEngine := script.NewEngine(script.NewDefaultChecker())

	delaySched := delay.New(st, q, log)
	loopSched := httploop.New(st, httpClient, scriptEngine, log)
	hilCoord := hil.New(st, st, st, st, q, log)

	registry := worker.BuildRegistry(worker.Dependencies{
		Script:      scriptEngine,
		HTTPClient:  httpClient,
		EmailSender: emailSender,
		LLM:         llmDispatch,
		Delay:       delaySched,
		Loops:       loopSched,
		Hil:         hilCoord,
	})

	var emitter emit.Emitter = emit.NewZapEmitter(log)
	if cfg.TracingEnabled {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String("swisspipe-engine"),
			)),
		)
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer provider shutdown failed", zap.Error(err))
			}
		}()
		emitter = emit.NewMultiEmitter(emitter, emit.NewOTelEmitter(otel.Tracer("swisspipe-engine")))
	}
	interpreter := &engine.Interpreter{
		Steps:      st,
		Executions: st,
		Registry:   registry,
		NewID:      func() string { return uuid.Must(uuid.NewV7()).String() },
		Now:        time.Now,
		Emit: func(executionID, nodeID, msg string) {
			emitter.Emit(emit.Event{Source: emit.SourceStep, ExecutionID: executionID, NodeID: nodeID, Msg: msg})
		},
	}

	dist := queue.NewDistributor(st, "distributor", cfg.DistributorBufferSize, log)
	pool := worker.New(cfg.WorkerCount, dist, q, st, st, interpreter, hilCoord, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { dist.Run(gctx, cfg.DistributorPollInterval); return nil })
	g.Go(func() error { return pool.Run(gctx) })

	if withSchedulers {
		restoreDelays := func(ctx context.Context) error {
			_, _, err := delaySched.RestoreFromStartup(ctx)
			return err
		}
		restoreLoops := func(ctx context.Context) error {
			_, err := loopSched.RestoreFromStartup(ctx)
			return err
		}
		resumer := resumption.New(st, st, q, restoreDelays, restoreLoops, log)
		if err := resumer.Run(ctx, cfg.JobStaleTimeout.Microseconds()); err != nil {
			return fmt.Errorf("resumption pass: %w", err)
		}

		timeoutProc := hil.NewTimeoutProcessor(hilCoord, cfg.HilTimeoutInterval, log)
		cleaner := cleanup.New(st, time.Duration(cfg.ExecutionRetentionHrs)*time.Hour, cfg.CleanupInterval, log)

		g.Go(func() error { loopSched.Run(gctx, cfg.HTTPLoopTickInterval); return nil })
		g.Go(func() error { timeoutProc.Run(gctx); return nil })
		g.Go(func() error { cleaner.Run(gctx); return nil })
		g.Go(func() error { staleJobSweep(gctx, q, cfg.DelayCheckInterval, cfg.JobStaleTimeout, log); return nil })
	}

	return g.Wait()
}

// staleJobSweep periodically reclaims jobs left `claimed` by a worker that
// died mid-dispatch (spec §4.1 "stale cleanup"), independent of the
// one-shot sweep the Resumption Service runs at startup.
func staleJobSweep(ctx context.Context, q *queue.Queue, interval, timeout time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.CleanupStale(ctx, timeout.Microseconds())
			if err != nil {
				log.Error("stale job sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("stale job sweep reclaimed jobs", zap.Int("count", n))
			}
		}
	}
}
