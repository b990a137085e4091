package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"seatool_alerts/internal/recon"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/config"
	"seatool_alerts/platform/logger"
)

// Worker runs the stage handlers. Each handler executes one stage for the
// routed pipeline and enqueues the successor stage with the extended
// payload; a returned error triggers asynq's own retry of that single stage.
// ConfigurationError is the only condition marked unretryable — it signals a
// deployment defect, not a data defect.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	chain     *asynq.Client
	queue     string
	pipelines map[string]*recon.Pipeline
	budget    int
	delay     time.Duration
	log       *logger.Logger
}

// NewWorker wires the stage worker for the given pipelines.
func NewWorker(
	cfg config.SchedulerConfig,
	pipelines map[string]*recon.Pipeline,
	iterationBudget int,
	iterationDelay time.Duration,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		chain:     asynq.NewClient(opt),
		queue:     queue,
		pipelines: pipelines,
		budget:    iterationBudget,
		delay:     iterationDelay,
		log:       log,
	}

	w.mux.HandleFunc(TaskRunInit, w.handleInit)
	w.mux.HandleFunc(TaskFetchSource, w.handleFetchSource)
	w.mux.HandleFunc(TaskCheckTarget, w.handleCheckTarget)
	w.mux.HandleFunc(TaskCompare, w.handleCompare)
	w.mux.HandleFunc(TaskSendAlert, w.handleSendAlert)
	w.mux.HandleFunc(TaskUpdateStatus, w.handleUpdateStatus)
	w.mux.HandleFunc(TaskSendReport, w.handleSendReport)

	return w, nil
}

// Run serves stage tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("stage worker stopped", "error", err)
	}
}

// Close releases the chaining client.
func (w *Worker) Close() error {
	if w == nil || w.chain == nil {
		return nil
	}
	return w.chain.Close()
}

func (w *Worker) pipeline(env Envelope) (*recon.Pipeline, error) {
	p, ok := w.pipelines[env.Pipeline]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q: %w", env.Pipeline, asynq.SkipRetry)
	}
	return p, nil
}

// enqueueNext forwards the payload to the successor stage.
func (w *Worker) enqueueNext(ctx context.Context, taskType, pipeline string, payload any, opts ...asynq.Option) error {
	task, err := NewStageTask(taskType, pipeline, payload)
	if err != nil {
		return err
	}
	opts = append(opts, asynq.Queue(w.queue))
	_, err = w.chain.EnqueueContext(ctx, task, opts...)
	return err
}

func (w *Worker) handleInit(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.RunInit
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := p.Init(ctx, in); err != nil {
		if apperr.IsKind(err, apperr.KindConfiguration) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return w.enqueueNext(ctx, TaskFetchSource, env.Pipeline, in)
}

func (w *Worker) handleFetchSource(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.RunInit
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// The stage tracks its own errors and always forwards the payload so
	// the chain keeps moving and the report can show the failure state.
	out := p.FetchSource(ctx, in)
	return w.enqueueNext(ctx, TaskCheckTarget, env.Pipeline, out)
}

func (w *Worker) handleCheckTarget(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.SourceFetched
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	out := p.CheckTarget(ctx, in)
	return w.enqueueNext(ctx, TaskCompare, env.Pipeline, out)
}

func (w *Worker) handleCompare(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.TargetChecked
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	out := p.Compare(in)
	return w.enqueueNext(ctx, TaskSendAlert, env.Pipeline, out)
}

func (w *Worker) handleSendAlert(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.Compared
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	p.SendAlert(ctx, in)
	return w.enqueueNext(ctx, TaskUpdateStatus, env.Pipeline, in)
}

func (w *Worker) handleUpdateStatus(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var in recon.Compared
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	out, err := p.UpdateStatus(ctx, in)
	if err != nil {
		// Retry just this stage; the overwrite semantics make it safe.
		return err
	}

	if out.Match {
		w.log.Info("run reconciled", "runId", in.RunID, "iterations", out.Iterations)
		return nil
	}
	if w.budget > 0 && out.Iterations >= w.budget {
		w.log.Info("run iteration budget exhausted",
			"runId", in.RunID, "iterations", out.Iterations)
		return nil
	}

	next := in.RunInit
	next.Iterations = out.Iterations
	return w.enqueueNext(ctx, TaskFetchSource, env.Pipeline, next, asynq.ProcessIn(w.delay))
}

func (w *Worker) handleSendReport(ctx context.Context, task *asynq.Task) error {
	env, err := ParseEnvelope(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p, err := w.pipeline(env)
	if err != nil {
		return err
	}

	var payload ReportPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := p.SendReport(ctx, payload.ToReportRequest()); err != nil {
		if apperr.IsKind(err, apperr.KindConfiguration) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
