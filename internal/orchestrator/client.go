package orchestrator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"seatool_alerts/internal/recon"
	"seatool_alerts/platform/config"
)

// Client enqueues run starts and report requests.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient creates an orchestrator client from the scheduler configuration.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// StartRun enqueues the init stage for a new run, idempotently keyed by the
// run id. A task-id conflict means a run for this correlation id is already
// in flight; that is reported as started=false with no error.
func (c *Client) StartRun(ctx context.Context, pipeline, runID string, input recon.RunInit) (bool, error) {
	task, err := NewStageTask(TaskRunInit, pipeline, input)
	if err != nil {
		return false, err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("recon:"+runID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnqueueReport schedules a manually triggered status report.
func (c *Client) EnqueueReport(ctx context.Context, pipeline string, payload ReportPayload) error {
	task, err := NewReportTask(pipeline, payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// ForPipeline adapts the client to the core RunStarter contract for one
// pipeline.
func (c *Client) ForPipeline(pipeline string) recon.RunStarter {
	return pipelineStarter{client: c, pipeline: pipeline}
}

type pipelineStarter struct {
	client   *Client
	pipeline string
}

func (s pipelineStarter) StartRun(ctx context.Context, runID string, input recon.RunInit) (bool, error) {
	return s.client.StartRun(ctx, s.pipeline, runID, input)
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
