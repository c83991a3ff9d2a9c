package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

// Retry backoff bounds
const (
	baseRetryDelay = 5 * time.Second
	maxRetryDelay  = 60 * time.Second
)

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   *Processor
	Logger      *logging.Logger
}

// Consumer pulls jobs off the queue and hands them to a Processor.
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config *ConsumerConfig
	log    *logging.Logger
}

// NewConsumer creates a consumer for cfg.QueueName. Jobs in the "default"
// queue are served at a lower priority.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New("consumer")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Warn("task error", "type", task.Type(), "error", err)
			}),
			Logger:   asynqLogger{log.With("asynq")},
			LogLevel: asynqLevel(log),
		},
	)

	mux := asynq.NewServeMux()
	cfg.Processor.Register(mux)

	return &Consumer{
		server: server,
		mux:    mux,
		config: cfg,
		log:    log,
	}, nil
}

// Start begins processing in the background.
func (c *Consumer) Start() error {
	c.log.Info("starting queue consumer", "queue", c.config.QueueName, "concurrency", c.config.Concurrency)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	return nil
}

// Stop waits for running jobs and shuts the consumer down.
func (c *Consumer) Stop() {
	c.log.Info("stopping queue consumer")
	c.server.Shutdown()
	c.log.Info("queue consumer stopped")
}

// RetryDelay is exponential backoff: 5s, 10s, 20s, 40s, then 60s.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 4 {
		return maxRetryDelay
	}
	return baseRetryDelay << uint(n)
}

// Producer submits jobs to the queue.
type Producer struct {
	client *asynq.Client
	queue  string
}

// NewProducer connects a producer to redisURL.
func NewProducer(redisURL, queue string) (*Producer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Producer{client: asynq.NewClient(redisOpt), queue: queue}, nil
}

// EnqueueDetect submits a ui:detect job and returns its id.
func (p *Producer) EnqueueDetect(ctx context.Context, payload DetectPayload) (string, error) {
	task, jobID, err := NewDetectTask(payload, asynq.Queue(p.queue))
	if err != nil {
		return "", err
	}
	return p.enqueue(ctx, task, jobID)
}

// EnqueueCompare submits a ui:compare job and returns its id.
func (p *Producer) EnqueueCompare(ctx context.Context, payload ComparePayload) (string, error) {
	task, jobID, err := NewCompareTask(payload, asynq.Queue(p.queue))
	if err != nil {
		return "", err
	}
	return p.enqueue(ctx, task, jobID)
}

func (p *Producer) enqueue(ctx context.Context, task *asynq.Task, jobID string) (string, error) {
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job %s: %w", task.Type(), jobID, err)
	}
	return jobID, nil
}

// Close closes the producer's Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}

// asynqLogger routes asynq's own logging through logging.Logger.
type asynqLogger struct {
	log *logging.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}

func asynqLevel(log *logging.Logger) asynq.LogLevel {
	if log.DebugEnabled() {
		return asynq.DebugLevel
	}
	return asynq.InfoLevel
}
