package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
	"github.com/ironsheep/ui-regions-mcp/internal/queue"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("ui-regions-worker - background worker for screenshot region jobs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ui-regions-worker                      Process jobs until SIGINT/SIGTERM")
	fmt.Println("  ui-regions-worker detect <image>       Enqueue a detection job")
	fmt.Println("  ui-regions-worker compare <a> <b>      Enqueue a comparison job")
	fmt.Println("  ui-regions-worker result <job-id>      Print a stored job result")
	fmt.Println("  ui-regions-worker --version | --help")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  UI_REGIONS_REDIS_URL=redis://localhost:6379/0")
	fmt.Println("  UI_REGIONS_QUEUE=ui-regions")
	fmt.Println("  UI_REGIONS_WORKER_CONCURRENCY=4")
	fmt.Println("  UI_REGIONS_JOB_TIMEOUT_SECONDS=60")
	fmt.Println("  UI_REGIONS_RESULT_TTL_SECONDS=3600")
	fmt.Println("  UI_REGIONS_RESULT_PREFIX=ui-regions:result")
}

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("ui-regions-worker %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	}

	_ = godotenv.Load()
	log := logging.New("ui-regions-worker")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log = cfg.Logger("ui-regions-worker")

	switch cmd {
	case "":
		err = runWorker(cfg, log)
	case "detect":
		err = submit(cfg, os.Args[2:], 1, func(ctx context.Context, p *queue.Producer, args []string) (string, error) {
			return p.EnqueueDetect(ctx, queue.DetectPayload{Path: args[0]})
		})
	case "compare":
		err = submit(cfg, os.Args[2:], 2, func(ctx context.Context, p *queue.Producer, args []string) (string, error) {
			return p.EnqueueCompare(ctx, queue.ComparePayload{Path1: args[0], Path2: args[1]})
		})
	case "result":
		err = printResult(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func runWorker(cfg *config.Config, log *logging.Logger) error {
	log.Info("worker starting", "version", Version, "queue", cfg.QueueName, "concurrency", cfg.WorkerConcurrency)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := queue.NewRedisResultStore(ctx, cfg.RedisURL, cfg.ResultPrefix, cfg.ResultTTL)
	cancel()
	if err != nil {
		return err
	}
	defer store.Close()

	proc := queue.NewProcessor(store, cfg.Defaults, cfg.JobTimeout, log.With("jobs"))
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		Processor:   proc,
		Logger:      log.With("consumer"),
	})
	if err != nil {
		return err
	}
	if err := consumer.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig)

	consumer.Stop()
	return nil
}

func submit(cfg *config.Config, args []string, want int,
	enqueue func(context.Context, *queue.Producer, []string) (string, error)) error {
	if len(args) != want {
		return fmt.Errorf("expected %d image path(s), got %d", want, len(args))
	}

	producer, err := queue.NewProducer(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobID, err := enqueue(ctx, producer, args)
	if err != nil {
		return err
	}
	fmt.Println(jobID)
	return nil
}

func printResult(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected a job id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := queue.NewRedisResultStore(ctx, cfg.RedisURL, cfg.ResultPrefix, cfg.ResultTTL)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
