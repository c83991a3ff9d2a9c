package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ironsheep/ui-regions-mcp/internal/compare"
	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

// DetectOutput is the stored result of a ui:detect job.
type DetectOutput struct {
	Detections []detection.Detection `json:"detections"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
}

// Processor executes queued jobs and records their results.
type Processor struct {
	store    ResultStore
	defaults config.DetectionDefaults
	timeout  time.Duration
	log      *logging.Logger
}

// NewProcessor creates a processor. A zero timeout means jobs run without a
// deadline of their own.
func NewProcessor(store ResultStore, defaults config.DetectionDefaults, timeout time.Duration, log *logging.Logger) *Processor {
	if log == nil {
		log = logging.New("queue")
	}
	return &Processor{
		store:    store,
		defaults: defaults,
		timeout:  timeout,
		log:      log,
	}
}

// Register routes both task types on mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDetect, p.HandleDetect)
	mux.HandleFunc(TypeCompare, p.HandleCompare)
}

// HandleDetect runs a ui:detect task.
func (p *Processor) HandleDetect(ctx context.Context, task *asynq.Task) error {
	var payload DetectPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal detect payload: %v: %w", err, asynq.SkipRetry)
	}

	return p.run(ctx, TypeDetect, payload.JobID, func() (interface{}, error) {
		params, err := payload.Params(p.defaults)
		if err != nil {
			return nil, err
		}
		img, err := resolveImage("image", payload.Path, payload.ImageBase64)
		if err != nil {
			return nil, err
		}
		detections, err := detection.Detect(img, params)
		if err != nil {
			return nil, err
		}
		return &DetectOutput{Detections: detections, Width: img.Width, Height: img.Height}, nil
	})
}

// HandleCompare runs a ui:compare task.
func (p *Processor) HandleCompare(ctx context.Context, task *asynq.Task) error {
	var payload ComparePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal compare payload: %v: %w", err, asynq.SkipRetry)
	}

	return p.run(ctx, TypeCompare, payload.JobID, func() (interface{}, error) {
		alpha := payload.Alpha
		if alpha == "" {
			alpha = p.defaults.CompareAlpha
		}
		mode, err := imaging.ParseAlphaMode(alpha)
		if err != nil {
			return nil, err
		}
		a, err := resolveImage("image1", payload.Path1, payload.Image1Base64)
		if err != nil {
			return nil, err
		}
		b, err := resolveImage("image2", payload.Path2, payload.Image2Base64)
		if err != nil {
			return nil, err
		}
		return compare.CompareWith(a, b, compare.Options{Alpha: mode})
	})
}

// run executes work under the job timeout and stores the outcome.
//
// Client errors (bad image, bad parameter) are stored as failed and never
// retried. Other failures are retried by asynq; the failed result is stored
// only once the retry budget is spent.
func (p *Processor) run(ctx context.Context, taskType, jobID string, work func() (interface{}, error)) error {
	if jobID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			jobID = id
		}
	}
	log := p.log.With(taskType)
	started := time.Now()
	attempt, final := attemptOf(ctx)
	log.Info("job started", "job_id", jobID, "attempt", attempt)

	result, err := runWithTimeout(ctx, p.timeout, work)
	record := &JobResult{
		JobID:       jobID,
		Type:        taskType,
		Attempts:    attempt,
		DurationMs:  time.Since(started).Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}

	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.ErrorCode = string(errors.CodeOf(err))

		if errors.IsClientError(err) {
			log.Warn("job rejected", "job_id", jobID, "error", err)
			p.save(ctx, record, log)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		log.Error("job failed", "job_id", jobID, "attempt", attempt, "error", err)
		if final {
			p.save(ctx, record, log)
		}
		return errors.NewJobFailedError(jobID, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errors.NewJobFailedError(jobID, err)
	}
	record.Status = StatusCompleted
	record.Result = data
	if err := p.store.Save(ctx, record); err != nil {
		// The work is done but nobody can read it; let asynq retry.
		log.Error("failed to store result", "job_id", jobID, "error", err)
		return errors.NewJobFailedError(jobID, err)
	}
	log.Info("job completed", "job_id", jobID, "duration_ms", record.DurationMs)
	return nil
}

func (p *Processor) save(ctx context.Context, r *JobResult, log *logging.Logger) {
	if err := p.store.Save(ctx, r); err != nil {
		log.Error("failed to store result", "job_id", r.JobID, "error", err)
	}
}

// attemptOf returns the 1-based attempt number and whether it is the last
// one asynq will make. Outside an asynq handler every attempt is final.
func attemptOf(ctx context.Context) (int, bool) {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return 1, true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return retried + 1, true
	}
	return retried + 1, retried >= maxRetry
}

// ErrJobTimeout is returned when a job outlives its timeout.
var ErrJobTimeout = stderrors.New("job timed out")

// runWithTimeout runs work on its own goroutine and gives up when ctx is
// done or timeout passes. The detector cannot be interrupted, so an
// abandoned work call finishes in the background and its result is dropped.
func runWithTimeout(ctx context.Context, timeout time.Duration, work func() (interface{}, error)) (interface{}, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := work()
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrJobTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}
