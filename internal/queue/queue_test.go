package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ironsheep/ui-regions-mcp/internal/compare"
	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

func screen(width, height int, rects ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i++ {
		img.Pix[i] = 255
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screen.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func pngBase64(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestProcessor(store ResultStore) *Processor {
	log := logging.NewWithWriter("test", io.Discard, logging.LevelError)
	return NewProcessor(store, config.DefaultDetectionDefaults(), 10*time.Second, log)
}

func mustTask(task *asynq.Task, _ string, err error) *asynq.Task {
	if err != nil {
		panic(err)
	}
	return task
}

func TestHandleDetect_FromFile(t *testing.T) {
	store := NewMemoryResultStore()
	p := newTestProcessor(store)
	path := writePNG(t, screen(400, 300, image.Rect(100, 80, 300, 220)))

	task := mustTask(NewDetectTask(DetectPayload{JobID: "job-1", Path: path}))
	if err := p.HandleDetect(context.Background(), task); err != nil {
		t.Fatalf("HandleDetect: %v", err)
	}

	got, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("result not stored: %v", err)
	}
	if got.Status != StatusCompleted || got.Type != TypeDetect {
		t.Fatalf("got status %q type %q", got.Status, got.Type)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts: got %d, want 1", got.Attempts)
	}

	var out DetectOutput
	if err := json.Unmarshal(got.Result, &out); err != nil {
		t.Fatalf("result does not decode: %v", err)
	}
	if out.Width != 400 || out.Height != 300 {
		t.Errorf("dimensions: got %dx%d", out.Width, out.Height)
	}
	if len(out.Detections) != 1 || out.Detections[0].Label != "window" {
		t.Errorf("got detections %+v, want one window", out.Detections)
	}
}

func TestHandleDetect_RereadsFileEveryJob(t *testing.T) {
	store := NewMemoryResultStore()
	p := newTestProcessor(store)
	path := writePNG(t, screen(400, 300))

	detect := func(jobID string) DetectOutput {
		t.Helper()
		task := mustTask(NewDetectTask(DetectPayload{JobID: jobID, Path: path}))
		if err := p.HandleDetect(context.Background(), task); err != nil {
			t.Fatalf("HandleDetect: %v", err)
		}
		got, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("result not stored: %v", err)
		}
		var out DetectOutput
		if err := json.Unmarshal(got.Result, &out); err != nil {
			t.Fatalf("result does not decode: %v", err)
		}
		return out
	}

	if out := detect("blank"); len(out.Detections) != 0 {
		t.Fatalf("blank screen: got %+v", out.Detections)
	}

	// Same path, new contents.
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, screen(400, 300, image.Rect(100, 80, 300, 220))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if out := detect("window"); len(out.Detections) != 1 {
		t.Errorf("rewritten screen: got %+v, want one detection", out.Detections)
	}
}

func TestHandleDetect_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		stored   bool
		wantCode errors.ErrorCode
	}{
		{"malformed json", []byte("{not json"), false, ""},
		{"unknown profile", []byte(`{"job_id":"j","image_base64":"AAAA","profile":"mobile"}`), true, errors.ErrorInvalidParameter},
		{"no image", []byte(`{"job_id":"j"}`), true, errors.ErrorInvalidParameter},
		{"bad base64 image", []byte(`{"job_id":"j","image_base64":"bm90IGFuIGltYWdl"}`), true, errors.ErrorDecodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryResultStore()
			p := newTestProcessor(store)

			err := p.HandleDetect(context.Background(), asynq.NewTask(TypeDetect, tt.payload))
			if !stderrors.Is(err, asynq.SkipRetry) {
				t.Fatalf("got %v, want a SkipRetry error", err)
			}

			got, getErr := store.Get(context.Background(), "j")
			if !tt.stored {
				if getErr != ErrResultNotFound {
					t.Errorf("expected no stored result, got %+v", got)
				}
				return
			}
			if getErr != nil {
				t.Fatalf("failed result not stored: %v", getErr)
			}
			if got.Status != StatusFailed || got.ErrorCode != string(tt.wantCode) {
				t.Errorf("got status %q code %q, want failed %q", got.Status, got.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestHandleDetect_MissingFileIsRetried(t *testing.T) {
	store := NewMemoryResultStore()
	p := newTestProcessor(store)
	path := filepath.Join(t.TempDir(), "missing.png")

	task := mustTask(NewDetectTask(DetectPayload{JobID: "job-2", Path: path}))
	err := p.HandleDetect(context.Background(), task)
	if err == nil {
		t.Fatal("expected an error")
	}
	if stderrors.Is(err, asynq.SkipRetry) {
		t.Error("a missing file should be retried")
	}
	if errors.CodeOf(err) != errors.ErrorJobFailed {
		t.Errorf("code: got %q, want %q", errors.CodeOf(err), errors.ErrorJobFailed)
	}

	// Outside a server every attempt is the last one, so the failure is kept.
	got, err := store.Get(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("failed result not stored: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status: got %q, want %q", got.Status, StatusFailed)
	}
}

func TestHandleCompare_Identical(t *testing.T) {
	store := NewMemoryResultStore()
	p := newTestProcessor(store)
	payload := pngBase64(t, screen(120, 80, image.Rect(10, 10, 60, 40)))

	task := mustTask(NewCompareTask(ComparePayload{
		JobID:        "cmp-1",
		Image1Base64: payload,
		Image2Base64: payload,
	}))
	if err := p.HandleCompare(context.Background(), task); err != nil {
		t.Fatalf("HandleCompare: %v", err)
	}

	got, err := store.Get(context.Background(), "cmp-1")
	if err != nil {
		t.Fatalf("result not stored: %v", err)
	}
	var out compare.Result
	if err := json.Unmarshal(got.Result, &out); err != nil {
		t.Fatalf("result does not decode: %v", err)
	}
	if out.SimilarityScore != 1 {
		t.Errorf("score: got %v, want 1", out.SimilarityScore)
	}
	if len(out.Changes) != 0 {
		t.Errorf("changes: got %v, want none", out.Changes)
	}
}

func TestHandleCompare_BadAlpha(t *testing.T) {
	store := NewMemoryResultStore()
	p := newTestProcessor(store)

	task := mustTask(NewCompareTask(ComparePayload{JobID: "cmp-2", Alpha: "premultiply"}))
	err := p.HandleCompare(context.Background(), task)
	if !stderrors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, want a SkipRetry error", err)
	}
	if got, err := store.Get(context.Background(), "cmp-2"); err != nil || got.Status != StatusFailed {
		t.Errorf("expected a stored failure, got %+v, %v", got, err)
	}
}

func TestNewDetectTask(t *testing.T) {
	task, id, err := NewDetectTask(DetectPayload{Path: "a.png"})
	if err != nil {
		t.Fatalf("NewDetectTask: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated job id")
	}
	if task.Type() != TypeDetect {
		t.Errorf("type: got %q", task.Type())
	}

	var p DetectPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if p.JobID != id || p.Path != "a.png" {
		t.Errorf("payload: got %+v", p)
	}

	_, id, _ = NewDetectTask(DetectPayload{JobID: "fixed"})
	if id != "fixed" {
		t.Errorf("explicit id: got %q", id)
	}
}

func TestDetectPayload_Params(t *testing.T) {
	d := config.DefaultDetectionDefaults()
	d.MinArea = 250

	sens := 0.8
	p := DetectPayload{Sensitivity: &sens, Profile: "panels", Alpha: "drop"}
	params, err := p.Params(d)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if params.Sensitivity != 0.8 || params.MinArea != 250 || params.MaxArea != 0 {
		t.Errorf("got %+v", params)
	}
	if params.Profile.String() != "panels" || params.Alpha.String() != "drop" {
		t.Errorf("profile %v alpha %v", params.Profile, params.Alpha)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 60 * time.Second},
		{50, 60 * time.Second},
		{-1, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.n, nil, nil); got != tt.want {
			t.Errorf("RetryDelay(%d): got %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRunWithTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, err := runWithTimeout(context.Background(), 20*time.Millisecond, func() (interface{}, error) {
		<-release
		return nil, nil
	})
	if !stderrors.Is(err, ErrJobTimeout) {
		t.Fatalf("got %v, want ErrJobTimeout", err)
	}

	got, err := runWithTimeout(context.Background(), time.Second, func() (interface{}, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("got %v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runWithTimeout(ctx, 0, func() (interface{}, error) {
		<-release
		return nil, nil
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRedisResultStore_Key(t *testing.T) {
	s := NewRedisResultStoreWithClient(nil, "ui-regions:result", time.Hour)
	if got := s.key("abc"); got != "ui-regions:result:abc" {
		t.Errorf("key: got %q", got)
	}
}

func TestMemoryResultStore(t *testing.T) {
	s := NewMemoryResultStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "nope"); err != ErrResultNotFound {
		t.Errorf("got %v, want ErrResultNotFound", err)
	}

	r := &JobResult{JobID: "a", Status: StatusCompleted}
	if err := s.Save(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Status = StatusFailed

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Error("store must keep its own copy")
	}
}
