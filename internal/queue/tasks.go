// Package queue runs detection and comparison as background jobs on an
// asynq (Redis) queue and keeps their results in Redis.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
)

// Task types
const (
	TypeDetect  = "ui:detect"
	TypeCompare = "ui:compare"
)

// DefaultMaxRetry is the retry budget of enqueued jobs.
const DefaultMaxRetry = 3

// DetectPayload is the body of a ui:detect task. Exactly one of Path and
// ImageBase64 must be set. Unset parameters use the worker's defaults.
type DetectPayload struct {
	JobID       string   `json:"job_id"`
	Path        string   `json:"path,omitempty"`
	ImageBase64 string   `json:"image_base64,omitempty"`
	Sensitivity *float64 `json:"sensitivity,omitempty"`
	MinArea     *float64 `json:"min_area,omitempty"`
	MaxArea     *float64 `json:"max_area,omitempty"`
	Profile     string   `json:"profile,omitempty"`
	Alpha       string   `json:"alpha,omitempty"`
}

// ComparePayload is the body of a ui:compare task.
type ComparePayload struct {
	JobID        string `json:"job_id"`
	Path1        string `json:"path1,omitempty"`
	Image1Base64 string `json:"image1_base64,omitempty"`
	Path2        string `json:"path2,omitempty"`
	Image2Base64 string `json:"image2_base64,omitempty"`
	Alpha        string `json:"alpha,omitempty"`
}

// NewDetectTask builds a ui:detect task. A job id is generated when the
// payload has none.
func NewDetectTask(p DetectPayload, opts ...asynq.Option) (*asynq.Task, string, error) {
	if p.JobID == "" {
		p.JobID = uuid.NewString()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal detect payload: %w", err)
	}
	opts = append([]asynq.Option{asynq.TaskID(p.JobID), asynq.MaxRetry(DefaultMaxRetry)}, opts...)
	return asynq.NewTask(TypeDetect, data, opts...), p.JobID, nil
}

// NewCompareTask builds a ui:compare task. A job id is generated when the
// payload has none.
func NewCompareTask(p ComparePayload, opts ...asynq.Option) (*asynq.Task, string, error) {
	if p.JobID == "" {
		p.JobID = uuid.NewString()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal compare payload: %w", err)
	}
	opts = append([]asynq.Option{asynq.TaskID(p.JobID), asynq.MaxRetry(DefaultMaxRetry)}, opts...)
	return asynq.NewTask(TypeCompare, data, opts...), p.JobID, nil
}

// Params resolves the payload's parameters against defaults.
func (p *DetectPayload) Params(d config.DetectionDefaults) (detection.Params, error) {
	params := detection.Params{
		Sensitivity: d.Sensitivity,
		MinArea:     d.MinArea,
		MaxArea:     d.MaxArea,
	}
	if p.Sensitivity != nil {
		params.Sensitivity = *p.Sensitivity
	}
	if p.MinArea != nil {
		params.MinArea = *p.MinArea
	}
	if p.MaxArea != nil {
		params.MaxArea = *p.MaxArea
	}

	profile := p.Profile
	if profile == "" {
		profile = d.Profile
	}
	var err error
	if params.Profile, err = detection.ParseProfile(profile); err != nil {
		return params, err
	}

	alpha := p.Alpha
	if alpha == "" {
		alpha = d.Alpha
	}
	if params.Alpha, err = imaging.ParseAlphaMode(alpha); err != nil {
		return params, err
	}
	return params, nil
}

// resolveImage reads an image from a path or decodes it from base64. Files
// are read fresh for every job.
func resolveImage(field, path, payload string) (*imaging.Image, error) {
	switch {
	case path != "" && payload != "":
		return nil, errors.NewInvalidParameterError(field, path, "give either a path or base64 data, not both")
	case path != "":
		return imaging.LoadFile(path)
	case payload != "":
		return imaging.DecodeBase64Image(payload)
	default:
		return nil, errors.NewInvalidParameterError(field, nil, "an image path or base64 data is required")
	}
}
