package server

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ui-regions-mcp/internal/compare"
	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/errors"
	"github.com/ironsheep/ui-regions-mcp/internal/imaging"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

// DetectionMethod names the detector in tool output.
const DetectionMethod = "contour"

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ui_detect_elements").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Invalid images, parameters and undecodable payloads return code -32602.
// Any other tool failure returns code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	requestID := uuid.NewString()
	log := s.log.With(params.Name)
	started := time.Now()
	log.Debug("tool call", "request_id", requestID)

	result, err := s.executeTool(params.Name, params.Arguments, s.observer(log, requestID))
	if err != nil {
		log.Warn("tool failed", "request_id", requestID, "error", err)
		if errors.IsClientError(err) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	log.Debug("tool done", "request_id", requestID, "elapsed", time.Since(started))

	return &MCPResponse{
		JSONRPC: jsonRPCVersion,
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// observer forwards pipeline stage events to the debug log.
func (s *Server) observer(log *logging.Logger, requestID string) detection.Observer {
	if !log.DebugEnabled() {
		return nil
	}
	return func(e detection.StageEvent) {
		log.Debug("stage", "request_id", requestID, "stage", e.Stage, "count", e.Count, "elapsed", e.Elapsed)
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads images from the cache or decodes them from base64
//  4. Calls the detection, compare or imaging package
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage, obs detection.Observer) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	// Region detection
	case "ui_detect_elements":
		return s.handleDetectElements(args, obs)
	case "ui_detect_batch":
		return s.handleDetectBatch(args)

	// Screenshot comparison
	case "ui_compare_screenshots":
		return s.handleCompareScreenshots(args, obs)

	// Visual helpers
	case "ui_edge_map":
		return s.handleEdgeMap(args)
	case "ui_annotate":
		return s.handleAnnotate(args, obs)
	case "ui_crop_region":
		return s.handleCropRegion(args)

	default:
		return nil, errors.NewInvalidParameterError("name", name, "unknown tool")
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return errors.NewInvalidParameterError("arguments", string(args), err.Error())
	}
	return nil
}

// === Output shapes ===

// DetectionOutput is one detected region as reported to clients.
type DetectionOutput struct {
	Label      string  `json:"Label"`
	Confidence float64 `json:"Confidence"`
	X          int     `json:"X"`
	Y          int     `json:"Y"`
	Width      int     `json:"Width"`
	Height     int     `json:"Height"`
}

// ImageDimensions is the size of the analyzed image.
type ImageDimensions struct {
	Width  int `json:"Width"`
	Height int `json:"Height"`
}

// DetectResult is the ui_detect_elements output.
type DetectResult struct {
	Detections      []DetectionOutput `json:"Detections"`
	ImageDimensions ImageDimensions   `json:"ImageDimensions"`
	DetectionMethod string            `json:"DetectionMethod"`
}

// CompareResult is the ui_compare_screenshots output.
type CompareResult struct {
	ComparisonResult *compare.Result `json:"ComparisonResult"`
	ImageDimensions  ImageDimensions `json:"ImageDimensions"`
}

// BatchItem is one entry of a ui_detect_batch result. Exactly one of
// Result and Error is set.
type BatchItem struct {
	Path   string        `json:"path"`
	Result *DetectResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BatchResult is the ui_detect_batch output in input order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// AnnotateOutput is the ui_annotate output.
type AnnotateOutput struct {
	*imaging.AnnotateResult
	Detections []DetectionOutput `json:"detections"`
}

func toDetectResult(detections []detection.Detection, width, height int) *DetectResult {
	out := make([]DetectionOutput, len(detections))
	for i, d := range detections {
		out[i] = DetectionOutput{
			Label:      d.Label,
			Confidence: math.Round(d.Confidence*100) / 100,
			X:          d.Box.X,
			Y:          d.Box.Y,
			Width:      d.Box.Width,
			Height:     d.Box.Height,
		}
	}
	return &DetectResult{
		Detections:      out,
		ImageDimensions: ImageDimensions{Width: width, Height: height},
		DetectionMethod: DetectionMethod,
	}
}

// === Argument shapes ===

// imageSource names an image either by file path or inline base64.
type imageSource struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// detectOptions are the optional detection parameters shared by the
// detection tools. Unset values fall back to the configured defaults.
type detectOptions struct {
	Sensitivity *float64 `json:"sensitivity"`
	MinArea     *float64 `json:"min_area"`
	MaxArea     *float64 `json:"max_area"`
	Profile     string   `json:"profile"`
	Alpha       string   `json:"alpha"`
}

// loadImage resolves an image from a path or a base64 payload. field names
// the argument in error messages.
func (s *Server) loadImage(field, path, payload string) (*imaging.Image, error) {
	switch {
	case path != "" && payload != "":
		return nil, errors.NewInvalidParameterError(field, path, "give either a path or base64 data, not both")
	case path != "":
		return s.cache.LoadImage(path)
	case payload != "":
		return imaging.DecodeBase64Image(payload)
	default:
		return nil, errors.NewInvalidParameterError(field, nil, "an image path or base64 data is required")
	}
}

func (s *Server) detectParams(o detectOptions, obs detection.Observer) (detection.Params, error) {
	d := s.defaults
	p := detection.Params{
		Sensitivity: d.Sensitivity,
		MinArea:     d.MinArea,
		MaxArea:     d.MaxArea,
		Observer:    obs,
	}
	if o.Sensitivity != nil {
		p.Sensitivity = *o.Sensitivity
	}
	if o.MinArea != nil {
		p.MinArea = *o.MinArea
	}
	if o.MaxArea != nil {
		p.MaxArea = *o.MaxArea
	}

	profile := o.Profile
	if profile == "" {
		profile = d.Profile
	}
	var err error
	if p.Profile, err = detection.ParseProfile(profile); err != nil {
		return p, err
	}

	alpha := o.Alpha
	if alpha == "" {
		alpha = d.Alpha
	}
	if p.Alpha, err = imaging.ParseAlphaMode(alpha); err != nil {
		return p, err
	}
	return p, nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.NewInvalidParameterError("path", a.Path, "required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Region Detection ===

type detectElementsArgs struct {
	imageSource
	detectOptions
}

func (s *Server) handleDetectElements(args json.RawMessage, obs detection.Observer) (interface{}, error) {
	var a detectElementsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	params, err := s.detectParams(a.detectOptions, obs)
	if err != nil {
		return nil, err
	}
	img, err := s.loadImage("image", a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}

	detections, err := detection.Detect(img, params)
	if err != nil {
		return nil, err
	}
	return toDetectResult(detections, img.Width, img.Height), nil
}

type detectBatchArgs struct {
	Paths []string `json:"paths"`
	detectOptions
}

// handleDetectBatch detects on every path with at most batchConcurrency
// detections in flight. A failing image is reported in its item and does
// not fail the batch.
func (s *Server) handleDetectBatch(args json.RawMessage) (interface{}, error) {
	var a detectBatchArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, errors.NewInvalidParameterError("paths", a.Paths, "at least one path is required")
	}
	params, err := s.detectParams(a.detectOptions, nil)
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(a.Paths))
	g := new(errgroup.Group)
	g.SetLimit(s.batchConcurrency)
	for i, path := range a.Paths {
		i, path := i, path
		g.Go(func() error {
			items[i].Path = path
			img, err := s.cache.LoadImage(path)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			detections, err := detection.Detect(img, params)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = toDetectResult(detections, img.Width, img.Height)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Items: items}
	for _, item := range items {
		if item.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	return result, nil
}

// === Screenshot Comparison ===

type compareArgs struct {
	Path1        string `json:"path1"`
	Image1Base64 string `json:"image1_base64"`
	Path2        string `json:"path2"`
	Image2Base64 string `json:"image2_base64"`
	Alpha        string `json:"alpha"`
}

func (s *Server) handleCompareScreenshots(args json.RawMessage, obs detection.Observer) (interface{}, error) {
	var a compareArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	alpha := a.Alpha
	if alpha == "" {
		alpha = s.defaults.CompareAlpha
	}
	mode, err := imaging.ParseAlphaMode(alpha)
	if err != nil {
		return nil, err
	}

	// Decode both inputs concurrently.
	var first, second *imaging.Image
	var g errgroup.Group
	g.Go(func() error {
		var err error
		first, err = s.loadImage("image1", a.Path1, a.Image1Base64)
		return err
	})
	g.Go(func() error {
		var err error
		second, err = s.loadImage("image2", a.Path2, a.Image2Base64)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := compare.CompareWith(first, second, compare.Options{Alpha: mode, Observer: obs})
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}
	return &CompareResult{
		ComparisonResult: res,
		ImageDimensions:  ImageDimensions{Width: first.Width, Height: first.Height},
	}, nil
}

// === Visual Helpers ===

type edgeMapArgs struct {
	imageSource
	Sensitivity *float64 `json:"sensitivity"`
	Alpha       string   `json:"alpha"`
}

func (s *Server) handleEdgeMap(args json.RawMessage) (interface{}, error) {
	var a edgeMapArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	sensitivity := s.defaults.Sensitivity
	if a.Sensitivity != nil {
		sensitivity = *a.Sensitivity
	}
	if math.IsNaN(sensitivity) {
		return nil, errors.NewInvalidParameterError("sensitivity", sensitivity, "not a number")
	}
	alpha := a.Alpha
	if alpha == "" {
		alpha = s.defaults.Alpha
	}
	mode, err := imaging.ParseAlphaMode(alpha)
	if err != nil {
		return nil, err
	}

	img, err := s.loadImage("image", a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeMap(img, sensitivity, mode)
}

type annotateArgs struct {
	imageSource
	detectOptions
	Thickness  int    `json:"thickness"`
	ShowLabels *bool  `json:"show_labels"`
	Color      string `json:"color"`
}

func (s *Server) handleAnnotate(args json.RawMessage, obs detection.Observer) (interface{}, error) {
	var a annotateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	params, err := s.detectParams(a.detectOptions, obs)
	if err != nil {
		return nil, err
	}
	img, err := s.loadImage("image", a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}

	detections, err := detection.Detect(img, params)
	if err != nil {
		return nil, err
	}
	out := toDetectResult(detections, img.Width, img.Height)

	boxes := make([]imaging.Box, len(out.Detections))
	for i, d := range out.Detections {
		boxes[i] = imaging.Box{
			Label:      d.Label,
			Confidence: d.Confidence,
			X:          d.X,
			Y:          d.Y,
			Width:      d.Width,
			Height:     d.Height,
		}
	}
	showLabels := true
	if a.ShowLabels != nil {
		showLabels = *a.ShowLabels
	}

	annotated, err := imaging.Annotate(img, boxes, imaging.AnnotateOptions{
		Thickness:  a.Thickness,
		ShowLabels: showLabels,
		ColorHex:   a.Color,
	})
	if err != nil {
		return nil, err
	}
	return &AnnotateOutput{AnnotateResult: annotated, Detections: out.Detections}, nil
}

type cropRegionArgs struct {
	imageSource
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Padding int     `json:"padding"`
	Scale   float64 `json:"scale"`
}

func (s *Server) handleCropRegion(args json.RawMessage) (interface{}, error) {
	var a cropRegionArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.loadImage("image", a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}
	return imaging.CropRegion(img, a.X, a.Y, a.Width, a.Height, a.Padding, a.Scale)
}
