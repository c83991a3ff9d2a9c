package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// imageSourceProps describes the path / image_base64 pair every image tool
// accepts. Exactly one must be given.
func imageSourceProps() map[string]interface{} {
	return map[string]interface{}{
		"path":         prop("string", "Absolute path to a PNG, JPEG, GIF, BMP or WebP screenshot"),
		"image_base64": prop("string", "Screenshot as base64 or a data URL. Use instead of path"),
	}
}

// detectProps describes the optional detection parameters.
func detectProps() map[string]interface{} {
	return map[string]interface{}{
		"sensitivity": map[string]interface{}{
			"type":        "number",
			"description": "Edge sensitivity from 0 to 1. Higher finds fainter edges. Default 0.5",
			"minimum":     0,
			"maximum":     1,
		},
		"min_area": prop("number", "Smallest contour area in px² to report. Default 100"),
		"max_area": prop("number", "Largest contour area in px² to report. 0 means 90% of the image. Default 0"),
		"profile": map[string]interface{}{
			"type":        "string",
			"description": "Classifier rules: desktop (taskbar, titlebar, window, icon, button) or panels (window, menubar, sidebar, icon, button)",
			"enum":        []string{"desktop", "panels"},
		},
		"alpha": map[string]interface{}{
			"type":        "string",
			"description": "How transparent images are flattened: composite over white or drop the alpha channel",
			"enum":        []string{"composite", "drop"},
		},
	}
}

func mergeProps(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load a screenshot and return its dimensions, format, channel count and whether it has transparency. The image stays cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": prop("string", "Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Region Detection
		{
			Name:        "ui_detect_elements",
			Description: "Find UI regions (windows, title bars, taskbars, buttons, icons, panels) in a screenshot with edge and contour analysis. Returns labeled boxes with a confidence between 0.5 and 0.95.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": mergeProps(imageSourceProps(), detectProps()),
			},
		},
		{
			Name:        "ui_detect_batch",
			Description: "Run ui_detect_elements on several screenshots in parallel. A failing file is reported in its entry and does not stop the batch.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProps(map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths to the screenshots",
					},
				}, detectProps()),
				"required": []string{"paths"},
			},
		},

		// Screenshot Comparison
		{
			Name:        "ui_compare_screenshots",
			Description: "Compare two screenshots with structural similarity (SSIM). Returns a score from -1 to 1 (1 = identical) and the rectangles that changed. The second image is resized to the first when sizes differ.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path1":         prop("string", "Absolute path to the reference screenshot"),
					"image1_base64": prop("string", "Reference screenshot as base64. Use instead of path1"),
					"path2":         prop("string", "Absolute path to the screenshot to compare"),
					"image2_base64": prop("string", "Screenshot to compare as base64. Use instead of path2"),
					"alpha": map[string]interface{}{
						"type":        "string",
						"description": "How transparent images are flattened. Default drop",
						"enum":        []string{"composite", "drop"},
					},
				},
			},
		},

		// Visual Helpers
		{
			Name:        "ui_edge_map",
			Description: "Return the dilated edge map the region detector works on, as a base64 PNG (white = edge). Useful for tuning sensitivity.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProps(imageSourceProps(), map[string]interface{}{
					"sensitivity": detectProps()["sensitivity"],
					"alpha":       detectProps()["alpha"],
				}),
			},
		},
		{
			Name:        "ui_annotate",
			Description: "Detect UI regions and draw them on the screenshot, one color per label. Returns the overlay as base64 PNG, the color legend and the detections.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProps(imageSourceProps(), detectProps(), map[string]interface{}{
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Box outline width in pixels. Default 2",
						"default":     2,
					},
					"show_labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the label and confidence above each box. Default true",
						"default":     true,
					},
					"color": prop("string", "Single #RRGGBB color for every box instead of the per-label palette"),
				}),
			},
		},
		{
			Name:        "ui_crop_region",
			Description: "Crop a region given as x, y, width, height (the same form detections and changes use) and return it as base64 PNG. Use this to zoom into a detected element.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProps(imageSourceProps(), map[string]interface{}{
					"x":       prop("integer", "Left edge X coordinate (0-based)"),
					"y":       prop("integer", "Top edge Y coordinate (0-based)"),
					"width":   prop("integer", "Region width in pixels"),
					"height":  prop("integer", "Region height in pixels"),
					"padding": prop("integer", "Extra pixels on every side, clipped to the image. Default 0"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"x", "y", "width", "height"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonRPCVersion,
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
