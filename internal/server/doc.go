// Package server implements the MCP (Model Context Protocol) server for
// screenshot region detection and comparison.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load a screenshot and report its metadata
//   - ui_detect_elements: Labeled UI regions in one screenshot
//   - ui_detect_batch: ui_detect_elements over many files in parallel
//   - ui_compare_screenshots: SSIM score and changed regions
//   - ui_edge_map: The edge map detection runs on
//   - ui_annotate: Detections drawn over the screenshot
//   - ui_crop_region: Zoom into an {x, y, width, height} region
//
// Image tools take either "path" or "image_base64". Detection parameters
// left out of a call fall back to the configured defaults (see
// config.DetectionDefaults).
//
// # Image Caching
//
// Screenshots loaded by path are cached for the lifetime of the process.
// Base64 payloads are decoded per call and never cached.
//
// # Error Handling
//
// Tool failures are JSON-RPC error responses:
//   - -32602: invalid image, invalid parameter or undecodable payload
//   - -32000: any other failure (unreadable file, encoding error)
//   - -32601: unknown method
//   - -32700: a line that is not JSON
//
// # Logging
//
// Every tool call gets a request id. With UI_REGIONS_LOG_LEVEL=debug the
// pipeline stages of each call are logged to stderr under that id.
package server
