// Package server implements the MCP (Model Context Protocol) tool server for
// the image workbench.
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
// Files:
//   - image_load: Load an image file as the current image
//   - image_save: Write the current image to disk
//   - image_current: Return the current image
//
// Views (always computed from the last clean image):
//   - image_show_channel: Keep one of R, G, B
//   - image_grayscale: Mean of R, G, B
//
// Edits (applied to the current image):
//   - image_rotate: Counter-clockwise rotation with an expanding canvas
//   - image_draw_rectangle: Blue annotation outline
//   - image_reset: Clear everything
//
// Color:
//   - image_sample_color: Color at one pixel
//
// Camera:
//   - camera_start, camera_snapshot, camera_stop, camera_status
//
// # Results
//
// Tools that produce an image return its full size, the display mode and a
// PNG scaled to fit the display box. When the workbench is empty they return
// {"empty": true} instead of an error so the client can skip rendering.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code: -32602 for missing or malformed arguments, -32000 for tool failures
//   - message: Human-readable error description
//   - data: The underlying error string
package server
