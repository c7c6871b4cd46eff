package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": desc,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Files
		{
			Name:        "image_load",
			Description: "Load an image file and make it the current image. Clears any active channel or grayscale view. Returns the file metadata and a display-sized PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_save",
			Description: "Save the current image as displayed. The format follows the file extension (png, jpg, gif, bmp, tif).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute destination path",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_current",
			Description: "Return the current image and display mode. Returns {\"empty\": true} when nothing is loaded.",
			InputSchema: noArgs(),
		},

		// Views
		{
			Name:        "image_show_channel",
			Description: "Show a single color channel of the last clean image; the other two channels are zeroed. Views never stack: each call starts from the clean image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"channel": map[string]interface{}{
						"type":        "string",
						"description": "Channel to keep",
						"enum":        []string{"R", "G", "B"},
					},
				},
				"required": []string{"channel"},
			},
		},
		{
			Name:        "image_grayscale",
			Description: "Show the grayscale view of the last clean image, each pixel set to the mean of its red, green and blue values.",
			InputSchema: noArgs(),
		},

		// Edits
		{
			Name:        "image_rotate",
			Description: "Rotate the current image counter-clockwise about its center. The canvas grows so no pixel is cropped; uncovered corners are black.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"angle": map[string]interface{}{
						"type":        "number",
						"description": "Angle in degrees, any real value (taken modulo 360)",
					},
				},
				"required": []string{"angle"},
			},
		},
		{
			Name:        "image_draw_rectangle",
			Description: "Draw an unfilled 3 pixel blue rectangle on the current image. Corners are inclusive and may be given in any order; parts outside the image are clipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x1": intProp("X of the first corner"),
					"y1": intProp("Y of the first corner"),
					"x2": intProp("X of the opposite corner"),
					"y2": intProp("Y of the opposite corner"),
				},
				"required": []string{"x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_reset",
			Description: "Discard the current image and stop the camera.",
			InputSchema: noArgs(),
		},

		// Color
		{
			Name:        "image_sample_color",
			Description: "Get the exact color at a pixel of the current image in hex, RGB, RGBA and HSL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": intProp("X coordinate (0 = left edge)"),
					"y": intProp("Y coordinate (0 = top edge)"),
				},
				"required": []string{"x", "y"},
			},
		},

		// Camera
		{
			Name:        "camera_start",
			Description: "Start polling a camera. The source is an MJPEG stream URL or an image file replayed as frames; defaults to the configured camera_url.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": map[string]interface{}{
						"type":        "string",
						"description": "http(s) MJPEG URL or image file path",
					},
				},
			},
		},
		{
			Name:        "camera_snapshot",
			Description: "Make the latest camera frame the current image and stop the camera.",
			InputSchema: noArgs(),
		},
		{
			Name:        "camera_stop",
			Description: "Stop polling the camera. The last frame is kept.",
			InputSchema: noArgs(),
		},
		{
			Name:        "camera_status",
			Description: "Report whether the camera runs, the number of frames captured and dropped, and the latest frame size.",
			InputSchema: noArgs(),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
