package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/image-workbench/internal/imaging"
	"github.com/ironsheep/image-workbench/internal/state"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_rotate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// paramError marks a tool call rejected before it reached the session.
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, a ...interface{}) error {
	return &paramError{msg: fmt.Sprintf(format, a...)}
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments return a JSON-RPC error with code -32602, any other tool
// failure uses -32000. Operations on an empty workbench are not failures:
// they return {"empty": true}.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", pe.Error())
		}
		return s.errorResponse(req.ID, codeToolFailure, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
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

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Files
	case "image_load":
		return s.handleImageLoad(args)
	case "image_save":
		return s.handleImageSave(args)
	case "image_current":
		return s.imageResult(s.sess.Current(), nil)

	// Views
	case "image_show_channel":
		return s.handleShowChannel(args)
	case "image_grayscale":
		return s.imageResult(s.sess.Grayscale())

	// Edits
	case "image_rotate":
		return s.handleRotate(args)
	case "image_draw_rectangle":
		return s.handleDrawRectangle(args)
	case "image_reset":
		s.sess.Reset()
		return emptyResult, nil

	case "image_sample_color":
		return s.handleSampleColor(args)

	// Camera
	case "camera_start":
		return s.handleCameraStart(args)
	case "camera_snapshot":
		return s.imageResult(s.sess.Snapshot())
	case "camera_stop":
		if err := s.sess.StopCamera(); err != nil {
			return nil, err
		}
		return s.sess.CameraStatus()
	case "camera_status":
		return s.sess.CameraStatus()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
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

// decodeArgs unmarshals tool arguments. A missing arguments object is treated
// as empty.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return invalidParams("malformed arguments: %v", err)
	}
	return nil
}

// ImageResponse is returned by every tool that produces an image. When the
// workbench holds no image only Empty is set, so clients skip rendering.
type ImageResponse struct {
	Empty  bool                 `json:"empty,omitempty"`
	Mode   string               `json:"mode,omitempty"`
	Width  int                  `json:"width,omitempty"`
	Height int                  `json:"height,omitempty"`
	Info   *imaging.ImageInfo   `json:"info,omitempty"`
	Image  *imaging.ImageResult `json:"image,omitempty"`
}

var emptyResult = &ImageResponse{Empty: true}

// imageResult turns a session result into a tool result, encoding a thumbnail
// that fits the display box.
func (s *Server) imageResult(img *image.RGBA, err error) (interface{}, error) {
	if errors.Is(err, state.ErrEmpty) || (err == nil && img == nil) {
		return emptyResult, nil
	}
	if err != nil {
		return nil, err
	}
	thumb, err := imaging.EncodeResult(img, s.opts.DisplayWidth, s.opts.DisplayHeight)
	if err != nil {
		return nil, err
	}
	return &ImageResponse{
		Mode:   s.sess.Mode().String(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Image:  thumb,
	}, nil
}

// === File Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return invalidParams("path is required")
	}
	return nil
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	img, info, err := s.sess.LoadFile(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.imageResult(img, nil)
	if err != nil {
		return nil, err
	}
	if r, ok := res.(*ImageResponse); ok && !r.Empty {
		r.Info = info
	}
	return res, nil
}

func (s *Server) handleImageSave(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	if err := s.sess.SaveFile(a.Path); err != nil {
		if errors.Is(err, state.ErrEmpty) {
			return emptyResult, nil
		}
		return nil, err
	}
	return map[string]interface{}{"saved": a.Path}, nil
}

// === View Handlers ===

type showChannelArgs struct {
	Channel string `json:"channel"`
}

func (s *Server) handleShowChannel(args json.RawMessage) (interface{}, error) {
	var a showChannelArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	c, err := imaging.ParseChannel(a.Channel)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	return s.imageResult(s.sess.ShowChannel(c))
}

// === Edit Handlers ===

type rotateArgs struct {
	Angle *float64 `json:"angle"`
}

func (s *Server) handleRotate(args json.RawMessage) (interface{}, error) {
	var a rotateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Angle == nil {
		return nil, invalidParams("angle is required")
	}
	return s.imageResult(s.sess.Rotate(*a.Angle))
}

type rectangleArgs struct {
	X1 *int `json:"x1"`
	Y1 *int `json:"y1"`
	X2 *int `json:"x2"`
	Y2 *int `json:"y2"`
}

func (s *Server) handleDrawRectangle(args json.RawMessage) (interface{}, error) {
	var a rectangleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.X1 == nil || a.Y1 == nil || a.X2 == nil || a.Y2 == nil {
		return nil, invalidParams("x1, y1, x2 and y2 are required")
	}
	return s.imageResult(s.sess.DrawRectangle(*a.X1, *a.Y1, *a.X2, *a.Y2))
}

// === Color Handlers ===

type sampleColorArgs struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (s *Server) handleSampleColor(args json.RawMessage) (interface{}, error) {
	var a sampleColorArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.X == nil || a.Y == nil {
		return nil, invalidParams("x and y are required")
	}
	res, err := s.sess.SampleColor(*a.X, *a.Y)
	if errors.Is(err, state.ErrEmpty) {
		return emptyResult, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// === Camera Handlers ===

type cameraStartArgs struct {
	Source string `json:"source"`
}

func (s *Server) handleCameraStart(args json.RawMessage) (interface{}, error) {
	var a cameraStartArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Source == "" {
		a.Source = s.opts.CameraURL
	}
	if a.Source == "" {
		return nil, invalidParams("source is required when no camera_url is configured")
	}
	src, err := s.sess.OpenSource(a.Source)
	if err != nil {
		return nil, err
	}
	if err := s.sess.StartCamera(s.ctx, a.Source, src); err != nil {
		_ = src.Close()
		return nil, err
	}
	return s.sess.CameraStatus()
}
