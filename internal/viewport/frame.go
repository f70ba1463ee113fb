package viewport

// Frame states.
const (
	FrameEmpty   = "empty"
	FrameLoading = "loading"
	FrameFailed  = "failed"
	FrameReady   = "ready"
)

// Placeholder messages shown instead of a scene.
const (
	MessageNoPlan     = "No plan uploaded"
	MessagePlanFailed = "Plan failed to load"
)

// Frame is the render tree produced by one render pass.
type Frame struct {
	State    string         `json:"state" msgpack:"state"`
	Message  string         `json:"message,omitempty" msgpack:"message,omitempty"`
	Error    string         `json:"error,omitempty" msgpack:"error,omitempty"`
	Camera   *CameraFrame   `json:"camera,omitempty" msgpack:"camera,omitempty"`
	Backdrop *BackdropFrame `json:"backdrop,omitempty" msgpack:"backdrop,omitempty"`
	Markers  []MarkerFrame  `json:"markers,omitempty" msgpack:"markers,omitempty"`
	Selected *int           `json:"selected" msgpack:"selected"`
}

// CameraFrame is the camera applied for a frame.
type CameraFrame struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Z      float64 `json:"z" msgpack:"z"`
	Zoom   float64 `json:"zoom" msgpack:"zoom"`
	MinX   float64 `json:"minX" msgpack:"minX"`
	MinY   float64 `json:"minY" msgpack:"minY"`
	MaxX   float64 `json:"maxX" msgpack:"maxX"`
	MaxY   float64 `json:"maxY" msgpack:"maxY"`
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

// BackdropFrame is the textured plan rectangle.
type BackdropFrame struct {
	Plan        string  `json:"plan" msgpack:"plan"`
	Width       float64 `json:"width" msgpack:"width"`
	Height      float64 `json:"height" msgpack:"height"`
	Z           float64 `json:"z" msgpack:"z"`
	PixelWidth  int     `json:"pixelWidth" msgpack:"pixelWidth"`
	PixelHeight int     `json:"pixelHeight" msgpack:"pixelHeight"`
}

// MarkerFrame is one machine marker.
type MarkerFrame struct {
	Index    int     `json:"index" msgpack:"index"`
	Label    string  `json:"label" msgpack:"label"`
	Color    string  `json:"color" msgpack:"color"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Z        float64 `json:"z" msgpack:"z"`
	LabelZ   float64 `json:"labelZ" msgpack:"labelZ"`
	Width    float64 `json:"width" msgpack:"width"`
	Height   float64 `json:"height" msgpack:"height"`
	Selected bool    `json:"selected" msgpack:"selected"`
	Dragging bool    `json:"dragging" msgpack:"dragging"`
}
