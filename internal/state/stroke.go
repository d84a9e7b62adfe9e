package state

import (
	"time"

	"github.com/google/uuid"

	"boardsync/internal/geom"
)

// LocalOwner is the placeholder owner id used before the session has handed
// the client its real identifier. Once a session id is known every stroke
// from this client carries it instead.
const LocalOwner = "local"

// Tool identifies the primitive kind a stroke was drawn with.
type Tool string

const (
	ToolFreehand  Tool = "freehand"
	ToolEraser    Tool = "eraser"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolPolygon   Tool = "polygon"
	ToolText      Tool = "text"
	ToolImage     Tool = "image"
)

// Stroke is one committed drawing operation. Geometry and style are fixed at
// creation; only the IsErased flag mutates afterwards. Tool-specific fields
// are omitted from the wire encoding when unused.
type Stroke struct {
	ID      string       `json:"id"`
	OwnerID string       `json:"ownerId"`
	Tool    Tool         `json:"tool"`
	Points  []geom.Point `json:"points,omitempty"`

	Color string  `json:"color"`
	Width float64 `json:"width"`

	Fill      bool      `json:"fill,omitempty"`
	Dash      []float64 `json:"dash,omitempty"`
	ArrowHead string    `json:"arrowHead,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`

	ImageRef    string  `json:"imageRef,omitempty"`
	ImageWidth  float64 `json:"imageWidth,omitempty"`
	ImageHeight float64 `json:"imageHeight,omitempty"`

	IsErased  bool      `json:"isErased"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// NewStrokeID returns a fresh stroke identifier. UUIDv4 gives 122 bits of
// entropy, so collisions within a session are negligible.
func NewStrokeID() string {
	return uuid.NewString()
}
