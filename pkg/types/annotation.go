package types

import (
	"encoding/json"
	"fmt"
)

// Whiteboard event discriminators carried in the "type" field.
const (
	DrawPath      = "path"
	DrawText      = "text"
	DrawSymbol    = "symbol"
	DrawPathStart = "path-start"
	DrawPathMove  = "path-move"
	DrawPathEnd   = "path-end"
	DrawScroll    = "scroll"
)

// Point is a canvas position expressed as a fraction of the canvas extent.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Normalized reports whether both coordinates lie in [0,1].
func (p Point) Normalized() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// DrawEvent is the closed set of payloads accepted by whiteboard-draw.
type DrawEvent interface {
	DrawType() string
	drawEvent()
}

// Annotation is a durable, replayable action bound to one page. Actions
// decoded from a client keep their original bytes in Raw and marshal back
// to exactly those bytes, so fields unknown to the server survive replay.
type Annotation interface {
	DrawEvent
	Page() int
}

type PathAction struct {
	Points    []Point         `json:"points"`
	Color     string          `json:"color"`
	LineWidth float64         `json:"lineWidth"`
	IsEraser  bool            `json:"isEraser"`
	PageNum   int             `json:"pageNum"`
	Raw       json.RawMessage `json:"-"`
}

type TextAction struct {
	Text    string          `json:"text"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Color   string          `json:"color"`
	PageNum int             `json:"pageNum"`
	Raw     json.RawMessage `json:"-"`
}

type SymbolAction struct {
	Symbol  string          `json:"symbol"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Color   string          `json:"color"`
	PageNum int             `json:"pageNum"`
	Raw     json.RawMessage `json:"-"`
}

// StrokeStart opens a live freehand stroke.
type StrokeStart struct {
	StrokeID  string  `json:"strokeId"`
	Point     Point   `json:"point"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	IsEraser  bool    `json:"isEraser"`
	PageNum   int     `json:"pageNum"`
}

type StrokeMove struct {
	StrokeID string `json:"strokeId"`
	Point    Point  `json:"point"`
	PageNum  int    `json:"pageNum,omitempty"`
}

// StrokeEnd finalizes a live stroke. Its point list is authoritative; style
// fields left empty fall back to the matching StrokeStart.
type StrokeEnd struct {
	StrokeID  string  `json:"strokeId"`
	Points    []Point `json:"points"`
	Color     string  `json:"color,omitempty"`
	LineWidth float64 `json:"lineWidth,omitempty"`
	IsEraser  *bool   `json:"isEraser,omitempty"`
	PageNum   int     `json:"pageNum,omitempty"`
}

// Scroll mirrors the teacher's viewport. Never stored.
type Scroll struct {
	PercentX float64 `json:"percentX"`
	PercentY float64 `json:"percentY"`
	PageNum  int     `json:"pageNum"`
}

func (PathAction) DrawType() string   { return DrawPath }
func (TextAction) DrawType() string   { return DrawText }
func (SymbolAction) DrawType() string { return DrawSymbol }
func (StrokeStart) DrawType() string  { return DrawPathStart }
func (StrokeMove) DrawType() string   { return DrawPathMove }
func (StrokeEnd) DrawType() string    { return DrawPathEnd }
func (Scroll) DrawType() string       { return DrawScroll }

func (PathAction) drawEvent()   {}
func (TextAction) drawEvent()   {}
func (SymbolAction) drawEvent() {}
func (StrokeStart) drawEvent()  {}
func (StrokeMove) drawEvent()   {}
func (StrokeEnd) drawEvent()    {}
func (Scroll) drawEvent()       {}

func (a PathAction) Page() int   { return a.PageNum }
func (a TextAction) Page() int   { return a.PageNum }
func (a SymbolAction) Page() int { return a.PageNum }

func (a PathAction) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type alias PathAction
	return marshalTagged(DrawPath, alias(a))
}

func (a TextAction) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type alias TextAction
	return marshalTagged(DrawText, alias(a))
}

func (a SymbolAction) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type alias SymbolAction
	return marshalTagged(DrawSymbol, alias(a))
}

func (e StrokeStart) MarshalJSON() ([]byte, error) {
	type alias StrokeStart
	return marshalTagged(DrawPathStart, alias(e))
}

func (e StrokeMove) MarshalJSON() ([]byte, error) {
	type alias StrokeMove
	return marshalTagged(DrawPathMove, alias(e))
}

func (e StrokeEnd) MarshalJSON() ([]byte, error) {
	type alias StrokeEnd
	return marshalTagged(DrawPathEnd, alias(e))
}

func (e Scroll) MarshalJSON() ([]byte, error) {
	type alias Scroll
	return marshalTagged(DrawScroll, alias(e))
}

// marshalTagged flattens v's fields next to the "type" discriminator.
func marshalTagged(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(kind)
	return json.Marshal(fields)
}

// DecodeDrawEvent resolves the "type" discriminator of a whiteboard payload
// and validates the result.
func DecodeDrawEvent(raw json.RawMessage) (DrawEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("whiteboard event: %w", err)
	}

	var ev DrawEvent
	var err error
	switch head.Type {
	case DrawPath:
		var a PathAction
		err = json.Unmarshal(raw, &a)
		a.Raw = keep(raw)
		ev = a
	case DrawText:
		var a TextAction
		err = json.Unmarshal(raw, &a)
		a.Raw = keep(raw)
		ev = a
	case DrawSymbol:
		var a SymbolAction
		err = json.Unmarshal(raw, &a)
		a.Raw = keep(raw)
		ev = a
	case DrawPathStart:
		var e StrokeStart
		err = json.Unmarshal(raw, &e)
		ev = e
	case DrawPathMove:
		var e StrokeMove
		err = json.Unmarshal(raw, &e)
		ev = e
	case DrawPathEnd:
		var e StrokeEnd
		err = json.Unmarshal(raw, &e)
		ev = e
	case DrawScroll:
		var e Scroll
		err = json.Unmarshal(raw, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDrawType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("whiteboard %s event: %w", head.Type, err)
	}
	if err := ValidateDrawEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// keep copies raw so the action does not alias the inbound frame buffer.
func keep(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
