package domain

import "encoding/json"

// Message types carried in the "type" field of wire frames.
const (
	MessageTypePixel      = "pixel"
	MessageTypeClear      = "clear"
	MessageTypeInit       = "init"
	MessageTypeError      = "error"
	MessageTypeAssignAnon = "assign_anon"
)

// InboundMessage is any frame a client may send. A frame without a type is a placement.
type InboundMessage struct {
	Type  string          `json:"type,omitempty" jsonschema:"enum=pixel,enum=clear"`
	X     *int            `json:"x,omitempty"`
	Y     *int            `json:"y,omitempty"`
	Color *string         `json:"color,omitempty"`
	List  json.RawMessage `json:"list,omitempty"`
}

type InitMessage struct {
	Type string `json:"type" jsonschema:"const=init"`
	// Seconds until the actor may place again. The field name is part of the client contract.
	Cooldown int `json:"coldown"`
}

type PixelMessage struct {
	Type  string `json:"type" jsonschema:"const=pixel"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
	Actor string `json:"actor"`
}

type ClearMessage struct {
	Type    string          `json:"type" jsonschema:"const=clear"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorMessage struct {
	Type    string `json:"type" jsonschema:"const=error"`
	Payload string `json:"payload"`
}

type AssignAnonMessage struct {
	Type   string `json:"type" jsonschema:"const=assign_anon"`
	AnonID string `json:"anon_id"`
}

func NewInitMessage(cooldownSeconds int) InitMessage {
	return InitMessage{Type: MessageTypeInit, Cooldown: cooldownSeconds}
}

func NewPixelMessage(ev PlacementEvent) PixelMessage {
	return PixelMessage{Type: MessageTypePixel, X: ev.X, Y: ev.Y, Color: ev.Color, Actor: ev.Actor.String()}
}

// NewClearMessage relays list verbatim. A missing list is sent as an empty array.
func NewClearMessage(list json.RawMessage) ClearMessage {
	if len(list) == 0 {
		list = json.RawMessage("[]")
	}
	return ClearMessage{Type: MessageTypeClear, Payload: list}
}

func NewErrorMessage(payload string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Payload: payload}
}

func NewAssignAnonMessage(anonID string) AssignAnonMessage {
	return AssignAnonMessage{Type: MessageTypeAssignAnon, AnonID: anonID}
}
