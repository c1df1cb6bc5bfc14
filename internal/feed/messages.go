package feed

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Inbound WebSocket messages (from renderer)
	MsgTypeSelect     MessageType = "select"
	MsgTypeDeselect   MessageType = "deselect"
	MsgTypeMode       MessageType = "mode"
	MsgTypeToggleMode MessageType = "toggle_mode"
	MsgTypeWater      MessageType = "water"
	MsgTypePing       MessageType = "ping"

	// Outbound WebSocket messages (to renderer)
	MsgTypeSensors     MessageType = "sensors"
	MsgTypeSeries      MessageType = "series"
	MsgTypeWaterResult MessageType = "water_result"
	MsgTypePong        MessageType = "pong"
	MsgTypeError       MessageType = "error"
)

// Message represents a WebSocket message to/from a renderer
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SelectPayload selects a sensor by id or identifier
type SelectPayload struct {
	SensorID string `json:"sensor_id"`
}

// ModePayload sets the display mode ("aggregated" or "individual")
type ModePayload struct {
	Mode string `json:"mode"`
}

// WaterPayload requests watering of the selected sensor. Seconds defaults
// to telemetry.DefaultWateringSeconds.
type WaterPayload struct {
	Seconds *int `json:"seconds,omitempty"`
}

// WaterResultPayload reports the outcome of a water request
type WaterResultPayload struct {
	RequestID string `json:"request_id,omitempty"`
	SensorID  string `json:"sensor_id,omitempty"`
	Seconds   int    `json:"seconds"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ErrorPayload reports a rejected inbound message
type ErrorPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// newMessage builds an outbound message with a fresh id
func newMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &Message{
		Type:      msgType,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
	}, nil
}
