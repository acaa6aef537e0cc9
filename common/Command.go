package common

import "encoding/json"

// Command is the envelope for frontend verbs arriving over the bus.
type Command struct {
	Action  string          `json:"action" validate:"required"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Response answers one Command: either a success payload or an error
// description, never both.
type Response struct {
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Err     *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
