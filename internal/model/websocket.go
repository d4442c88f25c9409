package model

// WebSocket message types
const (
	WSMessageTypeBridge   = "bridge"
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// Host bridge commands
const (
	BridgeCommandExpand = "expand"
	BridgeCommandClose  = "close"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSBridgeMessage asks the page to call the host bridge.
type WSBridgeMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// WSProgressMessage reports a submission status change
type WSProgressMessage struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
