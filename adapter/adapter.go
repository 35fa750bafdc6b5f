// Package adapter defines the capture notification boundary.
//
// Adapters publish stream capture notifications to downstream systems.
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// CaptureEvent is the payload published when a stream capture finishes.
type CaptureEvent struct {
	CodecVersion string `json:"codec_version"`
	EventType    string `json:"event_type"` // always "stream_captured"
	StreamID     string `json:"stream_id"`
	Source       string `json:"source"`
	Day          string `json:"day"`
	StoragePath  string `json:"storage_path"`
	Timestamp    string `json:"timestamp"` // ISO 8601
	Lines        int64  `json:"lines"`
	Bytes        int64  `json:"bytes"`
	DurationMs   int64  `json:"duration_ms"`
}

// Adapter publishes capture events to a downstream system.
// Implementations must be safe for single-use per capture.
type Adapter interface {
	// Publish sends a capture event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CaptureEvent) error

	// Close releases adapter resources.
	Close() error
}
