// Package realtime pushes report changes to connected dashboards.
package realtime

import (
	"context"
	"encoding/json"
)

const (
	ReportCreated = "reportCreated"
	ReportUpdated = "reportUpdated"
	ReportDeleted = "reportDeleted"
)

// Event is one push frame: {"event": Type, "data": Data}.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events fire-and-forget. There is no acknowledgement or replay.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broadcaster takes an already encoded frame.
type Broadcaster interface {
	Broadcast(frame []byte)
}
