package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to an upload.
type EventType string

const (
	EventCreated              EventType = "created"
	EventDeleted              EventType = "deleted"
	EventSuperseded           EventType = "superseded"
	EventSupersedeFailed      EventType = "superseded_failed"
	EventOrphanedBlob         EventType = "orphaned_blob"
	EventMetadataDeleteFailed EventType = "metadata_delete_failed"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventCreated, EventDeleted, EventSuperseded, EventSupersedeFailed, EventOrphanedBlob, EventMetadataDeleteFailed:
		return true
	}
	return false
}

// UploadEvent is a lightweight notification about one upload. Consumers
// re-read the metadata store for anything beyond these fields.
type UploadEvent struct {
	Type       EventType `json:"type"`
	OwnerID    string    `json:"owner_id"`
	ItemType   string    `json:"item_type"`
	RecordID   string    `json:"record_id,omitempty"`
	StorageKey string    `json:"storage_key,omitempty"`
	Period     string    `json:"period,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewUploadEvent creates an event stamped with the current time.
func NewUploadEvent(t EventType, ownerID, itemType string) *UploadEvent {
	return &UploadEvent{
		Type:      t,
		OwnerID:   ownerID,
		ItemType:  itemType,
		Timestamp: time.Now(),
	}
}

func (m *UploadEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadEventFromJSON decodes and validates an event.
func UploadEventFromJSON(data []byte) (*UploadEvent, error) {
	var msg UploadEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("event %q has no owner", msg.Type)
	}
	return &msg, nil
}
