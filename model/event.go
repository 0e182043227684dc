package model

import "time"

// ProviderEvent is the dedup tombstone for one processed provider event. It is
// written exactly once per provider resource id and never updated or deleted;
// its presence means the event's side effects have already been applied.
type ProviderEvent struct {
	ResourceID string    `json:"resource_id"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"created_at"`
}
