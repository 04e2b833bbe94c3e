// Package cache stores per-folder message snapshots so folder listings
// survive restarts and network loss. Each folder carries its own fetch
// timestamp; a snapshot older than the TTL reads as absent while
// online, forcing a refetch, and is served regardless of age while
// offline.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lukasz-falda/libruscli/internal/api"
	"github.com/lukasz-falda/libruscli/internal/localstore"
)

const snapshotKey = "librus_messages_cache"

// DefaultTTL is the staleness threshold for cached snapshots.
const DefaultTTL = 5 * time.Minute

type snapshot struct {
	Messages  []api.MessageSummary `json:"messages"`
	FetchedAt time.Time            `json:"fetched_at"`
}

type Cache struct {
	local *localstore.Store
	ttl   time.Duration
	now   func() time.Time
}

func New(local *localstore.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{local: local, ttl: ttl, now: time.Now}
}

// Store overwrites the snapshot for folder and stamps it with the
// current time. Other folders' snapshots and timestamps are untouched.
func (c *Cache) Store(folder api.Folder, messages []api.MessageSummary) error {
	snapshots := c.load()
	snapshots[folder] = snapshot{Messages: messages, FetchedAt: c.now()}

	data, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return c.local.Set(snapshotKey, string(data))
}

// Read returns the snapshot for folder. While online a snapshot older
// than the TTL reads as absent; offline, age is ignored.
func (c *Cache) Read(folder api.Folder, online bool) ([]api.MessageSummary, bool) {
	snap, ok := c.load()[folder]
	if !ok {
		return nil, false
	}

	if online && c.now().Sub(snap.FetchedAt) > c.ttl {
		return nil, false
	}

	return snap.Messages, true
}

// ReadAny returns the snapshot for folder regardless of staleness.
// Used by the offline and fetch-failure fallback paths.
func (c *Cache) ReadAny(folder api.Folder) ([]api.MessageSummary, bool) {
	snap, ok := c.load()[folder]
	if !ok {
		return nil, false
	}
	return snap.Messages, true
}

// Age reports how old the folder's snapshot is.
func (c *Cache) Age(folder api.Folder) (time.Duration, bool) {
	snap, ok := c.load()[folder]
	if !ok {
		return 0, false
	}
	return c.now().Sub(snap.FetchedAt), true
}

// Clear drops all snapshots. Called on logout and session teardown.
func (c *Cache) Clear() error {
	return c.local.Delete(snapshotKey)
}

func (c *Cache) load() map[api.Folder]snapshot {
	raw, ok := c.local.Get(snapshotKey)
	if !ok {
		return map[api.Folder]snapshot{}
	}

	var snapshots map[api.Folder]snapshot
	if err := json.Unmarshal([]byte(raw), &snapshots); err != nil {
		// Malformed cached data reads as absent, never fatal.
		return map[api.Folder]snapshot{}
	}
	return snapshots
}
