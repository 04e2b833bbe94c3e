// Package readset tracks message ids the user has opened locally. The
// set only grows and persists independently of the message cache; at
// render time it is ORed with the server's read flag.
package readset

import (
	"encoding/json"
	"fmt"

	"github.com/lukasz-falda/libruscli/internal/localstore"
)

const readMessagesKey = "librus_read_messages"

type Set struct {
	local *localstore.Store
}

func New(local *localstore.Store) *Set {
	return &Set{local: local}
}

func (s *Set) MarkRead(id string) error {
	ids := s.load()
	if ids[id] {
		return nil
	}
	ids[id] = true

	out := make([]string, 0, len(ids))
	for v := range ids {
		out = append(out, v)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode read set: %w", err)
	}
	return s.local.Set(readMessagesKey, string(data))
}

func (s *Set) IsRead(id string) bool {
	return s.load()[id]
}

func (s *Set) load() map[string]bool {
	raw, ok := s.local.Get(readMessagesKey)
	if !ok {
		return map[string]bool{}
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return map[string]bool{}
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
