package worker

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Subscription holds the useful values of a PushSubscription object
// sent by a client that wants push notifications.
//
// https://w3c.github.io/push-api/
type Subscription struct {
	// Endpoint is the URL push messages for this client are sent to.
	Endpoint string

	// Key is the client's p256dh public key.
	Key []byte

	// Auth is the pre-shared authentication secret.
	Auth []byte
}

// ParseSubscription decodes a JSON-encoded PushSubscription. Some older
// clients incorrectly pad the base64url key material, so padding is
// stripped before decoding.
func ParseSubscription(b []byte) (*Subscription, error) {
	var sub struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(b, &sub); err != nil {
		return nil, err
	}
	if sub.Endpoint == "" {
		return nil, errors.New("subscription missing endpoint")
	}

	b64 := base64.URLEncoding.WithPadding(base64.NoPadding)

	key, err := b64.DecodeString(strings.TrimRight(sub.Keys.P256dh, "="))
	if err != nil {
		return nil, err
	}

	auth, err := b64.DecodeString(strings.TrimRight(sub.Keys.Auth, "="))
	if err != nil {
		return nil, err
	}

	return &Subscription{Endpoint: sub.Endpoint, Key: key, Auth: auth}, nil
}
