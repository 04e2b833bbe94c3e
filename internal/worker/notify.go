package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Notification is a displayed push notification.
type Notification struct {
	Tag   string `json:"tag"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NotificationShower displays notifications to the user.
type NotificationShower interface {
	Show(ctx context.Context, n Notification) error
}

// Client is one open instance of the application.
type Client interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens application instances for
// notification-click handling.
type Clients interface {
	List(ctx context.Context) ([]Client, error)
	OpenWindow(ctx context.Context, url string) error
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// handlePush displays a notification for an incoming push message. An
// absent or undecodable payload is ignored.
func (w *Worker) handlePush(ctx context.Context, ev Event) error {
	if len(ev.Payload) == 0 {
		return nil
	}

	var payload pushPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		w.Log.Warn("undecodable push payload", "error", err)
		return nil
	}

	n := Notification{
		Tag:   uuid.NewString(),
		Title: payload.Title,
		Body:  payload.Body,
		URL:   payload.URL,
	}
	if n.Title == "" {
		n.Title = "Messages"
	}
	if n.Body == "" {
		n.Body = "New message"
	}
	if n.URL == "" {
		n.URL = "/"
	}

	if w.Shower == nil {
		return nil
	}
	return w.Shower.Show(ctx, n)
}

// handleNotificationClick focuses an already open instance of the
// application, or opens a new one at the notification's URL.
func (w *Worker) handleNotificationClick(ctx context.Context, ev Event) error {
	if ev.Action == "close" {
		return nil
	}
	if w.Clients == nil {
		return nil
	}

	clients, err := w.Clients.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range clients {
		if strings.Contains(c.URL(), w.Origin.Host) {
			return c.Focus(ctx)
		}
	}

	target := ev.Notification.URL
	if target == "" {
		target = "/"
	}
	return w.Clients.OpenWindow(ctx, target)
}
