package worker

import (
	"context"
	"testing"
)

type fakeShower struct {
	shown []Notification
}

func (f *fakeShower) Show(_ context.Context, n Notification) error {
	f.shown = append(f.shown, n)
	return nil
}

type fakeClient struct {
	url     string
	focused bool
}

func (c *fakeClient) URL() string                 { return c.url }
func (c *fakeClient) Focus(context.Context) error { c.focused = true; return nil }

type fakeClients struct {
	clients []Client
	opened  []string
}

func (f *fakeClients) List(context.Context) ([]Client, error) { return f.clients, nil }
func (f *fakeClients) OpenWindow(_ context.Context, url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func TestPushShowsNotification(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	shower := &fakeShower{}
	w.Shower = shower

	payload := []byte(`{"title":"Nowa wiadomość","body":"Sprawdzian w piątek","url":"/messages/9"}`)
	if err := w.Dispatch(context.Background(), Event{Kind: EventPush, Payload: payload}).Wait(); err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(shower.shown) != 1 {
		t.Fatalf("shown %d notifications", len(shower.shown))
	}
	n := shower.shown[0]
	if n.Title != "Nowa wiadomość" || n.URL != "/messages/9" {
		t.Fatalf("got %+v", n)
	}
	if n.Tag == "" {
		t.Fatalf("expected generated tag")
	}
}

func TestPushWithoutPayloadIgnored(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	shower := &fakeShower{}
	w.Shower = shower

	if err := w.Dispatch(context.Background(), Event{Kind: EventPush}).Wait(); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := w.Dispatch(context.Background(), Event{Kind: EventPush, Payload: []byte("garbage")}).Wait(); err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(shower.shown) != 0 {
		t.Fatalf("expected no notifications, got %d", len(shower.shown))
	}
}

func TestPushFillsDefaults(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	shower := &fakeShower{}
	w.Shower = shower

	if err := w.Dispatch(context.Background(), Event{Kind: EventPush, Payload: []byte(`{}`)}).Wait(); err != nil {
		t.Fatalf("push: %v", err)
	}

	n := shower.shown[0]
	if n.Title == "" || n.Body == "" || n.URL != "/" {
		t.Fatalf("got %+v", n)
	}
}

func TestNotificationClickFocusesExistingClient(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	open := &fakeClient{url: "http://app.local/messages"}
	clients := &fakeClients{clients: []Client{&fakeClient{url: "http://elsewhere.example"}, open}}
	w.Clients = clients

	ev := Event{Kind: EventNotificationClick, Notification: Notification{URL: "/messages/9"}}
	if err := w.Dispatch(context.Background(), ev).Wait(); err != nil {
		t.Fatalf("click: %v", err)
	}

	if !open.focused {
		t.Fatalf("expected same-origin client to be focused")
	}
	if len(clients.opened) != 0 {
		t.Fatalf("expected no new window, got %v", clients.opened)
	}
}

func TestNotificationClickOpensWindowWhenNoClient(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	clients := &fakeClients{}
	w.Clients = clients

	ev := Event{Kind: EventNotificationClick, Notification: Notification{URL: "/messages/9"}}
	if err := w.Dispatch(context.Background(), ev).Wait(); err != nil {
		t.Fatalf("click: %v", err)
	}

	if len(clients.opened) != 1 || clients.opened[0] != "/messages/9" {
		t.Fatalf("opened %v", clients.opened)
	}
}

func TestNotificationClickCloseActionDoesNothing(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	clients := &fakeClients{clients: []Client{&fakeClient{url: "http://app.local/"}}}
	w.Clients = clients

	ev := Event{Kind: EventNotificationClick, Action: "close"}
	if err := w.Dispatch(context.Background(), ev).Wait(); err != nil {
		t.Fatalf("click: %v", err)
	}

	if clients.clients[0].(*fakeClient).focused {
		t.Fatalf("close action must not focus")
	}
}

func TestParseSubscription(t *testing.T) {
	raw := []byte(`{"endpoint":"https://push.example/send/abc","keys":{"p256dh":"BAJq","auth":"c2VjcmV0"}}`)
	sub, err := ParseSubscription(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sub.Endpoint != "https://push.example/send/abc" {
		t.Fatalf("endpoint = %q", sub.Endpoint)
	}
	if string(sub.Auth) != "secret" {
		t.Fatalf("auth = %q", sub.Auth)
	}

	// Padded key material is tolerated.
	padded := []byte(`{"endpoint":"https://push.example/send/abc","keys":{"p256dh":"BAJq==","auth":"c2VjcmV0=="}}`)
	if _, err := ParseSubscription(padded); err != nil {
		t.Fatalf("parse padded: %v", err)
	}

	if _, err := ParseSubscription([]byte(`{"keys":{}}`)); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
