// Package worker is the installable cache router: it intercepts every
// resource request issued through the gateway, independent of the
// application's own cache policy, and answers it with one of three
// strategies chosen by request classification. It also owns the
// install/activate lifecycle of its two versioned cache stores and the
// push, notification-click and background-sync hooks.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Store identifiers. Bumping a version invalidates exactly the prior
// stores at activation and nothing outside this namespace.
const (
	StaticStore  = "static-v1"
	DynamicStore = "dynamic-v1"
)

// DefaultManifest is the static asset list precached at install time.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/style.css",
	"/app.js",
	"/manifest.json",
	"/icons/icon-192.png",
	"/icons/icon-512.png",
}

type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
	EventSync              EventKind = "sync"
)

// Event carries the payload for one dispatched platform event.
type Event struct {
	Kind EventKind

	// Push payload, possibly nil.
	Payload []byte

	// Notification-click fields.
	Action       string
	Notification Notification

	// Background-sync tag.
	Tag string
}

// Task is the handle for an in-flight event handler; the host awaits
// it to preserve the block-until-done contract of the platform's
// waitUntil.
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Wait blocks until the handler completes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Fetcher performs real network fetches on behalf of the worker.
type Fetcher interface {
	Do(ctx context.Context, req *http.Request) (*Response, error)
}

// Host receives the worker's lifecycle signals: SkipWaiting marks a
// freshly installed version ready without waiting for old instances to
// close, Claim takes control of all open clients at activation.
type Host interface {
	SkipWaiting()
	Claim()
}

// Worker routes fetches and handles lifecycle events.
type Worker struct {
	Origin   *url.URL
	Manifest []string
	Storage  *Storage
	Fetch    Fetcher
	Host     Host
	Clients  Clients
	Shower   NotificationShower
	Log      *slog.Logger

	revalidate singleflight.Group
	handlers   map[EventKind]func(ctx context.Context, ev Event) error
}

func New(origin *url.URL, storage *Storage, fetch Fetcher, host Host) *Worker {
	w := &Worker{
		Origin:   origin,
		Manifest: DefaultManifest,
		Storage:  storage,
		Fetch:    fetch,
		Host:     host,
		Log:      slog.Default(),
	}
	w.handlers = map[EventKind]func(ctx context.Context, ev Event) error{
		EventInstall:           w.handleInstall,
		EventActivate:          w.handleActivate,
		EventPush:              w.handlePush,
		EventNotificationClick: w.handleNotificationClick,
		EventSync:              w.handleSync,
	}
	return w
}

// Dispatch runs the handler for the event's kind and returns a task
// handle the host can await.
func (w *Worker) Dispatch(ctx context.Context, ev Event) *Task {
	task := newTask()
	handler, ok := w.handlers[ev.Kind]
	if !ok {
		task.finish(fmt.Errorf("no handler for event %q", ev.Kind))
		return task
	}

	go func() {
		task.finish(handler(ctx, ev))
	}()
	return task
}

// handleInstall precaches the full static manifest into the static
// store, then signals readiness immediately instead of waiting for old
// instances to close.
func (w *Worker) handleInstall(ctx context.Context, _ Event) error {
	static, err := w.Storage.Open(StaticStore)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, asset := range w.Manifest {
		g.Go(func() error {
			target := w.Origin.JoinPath(asset).String()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return err
			}
			resp, err := w.Fetch.Do(ctx, req)
			if err != nil {
				return fmt.Errorf("precache %s: %w", asset, err)
			}
			if !resp.OK() {
				return fmt.Errorf("precache %s: HTTP %d", asset, resp.Status)
			}
			return static.Put(target, resp)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.Log.Info("install complete", "assets", len(w.Manifest))
	if w.Host != nil {
		w.Host.SkipWaiting()
	}
	return nil
}

// handleActivate deletes every persistent store whose name is neither
// the current static nor dynamic identifier, then takes control of all
// open clients.
func (w *Worker) handleActivate(_ context.Context, _ Event) error {
	names, err := w.Storage.Keys()
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == StaticStore || name == DynamicStore {
			continue
		}
		w.Log.Info("deleting old cache store", "name", name)
		if err := w.Storage.Delete(name); err != nil {
			return err
		}
	}

	if w.Host != nil {
		w.Host.Claim()
	}
	return nil
}

// handleSync is the named background-sync hook. Registered but
// intentionally does no synchronization work yet.
func (w *Worker) handleSync(_ context.Context, ev Event) error {
	if ev.Tag == SyncMessagesTag {
		w.Log.Info("background sync", "tag", ev.Tag)
	}
	return nil
}

// SyncMessagesTag is the registered background-sync tag.
const SyncMessagesTag = "sync-messages"

func (w *Worker) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, w.Origin.Scheme) && strings.EqualFold(u.Host, w.Origin.Host)
}
