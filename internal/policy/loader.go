// Package policy decides, for each folder load, whether to serve the
// local snapshot, fetch fresh, or fall back to saved data, and keeps
// the rendered list consistent when loads race.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lukasz-falda/libruscli/internal/api"
	"github.com/lukasz-falda/libruscli/internal/cache"
)

// State names the outcome of one folder load.
type State string

const (
	StateCacheHit                   State = "cache_hit"
	StateOfflineFallback            State = "offline_fallback"
	StateNetworkFetch               State = "network_fetch"
	StateNetworkFetchFailedFallback State = "network_fetch_failed_fallback"
	StateEmpty                      State = "empty"
)

type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Lister fetches a folder listing from the backend.
type Lister interface {
	ListMessages(ctx context.Context, folder api.Folder) ([]api.MessageSummary, error)
}

// Renderer is the presentation boundary for folder listings.
type Renderer interface {
	RenderMessages(folder api.Folder, messages []api.MessageSummary)
	SetLoading(loading bool)
}

// Notifier surfaces non-blocking notifications to the user.
type Notifier interface {
	Toast(message string, kind ToastKind)
}

type Result struct {
	State    State
	Messages []api.MessageSummary
	// Superseded is true when a newer load for the same folder started
	// while this one was in flight; the result was not rendered.
	Superseded bool
}

// Loader runs the folder-load state machine. Loads for different
// folders are independent; loads for the same folder are serialized
// only at the render step, where a superseded response is discarded
// rather than overwriting a newer one.
type Loader struct {
	Cache          *cache.Cache
	Lister         Lister
	Renderer       Renderer
	Notifier       Notifier
	Online         func() bool
	OnUnauthorized func(ctx context.Context)
	Log            *slog.Logger

	mu       sync.Mutex
	inflight map[api.Folder]uint64
}

func NewLoader(c *cache.Cache, lister Lister, renderer Renderer, notifier Notifier, online func() bool) *Loader {
	return &Loader{
		Cache:    c,
		Lister:   lister,
		Renderer: renderer,
		Notifier: notifier,
		Online:   online,
		Log:      slog.Default(),
	}
}

// Load loads one folder. Without forceRefresh a usable snapshot
// terminates the load with no network call; offline never issues a
// network call; an authorization failure tears the session down and
// supersedes any fallback.
func (l *Loader) Load(ctx context.Context, folder api.Folder, forceRefresh bool) (Result, error) {
	online := l.Online()

	if !forceRefresh {
		if msgs, ok := l.Cache.Read(folder, online); ok {
			l.Renderer.RenderMessages(folder, msgs)
			return Result{State: StateCacheHit, Messages: msgs}, nil
		}
	}

	if !online {
		if msgs, ok := l.Cache.ReadAny(folder); ok {
			l.Renderer.RenderMessages(folder, msgs)
			l.Notifier.Toast("Offline mode - showing saved messages", ToastInfo)
			return Result{State: StateOfflineFallback, Messages: msgs}, nil
		}
		l.Renderer.RenderMessages(folder, nil)
		l.Notifier.Toast("Offline mode - showing saved messages", ToastInfo)
		return Result{State: StateEmpty}, nil
	}

	token := l.begin(folder)

	l.Renderer.SetLoading(true)
	defer l.Renderer.SetLoading(false)

	msgs, err := l.Lister.ListMessages(ctx, folder)
	if err != nil {
		return l.handleFetchFailure(ctx, folder, token, err)
	}

	if storeErr := l.Cache.Store(folder, msgs); storeErr != nil {
		l.Log.Warn("store snapshot", "folder", folder, "error", storeErr)
	}

	if !l.isCurrent(folder, token) {
		return Result{State: StateNetworkFetch, Messages: msgs, Superseded: true}, nil
	}

	l.Renderer.RenderMessages(folder, msgs)
	return Result{State: StateNetworkFetch, Messages: msgs}, nil
}

func (l *Loader) handleFetchFailure(ctx context.Context, folder api.Folder, token uint64, err error) (Result, error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		l.Log.Info("session expired", "folder", folder)
		l.Notifier.Toast("Session expired. Log in again.", ToastError)
		if l.OnUnauthorized != nil {
			l.OnUnauthorized(ctx)
		}
		return Result{}, err
	}

	l.Log.Warn("fetch failed", "folder", folder, "error", err)

	if !l.isCurrent(folder, token) {
		return Result{State: StateNetworkFetchFailedFallback, Superseded: true}, nil
	}

	if msgs, ok := l.Cache.ReadAny(folder); ok {
		l.Renderer.RenderMessages(folder, msgs)
		l.Notifier.Toast("Connection error - showing saved messages", ToastError)
		return Result{State: StateNetworkFetchFailedFallback, Messages: msgs}, nil
	}

	l.Renderer.RenderMessages(folder, nil)
	l.Notifier.Toast("Failed to fetch messages", ToastError)
	return Result{State: StateNetworkFetchFailedFallback}, nil
}

// begin registers a new in-flight load for folder and returns its
// token. A response whose token is no longer current is discarded
// before rendering; the cache write still lands since each store
// targets its own folder key.
func (l *Loader) begin(folder api.Folder) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inflight == nil {
		l.inflight = map[api.Folder]uint64{}
	}
	l.inflight[folder]++
	return l.inflight[folder]
}

func (l *Loader) isCurrent(folder api.Folder, token uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight[folder] == token
}
