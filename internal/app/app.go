// Package app wires the client together: one explicit context object
// holds the stores, the API client, the load policy and the
// connectivity state, so no component reaches for ambient globals.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lukasz-falda/libruscli/internal/api"
	"github.com/lukasz-falda/libruscli/internal/cache"
	"github.com/lukasz-falda/libruscli/internal/config"
	"github.com/lukasz-falda/libruscli/internal/localstore"
	"github.com/lukasz-falda/libruscli/internal/policy"
	"github.com/lukasz-falda/libruscli/internal/readset"
	"github.com/lukasz-falda/libruscli/internal/session"
)

// Renderer is the presentation layer seen from the application: it
// renders what the policy and flows produce and nothing more.
type Renderer interface {
	RenderMessages(folder api.Folder, messages []api.MessageSummary)
	RenderDetail(detail api.MessageDetail)
	SetLoading(loading bool)
	ShowLogin()
}

// Notifier surfaces toasts.
type Notifier interface {
	Toast(message string, kind policy.ToastKind)
}

type App struct {
	Config   config.Config
	Session  *session.Store
	Cache    *cache.Cache
	ReadSet  *readset.Set
	API      *api.Client
	Loader   *policy.Loader
	Renderer Renderer
	Notifier Notifier
	Log      *slog.Logger

	mu            sync.Mutex
	online        bool
	currentFolder api.Folder
	messages      map[api.Folder][]api.MessageSummary
}

// New assembles the application context from configuration and the
// presentation implementations.
func New(cfg config.Config, secrets session.Secrets, renderer Renderer, notifier Notifier) (*App, error) {
	statePath, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	local, err := localstore.Open(statePath)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, local, secrets, renderer, notifier), nil
}

// NewWithStore is New with the local store supplied by the caller.
func NewWithStore(cfg config.Config, local *localstore.Store, secrets session.Secrets, renderer Renderer, notifier Notifier) *App {
	sess := session.NewStore(local, secrets)

	a := &App{
		Config:        cfg,
		Session:       sess,
		Cache:         cache.New(local, cfg.CacheTTL),
		ReadSet:       readset.New(local),
		API:           api.NewClient(cfg.APIURL, sess.TokenSource()),
		Renderer:      renderer,
		Notifier:      notifier,
		Log:           slog.Default(),
		online:        true,
		currentFolder: api.FolderReceived,
		messages:      map[api.Folder][]api.MessageSummary{},
	}

	a.Loader = policy.NewLoader(a.Cache, a.API, renderer, notifier, a.IsOnline)
	a.Loader.OnUnauthorized = a.Teardown

	return a
}

func (a *App) IsOnline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

// SetOnline applies a connectivity transition. Coming back online
// force-refreshes the current folder; going offline only notifies —
// data stays untouched until the next load request.
func (a *App) SetOnline(ctx context.Context, online bool) {
	a.mu.Lock()
	changed := a.online != online
	a.online = online
	folder := a.currentFolder
	a.mu.Unlock()

	if !changed {
		return
	}

	if online {
		a.Notifier.Toast("Back online", policy.ToastSuccess)
		if _, err := a.LoadFolder(ctx, folder, true); err != nil {
			a.Log.Warn("refresh after reconnect", "folder", folder, "error", err)
		}
		return
	}
	a.Notifier.Toast("No internet connection", policy.ToastError)
}

// LoggedIn reports whether a session token is present.
func (a *App) LoggedIn() bool {
	return a.Session.Token() != ""
}

// Login authenticates, persists the session and loads the current
// folder. Credentials are remembered only when asked; an unchecked
// remember-me clears any previously stored pair.
func (a *App) Login(ctx context.Context, username, password string, remember bool) error {
	token, err := a.API.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := a.Session.SaveToken(token); err != nil {
		return err
	}

	if remember {
		if err := a.Session.SaveCredentials(username, password); err != nil {
			return err
		}
	} else if err := a.Session.ClearCredentials(); err != nil {
		return err
	}

	folder := a.CurrentFolder()
	if _, err := a.LoadFolder(ctx, folder, false); err != nil {
		return err
	}

	a.Notifier.Toast("Logged in", policy.ToastSuccess)
	return nil
}

// Logout ends the session. The server call is best effort; the local
// teardown happens regardless.
func (a *App) Logout(ctx context.Context) {
	a.API.Logout(ctx)
	a.Teardown(ctx)
	a.Notifier.Toast("Logged out", policy.ToastInfo)
}

// Teardown clears the token, the data cache and the in-memory
// messages, then shows the login view. Also invoked by the load policy
// on authorization expiry.
func (a *App) Teardown(_ context.Context) {
	if err := a.Session.ClearToken(); err != nil {
		a.Log.Warn("clear token", "error", err)
	}
	if err := a.Cache.Clear(); err != nil {
		a.Log.Warn("clear cache", "error", err)
	}

	a.mu.Lock()
	a.messages = map[api.Folder][]api.MessageSummary{}
	a.mu.Unlock()

	a.Renderer.ShowLogin()
}

// LoadFolder makes folder current and runs the load policy for it.
func (a *App) LoadFolder(ctx context.Context, folder api.Folder, forceRefresh bool) (policy.Result, error) {
	a.mu.Lock()
	a.currentFolder = folder
	a.mu.Unlock()

	res, err := a.Loader.Load(ctx, folder, forceRefresh)
	if err != nil {
		return res, err
	}

	if !res.Superseded {
		a.mu.Lock()
		a.messages[folder] = res.Messages
		a.mu.Unlock()
	}
	return res, nil
}

// OpenMessage fetches the detail lazily and marks the message read
// locally.
func (a *App) OpenMessage(ctx context.Context, id string) (api.MessageDetail, error) {
	detail, err := a.API.GetMessage(ctx, id)
	if err != nil {
		a.Notifier.Toast("Failed to fetch message", policy.ToastError)
		return api.MessageDetail{}, err
	}

	if err := a.ReadSet.MarkRead(detail.ID); err != nil {
		a.Log.Warn("mark read", "id", detail.ID, "error", err)
	}

	a.Renderer.RenderDetail(detail)
	return detail, nil
}

// IsRead ORs the server's read flag with the local read set.
func (a *App) IsRead(m api.MessageSummary) bool {
	return m.Read || a.ReadSet.IsRead(m.ID)
}

func (a *App) CurrentFolder() api.Folder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentFolder
}

// Messages returns the in-memory copy of a folder's listing.
func (a *App) Messages(folder api.Folder) []api.MessageSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages[folder]
}
