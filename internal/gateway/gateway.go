// Package gateway runs the local HTTP server that hosts the cache
// router: every request to it is answered through the worker's routing
// strategies, with backend paths proxied to the remote API and
// everything else resolved against the configured origin. It also
// exposes the push, sync and subscription endpoints.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lukasz-falda/libruscli/internal/config"
	"github.com/lukasz-falda/libruscli/internal/localstore"
	"github.com/lukasz-falda/libruscli/internal/worker"
)

// HTTPFetcher performs the worker's network fetches with a real HTTP
// client.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Do(ctx context.Context, req *http.Request) (*worker.Response, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	out, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, err
	}
	out.Header = req.Header.Clone()
	out.ContentLength = req.ContentLength
	out.GetBody = req.GetBody

	resp, err := client.Do(out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &worker.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// logHost is the worker host for a headless gateway: lifecycle signals
// only need to be visible in the log.
type logHost struct {
	log *slog.Logger
}

func (h *logHost) SkipWaiting() { h.log.Info("worker ready, skipping waiting") }
func (h *logHost) Claim()       { h.log.Info("worker claimed clients") }

// logShower records incoming notifications in the log; a headless
// gateway has no notification surface.
type logShower struct {
	log *slog.Logger
}

func (s *logShower) Show(_ context.Context, n worker.Notification) error {
	s.log.Info("notification", "tag", n.Tag, "title", n.Title, "body", n.Body, "url", n.URL)
	return nil
}

// Server is the local gateway instance.
type Server struct {
	Worker *worker.Worker
	Log    *slog.Logger

	cfg      config.Config
	upstream *url.URL
	subs     *localstore.Store
	engine   *gin.Engine
}

// New builds the gateway from configuration: the worker with its
// persistent stores under the configured cache dir, the routing engine
// and the subscription store.
func New(cfg config.Config) (*Server, error) {
	origin, err := url.Parse(cfg.Gateway.Origin)
	if err != nil {
		return nil, err
	}
	upstream, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, err
	}

	storage, err := worker.OpenStorage(cfg.Gateway.CacheDir)
	if err != nil {
		return nil, err
	}

	// Kept next to, not inside, the cache dir: activation prunes every
	// unrecognized store file found there.
	subs, err := localstore.Open(filepath.Join(filepath.Dir(cfg.Gateway.CacheDir), "subscriptions.json"))
	if err != nil {
		return nil, err
	}

	log := slog.Default()
	w := worker.New(origin, storage, &HTTPFetcher{}, &logHost{log: log})
	w.Shower = &logShower{log: log}

	s := &Server{
		Worker:   w,
		Log:      log,
		cfg:      cfg,
		upstream: upstream,
		subs:     subs,
	}
	s.engine = s.buildEngine()
	return s, nil
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{s.cfg.Gateway.Origin},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	engine.GET("/healthz", s.handleHealth)
	engine.POST("/push/subscribe", s.handleSubscribe)
	engine.POST("/_push", s.handlePush)
	engine.POST("/_sync", s.handleSync)
	engine.NoRoute(s.handleFetch)

	return engine
}

// Install runs the worker's install and activate lifecycle in order,
// awaiting each task the way the platform awaits waitUntil.
func (s *Server) Install(ctx context.Context) error {
	if err := s.Worker.Dispatch(ctx, worker.Event{Kind: worker.EventInstall}).Wait(); err != nil {
		return err
	}
	return s.Worker.Dispatch(ctx, worker.Event{Kind: worker.EventActivate}).Wait()
}

// Run serves until ctx is cancelled. The worker installs once the
// listener is up, since with a self-hosted origin the precache fetches
// come back through this very server. A failed install leaves the
// worker unpromoted but the gateway keeps routing.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Gateway.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.Log.Info("gateway listening", "addr", ln.Addr().String())

	if err := s.Install(ctx); err != nil {
		s.Log.Warn("worker install failed", "error", err)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the routing engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSubscribe validates and persists a push subscription, keyed by
// its endpoint so re-subscribing is idempotent.
func (s *Server) handleSubscribe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
		return
	}

	sub, err := worker.ParseSubscription(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := s.subs.Set(sub.Endpoint, string(body)); err != nil {
		s.Log.Error("persist subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not persist subscription"})
		return
	}

	s.Log.Info("push subscription stored", "endpoint", sub.Endpoint)
	c.JSON(http.StatusCreated, gin.H{"status": "subscribed"})
}

// handlePush feeds a push payload into the worker, mirroring what the
// push service would deliver.
func (s *Server) handlePush(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
		return
	}

	ev := worker.Event{Kind: worker.EventPush, Payload: body}
	if err := s.Worker.Dispatch(c.Request.Context(), ev).Wait(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "delivered"})
}

// handleSync triggers a background-sync event for the given tag.
func (s *Server) handleSync(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		tag = worker.SyncMessagesTag
	}

	ev := worker.Event{Kind: worker.EventSync, Tag: tag}
	if err := s.Worker.Dispatch(c.Request.Context(), ev).Wait(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "synced", "tag": tag})
}

// hopHeader marks requests the gateway issued itself. When the
// configured origin is the gateway's own address a cache miss would
// otherwise proxy back into this handler forever.
const hopHeader = "X-Gateway-Hop"

// handleFetch routes everything else through the worker. Backend paths
// are rewritten to the remote API so the worker classifies them as
// cross-origin; the rest resolve against the gateway's own origin.
func (s *Server) handleFetch(c *gin.Context) {
	if c.GetHeader(hopHeader) != "" {
		s.serveOrigin(c)
		return
	}

	target := s.resolve(c.Request.URL)

	// Buffered so the body survives the worker re-issuing the request.
	var body io.Reader
	if c.Request.Body != nil {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
			return
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	req.Header = c.Request.Header.Clone()
	req.Header.Set(hopHeader, "1")

	resp, task := s.Worker.HandleFetch(c.Request.Context(), req)
	if resp == nil {
		c.Status(http.StatusBadGateway)
		task.Wait()
		return
	}

	header := c.Writer.Header()
	for k, v := range resp.Header {
		header[k] = v
	}
	c.Status(resp.Status)
	_, _ = c.Writer.Write(resp.Body)

	// The client has its answer; any revalidation finishes behind it.
	if err := task.Wait(); err != nil {
		s.Log.Warn("fetch task", "url", target.String(), "error", err)
	}
}

// serveOrigin answers hop requests directly from the static dir. With
// the origin pointed at the gateway itself this is the origin server
// side of it.
func (s *Server) serveOrigin(c *gin.Context) {
	if s.cfg.Gateway.StaticDir == "" {
		c.Status(http.StatusNotFound)
		return
	}

	p := path.Clean(c.Request.URL.Path)
	if p == "/" {
		p = "/index.html"
	}
	http.ServeFile(c.Writer, c.Request, filepath.Join(s.cfg.Gateway.StaticDir, filepath.FromSlash(p)))
}

func (s *Server) resolve(u *url.URL) *url.URL {
	base := s.Worker.Origin
	if strings.HasPrefix(u.Path, "/api/") {
		base = s.upstream
	}

	resolved := *base
	resolved.Path = u.Path
	resolved.RawQuery = u.RawQuery
	return &resolved
}
