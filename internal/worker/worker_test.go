package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
)

type fakeFetcher struct {
	mu        sync.Mutex
	calls     []string
	bodies    []string
	responses map[string]*Response
	err       error
}

func (f *fakeFetcher) Do(_ context.Context, req *http.Request) (*Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.URL.String())
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[req.URL.String()]; ok {
		return resp, nil
	}
	return &Response{Status: http.StatusNotFound}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

type fakeHost struct {
	skipWaiting bool
	claimed     bool
}

func (h *fakeHost) SkipWaiting() { h.skipWaiting = true }
func (h *fakeHost) Claim()       { h.claimed = true }

func newTestWorker(t *testing.T, fetch Fetcher) (*Worker, *fakeHost) {
	t.Helper()

	origin, err := url.Parse("http://app.local")
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}
	storage, err := OpenStorage(t.TempDir())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	host := &fakeHost{}
	return New(origin, storage, fetch, host), host
}

func okResponse(body string) *Response {
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(body),
	}
}

func TestInstallPrecachesManifestAndSkipsWaiting(t *testing.T) {
	fetch := &fakeFetcher{responses: map[string]*Response{}}
	w, host := newTestWorker(t, fetch)
	for _, asset := range w.Manifest {
		fetch.responses[w.Origin.JoinPath(asset).String()] = okResponse("asset " + asset)
	}

	task := w.Dispatch(context.Background(), Event{Kind: EventInstall})
	if err := task.Wait(); err != nil {
		t.Fatalf("install: %v", err)
	}

	static, err := w.Storage.Open(StaticStore)
	if err != nil {
		t.Fatalf("open static store: %v", err)
	}
	if static.Len() != len(w.Manifest) {
		t.Fatalf("precached %d of %d assets", static.Len(), len(w.Manifest))
	}
	if !host.skipWaiting {
		t.Fatalf("expected SkipWaiting after install")
	}
}

func TestInstallFailureDoesNotSkipWaiting(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("network down")}
	w, host := newTestWorker(t, fetch)

	if err := w.Dispatch(context.Background(), Event{Kind: EventInstall}).Wait(); err == nil {
		t.Fatalf("expected install failure")
	}
	if host.skipWaiting {
		t.Fatalf("SkipWaiting must not run after a failed install")
	}
}

func TestActivatePrunesForeignStoresAndClaims(t *testing.T) {
	w, host := newTestWorker(t, &fakeFetcher{})

	for _, name := range []string{StaticStore, DynamicStore, "static-v0", "librus-pwa-v1"} {
		st, err := w.Storage.Open(name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if err := st.Put("http://app.local/x", okResponse("x")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	if err := w.Dispatch(context.Background(), Event{Kind: EventActivate}).Wait(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	names, err := w.Storage.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected only current stores to survive, got %v", names)
	}
	for _, name := range names {
		if name != StaticStore && name != DynamicStore {
			t.Fatalf("unexpected surviving store %s", name)
		}
	}
	if !host.claimed {
		t.Fatalf("expected Claim after activate")
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	if err := w.Dispatch(context.Background(), Event{Kind: "bogus"}).Wait(); err == nil {
		t.Fatalf("expected error for unknown event kind")
	}
}

func TestSyncHookIsPlaceholder(t *testing.T) {
	w, _ := newTestWorker(t, &fakeFetcher{})
	err := w.Dispatch(context.Background(), Event{Kind: EventSync, Tag: SyncMessagesTag}).Wait()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
}
