package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRequest(t *testing.T, method, target string, header http.Header) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if header != nil {
		req.Header = header
	}
	return req
}

func TestCrossOriginFailureSynthesizes503(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("dial tcp: no route to host")}
	w, _ := newTestWorker(t, fetch)

	req := newRequest(t, http.MethodGet, "https://backend.example.com/api/messages?folder=received", nil)
	resp, task := w.HandleFetch(context.Background(), req)
	if err := task.Wait(); err != nil {
		t.Fatalf("task: %v", err)
	}

	if resp.Status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := string(resp.Body); got != `{"error": "No internet connection"}` {
		t.Fatalf("body = %q", got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	// Never consults or populates any cache.
	for _, name := range []string{StaticStore, DynamicStore} {
		st, err := w.Storage.Open(name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if st.Len() != 0 {
			t.Fatalf("store %s touched by cross-origin request", name)
		}
	}
}

func TestCrossOriginSuccessPassesThrough(t *testing.T) {
	target := "https://backend.example.com/api/messages?folder=sent"
	fetch := &fakeFetcher{responses: map[string]*Response{
		target: okResponse(`{"messages":[]}`),
	}}
	w, _ := newTestWorker(t, fetch)

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	_ = task.Wait()

	if resp.Status != http.StatusOK || string(resp.Body) != `{"messages":[]}` {
		t.Fatalf("got %d %q", resp.Status, resp.Body)
	}
}

func TestStaticAssetServedCacheFirst(t *testing.T) {
	fetch := &fakeFetcher{}
	w, _ := newTestWorker(t, fetch)

	static, err := w.Storage.Open(StaticStore)
	if err != nil {
		t.Fatalf("open static: %v", err)
	}
	if err := static.Put("http://app.local/style.css", okResponse("body{}")); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, "http://app.local/style.css", nil))
	_ = task.Wait()

	if string(resp.Body) != "body{}" {
		t.Fatalf("body = %q", resp.Body)
	}
	if fetch.callCount() != 0 {
		t.Fatalf("cache hit must not fetch, got %d calls", fetch.callCount())
	}
}

func TestStaticAssetMissFallsThroughWithoutStoring(t *testing.T) {
	fetch := &fakeFetcher{responses: map[string]*Response{
		"http://app.local/style.css": okResponse("body{}"),
	}}
	w, _ := newTestWorker(t, fetch)

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, "http://app.local/style.css", nil))
	_ = task.Wait()

	if string(resp.Body) != "body{}" {
		t.Fatalf("body = %q", resp.Body)
	}
	if fetch.callCount() != 1 {
		t.Fatalf("expected one network call, got %d", fetch.callCount())
	}

	// The cache-first path does not populate either store on a miss.
	for _, name := range []string{StaticStore, DynamicStore} {
		st, err := w.Storage.Open(name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if st.Len() != 0 {
			t.Fatalf("store %s unexpectedly populated", name)
		}
	}
}

func TestStaleWhileRevalidateColdFetchesAndStores(t *testing.T) {
	target := "http://app.local/avatars/7.png"
	fetch := &fakeFetcher{responses: map[string]*Response{
		target: okResponse("png-bytes"),
	}}
	w, _ := newTestWorker(t, fetch)

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	if err := task.Wait(); err != nil {
		t.Fatalf("task: %v", err)
	}

	if string(resp.Body) != "png-bytes" {
		t.Fatalf("body = %q", resp.Body)
	}

	dynamic, err := w.Storage.Open(DynamicStore)
	if err != nil {
		t.Fatalf("open dynamic: %v", err)
	}
	if _, ok := dynamic.Match(target); !ok {
		t.Fatalf("expected response stored in dynamic store")
	}
}

func TestStaleWhileRevalidateServesCachedDespiteFailure(t *testing.T) {
	target := "http://app.local/avatars/7.png"
	fetch := &fakeFetcher{err: errors.New("offline")}
	w, _ := newTestWorker(t, fetch)

	dynamic, err := w.Storage.Open(DynamicStore)
	if err != nil {
		t.Fatalf("open dynamic: %v", err)
	}
	if err := dynamic.Put(target, okResponse("stale-png")); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	if err := task.Wait(); err != nil {
		t.Fatalf("task: %v", err)
	}

	if string(resp.Body) != "stale-png" {
		t.Fatalf("body = %q", resp.Body)
	}
	if _, ok := dynamic.Match(target); !ok {
		t.Fatalf("failed revalidation must not evict the cached entry")
	}
}

func TestStaleWhileRevalidateRefreshesCachedEntry(t *testing.T) {
	target := "http://app.local/avatars/7.png"
	fetch := &fakeFetcher{responses: map[string]*Response{
		target: okResponse("fresh-png"),
	}}
	w, _ := newTestWorker(t, fetch)

	dynamic, err := w.Storage.Open(DynamicStore)
	if err != nil {
		t.Fatalf("open dynamic: %v", err)
	}
	if err := dynamic.Put(target, okResponse("stale-png")); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, target, nil))
	if err := task.Wait(); err != nil {
		t.Fatalf("task: %v", err)
	}

	// The cached copy is returned immediately...
	if string(resp.Body) != "stale-png" {
		t.Fatalf("body = %q", resp.Body)
	}
	// ...and the refreshed copy is stored for next time.
	refreshed, ok := dynamic.Match(target)
	if !ok || string(refreshed.Body) != "fresh-png" {
		t.Fatalf("expected refreshed entry, got %v %q", ok, refreshed.Body)
	}
}

func TestStaleWhileRevalidateForwardsRequestBody(t *testing.T) {
	target := "http://app.local/messages/outbox"
	fetch := &fakeFetcher{responses: map[string]*Response{
		target: okResponse(`{"status":"queued"}`),
	}}
	w, _ := newTestWorker(t, fetch)

	payload := `{"recipient":"wychowawca","subject":"Usprawiedliwienie"}`
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload))
	resp, task := w.HandleFetch(context.Background(), req)
	if err := task.Wait(); err != nil {
		t.Fatalf("task: %v", err)
	}

	if string(resp.Body) != `{"status":"queued"}` {
		t.Fatalf("body = %q", resp.Body)
	}
	if got := fetch.lastBody(); got != payload {
		t.Fatalf("forwarded body = %q, want %q", got, payload)
	}
}

func TestStaleWhileRevalidateOfflineNavigationGetsEntryPage(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("offline")}
	w, _ := newTestWorker(t, fetch)

	static, err := w.Storage.Open(StaticStore)
	if err != nil {
		t.Fatalf("open static: %v", err)
	}
	entryPage := w.Origin.JoinPath("/index.html").String()
	if err := static.Put(entryPage, okResponse("<html>offline shell</html>")); err != nil {
		t.Fatalf("put: %v", err)
	}

	header := http.Header{"Accept": []string{"text/html,application/xhtml+xml"}}
	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, "http://app.local/profile", header))
	_ = task.Wait()

	if resp == nil || string(resp.Body) != "<html>offline shell</html>" {
		t.Fatalf("expected entry page, got %+v", resp)
	}
}

func TestStaleWhileRevalidateOfflineNonHTMLIsAbsent(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("offline")}
	w, _ := newTestWorker(t, fetch)

	header := http.Header{"Accept": []string{"image/png"}}
	resp, task := w.HandleFetch(context.Background(), newRequest(t, http.MethodGet, "http://app.local/avatars/7.png", header))
	_ = task.Wait()

	if resp != nil {
		t.Fatalf("expected absent response, got %+v", resp)
	}
}
