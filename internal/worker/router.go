package worker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// OfflineErrorBody is the substitute payload for backend requests that
// fail while the network is unreachable.
const OfflineErrorBody = `{"error": "No internet connection"}`

// HandleFetch routes one intercepted request to a caching strategy by
// classification:
//
//   - cross-origin (the remote backend): network-only, a failed fetch
//     synthesizes a 503 JSON error instead of consulting any cache;
//   - static manifest asset: cache-first, a miss falls through to the
//     network without being stored;
//   - everything else: stale-while-revalidate against the dynamic store.
//
// A nil response means absent: the platform surfaces a network error.
// The returned task completes when any background revalidation is done.
func (w *Worker) HandleFetch(ctx context.Context, req *http.Request) (*Response, *Task) {
	if !w.sameOrigin(req.URL) {
		return w.networkOnly(ctx, req)
	}
	if w.isStaticAsset(req.URL.Path) {
		return w.cacheFirst(ctx, req)
	}
	return w.staleWhileRevalidate(ctx, req)
}

func (w *Worker) isStaticAsset(path string) bool {
	for _, asset := range w.Manifest {
		if path == asset || strings.HasSuffix(path, asset) {
			return true
		}
	}
	return false
}

func (w *Worker) networkOnly(ctx context.Context, req *http.Request) (*Response, *Task) {
	task := newTask()
	task.finish(nil)

	resp, err := w.Fetch.Do(ctx, req)
	if err != nil {
		w.Log.Warn("backend unreachable", "url", req.URL.String(), "error", err)
		return &Response{
			Status: http.StatusServiceUnavailable,
			Header: http.Header{"Content-Type": []string{"application/json"}},
			Body:   []byte(OfflineErrorBody),
		}, task
	}
	return resp, task
}

func (w *Worker) cacheFirst(ctx context.Context, req *http.Request) (*Response, *Task) {
	task := newTask()
	task.finish(nil)

	static, err := w.Storage.Open(StaticStore)
	if err != nil {
		w.Log.Warn("open static store", "error", err)
		resp, fetchErr := w.Fetch.Do(ctx, req)
		if fetchErr != nil {
			return nil, task
		}
		return resp, task
	}

	if cached, ok := static.Match(req.URL.String()); ok {
		return cached, task
	}

	// Miss falls through to the network; this path does not populate
	// the store retroactively.
	resp, err := w.Fetch.Do(ctx, req)
	if err != nil {
		return nil, task
	}
	return resp, task
}

type fetchOutcome struct {
	resp *Response
	err  error
}

func (w *Worker) staleWhileRevalidate(ctx context.Context, req *http.Request) (*Response, *Task) {
	task := newTask()

	dynamic, err := w.Storage.Open(DynamicStore)
	if err != nil {
		task.finish(err)
		return nil, task
	}

	key := req.URL.String()
	cached, hasCached := dynamic.Match(key)

	// The refresh re-issues the request, so the body has to be buffered
	// up front or a bodied miss would reach the network empty.
	var payload []byte
	if req.Body != nil {
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			task.finish(err)
			return nil, task
		}
	}

	results := make(chan fetchOutcome, 1)
	go func() {
		// The revalidation outlives the intercepted request; concurrent
		// refreshes of the same URL collapse into one fetch.
		bg := context.WithoutCancel(ctx)
		v, fetchErr, _ := w.revalidate.Do(key, func() (any, error) {
			refresh, err := http.NewRequestWithContext(bg, req.Method, key, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			refresh.Header = req.Header.Clone()
			return w.Fetch.Do(bg, refresh)
		})

		outcome := fetchOutcome{err: fetchErr}
		if fetchErr == nil {
			outcome.resp = v.(*Response)
			if outcome.resp.OK() {
				if putErr := dynamic.Put(key, outcome.resp); putErr != nil {
					w.Log.Warn("store dynamic entry", "url", key, "error", putErr)
				}
			}
		}
		results <- outcome
		task.finish(nil)
	}()

	// Cached copy wins immediately; the refresh continues behind it.
	if hasCached {
		return cached, task
	}

	outcome := <-results
	if outcome.err == nil {
		return outcome.resp, task
	}

	// Nothing cached and no network: navigations get the entry page,
	// everything else resolves to absent.
	if strings.Contains(req.Header.Get("Accept"), "text/html") {
		if static, err := w.Storage.Open(StaticStore); err == nil {
			if page, ok := static.Match(w.Origin.JoinPath("/index.html").String()); ok {
				return page, task
			}
		}
	}
	return nil, task
}
