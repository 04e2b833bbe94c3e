package worker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Response is a cached or freshly fetched resource response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Storage manages named persistent cache stores under one directory.
// Each store is a single JSON file keyed by request URL, mirroring the
// platform cache-storage model: stores are created on first open,
// enumerable by name, and deletable as a unit during activation.
type Storage struct {
	mu     sync.Mutex
	dir    string
	stores map[string]*Store
}

func OpenStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure cache dir: %w", err)
	}
	return &Storage{dir: dir, stores: map[string]*Store{}}, nil
}

func (s *Storage) Open(name string) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[name]; ok {
		return st, nil
	}

	st := &Store{
		path:    filepath.Join(s.dir, name+".json"),
		entries: map[string]entry{},
	}
	data, err := os.ReadFile(st.path)
	if err == nil {
		if jsonErr := json.Unmarshal(data, &st.entries); jsonErr != nil {
			st.entries = map[string]entry{}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read cache store %s: %w", name, err)
	}

	s.stores[name] = st
	return st, nil
}

// Keys lists the names of every store present on disk.
func (s *Storage) Keys() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(de.Name(), ".json"))
	}
	return names, nil
}

// Delete removes a store and its persisted entries.
func (s *Storage) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.stores, name)
	path := filepath.Join(s.dir, name+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache store %s: %w", name, err)
	}
	return nil
}

type entry struct {
	Status   int                 `json:"status"`
	Header   map[string][]string `json:"header,omitempty"`
	Body     []byte              `json:"body"`
	StoredAt time.Time           `json:"stored_at"`
}

// Store is one named cache store: request URL to stored response.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]entry
}

func (st *Store) Match(url string) (*Response, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[url]
	if !ok {
		return nil, false
	}
	return &Response{Status: e.Status, Header: http.Header(e.Header), Body: e.Body}, true
}

func (st *Store) Put(url string, resp *Response) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.entries[url] = entry{
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		StoredAt: time.Now(),
	}

	data, err := json.Marshal(st.entries)
	if err != nil {
		return fmt.Errorf("encode cache store: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache store: %w", err)
	}
	return nil
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}
