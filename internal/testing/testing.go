// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/chartx/internal/models"
)

// FakeCatalog is a test double for [services.Catalog] that answers by exact query string.
type FakeCatalog struct {
	mu      sync.Mutex
	results map[string][]models.MatchCandidate
	errs    map[string][]error
	queries []string
	err     error
}

func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{results: map[string][]models.MatchCandidate{}, errs: map[string][]error{}}
}

// Answer sets the candidates returned for query.
func (f *FakeCatalog) Answer(query string, candidates ...models.MatchCandidate) *FakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = candidates
	return f
}

// Fail queues errors returned for query, one per call, before its candidates are returned.
func (f *FakeCatalog) Fail(query string, errs ...error) *FakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[query] = append(f.errs[query], errs...)
	return f
}

// FailAll makes every search return err.
func (f *FakeCatalog) FailAll(err error) *FakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

func (f *FakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if queued := f.errs[query]; len(queued) > 0 {
		f.errs[query] = queued[1:]
		return nil, queued[0]
	}

	found := f.results[query]
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// Queries returns every query received, in call order.
func (f *FakeCatalog) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// FakePlaylistWriter is a test double for [services.PlaylistWriter].
//
// CreateErrs and AddErrs are consumed one per call; once empty, calls succeed.
type FakePlaylistWriter struct {
	mu         sync.Mutex
	Playlist   models.RemotePlaylist
	CreateErrs []error
	AddErrs    []error
	Creates    int
	AddCalls   int
	Added      [][]string
}

func NewFakePlaylistWriter() *FakePlaylistWriter {
	return &FakePlaylistWriter{Playlist: models.RemotePlaylist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}}
}

func (f *FakePlaylistWriter) CreatePlaylist(ctx context.Context, name, description string) (*models.RemotePlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates++
	if len(f.CreateErrs) > 0 {
		err := f.CreateErrs[0]
		f.CreateErrs = f.CreateErrs[1:]
		return nil, err
	}
	pl := f.Playlist
	pl.Name = name
	return &pl, nil
}

func (f *FakePlaylistWriter) AddTracks(ctx context.Context, playlistID string, externalIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls++
	if len(f.AddErrs) > 0 {
		err := f.AddErrs[0]
		f.AddErrs = f.AddErrs[1:]
		if err != nil {
			return err
		}
	}
	f.Added = append(f.Added, append([]string(nil), externalIDs...))
	return nil
}

// AddedIDs flattens every successful batch in call order.
func (f *FakePlaylistWriter) AddedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, b := range f.Added {
		ids = append(ids, b...)
	}
	return ids
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
