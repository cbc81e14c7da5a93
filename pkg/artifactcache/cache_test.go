package artifactcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Eventual-Inc/modelfn/pkg/objectstorage"
)

type countingStore struct {
	content []byte
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (s *countingStore) DownloadObject(
	_ context.Context,
	_ string,
	_ ...objectstorage.DownloadObjectOption,
) (io.ReadCloser, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func (s *countingStore) ListObjects(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) { return 0, errors.New("connection reset") }

type brokenBodyStore struct{}

func (brokenBodyStore) DownloadObject(
	_ context.Context,
	_ string,
	_ ...objectstorage.DownloadObjectOption,
) (io.ReadCloser, error) {
	return io.NopCloser(failingReader{}), nil
}

func (brokenBodyStore) ListObjects(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

// slowStore returns the object path as content and honors ctx while it is "downloading"
type slowStore struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *slowStore) DownloadObject(
	ctx context.Context,
	objectPath string,
	_ ...objectstorage.DownloadObjectOption,
) (io.ReadCloser, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return io.NopCloser(bytes.NewReader([]byte(objectPath))), nil
}

func (s *slowStore) ListObjects(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func TestPath(t *testing.T) {
	cache := New("/tmp/model", nil)
	got := cache.Path("s3://bucket/up-lambda-iris-model/model.pkl")
	if filepath.Dir(got) != "/tmp/model" {
		t.Fatalf("cache path %q is outside the cache dir", got)
	}
	if !strings.HasSuffix(got, "-model.pkl") {
		t.Fatalf("cache path %q does not keep the artifact name", got)
	}
	if again := cache.Path("s3://bucket/up-lambda-iris-model/model.pkl"); again != got {
		t.Fatalf("cache path is not deterministic: %q vs %q", got, again)
	}
}

func TestGetOrFetchKeepsKeysApart(t *testing.T) {
	store := &slowStore{}
	cache := New(t.TempDir(), store)
	ctx := context.Background()

	keys := []string{"s3://bucket/iris/model.pkl", "s3://bucket/wine/model.pkl"}
	paths := map[string]bool{}
	for _, key := range keys {
		localPath, err := cache.GetOrFetch(ctx, key)
		if err != nil {
			t.Fatalf("GetOrFetch(%s) error = %v", key, err)
		}
		raw, err := os.ReadFile(localPath)
		if err != nil {
			t.Fatalf("cached file missing: %v", err)
		}
		if string(raw) != key {
			t.Fatalf("GetOrFetch(%s) served the artifact of %s", key, raw)
		}
		paths[localPath] = true
	}
	if len(paths) != 2 {
		t.Fatalf("both keys share a cache path: %v", paths)
	}
	if calls := store.calls.Load(); calls != 2 {
		t.Fatalf("expected one download per key, got %d", calls)
	}
}

func TestGetOrFetchSurvivesCancelledLeader(t *testing.T) {
	store := &slowStore{delay: 100 * time.Millisecond}
	cache := New(t.TempDir(), store)
	const key = "s3://bucket/model.pkl"

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrFetch(leaderCtx, key)
		leaderErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	followerErr := make(chan error, 1)
	var followerPath string
	go func() {
		p, err := cache.GetOrFetch(context.Background(), key)
		followerPath = p
		followerErr <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller should see context.Canceled, got %v", err)
	}
	if err := <-followerErr; err != nil {
		t.Fatalf("waiting caller failed with the leader's cancellation: %v", err)
	}
	raw, err := os.ReadFile(followerPath)
	if err != nil || string(raw) != key {
		t.Fatalf("cached artifact = %q, %v", raw, err)
	}
	if calls := store.calls.Load(); calls != 1 {
		t.Fatalf("expected one shared download, got %d", calls)
	}
}

func TestGetOrFetchDownloadsOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	store := &countingStore{content: []byte("artifact")}
	cache := New(dir, store)
	ctx := context.Background()

	first, err := cache.GetOrFetch(ctx, "s3://bucket/model.pkl")
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	raw, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("cached file missing: %v", err)
	}
	if string(raw) != "artifact" {
		t.Fatalf("unexpected cached content %q", raw)
	}

	second, err := cache.GetOrFetch(ctx, "s3://bucket/model.pkl")
	if err != nil {
		t.Fatalf("GetOrFetch() warm error = %v", err)
	}
	if second != first {
		t.Fatalf("path changed between calls: %q vs %q", first, second)
	}
	if calls := store.calls.Load(); calls != 1 {
		t.Fatalf("expected one download, got %d", calls)
	}
}

func TestGetOrFetchConcurrentColdCache(t *testing.T) {
	store := &countingStore{content: []byte("artifact"), delay: 50 * time.Millisecond}
	cache := New(t.TempDir(), store)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetOrFetch(context.Background(), "s3://bucket/model.pkl"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if calls := store.calls.Load(); calls != 1 {
		t.Fatalf("expected a single download for concurrent callers, got %d", calls)
	}
}

func TestGetOrFetchStoreError(t *testing.T) {
	dir := t.TempDir()
	store := &countingStore{err: objectstorage.ErrObjectNotFound}
	cache := New(dir, store)

	_, err := cache.GetOrFetch(context.Background(), "s3://bucket/model.pkl")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !errors.Is(err, objectstorage.ErrObjectNotFound) {
		t.Fatalf("expected wrapped ErrObjectNotFound, got %v", err)
	}
	if _, statErr := os.Stat(cache.Path("s3://bucket/model.pkl")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no cached file after failure, stat err = %v", statErr)
	}
}

func TestGetOrFetchPartialDownloadLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, brokenBodyStore{})

	if _, err := cache.GetOrFetch(context.Background(), "s3://bucket/model.pkl"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty cache dir, found %d entries", len(entries))
	}
}

func TestPurge(t *testing.T) {
	store := &countingStore{content: []byte("artifact")}
	cache := New(t.TempDir(), store)
	if _, err := cache.GetOrFetch(context.Background(), "s3://bucket/model.pkl"); err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	removed, err := cache.Purge()
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected one removed artifact, got %v", removed)
	}
	if _, err := cache.GetOrFetch(context.Background(), "s3://bucket/model.pkl"); err != nil {
		t.Fatalf("GetOrFetch() after purge error = %v", err)
	}
	if calls := store.calls.Load(); calls != 2 {
		t.Fatalf("expected re-download after purge, got %d downloads", calls)
	}

	missing := New(filepath.Join(t.TempDir(), "absent"), store)
	if removed, err := missing.Purge(); err != nil || len(removed) != 0 {
		t.Fatalf("Purge() on missing dir = %v, %v", removed, err)
	}
}
