// Package artifactcache keeps model artifacts fetched from object storage on the local
// filesystem so warm invocations can skip the download.
//
// A cached artifact lives at <dir>/<hash of the object path>-<base name>, so objects that
// share a base name never collide. Population of a path happens at most once at a time per
// process (single-flight) and lands atomically through a rename, so concurrent processes
// sharing the directory never observe a partial file.
package artifactcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Eventual-Inc/modelfn/pkg/metrics"
	"github.com/Eventual-Inc/modelfn/pkg/objectstorage"
)

// ErrFetch wraps every failure to populate the cache from object storage
var ErrFetch = errors.New("artifact fetch failed")

// DefaultFetchTimeout bounds a shared download once it no longer follows any caller's context
const DefaultFetchTimeout = 5 * time.Minute

type Cache struct {
	dir   string
	store objectstorage.ObjectStore
	group singleflight.Group

	// FetchTimeout bounds one shared download, zero means no bound
	FetchTimeout time.Duration
}

func New(dir string, store objectstorage.ObjectStore) *Cache {
	return &Cache{dir: dir, store: store, FetchTimeout: DefaultFetchTimeout}
}

func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the local path an object is cached at, whether or not it is present
func (c *Cache) Path(objectPath string) string {
	sum := sha256.Sum256([]byte(objectPath))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:6])+"-"+path.Base(objectPath))
}

// GetOrFetch returns the local path of the cached object, downloading it first on a miss
func (c *Cache) GetOrFetch(ctx context.Context, objectPath string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: unable to create cache directory %s: %v", ErrFetch, c.dir, err)
	}
	localPath := c.Path(objectPath)
	if present(localPath) {
		metrics.CacheHits.Inc()
		return localPath, nil
	}

	// The shared download outlives any single caller; each caller stops waiting on its own ctx
	results := c.group.DoChan(localPath, func() (interface{}, error) {
		// Another caller may have finished populating while we waited
		if present(localPath) {
			metrics.CacheHits.Inc()
			return nil, nil
		}
		metrics.CacheMisses.Inc()
		fetchCtx := context.WithoutCancel(ctx)
		if c.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.FetchTimeout)
			defer cancel()
		}
		return nil, c.fetch(fetchCtx, objectPath, localPath)
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return localPath, nil
	case <-ctx.Done():
		return "", fmt.Errorf("stopped waiting for %s: %w", objectPath, ctx.Err())
	}
}

func (c *Cache) fetch(ctx context.Context, objectPath string, localPath string) error {
	start := time.Now()
	log := logrus.WithFields(logrus.Fields{"object": objectPath, "path": localPath})

	body, err := c.store.DownloadObject(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer body.Close()

	tmpPath := filepath.Join(c.dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(localPath), uuid.New().String()))
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: unable to create %s: %v", ErrFetch, tmpPath, err)
	}
	n, err := io.Copy(tmp, body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, localPath)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: unable to write %s: %w", ErrFetch, localPath, err)
	}

	elapsed := time.Since(start)
	metrics.FetchedBytes.Add(float64(n))
	metrics.FetchDuration.Observe(elapsed.Seconds())
	log.WithField("bytes", n).Infof("Fetched artifact in %s", elapsed)
	return nil
}

// Purge removes every cached artifact, returning the removed paths
func (c *Cache) Purge() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var removed []string
	for _, entry := range entries {
		p := filepath.Join(c.dir, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func present(localPath string) bool {
	info, err := os.Stat(localPath)
	return err == nil && info.Mode().IsRegular()
}
