package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local filesystem implementation of ObjectStore, addressed with file:// paths.
// Used for development and tests where no bucket is available.

type localObjectStore struct{}

func NewLocalObjectStore() ObjectStore {
	return &localObjectStore{}
}

func splitFilePath(path string) (string, error) {
	if !strings.HasPrefix(path, "file://") {
		return "", fmt.Errorf("path does not contain file:// protocol prefix: %s", path)
	}
	local := path[len("file://"):]
	if local == "" {
		return "", fmt.Errorf("empty local path in: %s", path)
	}
	return filepath.FromSlash(local), nil
}

type sectionReadCloser struct {
	*io.SectionReader
	file *os.File
}

func (r *sectionReadCloser) Close() error {
	return r.file.Close()
}

func (store *localObjectStore) DownloadObject(ctx context.Context, path string, opts ...DownloadObjectOption) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	localPath, err := splitFilePath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, err
	}
	options := applyDownloadOptions(opts)
	if !options.HasRange {
		return f, nil
	}
	// HTTP ranges are inclusive on both ends
	length := int64(options.RangeEnd - options.RangeStart + 1)
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, int64(options.RangeStart), length),
		file:          f,
	}, nil
}

func (store *localObjectStore) ListObjects(ctx context.Context, path string) ([]string, error) {
	localPath, err := splitFilePath(path)
	if err != nil {
		return nil, err
	}
	objectPaths := []string{}
	err = filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			objectPaths = append(objectPaths, "file://"+filepath.ToSlash(p))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return objectPaths, nil
		}
		return nil, err
	}
	sort.Strings(objectPaths)
	return objectPaths, nil
}
