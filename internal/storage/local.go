package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBucket stores objects under a directory that the router serves at urlPrefix.
type LocalBucket struct {
	root      string
	urlPrefix string
}

// NewLocalBucket creates root if needed. urlPrefix may be a path ("/uploads") or an
// absolute URL ("https://example.com/uploads").
func NewLocalBucket(root, urlPrefix string) (*LocalBucket, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	prefix := strings.TrimRight(strings.TrimSpace(urlPrefix), "/")
	if prefix == "" {
		prefix = "/uploads"
	}
	return &LocalBucket{root: root, urlPrefix: prefix}, nil
}

// Root is the directory objects are written to.
func (b *LocalBucket) Root() string {
	return b.root
}

// Put writes body to a temporary file and renames it into place.
func (b *LocalBucket) Put(ctx context.Context, key string, body io.Reader, size int64, _ string, progress ProgressFunc) (string, error) {
	target, err := b.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	reader := &contextReader{ctx: ctx, r: body}
	var sent int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				tmp.Close()
				return "", fmt.Errorf("write object: %w", err)
			}
			sent += int64(n)
			if progress != nil {
				progress(sent, size)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			tmp.Close()
			return "", fmt.Errorf("read upload body: %w", readErr)
		}
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}

	return b.urlPrefix + "/" + escapeKey(key), nil
}

// Delete removes the object file.
func (b *LocalBucket) Delete(_ context.Context, key string) error {
	target, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	return nil
}

// Owns reports whether publicURL was produced by this bucket.
func (b *LocalBucket) Owns(publicURL string) bool {
	return strings.Contains(publicURL, b.urlPrefix+"/")
}

// KeyFromURL strips the URL prefix, falling back to a prefix search.
func (b *LocalBucket) KeyFromURL(publicURL string) (string, bool) {
	if i := strings.Index(publicURL, b.urlPrefix+"/"); i >= 0 {
		rest := publicURL[i+len(b.urlPrefix)+1:]
		if j := strings.IndexAny(rest, "?#"); j >= 0 {
			rest = rest[:j]
		}
		if key, err := url.PathUnescape(rest); err == nil && key != "" {
			return key, true
		}
	}
	return keyFromPath(publicURL)
}

func (b *LocalBucket) pathFor(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
