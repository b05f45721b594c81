package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// fakeBucket keeps objects in memory and serves them from https://blobs.test/.
type fakeBucket struct {
	mu          sync.Mutex
	objects     map[string][]byte
	putErrs     []error
	puts        []string
	deletes     []string
	deleteErr   error
	deleteBlock chan struct{}
	deleteStart chan struct{}
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

const fakeBucketBase = "https://blobs.test/"

func (b *fakeBucket) Put(ctx context.Context, key string, body io.Reader, size int64, _ string, progress storage.ProgressFunc) (string, error) {
	b.mu.Lock()
	var err error
	if len(b.putErrs) > 0 {
		err = b.putErrs[0]
		b.putErrs = b.putErrs[1:]
	}
	b.puts = append(b.puts, key)
	b.mu.Unlock()
	if err != nil {
		return "", err
	}

	content, readErr := io.ReadAll(body)
	if readErr != nil {
		return "", readErr
	}
	if progress != nil {
		progress(int64(len(content)), size)
	}

	b.mu.Lock()
	b.objects[key] = content
	b.mu.Unlock()
	return fakeBucketBase + key, nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string) error {
	if b.deleteStart != nil {
		close(b.deleteStart)
	}
	if b.deleteBlock != nil {
		<-b.deleteBlock
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) Owns(publicURL string) bool {
	return strings.Contains(publicURL, "blobs.test")
}

func (b *fakeBucket) KeyFromURL(publicURL string) (string, bool) {
	if rest, ok := strings.CutPrefix(publicURL, fakeBucketBase); ok && rest != "" {
		return rest, true
	}
	return "", false
}

func (b *fakeBucket) deleteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deletes)
}

type countingNotifier struct {
	n atomic.Int64
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func memFile(name, contentType string, content []byte) UploadFile {
	return UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func failingFile(name string, err error) UploadFile {
	return UploadFile{
		Filename:    name,
		ContentType: "image/png",
		Size:        1,
		Open:        func() (io.ReadCloser, error) { return nil, err },
	}
}

var errTestBoom = errors.New("boom")
