// Package storage stores image bytes in a blob bucket addressed by object keys.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// PhotoPrefix is the key prefix for gallery images.
	PhotoPrefix = "photos/"
	// AssetPrefix is the key prefix for site settings images.
	AssetPrefix = "site_assets/"
)

// ProgressFunc receives the number of bytes sent so far and the total size.
type ProgressFunc func(sent, total int64)

// Bucket is a blob store that hands back a public URL for every stored object.
type Bucket interface {
	// Put stores body under key and returns the public URL.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// Owns reports whether publicURL points into this bucket.
	Owns(publicURL string) bool
	// KeyFromURL recovers the object key from a public URL.
	KeyFromURL(publicURL string) (string, bool)
}

// PhotoKeyInput carries the values a photo object key is derived from.
type PhotoKeyInput struct {
	Naming   string
	Author   string
	Location string
	Title    string
	Filename string
	Now      time.Time
}

// PhotoKey derives the object key for an uploaded photo. "timestamp" naming yields
// photos/<unix millis>-<suffix>_<file name>; anything else yields a readable slug of author,
// location and title. Both carry a short random suffix so batch items never collide.
func PhotoKey(in PhotoKeyInput) string {
	name := filepath.Base(strings.ReplaceAll(in.Filename, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	suffix := keySuffix()

	if in.Naming == "timestamp" {
		if name == "" {
			name = "upload"
		}
		return fmt.Sprintf("%s%d-%s_%s", PhotoPrefix, in.Now.UnixMilli(), suffix, strings.ReplaceAll(name, " ", "_"))
	}

	parts := make([]string, 0, 3)
	for _, raw := range []string{in.Author, in.Location, in.Title} {
		if s := Slugify(raw); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "photo")
	}

	ext := strings.ToLower(filepath.Ext(name))
	return PhotoPrefix + strings.Join(parts, "-") + "-" + suffix + ext
}

// AssetKey returns a fresh key for a site image so each upload gets its own public URL.
func AssetKey(name string) string {
	return AssetPrefix + name + "-" + keySuffix()
}

func keySuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Slugify lower-cases value and joins its ASCII letters and digits with single dashes.
func Slugify(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// keyFromPath looks for a known key prefix inside a URL. It covers URLs that embed the
// key as an escaped path segment, e.g. .../o/photos%2Fsunset.jpg?alt=media.
func keyFromPath(raw string) (string, bool) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	for _, prefix := range []string{PhotoPrefix, AssetPrefix} {
		if i := strings.LastIndex(decoded, prefix); i >= 0 {
			key := path.Clean(decoded[i:])
			if key != prefix && !strings.Contains(key, "..") {
				return key, true
			}
		}
	}
	return "", false
}

// escapeKey escapes every path segment of key for use in a URL.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// progressReader reports monotonic progress while a body is read. Seeking back (the SDK
// rewinds bodies to sign them) never moves reported progress backwards.
type progressReader struct {
	r        io.ReadSeeker
	total    int64
	pos      int64
	reported int64
	fn       ProgressFunc
}

func newProgressReader(r io.ReadSeeker, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.pos += int64(n)
	if p.fn != nil && p.pos > p.reported {
		p.reported = p.pos
		p.fn(p.reported, p.total)
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.pos = pos
	}
	return pos, err
}
