package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/microcosm-cc/bluemonday"
	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/metrics"
	"github.com/photofolio/internal/storage"
	"github.com/photofolio/internal/taxonomy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier is told whenever the photo table changes.
type Notifier interface {
	Notify()
}

// PhotoServiceOptions tunes a PhotoService. Zero values pick sensible defaults.
type PhotoServiceOptions struct {
	Naming         string
	AuthorName     string
	RequireAltText bool
	MaxUploadBytes int64
	CacheSize      int
	CacheTTL       time.Duration
	Location       *time.Location
	Notifier       Notifier
	Logger         *zap.Logger
	Now            func() time.Time
}

// PhotoService runs the upload, edit and delete pipelines and serves photo reads.
type PhotoService struct {
	db       *gorm.DB
	bucket   storage.Bucket
	opts     PhotoServiceOptions
	validate *validator.Validate
	strip    *bluemonday.Policy
	cache    *expirable.LRU[string, db.Photo]
	cacheMu  sync.Mutex
	cacheGen uint64
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	deleting atomic.Bool
}

// EditInput carries the metadata accepted by Update. Blank optional fields are cleared.
type EditInput struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	AltText     string `json:"altText"`
	Caption     string `json:"caption"`
	Location    string `json:"location"`
	Tags        string `json:"tags"`
	PostingDate string `json:"postingDate"`
	PostingTime string `json:"postingTime"`
}

// DeleteResult reports the outcome of Delete. BlobErr set means the record is gone but the
// image may still be stored.
type DeleteResult struct {
	Photo       db.Photo
	BlobDeleted bool
	BlobErr     error
}

// Partial reports whether the record was removed but the blob was not.
func (r DeleteResult) Partial() bool {
	return r.BlobErr != nil
}

// NewPhotoService creates a PhotoService instance.
func NewPhotoService(gdb *gorm.DB, bucket storage.Bucket, opts PhotoServiceOptions) *PhotoService {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PhotoService{
		db:       gdb,
		bucket:   bucket,
		opts:     opts,
		validate: newValidator(),
		strip:    bluemonday.StrictPolicy(),
		cache:    expirable.NewLRU[string, db.Photo](opts.CacheSize, nil, opts.CacheTTL),
		notifier: opts.Notifier,
		logger:   logger.Named("photos"),
		now:      now,
	}
}

// SetNotifier attaches the change listener after construction.
func (s *PhotoService) SetNotifier(n Notifier) {
	s.notifier = n
}

// List returns photos newest first. limit <= 0 returns all of them.
func (s *PhotoService) List(ctx context.Context, limit int) ([]db.Photo, error) {
	var items []db.Photo
	query := s.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of stored photos.
func (s *PhotoService) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&db.Photo{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Get fetches a photo by id, consulting the detail cache first.
func (s *PhotoService) Get(ctx context.Context, id string) (*db.Photo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPhotoNotFound
	}
	if cached, ok := s.cache.Get(id); ok {
		metrics.CacheHitsTotal.Inc()
		return &cached, nil
	}
	metrics.CacheMissesTotal.Inc()

	gen := s.cacheGeneration()
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeCached(id, *item, gen)
	return item, nil
}

func (s *PhotoService) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// storeCached caches item unless a write landed after gen was read; that load may predate it.
func (s *PhotoService) storeCached(id string, item db.Photo, gen uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen == gen {
		s.cache.Add(id, item)
	}
}

// invalidate runs after a committed write.
func (s *PhotoService) invalidate(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.cache.Remove(id)
}

func (s *PhotoService) load(ctx context.Context, id string) (*db.Photo, error) {
	var item db.Photo
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Update writes the metadata fields of an existing photo. Cleared optional fields become
// NULL; the image URL and storage key are never touched.
func (s *PhotoService) Update(ctx context.Context, id string, input EditInput) (*db.Photo, error) {
	form := photoForm{
		Title:    strings.TrimSpace(input.Title),
		Category: strings.TrimSpace(input.Category),
		AltText:  strings.TrimSpace(input.AltText),
	}
	if err := s.validate.Struct(form); err != nil {
		return nil, toValidationError(err)
	}
	if form.AltText == "" {
		return nil, &ValidationError{Field: "altText", Message: "Please enter alt text."}
	}

	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	posting := ParsePostingTime(input.PostingDate, input.PostingTime, now, s.opts.Location)

	updates := map[string]interface{}{
		"name":         form.Title,
		"category":     form.Category,
		"description":  nullable(db.StringPtr(s.plainText(input.Description))),
		"alt_text":     form.AltText,
		"caption":      nullable(db.StringPtr(input.Caption)),
		"location":     nullable(db.StringPtr(input.Location)),
		"tags":         nullableTags(ParseTags(input.Tags)),
		"posting_date": posting,
		"updated_at":   now,
	}

	if err := s.db.WithContext(ctx).Model(&db.Photo{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, &WriteError{Op: "update", Err: err}
	}
	s.invalidate(id)

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify()
	s.logger.Info("photo updated", zap.String("id", id))
	return item, nil
}

// Delete removes the record and then, when the image lives in our bucket, the blob. Only one
// delete runs at a time; a concurrent call fails with ErrDeleteInProgress.
func (s *PhotoService) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if !s.deleting.CompareAndSwap(false, true) {
		return DeleteResult{}, ErrDeleteInProgress
	}
	defer s.deleting.Store(false)

	item, err := s.load(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Photo{})
	if res.Error != nil {
		return DeleteResult{}, &WriteError{Op: "delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return DeleteResult{}, ErrPhotoNotFound
	}
	s.invalidate(id)
	s.notify()

	result := DeleteResult{Photo: *item}
	if s.bucket == nil || !s.bucket.Owns(item.ImageURL) {
		metrics.DeletesTotal.WithLabelValues("ok").Inc()
		return result, nil
	}

	key := item.StoragePath
	if key == "" {
		var ok bool
		if key, ok = s.bucket.KeyFromURL(item.ImageURL); !ok {
			result.BlobErr = ErrBlobKeyUnknown
		}
	}
	if result.BlobErr == nil {
		if err := s.bucket.Delete(ctx, key); err != nil {
			result.BlobErr = err
		} else {
			result.BlobDeleted = true
		}
	}

	if result.BlobErr != nil {
		s.logger.Warn("photo record deleted but blob remains",
			zap.String("id", id), zap.String("key", key), zap.Error(result.BlobErr))
		metrics.DeletesTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.DeletesTotal.WithLabelValues("ok").Inc()
	}
	return result, nil
}

// ParseTags splits comma-separated text into trimmed, non-empty tags.
func ParseTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// plainText removes markup from user-entered descriptions.
func (s *PhotoService) plainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strip.Sanitize(raw)))
}

func (s *PhotoService) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

func nullable(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTags(tags []string) interface{} {
	if len(tags) == 0 {
		return nil
	}
	return db.StringList(tags)
}

// IsLegacyCategory reports whether a stored category has left the taxonomy.
func IsLegacyCategory(category string) bool {
	return !taxonomy.IsValid(category)
}
