package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/metrics"
	"github.com/photofolio/internal/storage"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadInput is a batch of files sharing one set of metadata.
type UploadInput struct {
	Files       []UploadFile
	Title       string
	Category    string
	AltText     string
	Caption     string
	Location    string
	Tags        string
	Description string
	PostingDate string
	PostingTime string
}

// UploadProgressFunc receives the batch index and the fraction (0..1) transferred.
type UploadProgressFunc func(index int, fraction float64)

// UploadItemResult is the outcome for one file. Err is a *TransferError or *WriteError.
type UploadItemResult struct {
	Index    int       `json:"index"`
	Filename string    `json:"filename"`
	Photo    *db.Photo `json:"photo,omitempty"`
	Err      error     `json:"-"`
}

// UploadReport lists every item of a batch in input order.
type UploadReport struct {
	Items []UploadItemResult
}

// Succeeded returns the number of stored photos.
func (r UploadReport) Succeeded() int {
	n := 0
	for _, item := range r.Items {
		if item.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of items with an error.
func (r UploadReport) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// Upload validates the batch, then stores each file and its record in order. An item failure
// is recorded in the report and the batch moves on.
func (s *PhotoService) Upload(ctx context.Context, input UploadInput, progress UploadProgressFunc) (UploadReport, error) {
	form := uploadForm{
		photoForm: photoForm{
			Title:    strings.TrimSpace(input.Title),
			Category: strings.TrimSpace(input.Category),
			AltText:  strings.TrimSpace(input.AltText),
		},
	}
	for _, f := range input.Files {
		form.Files = append(form.Files, uploadFileForm{ContentType: normalizeContentType(f.ContentType)})
	}
	if err := s.validate.Struct(form); err != nil {
		return UploadReport{}, toValidationError(err)
	}
	if s.opts.RequireAltText && form.AltText == "" {
		return UploadReport{}, &ValidationError{Field: "altText", Message: "Please enter alt text."}
	}
	if limit := s.opts.MaxUploadBytes; limit > 0 {
		for _, f := range input.Files {
			if f.Size > limit {
				return UploadReport{}, &ValidationError{
					Field:   "files",
					Message: fmt.Sprintf("%s is larger than %d MB.", f.Filename, limit>>20),
				}
			}
		}
	}

	base := db.Photo{
		Name:        form.Title,
		Category:    form.Category,
		Description: db.StringPtr(s.plainText(input.Description)),
		AltText:     db.StringPtr(form.AltText),
		Caption:     db.StringPtr(input.Caption),
		Location:    db.StringPtr(input.Location),
	}
	if tags := ParseTags(input.Tags); len(tags) > 0 {
		base.Tags = db.StringList(tags)
	}
	if strings.TrimSpace(input.PostingDate) != "" {
		posting := ParsePostingTime(input.PostingDate, input.PostingTime, s.now(), s.opts.Location)
		base.PostingDate = &posting
	}

	report := UploadReport{Items: make([]UploadItemResult, 0, len(input.Files))}
	for i, file := range input.Files {
		item := UploadItemResult{Index: i, Filename: file.Filename}
		photo, err := s.uploadOne(ctx, i, file, base, progress)
		if err != nil {
			item.Err = err
			s.logger.Warn("upload item failed", zap.Int("index", i), zap.String("file", file.Filename), zap.Error(err))
		} else {
			item.Photo = photo
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

func (s *PhotoService) uploadOne(ctx context.Context, index int, file UploadFile, base db.Photo, progress UploadProgressFunc) (*db.Photo, error) {
	now := s.now()
	key := storage.PhotoKey(storage.PhotoKeyInput{
		Naming:   s.opts.Naming,
		Author:   s.opts.AuthorName,
		Location: db.Deref(base.Location),
		Title:    base.Name,
		Filename: file.Filename,
		Now:      now,
	})

	content, err := readUpload(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("transfer_error").Inc()
		return nil, &TransferError{Kind: storage.Classify(err), Err: err}
	}
	width, height := probeDimensions(content)

	report := func(sent, total int64) {
		if progress == nil || total <= 0 {
			return
		}
		progress(index, float64(sent)/float64(total))
	}
	if progress != nil {
		progress(index, 0)
	}

	url, err := s.bucket.Put(ctx, key, bytes.NewReader(content), int64(len(content)), normalizeContentType(file.ContentType), report)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("transfer_error").Inc()
		return nil, &TransferError{Kind: storage.Classify(err), Err: err}
	}

	photo := base
	photo.ID = ""
	photo.ImageURL = url
	photo.StoragePath = key
	photo.ImageWidth = width
	photo.ImageHeight = height
	photo.CreatedAt = now.UTC()
	if base.Tags != nil {
		photo.Tags = append(db.StringList(nil), base.Tags...)
	}

	if err := s.db.WithContext(ctx).Create(&photo).Error; err != nil {
		metrics.UploadsTotal.WithLabelValues("write_error").Inc()
		return nil, &WriteError{Op: "create", Orphan: key, Err: err}
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	s.notify()
	s.logger.Info("photo uploaded", zap.String("id", photo.ID), zap.String("key", key))
	return &photo, nil
}

func readUpload(file UploadFile) ([]byte, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("%s: no content", file.Filename)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// probeDimensions reads the image header; unknown formats report 0x0.
func probeDimensions(content []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}
