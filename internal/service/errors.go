package service

import (
	"errors"
	"fmt"

	"github.com/photofolio/internal/storage"
)

var (
	ErrPhotoNotFound    = errors.New("photo not found")
	ErrDeleteInProgress = errors.New("another delete is in progress")
	ErrBlobKeyUnknown   = errors.New("could not resolve storage key from image url")
	ErrInvalidAsset     = errors.New("unknown site asset")
)

// ValidationError rejects input before any storage or database call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransferError is a failed blob upload for one batch item.
type TransferError struct {
	Kind storage.Kind
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload failed (%s): %v", e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Message is the text shown to the admin.
func (e *TransferError) Message() string {
	return e.Kind.Message()
}

// WriteError is a failed record write. Orphan names a blob that was stored before the write
// failed and is left in the bucket.
type WriteError struct {
	Op     string
	Orphan string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Orphan != "" {
		return fmt.Sprintf("%s record failed, orphaned blob %s: %v", e.Op, e.Orphan, e.Err)
	}
	return fmt.Sprintf("%s record failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Message is the text shown to the admin.
func (e *WriteError) Message() string {
	if e.Orphan != "" {
		return "The image was uploaded but saving its details failed. The stored file was not removed."
	}
	return fmt.Sprintf("Could not %s the photo record. Please try again.", e.Op)
}
