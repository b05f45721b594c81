package storage

import (
	"context"
	"errors"
	"io/fs"
	"syscall"

	"github.com/aws/smithy-go"
)

// Kind groups storage failures into the categories shown to the admin.
type Kind string

const (
	KindPermissionDenied Kind = "permission-denied"
	KindCancelled        Kind = "cancelled"
	KindQuotaExceeded    Kind = "quota-exceeded"
	KindNotFound         Kind = "not-found"
	KindUnknown          Kind = "unknown"
)

// ErrNotFound is returned by buckets when the object does not exist.
var ErrNotFound = errors.New("storage object not found")

// Message is the user-readable text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindPermissionDenied:
		return "Permission denied by the storage service. Check the bucket access rules."
	case KindCancelled:
		return "The upload was cancelled."
	case KindQuotaExceeded:
		return "Storage quota exceeded."
	case KindNotFound:
		return "Storage bucket or object not found. Check the bucket configuration."
	default:
		return "Unknown storage error. This is often a CORS or network problem."
	}
}

// Classify maps an error from any Bucket implementation to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return KindNotFound
	}
	if errors.Is(err, fs.ErrPermission) {
		return KindPermissionDenied
	}
	if errors.Is(err, syscall.ENOSPC) {
		return KindQuotaExceeded
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return KindPermissionDenied
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return KindNotFound
		case "QuotaExceeded", "EntityTooLarge", "InsufficientStorage", "ServiceQuotaExceeded":
			return KindQuotaExceeded
		case "RequestCanceled":
			return KindCancelled
		}
	}
	return KindUnknown
}
