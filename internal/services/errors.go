package services

import (
	"context"
	"errors"

	"homeinspect/internal/capture"
	"homeinspect/internal/core"
	"homeinspect/internal/metadata"
)

var (
	ErrBlobWriteFailed      = errors.New("blob write failed")
	ErrMetadataWriteFailed  = errors.New("metadata write failed")
	ErrBlobDeleteFailed     = errors.New("blob delete failed")
	ErrMetadataDeleteFailed = errors.New("metadata delete failed")
	ErrSlotBusy             = errors.New("checklist slot has an operation in flight")
	ErrForbidden            = errors.New("not allowed for this session")
	ErrInvalidRecord        = errors.New("record has no id or storage key")
	ErrInvalidPayload       = errors.New("invalid upload payload")
)

// FailureKind groups errors by what the caller should tell the user.
type FailureKind string

const (
	KindNone               FailureKind = ""
	KindCancelled          FailureKind = "cancelled"
	KindPermission         FailureKind = "permission"
	KindForbidden          FailureKind = "forbidden"
	KindInvalid            FailureKind = "invalid"
	KindNotFound           FailureKind = "not_found"
	KindBusy               FailureKind = "busy"
	KindTransient          FailureKind = "transient"
	KindPartialConsistency FailureKind = "partial_consistency"
	KindInternal           FailureKind = "internal"
)

// Classify maps an error from the capture or upload path to a FailureKind.
// Partial consistency is checked first since it wraps a store error.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMetadataDeleteFailed):
		return KindPartialConsistency
	case errors.Is(err, capture.ErrUserCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, capture.ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrSlotBusy):
		return KindBusy
	case errors.Is(err, capture.ErrNoBytesAvailable),
		errors.Is(err, capture.ErrUnsupportedSource),
		errors.Is(err, core.ErrUnknownItem),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, ErrInvalidRecord),
		errors.Is(err, ErrInvalidPayload):
		return KindInvalid
	case errors.Is(err, metadata.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBlobWriteFailed),
		errors.Is(err, ErrMetadataWriteFailed),
		errors.Is(err, ErrBlobDeleteFailed),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindInternal
	}
}

// UserMessage is the text shown for a failure kind.
func UserMessage(k FailureKind) string {
	switch k {
	case KindNone, KindCancelled:
		return ""
	case KindPermission:
		return "Access to the camera, photos or files was denied. Enable it in settings and try again."
	case KindForbidden:
		return "You are not allowed to do that."
	case KindInvalid:
		return "The upload could not be read. Pick another photo or document."
	case KindNotFound:
		return "That upload no longer exists."
	case KindBusy:
		return "This item is still being updated. Wait a moment and try again."
	case KindTransient:
		return "Network problem. Nothing was changed, please try again."
	case KindPartialConsistency:
		return "The photo was removed but its record could not be deleted. An operator has been notified."
	default:
		return "Something went wrong."
	}
}
