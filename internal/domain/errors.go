package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrAttachmentTooLarge = errors.New("attachment too large")

	ErrNotReady     = errors.New("channel not ready")
	ErrSendRejected = errors.New("send rejected")
	ErrTimeout      = errors.New("channel timeout")
	ErrUnknown      = errors.New("channel error")
)

// IngestionError means the recipient source could not be used at all.
type IngestionError struct {
	Source string
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.Source, e.Reason)
}

func (e *IngestionError) Unwrap() error { return e.Err }

type AttachmentErrorKind int

const (
	AttachmentNotFound AttachmentErrorKind = iota
	AttachmentTooLarge
)

// AttachmentError rejects the media file before any delivery attempt.
type AttachmentError struct {
	Kind  AttachmentErrorKind
	Path  string
	Size  int64
	Limit int64
	Err   error
}

func (e *AttachmentError) Error() string {
	switch e.Kind {
	case AttachmentTooLarge:
		return fmt.Sprintf("attachment %s is %d bytes, limit is %d", e.Path, e.Size, e.Limit)
	default:
		if e.Err != nil {
			return fmt.Sprintf("attachment %s not found: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("attachment %s not found", e.Path)
	}
}

func (e *AttachmentError) Is(target error) bool {
	switch e.Kind {
	case AttachmentTooLarge:
		return target == ErrAttachmentTooLarge
	default:
		return target == ErrAttachmentNotFound
	}
}

func (e *AttachmentError) Unwrap() error { return e.Err }

type ChannelErrorKind int

const (
	ChannelUnknown ChannelErrorKind = iota
	ChannelNotReady
	ChannelSendRejected
	ChannelTimeout
)

func (k ChannelErrorKind) String() string {
	switch k {
	case ChannelNotReady:
		return "not_ready"
	case ChannelSendRejected:
		return "send_rejected"
	case ChannelTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ChannelError is the only error type a DeliveryChannel returns.
type ChannelError struct {
	Kind   ChannelErrorKind
	Detail string
	Err    error
}

func NewChannelError(kind ChannelErrorKind, detail string, err error) *ChannelError {
	return &ChannelError{Kind: kind, Detail: detail, Err: err}
}

func (e *ChannelError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChannelError) Is(target error) bool {
	switch target {
	case ErrNotReady:
		return e.Kind == ChannelNotReady
	case ErrSendRejected:
		return e.Kind == ChannelSendRejected
	case ErrTimeout:
		return e.Kind == ChannelTimeout
	case ErrUnknown:
		return e.Kind == ChannelUnknown
	}
	return false
}

func (e *ChannelError) Unwrap() error { return e.Err }

// AsChannelError returns err as a *ChannelError, classifying foreign errors.
// Deadline errors become Timeout, everything else Unknown.
func AsChannelError(err error) *ChannelError {
	if err == nil {
		return nil
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewChannelError(ChannelTimeout, "", err)
	}
	return NewChannelError(ChannelUnknown, "", err)
}

// CleanupError reports a staged file that could not be removed. It is only
// ever surfaced as a warning.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove staged file %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
