package domain

import "context"

// DeliveryChannel drives the external messaging mechanism. Every method may
// block for the channel's settle delays.
type DeliveryChannel interface {
	// EnsureSessionOpen brings the channel into a ready state. It is
	// idempotent: once open, later calls return nil without side effects.
	EnsureSessionOpen(ctx context.Context) error

	// Deliver sends one message, with at most one attachment, to one address.
	// Errors are *ChannelError values.
	Deliver(ctx context.Context, to Address, message string, att *Attachment) (Receipt, error)

	// ReleaseArtifact closes whatever per-message UI state the last
	// successful Deliver left behind (e.g. the conversation tab).
	ReleaseArtifact(ctx context.Context) error

	Name() string
}
