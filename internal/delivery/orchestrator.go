// Package delivery runs one bulk delivery: it validates the optional
// attachment, opens the channel session once, then delivers to every
// recipient in order with fixed pacing, isolating per-recipient failures.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"wabulk/internal/address"
	"wabulk/internal/attachment"
	"wabulk/internal/bus"
	"wabulk/internal/domain"
	"wabulk/internal/message"
)

// State is the orchestrator's position in a run. Runs only move forward.
type State int

const (
	StateIdle State = iota
	StateSessionOpening
	StateDelivering
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateSessionOpening:
		return "session_opening"
	case StateDelivering:
		return "delivering"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Upload is a raw attachment as handed over by the caller.
type Upload struct {
	Name string
	Body io.Reader
}

// Request describes one run.
type Request struct {
	Recipients []domain.RecipientRecord
	Template   string
	Upload     *Upload // optional
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Channel    domain.DeliveryChannel
	Normalizer address.Normalizer
	Validator  *attachment.Validator
	Stager     *attachment.Stager
	Pacing     *Pacing
	Events     *bus.EventBus
	Logger     *slog.Logger
}

type Orchestrator struct {
	channel    domain.DeliveryChannel
	normalizer address.Normalizer
	validator  *attachment.Validator
	stager     *attachment.Stager
	pacing     *Pacing
	events     *bus.EventBus
	logger     *slog.Logger
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Channel == nil {
		return nil, errors.New("delivery: channel is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Normalizer.CountryCode == "" {
		cfg.Normalizer = address.New("", 0)
	}
	if cfg.Validator == nil {
		cfg.Validator = attachment.NewValidator(attachment.ValidatorConfig{Logger: cfg.Logger})
	}
	if cfg.Pacing == nil {
		cfg.Pacing = NoDelay()
	}
	if cfg.Events == nil {
		cfg.Events = bus.NewEventBus(cfg.Logger)
	}
	return &Orchestrator{
		channel:    cfg.Channel,
		normalizer: cfg.Normalizer,
		validator:  cfg.Validator,
		stager:     cfg.Stager,
		pacing:     cfg.Pacing,
		events:     cfg.Events,
		logger:     cfg.Logger,
	}, nil
}

// run holds the state owned by a single Run call.
type run struct {
	id          string
	state       State
	sessionOpen bool
	attachment  *domain.Attachment
	summary     domain.Summary
	logger      *slog.Logger
}

// Run delivers req and always returns a summary. The error is non-nil only
// for run-level failures (attachment rejected, session could not open), in
// which case no recipient was processed. Cancelling ctx stops the run at the
// next recipient; the rest are recorded as Skipped.
func (o *Orchestrator) Run(ctx context.Context, req Request) (summary domain.Summary, err error) {
	r := &run{
		id:      uuid.NewString(),
		summary: domain.Summary{StartedAt: time.Now()},
	}
	r.summary.RunID = r.id
	r.summary.Outcomes = make([]domain.DeliveryOutcome, 0, len(req.Recipients))
	r.logger = o.logger.With("run", r.id)

	defer func() {
		if err != nil {
			r.summary.Fatal = err.Error()
		}
		o.setState(r, StateCompleted)
		r.summary.EndedAt = time.Now()
		o.logSummary(r)
		o.emit(r, bus.EventRunCompleted, r.summary)
		summary = r.summary
	}()

	r.logger.Info("run started", "recipients", len(req.Recipients), "channel", o.channel.Name())

	if req.Upload != nil {
		path, err := o.stage(req.Upload)
		if err != nil {
			return r.summary, err
		}
		defer o.release(r, path)

		att, err := o.validator.Validate(path, filepath.Ext(req.Upload.Name))
		if err != nil {
			r.logger.Error("attachment rejected", "name", req.Upload.Name, "err", err)
			return r.summary, err
		}
		r.attachment = &att
		o.emit(r, bus.EventAttachmentValidated, att)
	}

	o.setState(r, StateSessionOpening)
	if err := o.openSession(ctx, r); err != nil {
		r.logger.Error("channel session failed to open", "err", err)
		return r.summary, fmt.Errorf("open session: %w", err)
	}
	o.setState(r, StateDelivering)

	total := len(req.Recipients)
	for i, rec := range req.Recipients {
		if ctx.Err() != nil {
			o.skipRemaining(r, req.Recipients[i:], total)
			break
		}

		outcome := o.deliverOne(ctx, r, req.Template, rec)
		if outcome.Status == domain.StatusSkipped {
			o.skipRemaining(r, req.Recipients[i:], total)
			break
		}
		r.summary.Record(outcome)
		o.emit(r, bus.EventDeliveryOutcome, outcome)
		o.emit(r, bus.EventDeliveryProgress, domain.RunProgress{Completed: i + 1, Total: total})

		// Unconditional: the channel may still be settling after a failure.
		_ = o.pacing.Pause(ctx, o.pacing.Interval)

		if outcome.Status.Delivered() {
			if err := o.channel.ReleaseArtifact(ctx); err != nil {
				r.logger.Warn("release conversation failed", "recipient", rec.Name, "err", err)
			}
			_ = o.pacing.Pause(ctx, o.pacing.ReleasePause)
		}
	}

	return r.summary, nil
}

// openSession opens the channel at most once per run.
func (o *Orchestrator) openSession(ctx context.Context, r *run) error {
	if r.sessionOpen {
		return nil
	}
	if err := o.channel.EnsureSessionOpen(ctx); err != nil {
		return domain.AsChannelError(err)
	}
	r.sessionOpen = true
	return nil
}

func (o *Orchestrator) deliverOne(ctx context.Context, r *run, template string, rec domain.RecipientRecord) (out domain.DeliveryOutcome) {
	start := time.Now()
	out = domain.DeliveryOutcome{Recipient: rec}
	defer func() {
		if p := recover(); p != nil {
			out.Status = domain.StatusFailed
			out.Detail = domain.NewChannelError(domain.ChannelUnknown, fmt.Sprintf("panic: %v", p), nil).Error()
			r.logger.Error("delivery panicked", "recipient", rec.Name, "panic", p)
		}
		out.Duration = time.Since(start)
	}()

	text := message.Render(template, rec)

	addr, err := o.normalizer.Normalize(rec.Address)
	if err != nil {
		out.Status = domain.StatusFailed
		out.Detail = fmt.Sprintf("invalid address %q: %v", rec.Address, err)
		r.logger.Warn("skipping invalid address", "recipient", rec.Name, "address", rec.Address)
		return out
	}
	out.Address = addr

	if err := o.pacing.Admit(ctx); err != nil {
		if ctx.Err() != nil {
			// Cancelled while waiting for the rate cap; nothing was attempted.
			out.Status = domain.StatusSkipped
			out.Detail = "run cancelled"
			return out
		}
		out.Status = domain.StatusFailed
		out.Detail = domain.AsChannelError(err).Error()
		return out
	}

	receipt, err := o.channel.Deliver(ctx, addr, text, r.attachment)
	if err != nil {
		ce := domain.AsChannelError(err)
		out.Status = domain.StatusFailed
		out.Detail = ce.Error()
		r.logger.Warn("delivery failed", "recipient", rec.Name, "to", addr, "kind", ce.Kind, "err", err)
		return out
	}

	out.Status = domain.StatusSent
	out.Detail = "sent"
	if receipt.Degraded {
		out.Status = domain.StatusDegraded
		out.Detail = "sent with fallback"
	}
	if receipt.Detail != "" {
		out.Detail = receipt.Detail
	}
	r.logger.Info("delivered", "recipient", rec.Name, "to", addr, "status", out.Status)
	return out
}

func (o *Orchestrator) skipRemaining(r *run, rest []domain.RecipientRecord, total int) {
	r.logger.Warn("run cancelled", "skipped", len(rest))
	for _, rec := range rest {
		out := domain.DeliveryOutcome{Recipient: rec, Status: domain.StatusSkipped, Detail: "run cancelled"}
		r.summary.Record(out)
		o.emit(r, bus.EventDeliveryOutcome, out)
		o.emit(r, bus.EventDeliveryProgress, domain.RunProgress{Completed: len(r.summary.Outcomes), Total: total})
	}
}

func (o *Orchestrator) stage(u *Upload) (string, error) {
	if o.stager == nil {
		return "", errors.New("delivery: attachment given but no stager configured")
	}
	if u.Body == nil {
		return "", &domain.AttachmentError{Kind: domain.AttachmentNotFound, Path: u.Name, Err: errors.New("empty upload")}
	}
	path, err := o.stager.Stage(u.Body, u.Name)
	if err != nil {
		return "", fmt.Errorf("stage attachment: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) release(r *run, path string) {
	if err := o.stager.Release(path); err != nil {
		r.logger.Warn("staged attachment not removed", "path", path, "err", err)
		o.emit(r, bus.EventResourceWarning, err)
	}
}

func (o *Orchestrator) setState(r *run, s State) {
	if s <= r.state {
		return
	}
	r.state = s
	o.emit(r, bus.EventRunState, s.String())
}

func (o *Orchestrator) emit(r *run, eventType string, payload any) {
	o.events.Emit(bus.Event{Type: eventType, RunID: r.id, Payload: payload})
}

func (o *Orchestrator) logSummary(r *run) {
	s := r.summary
	attrs := []any{
		"sent", s.Sent, "degraded", s.Degraded, "failed", s.Failed, "skipped", s.Skipped,
		"total", len(s.Outcomes), "dur", s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond),
	}
	switch {
	case s.Fatal != "":
		r.logger.Error("run aborted", append(attrs, "reason", s.Fatal)...)
	case s.Failed > 0 || s.Skipped > 0:
		r.logger.Warn("run finished with failures", attrs...)
	default:
		r.logger.Info("run finished", attrs...)
	}
}
