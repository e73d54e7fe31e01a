package channel

import (
	"context"
	"log/slog"
	"sync"

	"wabulk/internal/domain"
)

// DryRunDelivery is a single message DryRun would have sent.
type DryRunDelivery struct {
	To         domain.Address
	Message    string
	Attachment *domain.Attachment
}

// DryRun implements domain.DeliveryChannel without touching a browser. It
// logs each message and remembers it, which makes it useful for previewing
// a campaign.
type DryRun struct {
	logger *slog.Logger

	mu         sync.Mutex
	open       bool
	deliveries []DryRunDelivery
	pending    int
	released   int
}

func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Name() string { return "dry-run" }

func (d *DryRun) EnsureSessionOpen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		d.open = true
		d.logger.Info("dry run: no messages will be sent")
	}
	return nil
}

func (d *DryRun) Deliver(ctx context.Context, to domain.Address, message string, att *domain.Attachment) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, domain.AsChannelError(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return domain.Receipt{}, domain.NewChannelError(domain.ChannelNotReady, "session not open", nil)
	}

	args := []any{"to", to, "chars", len([]rune(message))}
	if att != nil {
		args = append(args, "attachment", att.Path, "kind", att.Kind)
	}
	d.logger.Info("dry run: would send", args...)

	d.deliveries = append(d.deliveries, DryRunDelivery{To: to, Message: message, Attachment: att})
	d.pending++
	return domain.Receipt{Detail: "dry run"}, nil
}

func (d *DryRun) ReleaseArtifact(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending > 0 {
		d.pending--
		d.released++
	}
	return nil
}

// Deliveries returns a copy of everything Deliver accepted so far.
func (d *DryRun) Deliveries() []DryRunDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DryRunDelivery(nil), d.deliveries...)
}

// Released returns how many delivered artifacts were released.
func (d *DryRun) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
