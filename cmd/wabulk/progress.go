package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"wabulk/internal/attachment"
	"wabulk/internal/bus"
	"wabulk/internal/domain"
)

// progressPrinter renders run events as one line per recipient.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last *domain.DeliveryOutcome
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

// Attach subscribes to eb. Returns a func that unsubscribes.
func (p *progressPrinter) Attach(eb *bus.EventBus) func() {
	ids := map[string]string{
		bus.EventAttachmentValidated: eb.On(bus.EventAttachmentValidated, p.onAttachment),
		bus.EventDeliveryOutcome:     eb.On(bus.EventDeliveryOutcome, p.onOutcome),
		bus.EventDeliveryProgress:    eb.On(bus.EventDeliveryProgress, p.onProgress),
		bus.EventResourceWarning:     eb.On(bus.EventResourceWarning, p.onWarning),
	}
	return func() {
		for typ, id := range ids {
			eb.Off(typ, id)
		}
	}
}

func (p *progressPrinter) onAttachment(e bus.Event) {
	if att, ok := e.Payload.(domain.Attachment); ok {
		p.printf("attaching %s\n", attachment.Describe(att))
	}
}

// Every outcome is followed by a progress event; the line is printed then.
func (p *progressPrinter) onOutcome(e bus.Event) {
	if o, ok := e.Payload.(domain.DeliveryOutcome); ok {
		p.mu.Lock()
		p.last = &o
		p.mu.Unlock()
	}
}

func (p *progressPrinter) onProgress(e bus.Event) {
	pr, ok := e.Payload.(domain.RunProgress)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return
	}
	o := p.last
	p.last = nil
	addr := string(o.Address)
	if addr == "" {
		addr = o.Recipient.Address
	}
	fmt.Fprintf(p.w, "[%d/%d %3.0f%%] %-8s %s (%s) %s\n", pr.Completed, pr.Total, 100*pr.Fraction(), o.Status, o.Recipient.Name, addr, o.Detail)
}

func (p *progressPrinter) onWarning(e bus.Event) {
	p.printf("warning: %v\n", e.Payload)
}

func (p *progressPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "\nrun %s: %d sent, %d degraded, %d failed, %d skipped (%s)\n",
		s.RunID, s.Sent, s.Degraded, s.Failed, s.Skipped, s.EndedAt.Sub(s.StartedAt).Round(time.Second))
	if s.Fatal != "" {
		fmt.Fprintf(w, "aborted: %s\n", s.Fatal)
	}
	for _, o := range s.Outcomes {
		if o.Status == domain.StatusFailed {
			fmt.Fprintf(w, "  failed: %s (%s): %s\n", o.Recipient.Name, o.Recipient.Address, o.Detail)
		}
	}
}
