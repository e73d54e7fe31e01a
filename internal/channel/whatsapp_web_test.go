package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"wabulk/internal/browser"
	"wabulk/internal/domain"
)

type runCall struct {
	ctx     context.Context
	actions int
	live    bool // ctx not done when the call was made
}

// recordingRun stands in for chromedp.Run and fails the calls listed in errAt.
type recordingRun struct {
	mu     sync.Mutex
	calls  []runCall
	errAt  map[int]error
	onCall func(i int)
}

func (r *recordingRun) run(ctx context.Context, actions ...chromedp.Action) error {
	r.mu.Lock()
	i := len(r.calls)
	hook := r.onCall
	r.mu.Unlock()
	if hook != nil {
		hook(i)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{ctx: ctx, actions: len(actions), live: ctx.Err() == nil})
	return r.errAt[i]
}

func newTestWhatsAppWeb(t *testing.T, rec *recordingRun) *WhatsAppWeb {
	t.Helper()
	bridge := browser.NewBridge(browser.BridgeConfig{ProfileDir: t.TempDir(), Headless: true, Logger: quietLogger()})
	w := NewWhatsAppWeb(WhatsAppWebConfig{Bridge: bridge, Logger: quietLogger()})
	w.run = rec.run
	w.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return w
}

func TestSendURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		to   domain.Address
		text string
		want string
	}{
		{
			name: "no text",
			base: "https://web.whatsapp.com",
			to:   "+919876543210",
			want: "https://web.whatsapp.com/send?phone=919876543210",
		},
		{
			name: "escaped text",
			base: "https://web.whatsapp.com/",
			to:   "+919876543210",
			text: "Hi Asha & co\nsee 1+1",
			want: "https://web.whatsapp.com/send?phone=919876543210&text=Hi%20Asha%20%26%20co%0Asee%201%2B1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sendURL(tt.base, tt.to, tt.text); got != tt.want {
				t.Errorf("sendURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	rejected := domain.NewChannelError(domain.ChannelSendRejected, "number is not on WhatsApp", nil)
	tests := []struct {
		name string
		err  error
		want domain.ChannelErrorKind
	}{
		{"channel error kept", fmt.Errorf("open chat: %w", rejected), domain.ChannelSendRejected},
		{"deadline", fmt.Errorf("wait for chat: %w", context.DeadlineExceeded), domain.ChannelTimeout},
		{"cancelled", context.Canceled, domain.ChannelUnknown},
		{"other", errors.New("node not found"), domain.ChannelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got.Kind != tt.want {
				t.Errorf("classify() kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestExistsJS_QuotesSelector(t *testing.T) {
	got := existsJS(`footer div[contenteditable="true"]`)
	want := `document.querySelector("footer div[contenteditable=\"true\"]") !== null`
	if got != want {
		t.Errorf("existsJS() = %s", got)
	}
}

func TestWhatsAppWeb_Defaults(t *testing.T) {
	w := NewWhatsAppWeb(WhatsAppWebConfig{TextSettle: 3 * time.Second, Logger: quietLogger()})
	if w.textSettle != 3*time.Second {
		t.Errorf("textSettle = %v", w.textSettle)
	}
	if w.sessionSettle != defaultSessionSettle || w.mediaSettle != defaultMediaSettle {
		t.Errorf("settle defaults not applied: %v %v", w.sessionSettle, w.mediaSettle)
	}
	if w.sel.URL == "" {
		t.Error("selectors should default")
	}
}

func TestWhatsAppWeb_DeliverBeforeOpen(t *testing.T) {
	w := NewWhatsAppWeb(WhatsAppWebConfig{Logger: quietLogger()})
	_, err := w.Deliver(context.Background(), "+919876543210", "hi", nil)
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("err = %v, want not ready", err)
	}
	if err := w.ReleaseArtifact(context.Background()); err != nil {
		t.Errorf("release with nothing pending: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close unopened: %v", err)
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepCtx = %v, want canceled", err)
	}
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Errorf("zero sleep = %v", err)
	}
}

func TestEnsureSessionOpen_LaunchesBrowserWithoutDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingRun{errAt: map[int]error{1: errors.New("navigate failed")}}
	// Cancelling the caller must not reach the browser context.
	rec.onCall = func(i int) {
		if i == 0 {
			cancel()
		}
	}
	w := newTestWhatsAppWeb(t, rec)

	err := w.EnsureSessionOpen(ctx)
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("err = %v, want not ready", err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("run calls = %d, want 2", len(rec.calls))
	}

	launch := rec.calls[0]
	if launch.actions != 0 {
		t.Errorf("launch run has %d actions, want none", launch.actions)
	}
	if _, ok := launch.ctx.Deadline(); ok {
		t.Error("browser launched on a context with a deadline")
	}
	if !launch.live {
		t.Error("browser context was cancelled with the caller")
	}

	if _, ok := rec.calls[1].ctx.Deadline(); !ok {
		t.Error("navigation should be bounded by the ready timeout")
	}
	if w.browserCtx != nil {
		t.Error("failed open must not leave a session behind")
	}
}

func TestEnsureSessionOpen_LaunchFailure(t *testing.T) {
	rec := &recordingRun{errAt: map[int]error{0: errors.New("chrome not found")}}
	w := newTestWhatsAppWeb(t, rec)

	if err := w.EnsureSessionOpen(context.Background()); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("err = %v, want not ready", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("run calls = %d, want 1", len(rec.calls))
	}
}

func TestDeliver_AttachesTabBeforeStepTimeout(t *testing.T) {
	rec := &recordingRun{errAt: map[int]error{1: errors.New("navigate failed")}}
	w := newTestWhatsAppWeb(t, rec)
	w.browserCtx, w.closeBrowser = w.bridge.NewContext(context.Background())
	defer w.Close()

	_, err := w.Deliver(context.Background(), "+919876543210", "hi", nil)
	var ce *domain.ChannelError
	if !errors.As(err, &ce) || ce.Kind != domain.ChannelUnknown {
		t.Fatalf("err = %v, want unknown channel error", err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("run calls = %d, want 2", len(rec.calls))
	}
	if rec.calls[0].actions != 0 {
		t.Errorf("tab attach has %d actions, want none", rec.calls[0].actions)
	}
	if _, ok := rec.calls[0].ctx.Deadline(); ok {
		t.Error("tab attached on a context with a deadline")
	}
	if _, ok := rec.calls[1].ctx.Deadline(); !ok {
		t.Error("delivery steps should be bounded by the step timeout")
	}
	if w.pending != nil {
		t.Error("failed delivery must not leave a tab pending")
	}
}
