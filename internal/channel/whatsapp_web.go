package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"wabulk/internal/browser"
	"wabulk/internal/domain"
)

const (
	defaultSessionSettle = 15 * time.Second
	defaultTextSettle    = 10 * time.Second
	defaultMediaSettle   = 15 * time.Second
	defaultReadyTimeout  = 90 * time.Second
	defaultStepTimeout   = 2 * time.Minute

	pollInterval     = 500 * time.Millisecond
	videoProbeWindow = 3 * time.Second
	postSendSettle   = 2 * time.Second
)

// runFunc executes chromedp actions; chromedp.Run outside tests.
type runFunc func(ctx context.Context, actions ...chromedp.Action) error

// WhatsAppWeb delivers messages by driving web.whatsapp.com in Chrome.
// Each Deliver opens the conversation in its own tab; the tab stays open
// after a successful send until ReleaseArtifact closes it.
type WhatsAppWeb struct {
	bridge *browser.Bridge
	sel    browser.SelectorSet
	logger *slog.Logger

	sessionSettle time.Duration
	textSettle    time.Duration
	mediaSettle   time.Duration
	readyTimeout  time.Duration
	stepTimeout   time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	run           runFunc

	mu           sync.Mutex
	browserCtx   context.Context
	closeBrowser context.CancelFunc
	pending      context.CancelFunc
}

type WhatsAppWebConfig struct {
	Bridge        *browser.Bridge
	Selectors     browser.SelectorSet
	SessionSettle time.Duration // wait after the chat list first appears
	TextSettle    time.Duration // wait between opening a chat and pressing send
	MediaSettle   time.Duration // wait for the media preview to finish loading
	ReadyTimeout  time.Duration
	StepTimeout   time.Duration // bound on a single Deliver
	Logger        *slog.Logger
}

func NewWhatsAppWeb(cfg WhatsAppWebConfig) *WhatsAppWeb {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bridge == nil {
		cfg.Bridge = browser.NewBridge(browser.BridgeConfig{Headless: true, Logger: cfg.Logger})
	}
	if cfg.Selectors.URL == "" {
		cfg.Selectors = browser.WhatsAppSelectors()
	}
	return &WhatsAppWeb{
		bridge:        cfg.Bridge,
		sel:           cfg.Selectors,
		logger:        cfg.Logger,
		sessionSettle: orDefault(cfg.SessionSettle, defaultSessionSettle),
		textSettle:    orDefault(cfg.TextSettle, defaultTextSettle),
		mediaSettle:   orDefault(cfg.MediaSettle, defaultMediaSettle),
		readyTimeout:  orDefault(cfg.ReadyTimeout, defaultReadyTimeout),
		stepTimeout:   orDefault(cfg.StepTimeout, defaultStepTimeout),
		sleep:         sleepCtx,
		run:           chromedp.Run,
	}
}

func (w *WhatsAppWeb) Name() string { return "whatsapp-web" }

// Login opens a visible browser so the operator can pair the device.
func (w *WhatsAppWeb) Login(ctx context.Context) error {
	return w.bridge.Login(ctx, w.sel.URL)
}

// EnsureSessionOpen launches the browser and waits for the chat list. A
// profile that still shows the pairing QR code is reported as not ready.
func (w *WhatsAppWeb) EnsureSessionOpen(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.browserCtx != nil {
		return nil
	}

	// The browser outlives the caller's context; Close shuts it down.
	bctx, closeBrowser := w.bridge.NewContext(context.WithoutCancel(ctx))

	w.logger.Info("opening whatsapp web", "url", w.sel.URL, "profile", w.bridge.ProfileDir())

	// Chrome is bound to the context of the first Run, so start it on bctx
	// before any timeout is attached.
	if err := w.run(bctx); err != nil {
		closeBrowser()
		return domain.NewChannelError(domain.ChannelNotReady, "launch browser", err)
	}

	readyCtx, cancel := context.WithTimeout(bctx, w.readyTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := w.run(readyCtx, chromedp.Navigate(w.sel.URL)); err != nil {
		closeBrowser()
		return domain.NewChannelError(domain.ChannelNotReady, "open "+w.sel.URL, err)
	}

	idx, err := w.waitAny(readyCtx, w.sel.Ready, w.sel.QRCode)
	if err != nil {
		closeBrowser()
		return domain.NewChannelError(domain.ChannelNotReady, "chat list did not load", err)
	}
	if idx == 1 {
		closeBrowser()
		return domain.NewChannelError(domain.ChannelNotReady, "device not paired, run `wabulk login` first", nil)
	}

	if err := w.sleep(ctx, w.sessionSettle); err != nil {
		closeBrowser()
		return domain.NewChannelError(domain.ChannelNotReady, "session settle interrupted", err)
	}

	w.browserCtx = bctx
	w.closeBrowser = closeBrowser
	w.logger.Info("whatsapp web session ready")
	return nil
}

// Deliver opens the conversation for to in a new tab and sends message,
// with att attached when non-nil. A failed attempt closes its tab.
func (w *WhatsAppWeb) Deliver(ctx context.Context, to domain.Address, message string, att *domain.Attachment) (domain.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.browserCtx == nil {
		return domain.Receipt{}, domain.NewChannelError(domain.ChannelNotReady, "session not open", nil)
	}
	w.closePendingLocked()

	tabCtx, closeTab := chromedp.NewContext(w.browserCtx)
	// Attach the tab on its own context so the step timeout only bounds the
	// actions, not the target.
	if err := w.run(tabCtx); err != nil {
		closeTab()
		return domain.Receipt{}, classify(fmt.Errorf("open tab: %w", err))
	}
	stepCtx, cancel := context.WithTimeout(tabCtx, w.stepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		receipt domain.Receipt
		err     error
	)
	if att == nil {
		receipt, err = w.sendText(stepCtx, to, message)
	} else {
		receipt, err = w.sendMedia(stepCtx, to, message, *att)
	}
	if err != nil {
		closeTab()
		return domain.Receipt{}, classify(err)
	}

	w.pending = closeTab
	return receipt, nil
}

// ReleaseArtifact closes the tab left open by the last successful Deliver.
func (w *WhatsAppWeb) ReleaseArtifact(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closePendingLocked()
	return nil
}

// Close shuts the browser down. The channel can be reopened afterwards.
func (w *WhatsAppWeb) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closePendingLocked()
	if w.closeBrowser != nil {
		w.closeBrowser()
		w.closeBrowser = nil
		w.browserCtx = nil
	}
	return nil
}

func (w *WhatsAppWeb) closePendingLocked() {
	if w.pending != nil {
		w.pending()
		w.pending = nil
	}
}

func (w *WhatsAppWeb) openChat(ctx context.Context, to domain.Address, text string) error {
	if err := w.run(ctx, chromedp.Navigate(sendURL(w.sel.URL, to, text))); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	idx, err := w.waitAny(ctx, w.sel.Compose, w.sel.InvalidNumber)
	if err != nil {
		return fmt.Errorf("wait for chat: %w", err)
	}
	if idx == 1 {
		return domain.NewChannelError(domain.ChannelSendRejected, "number is not on WhatsApp", nil)
	}
	return nil
}

func (w *WhatsAppWeb) sendText(ctx context.Context, to domain.Address, message string) (domain.Receipt, error) {
	if err := w.openChat(ctx, to, message); err != nil {
		return domain.Receipt{}, err
	}
	if err := w.sleep(ctx, w.textSettle); err != nil {
		return domain.Receipt{}, err
	}
	if err := w.run(ctx, chromedp.Click(w.sel.Send, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return domain.Receipt{}, fmt.Errorf("press send: %w", err)
	}
	if err := w.sleep(ctx, postSendSettle); err != nil {
		return domain.Receipt{}, err
	}
	w.logger.Debug("text sent", "to", to)
	return domain.Receipt{Detail: "sent"}, nil
}

func (w *WhatsAppWeb) sendMedia(ctx context.Context, to domain.Address, message string, att domain.Attachment) (domain.Receipt, error) {
	if err := w.openChat(ctx, to, ""); err != nil {
		return domain.Receipt{}, err
	}
	if err := w.run(ctx, chromedp.Click(w.sel.Attach, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return domain.Receipt{}, fmt.Errorf("open attach menu: %w", err)
	}

	receipt := domain.Receipt{Detail: "sent"}
	fileInput := w.sel.ImageInput
	if att.Kind == domain.KindVideo {
		if w.hasVideoInput(ctx) {
			fileInput = w.sel.VideoInput
		} else {
			w.logger.Warn("video upload unavailable, sending through the image path", "to", to, "file", att.Path)
			receipt = domain.Receipt{Degraded: true, Detail: "video input unavailable, sent as image"}
		}
	}

	err := w.run(ctx,
		chromedp.SetUploadFiles(fileInput, []string{att.Path}, chromedp.ByQuery, chromedp.NodeReady),
		chromedp.WaitVisible(w.sel.Caption, chromedp.ByQuery),
	)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("upload %s: %w", att.Kind, err)
	}

	if message != "" {
		// InsertText keeps newlines inside the caption instead of pressing Enter.
		err = w.run(ctx,
			chromedp.Click(w.sel.Caption, chromedp.ByQuery),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return input.InsertText(message).Do(ctx)
			}),
		)
		if err != nil {
			return domain.Receipt{}, fmt.Errorf("type caption: %w", err)
		}
	}

	if err := w.sleep(ctx, w.mediaSettle); err != nil {
		return domain.Receipt{}, err
	}
	if err := w.run(ctx, chromedp.Click(w.sel.MediaSend, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return domain.Receipt{}, fmt.Errorf("press send: %w", err)
	}
	if err := w.sleep(ctx, postSendSettle); err != nil {
		return domain.Receipt{}, err
	}
	w.logger.Debug("media sent", "to", to, "kind", att.Kind, "degraded", receipt.Degraded)
	return receipt, nil
}

func (w *WhatsAppWeb) hasVideoInput(ctx context.Context) bool {
	if w.sel.VideoInput == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, videoProbeWindow)
	defer cancel()
	_, err := w.waitAny(probeCtx, w.sel.VideoInput)
	return err == nil
}

// waitAny polls the page until one of selectors matches and returns its
// index. Empty selectors are ignored.
func (w *WhatsAppWeb) waitAny(ctx context.Context, selectors ...string) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for i, sel := range selectors {
			if sel == "" {
				continue
			}
			var found bool
			if err := w.run(ctx, chromedp.Evaluate(existsJS(sel), &found)); err != nil {
				return -1, err
			}
			if found {
				return i, nil
			}
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-ticker.C:
		}
	}
}

func existsJS(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`document.querySelector(%s) !== null`, quoted)
}

// sendURL builds the click-to-chat URL that opens a conversation with text
// prefilled in the compose box.
func sendURL(base string, to domain.Address, text string) string {
	u := strings.TrimRight(base, "/") + "/send?phone=" + to.Digits()
	if text != "" {
		u += "&text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return u
}

// classify turns automation failures into channel errors.
func classify(err error) *domain.ChannelError {
	var ce *domain.ChannelError
	if !errors.As(err, &ce) && errors.Is(err, context.Canceled) {
		return domain.NewChannelError(domain.ChannelUnknown, "interrupted", err)
	}
	return domain.AsChannelError(err)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
