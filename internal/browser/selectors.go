package browser

// SelectorSet holds the CSS selectors used to drive WhatsApp Web.
// They change whenever WhatsApp ships a new UI; override them from config.
type SelectorSet struct {
	URL           string // landing page
	Ready         string // visible once the session is paired and chats loaded
	QRCode        string // visible while the device still needs pairing
	Compose       string // message box of an open conversation
	Send          string // send button of the conversation footer
	Attach        string // attach menu ("+") button
	ImageInput    string // file input for photos
	VideoInput    string // file input for videos; empty disables video uploads
	Caption       string // caption box on the media preview
	MediaSend     string // send button on the media preview
	InvalidNumber string // popup shown for numbers not on WhatsApp
}

// WhatsAppSelectors returns the default selector set for web.whatsapp.com.
func WhatsAppSelectors() SelectorSet {
	return SelectorSet{
		URL:           "https://web.whatsapp.com",
		Ready:         `#pane-side`,
		QRCode:        `canvas[aria-label*="QR"], div[data-ref]`,
		Compose:       `footer div[contenteditable="true"]`,
		Send:          `footer button[aria-label="Send"], footer span[data-icon="send"]`,
		Attach:        `footer button[title="Attach"], footer span[data-icon="plus"]`,
		ImageInput:    `input[type="file"][accept*="image"]`,
		VideoInput:    `input[type="file"][accept*="video"]`,
		Caption:       `div[contenteditable="true"][aria-label*="caption" i]`,
		MediaSend:     `div[role="button"][aria-label="Send"], span[data-icon="send"]`,
		InvalidNumber: `div[data-animate-modal-popup="true"]`,
	}
}

// Override replaces fields whose keys appear in m with non-empty values.
// Unknown keys are returned so callers can warn about them.
func (s SelectorSet) Override(m map[string]string) (SelectorSet, []string) {
	fields := map[string]*string{
		"url":           &s.URL,
		"ready":         &s.Ready,
		"qrCode":        &s.QRCode,
		"compose":       &s.Compose,
		"send":          &s.Send,
		"attach":        &s.Attach,
		"imageInput":    &s.ImageInput,
		"videoInput":    &s.VideoInput,
		"caption":       &s.Caption,
		"mediaSend":     &s.MediaSend,
		"invalidNumber": &s.InvalidNumber,
	}
	var unknown []string
	for k, v := range m {
		p, ok := fields[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if v != "" {
			*p = v
		}
	}
	return s, unknown
}
