package domain

// AttachmentKind classifies media by how the channel has to send it.
type AttachmentKind int

const (
	KindImage AttachmentKind = iota
	KindVideo
)

func (k AttachmentKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	default:
		return "image"
	}
}

// Attachment is a validated media file ready for delivery.
type Attachment struct {
	Path      string         `json:"path"` // absolute
	Kind      AttachmentKind `json:"kind"`
	SizeBytes int64          `json:"size_bytes"`
}
