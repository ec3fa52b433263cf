package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is an authenticated remote-API session for one account. Sessions
// live for at most one processing batch and are never persisted.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJWT  string `json:"-"`
	RefreshJWT string `json:"-"`
}

// BlobRef is the remote blob object exactly as returned by the upload call.
// It round-trips into submitted records unmodified.
type BlobRef = json.RawMessage

// UploadedImage is one gallery image ready for submission.
type UploadedImage struct {
	Blob   BlobRef `json:"blob"`
	Alt    string  `json:"alt,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// UploadedVideo is an uploaded video with caller-supplied aspect metadata.
type UploadedVideo struct {
	Blob       BlobRef `json:"blob"`
	Alt        string  `json:"alt,omitempty"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DurationMS int     `json:"duration_ms"`
}

// ExternalCard is a resolved link card. Thumb may be nil when the thumbnail
// fetch failed; that is not an error.
type ExternalCard struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Thumb       BlobRef `json:"thumb,omitempty"`
}

// Attachment is the single assembled media attachment of a post: an image
// gallery, a video, a link card, a quoted record, or a quoted record combined
// with exactly one of the media forms.
type Attachment struct {
	Images   []UploadedImage `json:"images,omitempty"`
	Video    *UploadedVideo  `json:"video,omitempty"`
	External *ExternalCard   `json:"external,omitempty"`
	Quote    *RecordRef      `json:"quote,omitempty"`
}

// HasMedia reports whether a non-quote media form is present.
func (a *Attachment) HasMedia() bool {
	return a != nil && (len(a.Images) > 0 || a.Video != nil || a.External != nil)
}

// Empty reports whether nothing resolved at all.
func (a *Attachment) Empty() bool {
	return a == nil || (!a.HasMedia() && a.Quote == nil)
}

// ReplyRefs chains a thread segment to its root and immediate parent.
type ReplyRefs struct {
	Root   RecordRef `json:"root"`
	Parent RecordRef `json:"parent"`
}

// OutboundPost is one post submission to the remote platform.
type OutboundPost struct {
	Text       string      `json:"text"`
	CreatedAt  time.Time   `json:"created_at"`
	Reply      *ReplyRefs  `json:"reply,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Labels     []string    `json:"labels,omitempty"`
	Langs      []string    `json:"langs,omitempty"`
}

// RemoteError is a typed failure from the remote platform. Status carries the
// classification the pipeline acts on; Code/Msg preserve the raw error body
// for logging.
type RemoteError struct {
	Status AccountStatus
	Code   string
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: %s (%s): %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("remote: %s: %s", e.Status, e.Msg)
}
