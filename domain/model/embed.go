package model

import "fmt"

// EmbedKind discriminates the embed union.
type EmbedKind string

const (
	EmbedImage  EmbedKind = "image"
	EmbedVideo  EmbedKind = "video"
	EmbedLink   EmbedKind = "link"
	EmbedRecord EmbedKind = "record"
)

// EmbedDescriptor is one stored embed. Exactly one of the kind-specific
// pointers is set, matching Kind.
type EmbedDescriptor struct {
	Kind   EmbedKind        `json:"kind"`
	Image  *ImageDescriptor `json:"image,omitempty"`
	Video  *VideoDescriptor `json:"video,omitempty"`
	Link   *LinkDescriptor  `json:"link,omitempty"`
	Record *QuoteDescriptor `json:"record,omitempty"`
}

// ImageDescriptor references image bytes in the media store.
type ImageDescriptor struct {
	StorageKey string `json:"storage_key"`
	Alt        string `json:"alt,omitempty"`
	MimeType   string `json:"mime_type"`
}

// VideoDescriptor references video bytes in the media store. Width, height
// and duration are captured at upload time by the front end since they are
// not derivable server-side without demuxing.
type VideoDescriptor struct {
	StorageKey string `json:"storage_key"`
	Alt        string `json:"alt,omitempty"`
	MimeType   string `json:"mime_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DurationMS int    `json:"duration_ms"`
}

// LinkDescriptor describes an external link card.
type LinkDescriptor struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ThumbURL    string `json:"thumb_url,omitempty"`
}

// QuoteDescriptor carries a human-facing permalink to a record being quoted.
type QuoteDescriptor struct {
	Permalink string `json:"permalink"`
}

// RecordViolationError reports two exclusive media kinds in one post. It is a
// validation failure: resolution aborts and the post fails, nothing is
// silently dropped.
type RecordViolationError struct {
	Have EmbedKind
	Got  EmbedKind
}

func (e *RecordViolationError) Error() string {
	return fmt.Sprintf("embed kind %s conflicts with already present %s", e.Got, e.Have)
}
