package model

import "time"

// Post is a scheduled post row. A post is either standalone, a thread root
// (Order == 0, IsThreadRoot == true) or a thread child referencing its root
// and immediate parent.
type Post struct {
	ID           int64             `json:"id"`
	AccountID    string            `json:"account_id"`
	Text         string            `json:"text"`
	Embeds       []EmbedDescriptor `json:"embeds,omitempty"`
	Sensitivity  string            `json:"sensitivity,omitempty"` // "", "sexual", "nudity", "porn", "graphic-media"
	ScheduledAt  time.Time         `json:"scheduled_at"`
	PostNow      bool              `json:"post_now"`
	Posted       bool              `json:"posted"`
	URI          *string           `json:"uri,omitempty"`
	CID          *string           `json:"cid,omitempty"`
	IsThreadRoot bool              `json:"is_thread_root"`
	IsChildPost  bool              `json:"is_child_post"`
	RootID       *int64            `json:"root_id,omitempty"`
	ParentID     *int64            `json:"parent_id,omitempty"`
	Order        int               `json:"order"`
	Cadences     []RepostCadence   `json:"cadences,omitempty"`
	RepostsLeft  int               `json:"reposts_left"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Repost is one future repost occurrence. Cadence groups expand into one row
// per occurrence at creation time; GroupID links the row back to its cadence.
type Repost struct {
	ID          int64     `json:"id"`
	PostID      int64     `json:"post_id"`
	AccountID   string    `json:"account_id"`
	URI         string    `json:"uri"`
	CID         string    `json:"cid"`
	GroupID     *string   `json:"group_id,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RepostCadence describes "repeat every IntervalHours, RepeatCount times".
type RepostCadence struct {
	GroupID       string `json:"group_id"`
	IntervalHours int    `json:"interval_hours"`
	RepeatCount   int    `json:"repeat_count"`
}

// RecordRef is a published record's stable reference.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// PublicationReport is the outcome of publishing one post or thread.
// Got < Expected signals partial failure, not total failure.
type PublicationReport struct {
	Records  []RecordRef `json:"records"`
	Expected int         `json:"expected"`
	Got      int         `json:"got"`
}

// FullSuccess reports whether every segment of the thread was published.
func (r *PublicationReport) FullSuccess() bool {
	return r != nil && r.Got == r.Expected
}
