package model

// TaskKind identifies what a queued task carries.
type TaskKind string

const (
	TaskPost   TaskKind = "post"
	TaskRepost TaskKind = "repost"
	// TaskBlast is a payload-free marker re-published alongside retries so a
	// delayed retry is not invisible until the queue's next natural delivery.
	TaskBlast TaskKind = "blast"
)

// Task is one queue message payload. It carries everything needed to replay
// the work independently of the producer.
type Task struct {
	Kind    TaskKind `json:"kind"`
	Post    *Post    `json:"post,omitempty"`
	Repost  *Repost  `json:"repost,omitempty"`
	Attempt int      `json:"attempt"`
}

// AccountID returns the owning account of the task payload, or "" for
// payload-free kinds.
func (t *Task) AccountID() string {
	switch t.Kind {
	case TaskPost:
		if t.Post != nil {
			return t.Post.AccountID
		}
	case TaskRepost:
		if t.Repost != nil {
			return t.Repost.AccountID
		}
	}
	return ""
}
