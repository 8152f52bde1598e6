package uploads

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Notification is a locally synthesized user-facing message: either a
// transient toast or a durable center entry. Server-issued center
// notifications live in the database; local ids carry the "local_"
// prefix (upload entries reuse their session id) so the two id spaces
// never collide.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // info, success, warning, error, upload
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
	Source    string    `json:"source"` // "local" or "upload"
	SessionID string    `json:"session_id,omitempty"`
}

// Feed implements Notifier with an in-memory toast list and a local
// notification center. Upload center entries hold only the session id;
// their title, type, and message are recomputed from session state on
// every update, never cached as independent truth.
type Feed struct {
	mu     sync.Mutex
	toasts []Notification
	center []Notification
	seq    atomic.Int64
}

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) nextLocalID() string {
	return "local_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + strconv.FormatInt(f.seq.Add(1), 10)
}

// Toast queues a transient notification. A duration of zero makes the
// toast persistent; anything else self-deletes after it elapses.
// Non-upload toasts are also promoted to the local center.
func (f *Feed) Toast(kind, title, message string, duration time.Duration) {
	n := Notification{
		ID:        f.nextLocalID(),
		Type:      kind,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Source:    "local",
	}

	f.mu.Lock()
	f.toasts = append([]Notification{n}, f.toasts...)
	if kind != "upload" {
		f.center = append([]Notification{n}, f.center...)
	}
	f.mu.Unlock()

	if duration > 0 {
		id := n.ID
		time.AfterFunc(duration, func() {
			f.RemoveToast(id)
		})
	}
}

// RemoveToast drops a toast by id; center entries are unaffected.
func (f *Feed) RemoveToast(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.toasts {
		if n.ID == id {
			f.toasts = append(f.toasts[:i], f.toasts[i+1:]...)
			return
		}
	}
}

// Toasts returns the current toast list, newest first.
func (f *Feed) Toasts() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.toasts))
	copy(out, f.toasts)
	return out
}

// UploadStarted creates the center entry linked to the session.
func (f *Feed) UploadStarted(sess Session) {
	f.addUploadEntry(sess, "Uploading images")
}

// UploadRestored resynthesizes a center entry for a session reloaded
// from a snapshot after a restart.
func (f *Feed) UploadRestored(sess Session) {
	f.addUploadEntry(sess, "Upload in progress")
}

func (f *Feed) addUploadEntry(sess Session, title string) {
	n := Notification{
		ID:        sess.ID,
		Type:      "upload",
		Title:     title,
		Message:   sess.Message(),
		Timestamp: sess.CreatedAt,
		Source:    "upload",
		SessionID: sess.ID,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.center {
		if existing.ID == n.ID {
			return
		}
	}
	f.center = append([]Notification{n}, f.center...)
}

// UploadProgressed recomputes the linked entry from session state.
func (f *Feed) UploadProgressed(sess Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.center {
		if f.center[i].SessionID != sess.ID {
			continue
		}
		f.center[i].Message = sess.Message()
		switch sess.Status {
		case StatusCompleted:
			f.center[i].Title = "Upload complete"
			f.center[i].Type = "success"
		case StatusError:
			f.center[i].Title = "Upload failed"
			f.center[i].Type = "error"
		}
		return
	}
}

// Center returns the local center entries, newest first.
func (f *Feed) Center() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.center))
	copy(out, f.center)
	return out
}

// MarkRead flags a local center entry as read.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.center {
		if f.center[i].ID == id {
			f.center[i].IsRead = true
			return true
		}
	}
	return false
}

// RemoveCenter drops a local center entry.
func (f *Feed) RemoveCenter(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.center {
		if n.ID == id {
			f.center = append(f.center[:i], f.center[i+1:]...)
			return true
		}
	}
	return false
}
