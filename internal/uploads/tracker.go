// Package uploads tracks in-flight batch uploads and projects their
// state into toast and center notifications. Sessions are mirrored
// into a key-value snapshot store on every mutation so an interrupted
// client can pick them up again after a reload.
package uploads

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/metrics"
)

// Session statuses. A session starts uploading and ends in exactly one
// terminal state; terminal states absorb all further writes.
const (
	StatusUploading = "uploading"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// FileInfo describes one file in a batch upload.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Session is the tracked state of one batch upload.
type Session struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"` // 0-100
	CurrentFile    int        `json:"current_file"`
	TotalFiles     int        `json:"total_files"`
	FilesCompleted int        `json:"files_completed"`
	Files          []FileInfo `json:"files"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether the session has reached a final status.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError || s.Status == StatusCancelled
}

// Message renders the session's human-readable progress line. It is
// always computed from current state, never stored as separate truth.
func (s *Session) Message() string {
	switch s.Status {
	case StatusUploading:
		return fmt.Sprintf("Uploaded %d/%d files (%d%%)", s.CurrentFile, s.TotalFiles, s.Progress)
	case StatusCompleted:
		done := s.FilesCompleted
		if done == 0 {
			done = s.TotalFiles
		}
		return fmt.Sprintf("Completed: %d/%d files", done, s.TotalFiles)
	case StatusError:
		if s.Error == "" {
			return "Error: unknown error"
		}
		return "Error: " + s.Error
	default:
		return "Status: " + s.Status
	}
}

// Progress is a partial update merged into a session field by field,
// last write wins. Nil pointer fields are left untouched.
type Progress struct {
	Progress       *int
	CurrentFile    *int
	FilesCompleted *int
	TotalFiles     *int
	Status         string
	Error          string
}

// Notifier receives the user-visible projections of session state.
type Notifier interface {
	Toast(kind, title, message string, duration time.Duration)
	UploadStarted(sess Session)
	UploadProgressed(sess Session)
	UploadRestored(sess Session)
}

// Options tunes tracker timing. Zero values pick the defaults.
type Options struct {
	RemoveDelay    time.Duration // active-set removal delay after a terminal state
	SnapshotMaxAge time.Duration // snapshots older than this are pruned
	PruneInterval  time.Duration // how often PruneExpired runs
}

func (o *Options) defaults() {
	if o.RemoveDelay <= 0 {
		o.RemoveDelay = 5 * time.Second
	}
	if o.SnapshotMaxAge <= 0 {
		o.SnapshotMaxAge = time.Hour
	}
	if o.PruneInterval <= 0 {
		o.PruneInterval = time.Hour
	}
}

// Tracker owns the active upload sessions. All state transitions are
// synchronous and atomic per session id; the upload transport itself is
// a collaborator reporting in via ReportProgress.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store    SnapshotStore
	notifier Notifier
	opts     Options

	stop     chan struct{}
	stopOnce sync.Once
}

func NewTracker(store SnapshotStore, notifier Notifier, opts Options) *Tracker {
	opts.defaults()
	return &Tracker{
		sessions: make(map[string]*Session),
		store:    store,
		notifier: notifier,
		opts:     opts,
		stop:     make(chan struct{}),
	}
}

func newSessionID() string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("upload_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// Begin registers a new batch upload and returns its opaque id. The
// caller reports progress against this id; Begin itself never blocks
// on the transport.
func (t *Tracker) Begin(files []FileInfo, totalFiles int) string {
	if totalFiles < 1 {
		totalFiles = 1
	}

	now := time.Now()
	sess := &Session{
		ID:         newSessionID(),
		Status:     StatusUploading,
		TotalFiles: totalFiles,
		Files:      files,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	t.mu.Lock()
	t.sessions[sess.ID] = sess
	snapshot := *sess
	t.mu.Unlock()

	metrics.UploadSessionsActive.Inc()

	t.saveSnapshot(snapshot)
	t.notifier.UploadStarted(snapshot)
	t.notifier.Toast("info", "Upload started",
		fmt.Sprintf("Upload of %d images started", totalFiles), 3*time.Second)

	return sess.ID
}

// ReportProgress merges a progress update into the session. Unknown ids
// are ignored: late callbacks may race the pruner. Once a session is
// terminal, further reports are no-ops.
func (t *Tracker) ReportProgress(id string, p Progress) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if !ok || sess.Terminal() {
		t.mu.Unlock()
		return
	}

	if p.Progress != nil && *p.Progress > sess.Progress {
		// progress never decreases while uploading
		v := *p.Progress
		if v > 100 {
			v = 100
		}
		sess.Progress = v
	}
	if p.CurrentFile != nil {
		sess.CurrentFile = *p.CurrentFile
	}
	if p.FilesCompleted != nil {
		sess.FilesCompleted = *p.FilesCompleted
	}
	if p.TotalFiles != nil && *p.TotalFiles > 0 {
		sess.TotalFiles = *p.TotalFiles
	}
	if p.Error != "" {
		sess.Error = p.Error
	}
	if p.Status != "" {
		sess.Status = p.Status
	}
	sess.UpdatedAt = time.Now()

	snapshot := *sess
	terminal := sess.Terminal()
	t.mu.Unlock()

	t.notifier.UploadProgressed(snapshot)

	if !terminal {
		t.saveSnapshot(snapshot)
		return
	}

	// Terminal: the snapshot leaves the store now, the active entry a
	// little later so clients can still read the final state.
	if err := t.store.Delete(context.Background(), snapshot.ID); err != nil {
		logger.Error("failed to delete upload snapshot", "id", snapshot.ID, "error", err)
	}

	switch snapshot.Status {
	case StatusCompleted:
		done := snapshot.FilesCompleted
		if done == 0 {
			done = snapshot.TotalFiles
		}
		t.notifier.Toast("success", "Upload complete",
			fmt.Sprintf("Successfully uploaded %d of %d files", done, snapshot.TotalFiles),
			5*time.Second)
	case StatusCancelled:
		t.notifier.Toast("warning", "Upload cancelled",
			fmt.Sprintf("Upload of %d files cancelled", snapshot.TotalFiles),
			3*time.Second)
	}

	time.AfterFunc(t.opts.RemoveDelay, func() {
		t.mu.Lock()
		_, present := t.sessions[snapshot.ID]
		delete(t.sessions, snapshot.ID)
		t.mu.Unlock()
		if present {
			metrics.UploadSessionsActive.Dec()
		}
	})
}

// Complete transitions the session to completed.
func (t *Tracker) Complete(id string) {
	t.ReportProgress(id, Progress{Status: StatusCompleted, Progress: intPtr(100)})
}

// Fail transitions the session to error with the transport's message.
// Transport failures end here; they are never thrown past the tracker.
func (t *Tracker) Fail(id string, errMsg string) {
	t.ReportProgress(id, Progress{Status: StatusError, Error: errMsg})
}

// Cancel marks the session cancelled. This is presentation-only: an
// in-flight transport call is not aborted from here.
func (t *Tracker) Cancel(id string) {
	t.ReportProgress(id, Progress{Status: StatusCancelled})
}

// Get returns a copy of the session, if still in the active set.
func (t *Tracker) Get(id string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Active returns copies of all sessions currently in the active set.
func (t *Tracker) Active() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		out = append(out, *sess)
	}
	return out
}

// RestoreSessions reloads persisted sessions at startup. Snapshots
// older than the max age stay dead; sessions still marked uploading
// re-enter the active set with a resynthesized center notification —
// their real outcome is unknown, the restored entry is optimistic.
func (t *Tracker) RestoreSessions(ctx context.Context) {
	snapshots, err := t.store.List(ctx)
	if err != nil {
		logger.Error("failed to restore upload sessions", "error", err)
		return
	}

	now := time.Now()
	for _, snap := range snapshots {
		if now.Sub(snap.CreatedAt) >= t.opts.SnapshotMaxAge {
			continue
		}
		if snap.Status != StatusUploading {
			continue
		}

		sess := snap
		t.mu.Lock()
		if _, exists := t.sessions[sess.ID]; exists {
			t.mu.Unlock()
			continue
		}
		t.sessions[sess.ID] = &sess
		t.mu.Unlock()

		metrics.UploadSessionsActive.Inc()
		t.notifier.UploadRestored(sess)
		logger.Info("restored upload session", "id", sess.ID, "progress", sess.Progress)
	}
}

// PruneExpired drops persisted snapshots older than the max age,
// regardless of status.
func (t *Tracker) PruneExpired(ctx context.Context) {
	snapshots, err := t.store.List(ctx)
	if err != nil {
		logger.Error("failed to list upload snapshots", "error", err)
		return
	}

	now := time.Now()
	for _, snap := range snapshots {
		if now.Sub(snap.CreatedAt) >= t.opts.SnapshotMaxAge {
			if err := t.store.Delete(ctx, snap.ID); err != nil {
				logger.Error("failed to prune upload snapshot", "id", snap.ID, "error", err)
			}
		}
	}
}

// Run starts the recurring snapshot pruner. It returns when Close is
// called.
func (t *Tracker) Run() {
	ticker := time.NewTicker(t.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.PruneExpired(context.Background())
		case <-t.stop:
			return
		}
	}
}

// Close stops the pruner.
func (t *Tracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) saveSnapshot(sess Session) {
	if err := t.store.Save(context.Background(), sess); err != nil {
		logger.Error("failed to save upload snapshot", "id", sess.ID, "error", err)
	}
}

func intPtr(v int) *int { return &v }
