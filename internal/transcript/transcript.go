// Package transcript holds the capture client's view of the translation:
// finalized lines plus the line currently being streamed.
package transcript

import (
	"strings"
	"sync"
)

// Transcript is safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	lines   []string
	current strings.Builder
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Begin starts a recording with an empty in-progress line.
// Finalized lines are kept.
func (t *Transcript) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Reset()
}

// AppendDelta extends the in-progress line.
func (t *Transcript) AppendDelta(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.WriteString(delta)
}

// Finalize appends text as one finalized line and resets the in-progress
// line, whatever the deltas accumulated.
func (t *Transcript) Finalize(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, text)
	t.current.Reset()
}

// Snapshot is a point-in-time copy of a transcript.
type Snapshot struct {
	Lines   []string
	Current string
}

// Empty reports whether there is nothing to show yet.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0 && s.Current == ""
}

// Snapshot copies the current state.
func (t *Transcript) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := make([]string, len(t.lines))
	copy(lines, t.lines)
	return Snapshot{Lines: lines, Current: t.current.String()}
}
