package session

import (
	"fmt"

	"hotel-receptionist/internal/tools"
)

// appendTranscript extends the last entry when it is an open entry of the
// same role, otherwise starts a new one.
func (e *Engine) appendTranscript(role Role, text string) {
	e.mu.Lock()
	if n := len(e.transcript); n > 0 && e.transcript[n-1].Role == role && !e.transcript[n-1].Complete {
		e.transcript[n-1].Text += text
	} else {
		e.transcript = append(e.transcript, TranscriptEntry{Role: role, Text: text})
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.observer.OnTranscript(snapshot)
}

func (e *Engine) completeTurn() {
	e.mu.Lock()
	user := e.closeOpenLocked(RoleUser)
	model := e.closeOpenLocked(RoleModel)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	if user || model {
		e.observer.OnTranscript(snapshot)
	}
}

// beginToolCalls closes the model's open line, notes each backend action and
// marks every call busy before any of them is dispatched.
func (e *Engine) beginToolCalls(calls []tools.Call) {
	e.mu.Lock()
	e.busy += len(calls)
	e.lastActivity = e.clock.Now()
	e.closeOpenLocked(RoleModel)
	for _, c := range calls {
		e.transcript = append(e.transcript, TranscriptEntry{
			Role:     RoleSystem,
			Text:     fmt.Sprintf("Executing Backend Action: %s", c.Name),
			Complete: true,
		})
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.observer.OnTranscript(snapshot)
}

func (e *Engine) closeOpenLocked(role Role) bool {
	changed := false
	for i := range e.transcript {
		if e.transcript[i].Role == role && !e.transcript[i].Complete {
			e.transcript[i].Complete = true
			changed = true
		}
	}
	return changed
}

func (e *Engine) snapshotLocked() []TranscriptEntry {
	out := make([]TranscriptEntry, len(e.transcript))
	copy(out, e.transcript)
	return out
}
