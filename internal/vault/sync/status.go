package sync

import "time"

// State is the coordinator's position in the sync cycle state machine.
type State string

const (
	// StateIdle means no cycle is in progress.
	StateIdle State = "idle"
	// StateAcquiring means the cycle is contending for cross-context
	// leadership.
	StateAcquiring State = "acquiring"
	// StateSkipped means another context holds the lock and this cycle
	// deferred to it.
	StateSkipped State = "skipped"
	// StateLeading means the lock is held and pending work is being read.
	StateLeading State = "leading"
	// StateDrainingFolders means folder entries are being pushed.
	StateDrainingFolders State = "draining_folders"
	// StateDrainingNotes means note entries are being pushed.
	StateDrainingNotes State = "draining_notes"
)

// Status is the observable snapshot external surfaces (CLI, dashboard,
// editors) read. It is deliberately independent of any UI framework:
// poll Snapshot or consume Subscribe.
type Status struct {
	State         State     `json:"state"`
	QueueLength   int       `json:"queue_length"`
	ConflictCount int       `json:"conflict_count"`
	LastSyncAt    time.Time `json:"last_sync_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// Snapshot returns the current status.
func (c *Coordinator) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a status listener. Every state change is delivered
// on the returned channel; slow consumers miss intermediate snapshots
// rather than blocking the coordinator. The cancel function must be
// called when done.
func (c *Coordinator) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 16)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// setState transitions the state machine and notifies subscribers.
func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	c.status.State = state
	c.notifyLocked()
	c.mu.Unlock()
}

// updateStatus mutates the status under the coordinator lock and
// notifies subscribers.
func (c *Coordinator) updateStatus(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.notifyLocked()
	c.mu.Unlock()
}

// notifyLocked fans the current status out to subscribers. Callers must
// hold c.mu.
func (c *Coordinator) notifyLocked() {
	for ch := range c.subscribers {
		select {
		case ch <- c.status:
		default:
		}
	}
}
