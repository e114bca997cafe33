// Package notify keeps the in-memory log of user-facing alerts with
// read/unread accounting. Entries arrive from direct application calls or
// from the real-time channel; they are never persisted.
package notify

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// maxEntries caps the log; the oldest entries beyond it are evicted.
const maxEntries = 50

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type Notification struct {
	ID          string    `json:"id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	Read        bool      `json:"read"`
	ActionURL   string    `json:"actionUrl,omitempty"`
	ActionLabel string    `json:"actionLabel,omitempty"`
}

// Input is what callers provide; id, timestamp and read flag are synthesized.
type Input struct {
	Severity    Severity
	Title       string
	Message     string
	ActionURL   string
	ActionLabel string
}

type Center struct {
	mu      sync.Mutex
	entries []Notification // newest first
	unread  int

	now      func() time.Time
	onChange func()
}

func NewCenter() *Center {
	return &Center{now: time.Now}
}

// NewCenterWithNow exists for tests that need deterministic timestamps.
func NewCenterWithNow(now func() time.Time) *Center {
	return &Center{now: now}
}

// SetOnChange registers a hook invoked after every mutation, outside the
// lock. Reactive UIs use it to re-read Items/Unread.
func (c *Center) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Center) notifyChanged(fn func()) {
	if fn != nil {
		fn()
	}
}

// Add prepends a new unread notification and evicts beyond the cap.
func (c *Center) Add(in Input) Notification {
	c.mu.Lock()
	n := Notification{
		ID:          newID(c.now()),
		Severity:    in.Severity,
		Title:       in.Title,
		Message:     in.Message,
		CreatedAt:   c.now(),
		ActionURL:   in.ActionURL,
		ActionLabel: in.ActionLabel,
	}
	c.entries = append([]Notification{n}, c.entries...)
	if len(c.entries) > maxEntries {
		for _, evicted := range c.entries[maxEntries:] {
			if !evicted.Read {
				c.unread--
			}
		}
		c.entries = c.entries[:maxEntries]
	}
	c.unread++
	fn := c.onChange
	c.mu.Unlock()

	c.notifyChanged(fn)
	return n
}

// MarkRead flags one entry as read. Unknown ids and already-read entries
// leave the unread counter untouched.
func (c *Center) MarkRead(id string) {
	c.mu.Lock()
	var changed bool
	for i := range c.entries {
		if c.entries[i].ID == id {
			if !c.entries[i].Read {
				c.entries[i].Read = true
				if c.unread > 0 {
					c.unread--
				}
				changed = true
			}
			break
		}
	}
	fn := c.onChange
	c.mu.Unlock()

	if changed {
		c.notifyChanged(fn)
	}
}

func (c *Center) MarkAllRead() {
	c.mu.Lock()
	for i := range c.entries {
		c.entries[i].Read = true
	}
	c.unread = 0
	fn := c.onChange
	c.mu.Unlock()

	c.notifyChanged(fn)
}

// Remove deletes one entry, adjusting the unread counter only if the
// removed entry was unread.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	var changed bool
	for i := range c.entries {
		if c.entries[i].ID == id {
			if !c.entries[i].Read && c.unread > 0 {
				c.unread--
			}
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			changed = true
			break
		}
	}
	fn := c.onChange
	c.mu.Unlock()

	if changed {
		c.notifyChanged(fn)
	}
}

func (c *Center) ClearAll() {
	c.mu.Lock()
	c.entries = nil
	c.unread = 0
	fn := c.onChange
	c.mu.Unlock()

	c.notifyChanged(fn)
}

// Items returns a copy of the log, newest first.
func (c *Center) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// newID is time-ordered with a random suffix so rapid bursts never collide.
func newID(at time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return strconv.FormatInt(at.UnixMilli(), 36) + "-" + hex.EncodeToString(suffix)
}
