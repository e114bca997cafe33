package devserver

import "sync"

// RoomWriter is the transport side of one subscribed connection.
type RoomWriter interface {
	Write(frame string) error
	Close() error
}

// Rooms tracks which connections subscribed to which topic key
// ("notifications:<userID>", "invoices:<id>", ...). Connections whose
// writes fail are dropped.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[RoomWriter]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[RoomWriter]struct{})}
}

func (r *Rooms) Join(topic string, w RoomWriter) {
	if topic == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[topic]
	if !ok {
		set = make(map[RoomWriter]struct{})
		r.members[topic] = set
	}
	set[w] = struct{}{}
}

func (r *Rooms) Leave(topic string, w RoomWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[topic]
	if !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(r.members, topic)
	}
}

// LeaveAll removes the connection from every topic it joined.
func (r *Rooms) LeaveAll(w RoomWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic, set := range r.members {
		delete(set, w)
		if len(set) == 0 {
			delete(r.members, topic)
		}
	}
}

func (r *Rooms) Broadcast(topic string, frame string) {
	r.mu.RLock()
	set := r.members[topic]
	writers := make([]RoomWriter, 0, len(set))
	for w := range set {
		writers = append(writers, w)
	}
	r.mu.RUnlock()

	var failed []RoomWriter
	for _, w := range writers {
		if err := w.Write(frame); err != nil {
			failed = append(failed, w)
		}
	}
	for _, w := range failed {
		_ = w.Close()
		r.LeaveAll(w)
	}
}
