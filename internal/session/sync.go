package session

import "sync"

// Hub fans transient events out to sessions viewing together. Delivery is
// best-effort: a send to a listener whose inbox is full is dropped so the
// originating session never blocks on a slow sibling. Within one listener,
// delivered events keep their send order.
type Hub struct {
	mu     sync.Mutex
	buffer int
	groups map[string]map[string]chan Event
}

// NewHub creates a hub whose listeners buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		buffer: buffer,
		groups: make(map[string]map[string]chan Event),
	}
}

// Join registers a session with a named group and returns its inbox. Joining
// twice with the same id replaces the previous inbox.
func (h *Hub) Join(group, sessionID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]chan Event)
		h.groups[group] = members
	}
	if old, ok := members[sessionID]; ok {
		close(old)
	}
	ch := make(chan Event, h.buffer)
	members[sessionID] = ch
	return ch
}

// Leave removes a session from a group and closes its inbox.
func (h *Hub) Leave(group, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	if ch, ok := members[sessionID]; ok {
		close(ch)
		delete(members, sessionID)
	}
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Broadcast sends ev to every group member except the originator.
func (h *Hub) Broadcast(group, fromID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.groups[group] {
		if id == fromID {
			continue
		}
		select {
		case ch <- ev:
		default:
			// Listener is backed up; drop rather than block.
		}
	}
}

// JoinGroup attaches the session to a sync group on the hub and returns its
// inbox. Subsequent transient events the session handles are broadcast to
// the group's other members.
func (s *Session) JoinGroup(hub *Hub, group string) <-chan Event {
	s.mu.Lock()
	s.hub = hub
	s.group = group
	s.mu.Unlock()
	return hub.Join(group, s.ID)
}

// LeaveGroup detaches the session from its sync group, if any.
func (s *Session) LeaveGroup() {
	s.mu.Lock()
	hub, group := s.hub, s.group
	s.hub = nil
	s.group = ""
	s.mu.Unlock()
	if hub != nil {
		hub.Leave(group, s.ID)
	}
}

func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	hub, group := s.hub, s.group
	s.mu.Unlock()
	if hub != nil {
		hub.Broadcast(group, s.ID, ev)
	}
}
