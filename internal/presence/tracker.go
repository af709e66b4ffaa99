package presence

import "sync"

// Tracker owns the process-local presence state: which sessions are in
// which rooms, and which sessions belong to which users. The state is
// rebuilt from nothing on restart and carries no durability requirement.
//
// A user may hold several live sessions at once (multiple tabs or
// devices); presence and targeted delivery address all of them.
type Tracker struct {
	mu sync.RWMutex

	// roomID -> sessionID -> userID
	rooms map[string]map[string]string
	// userID -> set of sessionIDs
	users map[string]map[string]struct{}
	// sessionID -> set of roomIDs, for disconnect cleanup
	sessions map[string]map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		rooms:    make(map[string]map[string]string),
		users:    make(map[string]map[string]struct{}),
		sessions: make(map[string]map[string]struct{}),
	}
}

// Connect records a live session for the user. Called once per
// authenticated connection.
func (t *Tracker) Connect(sessionID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.users[userID] == nil {
		t.users[userID] = make(map[string]struct{})
	}
	t.users[userID][sessionID] = struct{}{}
	if t.sessions[sessionID] == nil {
		t.sessions[sessionID] = make(map[string]struct{})
	}
}

// Join adds the session to a room. Idempotent: joining the same room twice
// from the same session is a no-op.
func (t *Tracker) Join(sessionID, userID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms[roomID] == nil {
		t.rooms[roomID] = make(map[string]string)
	}
	t.rooms[roomID][sessionID] = userID

	if t.sessions[sessionID] == nil {
		t.sessions[sessionID] = make(map[string]struct{})
	}
	t.sessions[sessionID][roomID] = struct{}{}

	if t.users[userID] == nil {
		t.users[userID] = make(map[string]struct{})
	}
	t.users[userID][sessionID] = struct{}{}
}

// Leave removes the session from a room. Empty room sets are discarded.
func (t *Tracker) Leave(sessionID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(sessionID, roomID)
}

func (t *Tracker) leaveLocked(sessionID, roomID string) {
	if members, ok := t.rooms[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(t.rooms, roomID)
		}
	}
	if joined, ok := t.sessions[sessionID]; ok {
		delete(joined, roomID)
	}
}

// Disconnect removes the session from every room it joined and drops the
// user→session mapping. It returns the rooms the session was in, so the
// caller can emit one departure notice per room. Safe to call more than
// once; later calls return nothing.
func (t *Tracker) Disconnect(sessionID, userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	joined := t.sessions[sessionID]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		t.leaveLocked(sessionID, roomID)
		left = append(left, roomID)
	}
	delete(t.sessions, sessionID)

	if sess, ok := t.users[userID]; ok {
		delete(sess, sessionID)
		if len(sess) == 0 {
			delete(t.users, userID)
		}
	}

	return left
}

// InRoom reports whether the session is currently joined to the room.
func (t *Tracker) InRoom(sessionID, roomID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[roomID][sessionID]
	return ok
}

// RoomSessions returns the sessions currently joined to the room.
func (t *Tracker) RoomSessions(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.rooms[roomID]
	out := make([]string, 0, len(members))
	for sessionID := range members {
		out = append(out, sessionID)
	}
	return out
}

// OnlineUsers returns the distinct users with at least one session in the
// room. Point-in-time: not linearizable with concurrent joins.
func (t *Tracker) OnlineUsers(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, userID := range t.rooms[roomID] {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		out = append(out, userID)
	}
	return out
}

// UserSessions returns every live session for the user, across all rooms.
func (t *Tracker) UserSessions(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sess := t.users[userID]
	out := make([]string, 0, len(sess))
	for sessionID := range sess {
		out = append(out, sessionID)
	}
	return out
}

// UserInRoom reports whether the user has any session joined to the room.
func (t *Tracker) UserInRoom(userID, roomID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, uid := range t.rooms[roomID] {
		if uid == userID {
			return true
		}
	}
	return false
}

// IsOnline reports whether the user has at least one live session.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users[userID]) > 0
}
