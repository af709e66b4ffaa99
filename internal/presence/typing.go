package presence

import "sync"

// TypingTracker holds the ephemeral per-room set of currently-typing
// users. No timeout is enforced here; the sender emits stop explicitly,
// and disconnect cleanup clears the user everywhere.
type TypingTracker struct {
	mu sync.Mutex

	// roomID -> set of userIDs
	typing map[string]map[string]struct{}
}

// NewTypingTracker creates an empty TypingTracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[string]map[string]struct{})}
}

// Start marks the user as typing in the room. Returns false if the user
// was already marked, so callers can skip redundant broadcasts.
func (t *TypingTracker) Start(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.typing[roomID] == nil {
		t.typing[roomID] = make(map[string]struct{})
	}
	if _, ok := t.typing[roomID][userID]; ok {
		return false
	}
	t.typing[roomID][userID] = struct{}{}
	return true
}

// Stop clears the user's typing state in the room. Returns false if the
// user was not marked as typing.
func (t *TypingTracker) Stop(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(roomID, userID)
}

func (t *TypingTracker) stopLocked(roomID, userID string) bool {
	users, ok := t.typing[roomID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.typing, roomID)
	}
	return true
}

// ClearUser removes the user's typing state from every room and returns
// the rooms that were affected, so stop notices can be broadcast.
func (t *TypingTracker) ClearUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []string
	for roomID := range t.typing {
		if t.stopLocked(roomID, userID) {
			cleared = append(cleared, roomID)
		}
	}
	return cleared
}

// TypingUsers returns the users currently typing in the room.
func (t *TypingTracker) TypingUsers(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.typing[roomID]
	out := make([]string, 0, len(users))
	for userID := range users {
		out = append(out, userID)
	}
	return out
}
