package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/chat-core/internal/config"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/presence"
)

type hubFixture struct {
	hub     *Hub
	tracker *presence.Tracker
}

func newHubFixture() *hubFixture {
	tracker := presence.NewTracker()
	h := NewHub(tracker, config.WebSocketConfig{})
	go h.Run()
	return &hubFixture{hub: h, tracker: tracker}
}

func (f *hubFixture) connect(sessionID, userID string) *Client {
	client := NewClient(sessionID, &domain.Identity{UserID: userID}, f.hub, nil, config.WebSocketConfig{})
	f.hub.Register(client)
	f.tracker.Connect(sessionID, userID)
	return client
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("no delivery within deadline")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected delivery: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestToRoomReachesPresentSessions(t *testing.T) {
	f := newHubFixture()
	a := f.connect("sess-a", "alice")
	b := f.connect("sess-b", "bob")
	c := f.connect("sess-c", "carol")

	f.tracker.Join("sess-a", "alice", "room-1")
	f.tracker.Join("sess-b", "bob", "room-1")
	// Carol is connected but not in the room.

	require.NoError(t, f.hub.ToRoom("room-1", map[string]string{"type": "new-message"}, ""))

	assert.Equal(t, "new-message", receive(t, a)["type"])
	assert.Equal(t, "new-message", receive(t, b)["type"])
	assertSilent(t, c)
}

func TestToRoomExcludesSession(t *testing.T) {
	f := newHubFixture()
	a := f.connect("sess-a", "alice")
	b := f.connect("sess-b", "bob")
	f.tracker.Join("sess-a", "alice", "room-1")
	f.tracker.Join("sess-b", "bob", "room-1")

	require.NoError(t, f.hub.ToRoom("room-1", map[string]string{"type": "user-joined"}, "sess-a"))

	assert.Equal(t, "user-joined", receive(t, b)["type"])
	assertSilent(t, a)
}

func TestToUserReachesAllDevices(t *testing.T) {
	f := newHubFixture()
	desktop := f.connect("desktop", "alice")
	mobile := f.connect("mobile", "alice")
	other := f.connect("sess-b", "bob")

	// Mention delivery is independent of room presence.
	require.NoError(t, f.hub.ToUser("alice", map[string]string{"type": "mention-notification"}))

	assert.Equal(t, "mention-notification", receive(t, desktop)["type"])
	assert.Equal(t, "mention-notification", receive(t, mobile)["type"])
	assertSilent(t, other)
}

func TestToSession(t *testing.T) {
	f := newHubFixture()
	a := f.connect("sess-a", "alice")
	b := f.connect("sess-b", "bob")

	require.NoError(t, f.hub.ToSession("sess-a", map[string]string{"type": "online-users"}))

	assert.Equal(t, "online-users", receive(t, a)["type"])
	assertSilent(t, b)
}

func TestDeliveryToDepartedSessionIsNoop(t *testing.T) {
	f := newHubFixture()
	a := f.connect("sess-a", "alice")
	b := f.connect("sess-b", "bob")
	f.tracker.Join("sess-a", "alice", "room-1")
	f.tracker.Join("sess-b", "bob", "room-1")

	// Bob disconnects between enqueue and delivery resolution.
	f.tracker.Disconnect("sess-b", "bob")
	f.hub.Unregister(b)

	require.NoError(t, f.hub.ToRoom("room-1", map[string]string{"type": "new-message"}, ""))
	assert.Equal(t, "new-message", receive(t, a)["type"])
}

func TestSendEventSafeDuringTeardown(t *testing.T) {
	f := newHubFixture()
	c := f.connect("sess-a", "alice")

	// Stall the write pump: a full queue makes the next hub delivery take
	// the slow-consumer path and tear the session down.
	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte("x")
	}

	// Inbound events keep arriving on the read goroutine while the hub
	// closes the session. This must drop payloads, never panic.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c.SendEvent(map[string]string{"type": "pong"})
		}
	}()

	require.NoError(t, f.hub.ToSession("sess-a", map[string]string{"type": "online-users"}))
	f.hub.Unregister(c)
	<-done

	// The session is gone; further enqueues stay silent drops.
	require.NoError(t, c.SendEvent(map[string]string{"type": "pong"}))
}

func TestSendEventDropsWhenQueueFull(t *testing.T) {
	client := NewClient("sess-a", &domain.Identity{UserID: "alice"}, nil, nil, config.WebSocketConfig{})
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("x")
	}

	// Must not block even with a stalled write pump.
	done := make(chan struct{})
	go func() {
		client.SendEvent(map[string]string{"type": "pong"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendEvent blocked on a full queue")
	}
}
