package server

import (
	"testing"
	"time"

	"github.com/codocs/go-codocs/internal/database"
	"github.com/codocs/go-codocs/internal/stats"
	"github.com/codocs/go-codocs/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestRoom(t *testing.T, ds *DocServer) *Room {
	t.Helper()
	return newRoom(42, "42", ds)
}

func Test_addClient_removeClient(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, ds)

	c := &Client{sessionId: "sess-1", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
	room.addClient(c)
	assert.Lenf(t, room.clients, 1, "expected 1 client after adding, got %d", len(room.clients))
	assert.Contains(t, room.clients, c, "expected room.clients to contain client")
	assert.Equal(t, room, c.currentRoom(), "expected the client's membership to point at the room")

	room.removeClient(c)
	assert.Lenf(t, room.clients, 0, "expected 0 clients after removal, got %d", len(room.clients))
	assert.Nil(t, c.currentRoom(), "expected the client's membership to be cleared")
	assert.True(t, room.killTimer.Stop(), "expected kill timer to be running after the last client left")
}

func Test_removeClient_notMember(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, ds)

	c := &Client{sessionId: "sess-1", log: testutil.TestLogger(t)}
	room.removeClient(c)
	assert.False(t, room.killTimer.Stop(), "expected kill timer untouched when removing a non-member")
}

func Test_room_handleJoin(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, ds)

	existing := &Client{sessionId: "sess-old", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
	room.addClient(existing)

	joiner := &Client{sessionId: "sess-new", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
	room.handleJoin(joinRequest{client: joiner, content: "current content"})

	assert.Contains(t, room.clients, joiner, "expected the joiner to be a member")

	// snapshot goes to the joiner only
	select {
	case msg := <-joiner.send:
		assert.Equal(t, EventLoadDocument, msg.Event, "expected the joiner to receive load-document")
		assert.Equal(t, "current content", msg.Data, "expected the snapshot to carry current content")
	default:
		t.Error("expected the joiner to receive an initial snapshot")
	}

	// presence notice goes to everyone else
	select {
	case msg := <-existing.send:
		assert.Equal(t, EventUserJoined, msg.Event, "expected the existing member to receive user-joined")
		assert.Equal(t, UserJoined{SocketId: "sess-new"}, msg.Data, "expected the notice to carry the joiner's session id")
	default:
		t.Error("expected the existing member to receive a presence notice")
	}

	select {
	case msg := <-joiner.send:
		t.Errorf("expected no further message to the joiner, got %q", msg.Event)
	default:
	}
}

func Test_handleChange(t *testing.T) {
	t.Run("relays to everyone but the sender", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
		su.On("Incr", statChangesRelayed).Return(nil).Once()

		ds := newTestDocServerWithStats(t, &database.MockDocumentRepository{}, su)
		room := newTestRoom(t, ds)

		sender := &Client{sessionId: "sess-a", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
		peer := &Client{sessionId: "sess-b", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
		room.addClient(sender)
		room.addClient(peer)

		room.handleChange(changeRequest{sender: sender, content: "X"})

		select {
		case msg := <-peer.send:
			assert.Equal(t, EventReceiveChanges, msg.Event, "expected the peer to receive the change")
			assert.Equal(t, "X", msg.Data, "expected the relayed content")
		default:
			t.Error("expected the peer to receive receive-changes")
		}

		select {
		case msg := <-sender.send:
			t.Errorf("expected the sender to receive nothing, got %q", msg.Event)
		default:
		}
	})

	t.Run("sender need not be a member", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
		su.On("Incr", statChangesRelayed).Return(nil).Once()

		ds := newTestDocServerWithStats(t, &database.MockDocumentRepository{}, su)
		room := newTestRoom(t, ds)

		member := &Client{sessionId: "sess-b", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
		room.addClient(member)

		outsider := &Client{sessionId: "sess-x", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
		room.handleChange(changeRequest{sender: outsider, content: "X"})

		select {
		case msg := <-member.send:
			assert.Equal(t, EventReceiveChanges, msg.Event, "expected delivery to members even from a non-member sender")
		default:
			t.Error("expected the member to receive the change")
		}
	})
}

func Test_handleRoomTimeout(t *testing.T) {
	t.Run("requests unload", func(t *testing.T) {
		ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
		ds.unloadRoomChan = make(chan string, 1)
		room := newTestRoom(t, ds)

		room.handleRoomTimeout()
		select {
		case key := <-ds.unloadRoomChan:
			assert.Equal(t, "42", key, "expected the room key in the unload request")
		default:
			t.Error("handleRoomTimeout did not send an unload request")
		}
	})

	t.Run("retries when the server is busy", func(t *testing.T) {
		ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
		ds.unloadRoomChan = make(chan string) // no receiver
		room := newTestRoom(t, ds)

		room.handleRoomTimeout()
		assert.True(t, room.killTimer.Stop(), "expected kill timer restarted after a failed unload request")
	})
}

func Test_handleRoomExit(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, ds)

	c := &Client{sessionId: "sess-1", send: make(chan *ServerMessage, 256), log: testutil.TestLogger(t)}
	room.addClient(c)

	go room.handleRoomExit()

	select {
	case <-room.done:
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: handleRoomExit did not complete")
	}

	assert.Nil(t, c.currentRoom(), "expected membership cleared on room exit")
	assert.Empty(t, room.clients, "expected no members after room exit")
}
