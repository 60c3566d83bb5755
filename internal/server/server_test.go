package server

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/codocs/go-codocs/internal/database"
	"github.com/codocs/go-codocs/internal/stats"
	"github.com/codocs/go-codocs/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var anyMetric = mock.AnythingOfType("string")

// newTestDocServer creates a DocServer for tests that don't care about
// stats expectations beyond metric registration.
func newTestDocServer(t *testing.T, db database.DocumentRepository, su *stats.MockStatsUpdater) *DocServer {
	t.Helper()
	su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
	return newTestDocServerWithStats(t, db, su)
}

// newTestDocServerWithStats leaves stats expectations to the caller.
func newTestDocServerWithStats(t *testing.T, db database.DocumentRepository, su *stats.MockStatsUpdater) *DocServer {
	t.Helper()
	ds, err := NewDocServer(testutil.TestLogger(t), db, su)
	if err != nil {
		t.Fatalf("failed to create test DocServer: %v", err)
	}
	return ds
}

func TestNewDocServer(t *testing.T) {
	db := &database.MockDocumentRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", anyMetric).Return(nil).Times(4)

	ds, err := NewDocServer(testutil.TestLogger(t), db, su)
	assert.NoError(t, err, "expected no error creating DocServer")
	assert.NotNil(t, ds.resolver, "expected resolver to be initialized")
	assert.NotNil(t, ds.gateway, "expected gateway to be initialized")
	assert.NotNil(t, ds.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, ds.joinChan, "expected joinChan to be initialized")
}

func Test_server_handleJoin(t *testing.T) {
	t.Run("creates the room and delivers the snapshot", func(t *testing.T) {
		db := &database.MockDocumentRepository{}
		defer db.AssertExpectations(t)
		db.On("GetDocumentByDocId", "abc-key").Return(database.Document{Id: 42, DocId: "abc-key", Content: "hello"}, nil)

		su := &stats.MockStatsUpdater{}
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
		su.On("Incr", statActiveRooms).Return(nil).Once()

		ds := newTestDocServerWithStats(t, db, su)
		c := newTestClient(t, ds)

		ds.handleJoin(&joinMsg{client: c, identifier: Identifier{Value: "abc-key", Set: true}})

		assert.Contains(t, ds.rooms, "42", "expected the room to be keyed by the stringified document id")

		// room goroutine delivers the snapshot asynchronously
		assert.Eventually(t, func() bool {
			select {
			case msg := <-c.send:
				return msg.Event == EventLoadDocument && msg.Data == "hello"
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond, "expected the joiner to receive the current content")
	})

	t.Run("not found degrades to an empty snapshot", func(t *testing.T) {
		db := &database.MockDocumentRepository{}
		defer db.AssertExpectations(t)
		db.On("GetDocumentByDocId", "does-not-exist").Return(database.Document{}, sql.ErrNoRows)

		su := &stats.MockStatsUpdater{}
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)

		ds := newTestDocServerWithStats(t, db, su)
		c := newTestClient(t, ds)

		ds.handleJoin(&joinMsg{client: c, identifier: Identifier{Value: "does-not-exist", Set: true}})

		assert.Empty(t, ds.rooms, "expected no room for an unresolved identifier")
		select {
		case msg := <-c.send:
			assert.Equal(t, EventLoadDocument, msg.Event)
			assert.Equal(t, "", msg.Data, "expected an empty snapshot on a failed join")
		default:
			t.Error("expected a load-document response")
		}
	})

	t.Run("joining a second document leaves the first room immediately", func(t *testing.T) {
		db := &database.MockDocumentRepository{}
		defer db.AssertExpectations(t)
		db.On("GetDocumentById", 2).Return(database.Document{Id: 2, DocId: "doc-two"}, nil)

		ds := newTestDocServer(t, db, &stats.MockStatsUpdater{})
		c := newTestClient(t, ds)

		// both rooms exist up front and neither goroutine is started, so
		// nothing races the switch
		prev := newRoom(1, "1", ds)
		ds.rooms["1"] = prev
		prev.addClient(c)
		next := newRoom(2, "2", ds)
		ds.rooms["2"] = next

		ds.handleJoin(&joinMsg{client: c, identifier: Identifier{Value: "2", Set: true}})

		// the old member set is updated before handleJoin returns, so a
		// broadcast from the old room can no longer reach the client
		assert.Zero(t, prev.memberCount(), "expected the client to be out of the previous room's member set")
		prev.broadcast(NewReceiveChanges("stale"))
		select {
		case msg := <-c.send:
			t.Errorf("expected no delivery from the old room after switching, got %q", msg.Event)
		default:
		}

		select {
		case join := <-next.joinChan:
			assert.Equal(t, c, join.client, "expected the join to be forwarded to the new room")
		default:
			t.Error("expected the join to be forwarded to the new room")
		}
	})

	t.Run("re-join of the current room does not leave it", func(t *testing.T) {
		db := &database.MockDocumentRepository{}
		defer db.AssertExpectations(t)
		db.On("GetDocumentById", 1).Return(database.Document{Id: 1, DocId: "doc-one"}, nil)

		su := &stats.MockStatsUpdater{}
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)

		ds := newTestDocServerWithStats(t, db, su)
		c := newTestClient(t, ds)

		room := newRoom(1, "1", ds)
		ds.rooms["1"] = room
		c.setRoom(room)

		ds.handleJoin(&joinMsg{client: c, identifier: Identifier{Value: "1", Set: true}})

		select {
		case <-room.leaveChan:
			t.Error("expected no leave request on an idempotent re-join")
		default:
		}

		select {
		case join := <-room.joinChan:
			assert.Equal(t, c, join.client, "expected the join to be forwarded to the room")
		default:
			t.Error("expected the join to be forwarded")
		}
	})
}

func Test_handleRelay(t *testing.T) {
	t.Run("forwards to the declared room", func(t *testing.T) {
		ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
		room := newRoom(42, "42", ds)
		ds.rooms["42"] = room

		sender := newTestClient(t, ds)
		ds.handleRelay(relayMsg{sender: sender, roomKey: "42", content: "X"})

		select {
		case change := <-room.changeChan:
			assert.Equal(t, sender, change.sender)
			assert.Equal(t, "X", change.content)
		default:
			t.Error("expected the change to be forwarded to the room")
		}
	})

	t.Run("no live room drops the event", func(t *testing.T) {
		ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
		sender := newTestClient(t, ds)

		ds.handleRelay(relayMsg{sender: sender, roomKey: "999", content: "X"})
		assert.Empty(t, ds.rooms, "expected no room to be created by a relay")
	})
}

func Test_addClient_removeClient_server(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(t, ds)

	ds.addClient(c)
	assert.Contains(t, ds.clients, c, "expected the client to be registered")

	ds.removeClient(c)
	assert.NotContains(t, ds.clients, c, "expected the client to be removed")
}

func Test_unloadRoom(t *testing.T) {
	t.Run("unloads an empty room", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
		su.On("Decr", statActiveRooms).Return(nil).Once()

		ds := newTestDocServerWithStats(t, &database.MockDocumentRepository{}, su)
		room := newRoom(42, "42", ds)
		ds.rooms["42"] = room
		go room.start()

		ds.unloadRoom("42")
		assert.NotContains(t, ds.rooms, "42", "expected the room to be removed")

		select {
		case <-room.done:
		case <-time.After(100 * time.Millisecond):
			t.Error("timeout: room did not exit")
		}
	})

	t.Run("keeps a room that regained members", func(t *testing.T) {
		ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})
		room := newRoom(42, "42", ds)
		ds.rooms["42"] = room

		c := newTestClient(t, ds)
		room.addClient(c)

		ds.unloadRoom("42")
		assert.Contains(t, ds.rooms, "42", "expected an occupied room to survive an unload request")
	})
}

func TestShutdown(t *testing.T) {
	ds := newTestDocServer(t, &database.MockDocumentRepository{}, &stats.MockStatsUpdater{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		req := <-ds.stop
		close(req.done)
	}()

	err := ds.Shutdown(ctx)
	assert.NoError(t, err, "expected successful shutdown without error")
}

// Two clients join the same document through different identifier forms;
// a change from one reaches only the other, and a save lands in the store.
func TestCollaborationScenario(t *testing.T) {
	db := &database.MockDocumentRepository{}
	defer db.AssertExpectations(t)
	doc := database.Document{Id: 42, DocId: "abc-key", Content: "initial"}
	db.On("GetDocumentByDocId", "abc-key").Return(doc, nil)
	db.On("GetDocumentById", 42).Return(doc, nil)
	db.On("UpdateDocumentContent", 42, "hello").Return(nil)

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", anyMetric).Return(nil).Times(4)
	su.On("Incr", anyMetric).Return(nil).Maybe()
	su.On("Decr", anyMetric).Return(nil).Maybe()

	ds := newTestDocServerWithStats(t, db, su)
	go ds.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ds.Shutdown(ctx))
	}()

	clientA := newTestClient(t, ds)
	clientA.sessionId = "sess-a"
	clientB := newTestClient(t, ds)
	clientB.sessionId = "sess-b"

	// A joins by alternate key, B by numeric id; both land in room "42"
	clientA.joinDocument(Identifier{Value: "abc-key", Set: true})
	waitForEvent(t, clientA, EventLoadDocument)

	clientB.joinDocument(Identifier{Value: "42", Set: true})
	waitForEvent(t, clientB, EventLoadDocument)

	// A's presence notice about B
	waitForEvent(t, clientA, EventUserJoined)

	// A edits; B sees it, A does not hear its own change
	clientA.dispatch(&ClientMessage{Event: EventTextChange, Data: []byte(`{"roomId":"42","content":"X"}`), client: clientA})
	msg := waitForEvent(t, clientB, EventReceiveChanges)
	assert.Equal(t, "X", msg.Data, "expected B to receive A's change")

	select {
	case m := <-clientA.send:
		t.Errorf("expected no echo to the sender, got %q", m.Event)
	default:
	}

	// A saves; the write lands and A is acked
	clientA.dispatch(&ClientMessage{Event: EventSaveDocument, Data: []byte(`{"docId":"42","content":"hello"}`), client: clientA})
	saved := waitForEvent(t, clientA, EventSavedDocument)
	assert.Equal(t, SavedDocument{Id: 42}, saved.Data, "expected the ack to carry the document id")
}

func waitForEvent(t *testing.T, c *Client, event string) *ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("timeout waiting for event %q", event)
			return nil
		}
	}
}
