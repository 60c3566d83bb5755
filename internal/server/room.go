package server

import (
	"log"
	"sync"
	"time"
)

const idleRoomTimeout = time.Second * 30

// Room is the ephemeral broadcast group for one document, keyed by the
// document's stringified primary id. It routes events between the members
// currently editing the document; it does not own the document content.
type Room struct {
	id         int
	key        string
	ds         *DocServer
	joinChan   chan joinRequest
	leaveChan  chan *Client
	changeChan chan changeRequest
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
	log        *log.Logger
	// killTimer unloads the room once the last member is gone
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

type joinRequest struct {
	client *Client
	// content is the snapshot delivered to the joining client only
	content string
}

type changeRequest struct {
	sender  *Client
	content string
}

func newRoom(docId int, key string, ds *DocServer) *Room {
	r := &Room{
		id:         docId,
		key:        key,
		ds:         ds,
		joinChan:   make(chan joinRequest, 256),
		leaveChan:  make(chan *Client, 256),
		changeChan: make(chan changeRequest, 256),
		clients:    make(map[*Client]struct{}),
		log:        ds.log,
		exit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	// the timer must exist before start runs: the server loop removes
	// members directly when a client switches rooms
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	return r
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.key)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case client := <-r.leaveChan:
			r.handleLeave(client)
		case change := <-r.changeChan:
			r.handleChange(change)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) handleJoin(join joinRequest) {
	r.killTimer.Stop()

	c := join.client
	r.addClient(c)

	// current content goes to the joining client only, never broadcast
	c.queueMessage(NewLoadDocument(join.content))

	joined := NewUserJoined(c.sessionId)
	joined.SkipClient = c
	r.broadcast(joined)
}

func (r *Room) handleLeave(c *Client) {
	r.removeClient(c)
}

// handleChange relays edited content to every member except the sender.
// The sender itself is not required to be a member; the event is delivered
// to whoever is.
func (r *Room) handleChange(change changeRequest) {
	msg := NewReceiveChanges(change.content)
	msg.SkipClient = change.sender
	r.broadcast(msg)

	r.ds.stats.Incr(statChangesRelayed)
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.key)
	select {
	case r.ds.unloadRoomChan <- r.key:
	default:
		// retry on the next tick if the server is busy
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.key)

	r.clientLock.Lock()
	for c := range r.clients {
		delete(r.clients, c)
		c.clearRoom(r)
	}
	r.clientLock.Unlock()

	close(r.done)
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.setRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		r.log.Printf("client %q not found in room %q", c.sessionId, r.key)
		return
	}

	delete(r.clients, c)
	c.clearRoom(r)

	r.log.Printf("removed client %q from room %q", c.sessionId, r.key)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.key)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) memberCount() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return len(r.clients)
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
