package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/codocs/go-codocs/internal/database"
	"github.com/codocs/go-codocs/internal/stats"
)

const (
	statActiveConnections = "ActiveConnections"
	statActiveRooms       = "ActiveRooms"
	statChangesRelayed    = "ChangesRelayed"
	statDocumentsSaved    = "DocumentsSaved"
)

// DocServer owns the room table and serializes joins and relays through
// one run loop. Funneling joins through the loop means a connection's join
// requests resolve in order, so two racing joins cannot leave it with
// indeterminate membership.
type DocServer struct {
	log            *log.Logger
	db             database.DocumentRepository
	stats          stats.StatsProvider
	resolver       *Resolver
	gateway        *Gateway
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *joinMsg
	relayChan      chan relayMsg
	registerChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan stopRequest
	done           chan struct{}
}

type joinMsg struct {
	client     *Client
	identifier Identifier
}

type relayMsg struct {
	sender  *Client
	roomKey string
	content string
}

type stopRequest struct {
	done chan struct{}
}

func NewDocServer(logger *log.Logger, db database.DocumentRepository, su stats.StatsProvider) (*DocServer, error) {
	for _, name := range []string{statActiveConnections, statActiveRooms, statChangesRelayed, statDocumentsSaved} {
		su.RegisterMetric(name)
	}

	return &DocServer{
		log:            logger,
		db:             db,
		stats:          su,
		resolver:       NewResolver(db),
		gateway:        NewGateway(logger, db, su),
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *joinMsg, 256),
		relayChan:      make(chan relayMsg, 256),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopRequest),
		done:           make(chan struct{}),
	}, nil
}

func (ds *DocServer) Run() {
	ds.gateway.Run()

	for {
		select {
		case join := <-ds.joinChan:
			ds.handleJoin(join)
		case relay := <-ds.relayChan:
			ds.handleRelay(relay)
		case client := <-ds.registerChan:
			ds.log.Printf("adding connection %q", client.sessionId)
			ds.addClient(client)
			ds.stats.Incr(statActiveConnections)
		case client := <-ds.deRegisterChan:
			ds.log.Printf("removing connection %q", client.sessionId)
			ds.removeClient(client)
			ds.stats.Decr(statActiveConnections)
		case key := <-ds.unloadRoomChan:
			ds.unloadRoom(key)
		case req := <-ds.stop:
			ds.log.Println("shutting down rooms")
			for _, r := range ds.rooms {
				close(r.exit)
				<-r.done
			}

			ds.gateway.Stop()
			close(req.done)
			return
		}
	}
}

// handleJoin resolves the identifier, moves the client out of any previous
// room, and forwards the join to the target room. A failed resolution
// degrades to an empty load-document snapshot; resolution errors beyond
// NotFound are logged and degrade the same way.
func (ds *DocServer) handleJoin(join *joinMsg) {
	res, err := ds.resolver.Resolve(join.identifier)
	if err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			ds.log.Println("resolve:", err)
		}
		join.client.queueMessage(NewLoadDocument(""))
		return
	}

	room, ok := ds.rooms[res.RoomKey]
	if !ok {
		room = newRoom(res.Doc.Id, res.RoomKey, ds)
		ds.rooms[res.RoomKey] = room
		go room.start()
		ds.stats.Incr(statActiveRooms)
	}

	// a connection may be a member of at most one document room. The
	// removal happens here, not through the old room's leave channel:
	// the run loop owns both rooms, so the client is never in two member
	// sets at once and a stale broadcast cannot slip out of the old room.
	if prev := join.client.currentRoom(); prev != nil && prev != room {
		prev.removeClient(join.client)
	}

	select {
	case room.joinChan <- joinRequest{client: join.client, content: res.Doc.Content}:
	default:
		ds.log.Printf("join channel full on room %q", room.key)
	}
}

// handleRelay routes a text-change to the client-declared room. The room
// is looked up in the server table rather than the sender's membership;
// with no live room there is nobody to deliver to and the event is
// dropped.
func (ds *DocServer) handleRelay(relay relayMsg) {
	room, ok := ds.rooms[relay.roomKey]
	if !ok {
		return
	}

	select {
	case room.changeChan <- changeRequest{sender: relay.sender, content: relay.content}:
	default:
		ds.log.Printf("changeChan full for room %q", room.key)
	}
}

func (ds *DocServer) relay(sender *Client, roomKey, content string) {
	select {
	case ds.relayChan <- relayMsg{sender: sender, roomKey: roomKey, content: content}:
	default:
		ds.log.Printf("relayChan full, dropping change for room %q", roomKey)
	}
}

func (ds *DocServer) RegisterClient(c *Client) {
	ds.registerChan <- c
}

func (ds *DocServer) deRegister(c *Client) {
	ds.deRegisterChan <- c
}

func (ds *DocServer) addClient(c *Client) {
	ds.clientsLock.Lock()
	defer ds.clientsLock.Unlock()
	ds.clients[c] = struct{}{}
}

func (ds *DocServer) removeClient(c *Client) {
	ds.clientsLock.Lock()
	defer ds.clientsLock.Unlock()
	delete(ds.clients, c)
}

func (ds *DocServer) unloadRoom(key string) {
	r, ok := ds.rooms[key]
	if !ok {
		return
	}

	if r.memberCount() > 0 {
		// a client joined between the timeout and the unload
		return
	}

	delete(ds.rooms, key)
	close(r.exit)
	<-r.done
	ds.stats.Decr(statActiveRooms)
	ds.log.Printf("unloaded room %q", key)
}

func (ds *DocServer) Shutdown(ctx context.Context) error {
	ds.clientsLock.Lock()
	for c := range ds.clients {
		close(c.stop)
	}
	ds.clientsLock.Unlock()

	req := stopRequest{done: make(chan struct{})}
	select {
	case ds.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
