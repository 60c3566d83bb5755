package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/codocs/go-codocs/internal/types"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	// editor snapshots can carry full document HTML
	maxMessageSize = 1 << 20
)

// Client is one websocket session. It holds membership in at most one
// document room at a time and is destroyed on disconnect.
type Client struct {
	sessionId string
	conn      *websocket.Conn
	docServer *DocServer
	log       *log.Logger
	user      types.User
	send      chan *ServerMessage
	room      *Room
	roomLock  sync.RWMutex
	stop      chan struct{}
}

func NewClient(user types.User, conn *websocket.Conn, ds *DocServer, l *log.Logger) *Client {
	return &Client{
		sessionId: shortid.MustGenerate(),
		conn:      conn,
		docServer: ds,
		log:       l,
		user:      user,
		send:      make(chan *ServerMessage, 256),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			continue
		}

		msg.client = c
		c.dispatch(&msg)
	}
}

// dispatch routes one inbound event. Synonymous event names and payload
// fields are normalized here so the core logic sees a single form. Handler
// failures are contained: nothing here may take the connection down.
func (c *Client) dispatch(msg *ClientMessage) {
	switch msg.Event {
	case EventJoinDocument, EventJoinRoom:
		var ident Identifier
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &ident); err != nil {
				c.log.Println("join: invalid identifier:", err)
				c.queueMessage(NewLoadDocument(""))
				return
			}
		}

		c.joinDocument(ident)
	case EventTextChange:
		payload, ok := c.changePayload(msg)
		if !ok {
			return
		}

		key, ok := payload.TargetRoom()
		if !ok {
			return
		}

		c.docServer.relay(c, key, payload.Content)
	case EventSaveDocument:
		payload, ok := c.changePayload(msg)
		if !ok {
			return
		}

		key, ok := payload.TargetRoom()
		if !ok {
			return
		}

		c.docServer.gateway.Enqueue(key, payload.Content, c)
	default:
		c.log.Printf("unknown event %q", msg.Event)
	}
}

// changePayload decodes the body of a text-change or save-document event.
// A missing or malformed payload is dropped silently.
func (c *Client) changePayload(msg *ClientMessage) (*ChangePayload, bool) {
	if len(msg.Data) == 0 {
		c.log.Printf("%s: empty payload", msg.Event)
		return nil, false
	}

	var payload ChangePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.log.Printf("%s: invalid payload: %v", msg.Event, err)
		return nil, false
	}

	return &payload, true
}

func (c *Client) joinDocument(ident Identifier) {
	select {
	case c.docServer.joinChan <- &joinMsg{client: c, identifier: ident}:
	default:
		c.log.Printf("joinChan full")
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	close(c.stop)
}

func (c *Client) cleanup() {
	c.docServer.deRegister(c)
	c.leaveCurrentRoom()
	c.stopClient()
}

func (c *Client) leaveCurrentRoom() {
	room := c.currentRoom()
	if room == nil {
		return
	}

	select {
	case room.leaveChan <- c:
	default:
		c.log.Printf("leaveChan full for room %q", room.key)
	}
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	c.room = r
}

// clearRoom drops the membership reference only if it still points at r,
// so a stale leave from a previous room cannot erase a newer membership.
func (c *Client) clearRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	if c.room == r {
		c.room = nil
	}
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()

	return c.room
}
