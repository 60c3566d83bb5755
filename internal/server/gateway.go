package server

import (
	"log"
	"strconv"

	"github.com/codocs/go-codocs/internal/database"
	"github.com/codocs/go-codocs/internal/stats"
)

// Gateway owns the write path from live rooms to the document store. A
// single worker drains the queue, so writes apply in the order they were
// accepted and never block the relay path. A failed write is logged and
// swallowed; the live session carries on without durability feedback.
type Gateway struct {
	db       database.DocumentRepository
	log      *log.Logger
	stats    stats.StatsProvider
	requests chan persistRequest
	done     chan struct{}
}

type persistRequest struct {
	roomKey string
	content string
	client  *Client
}

func NewGateway(logger *log.Logger, db database.DocumentRepository, su stats.StatsProvider) *Gateway {
	return &Gateway{
		db:       db,
		log:      logger,
		stats:    su,
		requests: make(chan persistRequest, 256),
		done:     make(chan struct{}),
	}
}

func (g *Gateway) Run() {
	go func() {
		for req := range g.requests {
			g.persist(req)
		}
		close(g.done)
	}()
}

// Enqueue hands a save off to the worker. Returns false if the queue is
// full, in which case the save is dropped.
func (g *Gateway) Enqueue(roomKey, content string, client *Client) bool {
	select {
	case g.requests <- persistRequest{roomKey: roomKey, content: content, client: client}:
		return true
	default:
		g.log.Printf("persist queue full, dropping save for room %q", roomKey)
		return false
	}
}

func (g *Gateway) persist(req persistRequest) {
	id, err := strconv.Atoi(req.roomKey)
	if err != nil {
		g.log.Printf("save-document: invalid room id: %q", req.roomKey)
		return
	}

	if err := g.db.UpdateDocumentContent(id, req.content); err != nil {
		g.log.Printf("save-document: update content for document %d: %v", id, err)
		return
	}

	g.stats.Incr(statDocumentsSaved)

	if req.client != nil {
		req.client.queueMessage(NewSavedDocument(id))
	}
}

func (g *Gateway) Stop() {
	close(g.requests)
	<-g.done
}
