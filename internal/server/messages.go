package server

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Client-to-server events. EventJoinRoom is an older synonym of
// EventJoinDocument kept for clients that predate the rename; both route
// to the same join logic.
const (
	EventJoinDocument = "join-document"
	EventJoinRoom     = "join-room"
	EventTextChange   = "text-change"
	EventSaveDocument = "save-document"
)

// Server-to-client events.
const (
	EventLoadDocument   = "load-document"
	EventReceiveChanges = "receive-changes"
	EventUserJoined     = "user-joined"
	EventSavedDocument  = "saved-document"
)

type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	client *Client
}

// Identifier is a wire value that arrives as either a JSON string or a
// JSON number. Set distinguishes an absent or null value from the valid
// identifier 0, which must not be treated as empty.
type Identifier struct {
	Value string
	Set   bool
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.Value = s
		id.Set = true
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	id.Value = n.String()
	id.Set = true
	return nil
}

// ChangePayload is the body of text-change and save-document events. The
// docId field is a legacy synonym of roomId; roomId wins when both are
// present.
type ChangePayload struct {
	RoomId  Identifier `json:"roomId"`
	DocId   Identifier `json:"docId"`
	Content string     `json:"content"`
}

func (p *ChangePayload) TargetRoom() (string, bool) {
	if p.RoomId.Set {
		return p.RoomId.Value, true
	}
	if p.DocId.Set {
		return p.DocId.Value, true
	}
	return "", false
}

type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`

	// SkipClient excludes the originator from a room broadcast.
	SkipClient *Client `json:"-"`
}

type UserJoined struct {
	SocketId string `json:"socketId"`
}

type SavedDocument struct {
	Id int `json:"id"`
}

func NewLoadDocument(content string) *ServerMessage {
	return &ServerMessage{
		Event: EventLoadDocument,
		Data:  content,
	}
}

func NewReceiveChanges(content string) *ServerMessage {
	return &ServerMessage{
		Event: EventReceiveChanges,
		Data:  content,
	}
}

func NewUserJoined(socketId string) *ServerMessage {
	return &ServerMessage{
		Event: EventUserJoined,
		Data:  UserJoined{SocketId: socketId},
	}
}

func NewSavedDocument(id int) *ServerMessage {
	return &ServerMessage{
		Event: EventSavedDocument,
		Data:  SavedDocument{Id: id},
	}
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// roomKeyForDocument is the canonical room key: the document's primary id,
// stringified. Both identifier forms converge on it.
func roomKeyForDocument(id int) string {
	return strconv.Itoa(id)
}
