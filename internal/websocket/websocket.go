package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/game"
	"go.uber.org/zap"
)

// =============================================================================
// CONNECTION SETTINGS
// =============================================================================

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// =============================================================================
// HUB
// =============================================================================

// Hub owns every live socket and delivers engine output to them by connection id.
type Hub struct {
	engine *game.Engine
	log    *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// Client is one upgraded socket. The engine only ever sees its id.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(engine *game.Engine, logger *zap.Logger) *Hub {
	return &Hub{
		engine:  engine,
		log:     logger,
		clients: make(map[string]*Client),
	}
}

// SendTo queues msg for connID. A client whose buffer is full is dropped.
func (h *Hub) SendTo(connID string, msg internal.Message[any]) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("[SendTo] marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	select {
	case c.send <- payload:
	case <-c.done:
	default:
		h.log.Warn("[SendTo] send buffer full, closing connection", zap.String("conn", connID))
		c.close()
	}
}

// Len reports the number of open sockets.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll shuts every socket, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// HandleWebSocket upgrades the request and serves the socket until it closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("[HandleWebSocket] upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)
	h.log.Debug("[HandleWebSocket] connection opened", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

	go c.writePump()
	c.readPump()
}

// close signals writePump to send a close frame and release the socket.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump decodes intents until the socket fails, then reports the disconnect.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.hub.engine.HandleDisconnect(c.id)
		c.hub.log.Debug("[readPump] connection closed", zap.String("conn", c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Info("[readPump] unexpected close", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}

		var msg internal.InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.reject(c, "", fmt.Errorf("%w: malformed message", game.ErrIllegalIntent))
			continue
		}
		c.hub.dispatch(c, msg)
	}
}

// writePump is the only writer on the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// =============================================================================
// INTENT DISPATCH
// =============================================================================

// decode unmarshals an intent payload. A missing payload decodes to the zero value.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: malformed %T payload", game.ErrIllegalIntent, v)
	}
	return v, nil
}

func withData[T any](raw json.RawMessage, fn func(T) error) error {
	data, err := decode[T](raw)
	if err != nil {
		return err
	}
	return fn(data)
}

func (h *Hub) dispatch(c *Client, msg internal.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("[dispatch] intent panicked", zap.String("conn", c.id), zap.String("type", msg.Type), zap.Any("panic", r))
			h.reject(c, msg.Type, fmt.Errorf("internal error handling %s", msg.Type))
		}
	}()

	e := h.engine
	var err error

	switch msg.Type {
	case internal.MsgCreateRoom:
		_, err = e.CreateRoom(c.id)
	case internal.MsgRejoinHost:
		err = withData(msg.Data, func(d internal.RejoinHostData) error { return e.RejoinHost(c.id, d) })
	case internal.MsgJoinRoom:
		err = withData(msg.Data, func(d internal.JoinRoomData) error { return e.JoinRoom(c.id, d) })
	case internal.MsgSelectCharacter:
		err = withData(msg.Data, func(d internal.SelectCharacterData) error { return e.SelectCharacter(c.id, d) })
	case internal.MsgStartGame:
		err = e.StartGame(c.id)
	case internal.MsgProposeTeam:
		err = withData(msg.Data, func(d internal.ProposeTeamData) error { return e.ProposeTeam(c.id, d) })
	case internal.MsgProposeFinalTeam:
		err = withData(msg.Data, func(d internal.ProposeFinalTeamData) error { return e.ProposeFinalTeam(c.id, d) })
	case internal.MsgSubmitVote:
		err = withData(msg.Data, func(d internal.SubmitVoteData) error { return e.SubmitVote(c.id, d) })
	case internal.MsgSubmitCards:
		err = withData(msg.Data, func(d internal.SubmitCardsData) error { return e.SubmitCards(c.id, d) })
	case internal.MsgCollectClues:
		err = e.CollectClues(c.id)
	case internal.MsgDeclareClues:
		err = withData(msg.Data, func(d internal.DeclareCluesData) error { return e.DeclareClues(c.id, d) })
	case internal.MsgFinalDeclaration:
		err = withData(msg.Data, func(d internal.FinalDeclarationData) error { return e.SubmitFinalDeclaration(c.id, d) })
	case internal.MsgSubmitFinalVote:
		err = withData(msg.Data, func(d internal.Accusation) error { return e.SubmitFinalVote(c.id, d) })
	case internal.MsgSubmitTieBreaker:
		err = withData(msg.Data, func(d internal.TieBreakerData) error { return e.SubmitTieBreaker(c.id, d) })
	case internal.MsgPlayAgain:
		err = e.PlayAgain(c.id)
	default:
		err = fmt.Errorf("%w: unknown message type %q", game.ErrIllegalIntent, msg.Type)
	}

	if err != nil {
		h.reject(c, msg.Type, err)
	}
}

// reject reports a refused intent to the sender only. The socket stays open.
func (h *Hub) reject(c *Client, msgType string, err error) {
	kind := game.ErrorKind(err)
	evt := internal.EvtError
	if msgType == internal.MsgJoinRoom {
		evt = internal.EvtJoinError
	}

	h.log.Debug("[reject] intent refused",
		zap.String("conn", c.id),
		zap.String("type", msgType),
		zap.String("kind", kind),
		zap.Error(err))

	h.SendTo(c.id, internal.Message[any]{
		Type: evt,
		Data: internal.ErrorData{Kind: kind, Message: err.Error()},
	})
}
