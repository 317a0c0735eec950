// Package gateway is the realtime surface: it upgrades authenticated
// clients to WebSocket, routes their commands into the game state machine
// and fans the machine's events back out to every member of a room.
package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quipround/quipround/internal/auth"
	"github.com/quipround/quipround/internal/game"
)

// Config holds the WebSocket connection tuning knobs.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// Gateway implements game.EventSink. Each room gets one dispatcher
// goroutine fed by a buffered FIFO channel; both state events and
// attach/detach requests flow through it, so every connection observes
// the same order the state machine produced.
type Gateway struct {
	manager  *game.Manager
	verifier auth.Verifier
	config   Config
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*dispatcher
}

func New(manager *game.Manager, verifier auth.Verifier, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		manager:  manager,
		verifier: verifier,
		config:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		log:   log,
		rooms: make(map[string]*dispatcher),
	}
}

// RoomEvent queues an event for fan-out. It is called from inside the
// room's critical section, so it must never block: the send is
// non-blocking against a deep buffer and an overflow drops the event
// with a warning rather than stalling the state machine.
func (gw *Gateway) RoomEvent(roomCode string, ev game.Event) {
	gw.mu.Lock()
	d := gw.rooms[roomCode]
	gw.mu.Unlock()
	if d == nil {
		// nobody connected to this room yet
		return
	}
	select {
	case d.ch <- dispatchMsg{ev: &ev}:
	default:
		gw.log.Warn().Str("room", roomCode).Str("event", ev.Type).Msg("dispatch queue full, dropping event")
	}
}

// RoomClosed tears down the room's dispatcher and closes its connections.
func (gw *Gateway) RoomClosed(roomCode string) {
	gw.mu.Lock()
	d := gw.rooms[roomCode]
	delete(gw.rooms, roomCode)
	gw.mu.Unlock()
	if d != nil {
		d.ch <- dispatchMsg{shutdown: true}
	}
}

func (gw *Gateway) dispatcherFor(room *game.Room) *dispatcher {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	d, ok := gw.rooms[room.Code]
	if !ok {
		d = &dispatcher{
			room:  room,
			ch:    make(chan dispatchMsg, 1024),
			conns: make(map[*conn]struct{}),
			log:   gw.log.With().Str("room", room.Code).Logger(),
		}
		gw.rooms[room.Code] = d
		go d.run()
	}
	return d
}

// HandleWS authenticates the request and upgrades it. Authentication
// happens before the upgrade so a bad token gets a plain 401 instead of
// a half-open socket.
func (gw *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	ident, err := gw.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	ws, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &conn{
		gw:       gw,
		ws:       ws,
		send:     make(chan []byte, 256),
		userID:   ident.ID,
		username: ident.Username,
		done:     make(chan struct{}),
		log:      gw.log.With().Str("user", ident.ID).Logger(),
	}
	gw.log.Info().Str("user", ident.ID).Str("username", ident.Username).Msg("websocket connected")

	go c.writePump()
	go c.readPump()
}

// bearerToken pulls the credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token
// query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return r.URL.Query().Get("token")
}

type dispatchMsg struct {
	ev       *game.Event
	attach   *conn
	detach   *conn
	shutdown bool
}

// dispatcher serializes everything a room's connections observe. An
// attach is answered with a full snapshot before any later event, and
// because every event payload carries absolute values, an event that
// raced ahead of the snapshot is redundant rather than corrupting.
type dispatcher struct {
	room  *game.Room
	ch    chan dispatchMsg
	conns map[*conn]struct{}
	log   zerolog.Logger
}

func (d *dispatcher) run() {
	for msg := range d.ch {
		switch {
		case msg.shutdown:
			for c := range d.conns {
				c.closeWS()
			}
			return
		case msg.attach != nil:
			d.handleAttach(msg.attach)
		case msg.detach != nil:
			d.handleDetach(msg.detach)
		case msg.ev != nil:
			d.broadcast(*msg.ev)
		}
	}
}

func (d *dispatcher) handleAttach(c *conn) {
	d.conns[c] = struct{}{}
	d.room.SetConnected(c.userID, true)
	snap := d.room.SnapshotFor(c.userID)
	frame, err := encodeEvent(game.Event{Type: game.EventRoomState, Data: snap})
	if err != nil {
		d.log.Error().Err(err).Msg("encode snapshot failed")
		return
	}
	if !c.enqueue(frame) {
		d.evict(c)
	}
}

func (d *dispatcher) handleDetach(c *conn) {
	if _, ok := d.conns[c]; !ok {
		return
	}
	delete(d.conns, c)
	for other := range d.conns {
		if other.userID == c.userID {
			return
		}
	}
	d.room.SetConnected(c.userID, false)
}

func (d *dispatcher) broadcast(ev game.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		d.log.Error().Err(err).Str("event", ev.Type).Msg("encode event failed")
		return
	}
	for c := range d.conns {
		if !c.enqueue(frame) {
			d.evict(c)
		}
	}
}

// evict drops a connection whose send buffer is full. Closing the
// socket makes both pumps exit; the read pump's cleanup sends the
// detach, which is idempotent.
func (d *dispatcher) evict(c *conn) {
	d.log.Warn().Str("user", c.userID).Msg("send buffer full, dropping connection")
	delete(d.conns, c)
	c.closeWS()
}
