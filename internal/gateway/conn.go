package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quipround/quipround/internal/game"
)

// conn is one client socket. Commands are handled on the read pump
// goroutine, so per-connection command handling is naturally serial;
// outbound frames all funnel through the send channel and the write
// pump is the only goroutine touching the socket for writes.
type conn struct {
	gw       *Gateway
	ws       *websocket.Conn
	send     chan []byte
	userID   string
	username string
	log      zerolog.Logger

	// owned by the read pump goroutine
	room *game.Room
	disp *dispatcher

	done      chan struct{}
	closeOnce sync.Once
}

// closeWS shuts the socket down exactly once. The send channel is never
// closed: the dispatcher may still hold a reference and enqueue into it,
// so the write pump exits via done instead.
func (c *conn) closeWS() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// enqueue hands a frame to the write pump without blocking. A false
// return means the client is not keeping up.
func (c *conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.gw.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeWS()
	}()

	for {
		select {
		case <-c.done:
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) readPump() {
	defer func() {
		c.detach()
		c.closeWS()
		c.log.Info().Msg("websocket disconnected")
	}()

	c.ws.SetReadLimit(c.gw.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.enqueue(errorFrame("invalid_argument", "malformed message"))
			continue
		}
		c.handleCommand(env)
	}
}

func (c *conn) handleCommand(env Envelope) {
	ctx := context.Background()

	switch env.Type {
	case opJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomCode == "" {
			c.enqueue(ackFrame(env.Type, game.ErrRoomNotFound))
			return
		}
		room, err := c.gw.manager.Get(p.RoomCode)
		if err == nil {
			_, err = room.Join(ctx, c.userID, c.username)
		}
		c.enqueue(ackFrame(env.Type, err))
		if err != nil {
			return
		}
		if c.disp != nil && c.room != room {
			c.detach()
		}
		c.room = room
		c.disp = c.gw.dispatcherFor(room)
		c.disp.ch <- dispatchMsg{attach: c}

	case opLeaveRoom:
		if c.room == nil {
			c.enqueue(ackFrame(env.Type, game.ErrNotMember))
			return
		}
		err := c.gw.manager.Leave(ctx, c.room.Code, c.userID)
		c.enqueue(ackFrame(env.Type, err))
		if err == nil {
			c.detach()
		}

	case opStartGame:
		c.roomCommand(env.Type, func(r *game.Room) error {
			return r.StartGame(ctx, c.userID)
		})

	case opSubmitAnswer:
		var p submitAnswerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.enqueue(ackFrame(env.Type, game.ErrInvalidContent))
			return
		}
		c.roomCommand(env.Type, func(r *game.Room) error {
			_, _, err := r.SubmitAnswer(ctx, c.userID, p.Content)
			return err
		})

	case opStartVoting:
		c.roomCommand(env.Type, func(r *game.Room) error {
			return r.StartVoting(ctx, c.userID)
		})

	case opSubmitVote:
		var p submitVotePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.AnswerID == "" {
			c.enqueue(ackFrame(env.Type, game.ErrInvalidTarget))
			return
		}
		c.roomCommand(env.Type, func(r *game.Room) error {
			_, err := r.SubmitVote(ctx, c.userID, p.AnswerID)
			return err
		})

	case opEndRound:
		c.roomCommand(env.Type, func(r *game.Room) error {
			return r.EndRound(ctx, c.userID)
		})

	case opNextRound:
		c.roomCommand(env.Type, func(r *game.Room) error {
			return r.NextRound(ctx, c.userID)
		})

	default:
		c.enqueue(errorFrame("invalid_argument", "unknown command: "+env.Type))
	}
}

func (c *conn) roomCommand(op string, fn func(r *game.Room) error) {
	if c.room == nil {
		c.enqueue(ackFrame(op, game.ErrNotMember))
		return
	}
	c.enqueue(ackFrame(op, fn(c.room)))
}

func (c *conn) detach() {
	if c.disp == nil {
		return
	}
	select {
	case c.disp.ch <- dispatchMsg{detach: c}:
	default:
		// dispatcher gone or saturated; eviction already removed us
	}
	c.room = nil
	c.disp = nil
}
