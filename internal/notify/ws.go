package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/apperr"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Signals buffered per peer before it is considered stalled.
	sendBuffer = 16
)

// Inbound message types.
const (
	TypeJoinBoard  = "join_board"
	TypeLeaveBoard = "leave_board"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Message is the envelope clients send over the websocket.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// Authorizer decides whether userID may observe boardID.
type Authorizer func(ctx context.Context, userID, boardID string) error

var errPeerStalled = errors.New("peer send buffer full")

// outbound is one queued frame. Signals keep their board so access can be
// checked again right before they are written.
type outbound struct {
	data    []byte
	boardID string
}

// Peer is one websocket connection. It subscribes to boards on request and
// forwards their signals.
type Peer struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan outbound
	userID    string
	authorize Authorizer
	logger    *log.Entry

	closeOnce sync.Once
	done      chan struct{}
}

// NewPeer wraps an upgraded connection for userID.
func NewPeer(hub *Hub, conn *websocket.Conn, userID string, authorize Authorizer) *Peer {
	return &Peer{
		hub:       hub,
		conn:      conn,
		send:      make(chan outbound, sendBuffer),
		userID:    userID,
		authorize: authorize,
		logger:    hub.logger.WithField("user_id", userID),
		done:      make(chan struct{}),
	}
}

// Serve runs the peer until the connection closes. The peer leaves every
// board on return.
func (p *Peer) Serve(ctx context.Context) {
	go p.writePump(ctx)
	p.readPump(ctx)
}

// Deliver implements Subscriber. A peer whose buffer is full is closed.
func (p *Peer) Deliver(sig Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return errors.New("peer closed")
	default:
	}
	select {
	case p.send <- outbound{data: data, boardID: sig.BoardID}:
		return nil
	default:
		p.close()
		return errPeerStalled
	}
}

// recheck confirms the user may still observe out.boardID. A member removed
// while connected leaves the board and gets an error frame in place of the
// signal. A deleted board's last signal still goes out so viewers re-fetch
// and find it gone. Lookup failures deliver the signal.
func (p *Peer) recheck(ctx context.Context, out outbound) outbound {
	err := p.authorize(ctx, p.userID, out.boardID)
	switch {
	case err == nil:
		return out
	case errors.Is(err, apperr.ErrUnauthorized):
		p.hub.Leave(out.boardID, p)
		p.logger.WithField("board_id", out.boardID).WithError(err).Info("access revoked")
		data, merr := json.Marshal(Message{Type: TypeError, Data: err.Error()})
		if merr != nil {
			return outbound{}
		}
		return outbound{data: data}
	case errors.Is(err, apperr.ErrNotFound):
		p.hub.Leave(out.boardID, p)
		return out
	}
	p.logger.WithField("board_id", out.boardID).WithError(err).Warn("membership recheck failed")
	return out
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

func (p *Peer) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case p.send <- outbound{data: data}:
	case <-p.done:
	default:
	}
}

func (p *Peer) readPump(ctx context.Context) {
	defer func() {
		p.hub.LeaveAll(p)
		p.close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.logger.WithError(err).Debug("websocket read")
			}
			return
		}

		switch msg.Type {
		case TypeJoinBoard:
			if err := p.authorize(ctx, p.userID, msg.Data); err != nil {
				p.logger.WithField("board_id", msg.Data).WithError(err).Info("join refused")
				p.reply(Message{Type: TypeError, Data: err.Error()})
				continue
			}
			p.hub.Join(msg.Data, p)
			p.logger.WithField("board_id", msg.Data).Debug("joined board")
		case TypeLeaveBoard:
			p.hub.Leave(msg.Data, p)
		case TypePing:
			p.reply(Message{Type: TypePong, Data: time.Now().UTC().Format(time.RFC3339)})
		default:
			p.reply(Message{Type: TypeError, Data: "unknown message type " + msg.Type})
		}
	}
}

func (p *Peer) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()

	for {
		select {
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case out := <-p.send:
			if out.boardID != "" {
				out = p.recheck(ctx, out)
				if out.data == nil {
					continue
				}
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, out.data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
