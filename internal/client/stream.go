package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/notify"
)

// Stream carries board update signals from the server's websocket. C is
// closed when the connection ends; Err then reports why.
//
// A consumer slower than the server never stalls the connection: signals
// waiting for delivery are coalesced to one per board.
type Stream struct {
	C <-chan notify.Signal

	conn     *websocket.Conn
	done     chan struct{}
	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	mu      sync.Mutex
	pending []notify.Signal
	err     error
	closed  bool
}

// Subscribe opens the websocket and joins each board. The stream runs until
// ctx is cancelled or the server closes the connection. A refused join ends
// the stream with an Unauthorized error.
func (c *Client) Subscribe(ctx context.Context, boardIDs ...string) (*Stream, error) {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: subscribe: %w", apperr.FromStatus(resp.StatusCode, err.Error()))
		}
		return nil, fmt.Errorf("client: subscribe: %w", err)
	}
	for _, id := range boardIDs {
		if err := conn.WriteJSON(notify.Message{Type: notify.TypeJoinBoard, Data: id}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("client: join board %s: %w", id, err)
		}
	}

	ch := make(chan notify.Signal)
	s := &Stream{
		C:    ch,
		conn: conn,
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-s.done:
		}
	}()
	go s.read(ctx)
	go s.forward(ctx, ch)
	return s, nil
}

func (s *Stream) read(ctx context.Context) {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.fail(fmt.Errorf("client: stream: %w", err))
			}
			return
		}
		var sig notify.Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			continue
		}
		switch sig.Type {
		case notify.TypeBoardUpdate:
			s.queue(sig)
		case notify.TypeError:
			var msg notify.Message
			json.Unmarshal(data, &msg)
			s.fail(fmt.Errorf("client: stream: %w: %s", apperr.ErrUnauthorized, msg.Data))
			s.conn.Close()
			return
		}
	}
}

// queue records sig without blocking the read loop. A board that is already
// waiting keeps its place.
func (s *Stream) queue(sig notify.Signal) {
	s.mu.Lock()
	queued := false
	for _, p := range s.pending {
		if p.BoardID == sig.BoardID {
			queued = true
			break
		}
	}
	if !queued {
		s.pending = append(s.pending, sig)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stream) next() (notify.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return notify.Signal{}, false
	}
	sig := s.pending[0]
	s.pending = s.pending[1:]
	return sig, true
}

// forward hands queued signals to the consumer at its pace and closes ch
// once the connection has ended and the queue is drained.
func (s *Stream) forward(ctx context.Context, ch chan<- notify.Signal) {
	defer close(ch)
	for {
		sig, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				if sig, ok = s.next(); !ok {
					return
				}
			case <-ctx.Done():
				return
			case <-s.quit:
				return
			}
		}
		select {
		case ch <- sig:
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		}
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

// Err returns the error that ended the stream, or nil if it is still open
// or was closed by the caller.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.quitOnce.Do(func() { close(s.quit) })
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
