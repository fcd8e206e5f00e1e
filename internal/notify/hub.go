// Package notify fans "board changed" signals out to every observer of a
// board. Signals carry no diff: receivers re-fetch the board.
package notify

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/apperr"
)

// TypeBoardUpdate is the only signal type.
const TypeBoardUpdate = "BOARD_UPDATE"

// Signal tells observers of BoardID that its state changed.
type Signal struct {
	Type    string `json:"type"`
	BoardID string `json:"board_id"`
	Message string `json:"message,omitempty"`
}

// NewSignal returns a board update signal.
func NewSignal(boardID, message string) Signal {
	return Signal{Type: TypeBoardUpdate, BoardID: boardID, Message: message}
}

// Subscriber receives signals for the boards it joined. Deliver must not
// block; an error drops the subscriber from the hub.
type Subscriber interface {
	Deliver(Signal) error
}

// Publisher emits board-changed signals after a committed mutation.
// Delivery is best-effort and never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, boardID, message string)
}

// Hub is the in-process subscriber registry, keyed by board ID. Construct one
// with NewHub at startup and pass it to whatever publishes or subscribes.
type Hub struct {
	mu     sync.RWMutex
	boards map[string]map[Subscriber]struct{}
	logger *log.Logger
}

// NewHub returns an empty hub that logs delivery failures to logger.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{boards: make(map[string]map[Subscriber]struct{}), logger: logger}
}

// Join subscribes s to boardID. Joining twice is a no-op.
func (h *Hub) Join(boardID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.boards[boardID]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.boards[boardID] = subs
	}
	subs[s] = struct{}{}
}

// Leave unsubscribes s from boardID.
func (h *Hub) Leave(boardID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(boardID, s)
}

func (h *Hub) leaveLocked(boardID string, s Subscriber) {
	subs, ok := h.boards[boardID]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.boards, boardID)
	}
}

// LeaveAll unsubscribes s from every board, as on disconnect.
func (h *Hub) LeaveAll(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for boardID := range h.boards {
		h.leaveLocked(boardID, s)
	}
}

// Subscribers returns how many subscribers observe boardID.
func (h *Hub) Subscribers(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[boardID])
}

// Publish delivers a board update signal to local subscribers.
func (h *Hub) Publish(_ context.Context, boardID, message string) {
	h.Broadcast(NewSignal(boardID, message))
}

// Broadcast delivers sig to every subscriber of sig.BoardID. Subscribers
// that fail are logged and dropped; the failure is not returned.
func (h *Hub) Broadcast(sig Signal) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.boards[sig.BoardID]))
	for s := range h.boards[sig.BoardID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.Deliver(sig); err != nil {
			h.logger.WithFields(log.Fields{
				"board_id": sig.BoardID,
				"kind":     apperr.KindDelivery,
			}).Warn(fmt.Errorf("%w: %w", apperr.ErrDelivery, err))
			h.Leave(sig.BoardID, s)
		}
	}
}

// Subscription is a channel-backed subscriber for one board. Signals that
// arrive while one is already pending are coalesced, since either one only
// means "re-fetch".
type Subscription struct {
	C <-chan Signal

	ch      chan Signal
	hub     *Hub
	boardID string
	once    sync.Once
}

// Subscribe registers a channel subscriber for boardID. Call Close when done.
func (h *Hub) Subscribe(boardID string) *Subscription {
	ch := make(chan Signal, 1)
	s := &Subscription{C: ch, ch: ch, hub: h, boardID: boardID}
	h.Join(boardID, s)
	return s
}

// Deliver implements Subscriber.
func (s *Subscription) Deliver(sig Signal) error {
	select {
	case s.ch <- sig:
	default:
	}
	return nil
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.Leave(s.boardID, s) })
}

// Discard is a Publisher that drops every signal.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, string, string) {}
