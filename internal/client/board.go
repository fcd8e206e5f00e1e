package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/notify"
	"github.com/zulandar/switchyard/internal/position"
)

// API is the subset of the server API a Board session mutates through.
// *Client implements it.
type API interface {
	Board(ctx context.Context, boardID string) (*models.BoardDetail, error)
	MoveCard(ctx context.Context, cardID, listID string, to int) (*models.Card, error)
	MoveList(ctx context.Context, listID, boardID string, to int) (*models.List, error)
	UpdateCard(ctx context.Context, cardID string, patch models.CardPatch) (*models.Card, error)
	DeleteCard(ctx context.Context, cardID string) error
	DeleteList(ctx context.Context, listID string) error
	SetWIPLimit(ctx context.Context, listID string, limit *int) (*models.List, error)
}

var _ API = (*Client)(nil)

// Board is a local view of one board. Mutations are applied locally first
// and rolled back if the server rejects them. Server state only ever arrives
// through Refresh, which replaces the whole view.
//
// The view is the last server state with every local edit since then
// replayed on top. Rolling back one edit rebuilds the view without it, so
// other edits still in flight survive.
type Board struct {
	api API
	id  string

	mu       sync.Mutex
	base     *models.BoardDetail
	applied  []*localEdit
	state    *models.BoardDetail
	onChange func(*models.BoardDetail)
}

// localEdit is one optimistic change, kept until the next Refresh so the
// view can be rebuilt.
type localEdit struct {
	apply func(*models.BoardDetail) error
}

// NewBoard returns an empty session for boardID. Call Refresh to load it.
func NewBoard(api API, boardID string) *Board {
	return &Board{api: api, id: boardID}
}

// ID returns the board ID.
func (b *Board) ID() string {
	return b.id
}

// OnChange registers fn to run with a copy of the view after every local or
// server-driven change. fn runs with the session locked and must not call
// back into it.
func (b *Board) OnChange(fn func(*models.BoardDetail)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// State returns a copy of the current view, or nil before the first Refresh.
func (b *Board) State() *models.BoardDetail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

// Refresh replaces the view with the server's.
func (b *Board) Refresh(ctx context.Context) error {
	d, err := b.api.Board(ctx, b.id)
	if err != nil {
		return fmt.Errorf("client: refresh board %s: %w", b.id, err)
	}
	b.mu.Lock()
	b.base = d
	b.applied = nil
	b.state = d.Clone()
	b.changedLocked()
	b.mu.Unlock()
	return nil
}

// Watch refreshes the view for every signal about this board until signals
// closes or ctx is done. Refresh failures are returned to the caller.
func (b *Board) Watch(ctx context.Context, signals <-chan notify.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if sig.BoardID != b.id {
				continue
			}
			if err := b.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}

func (b *Board) changedLocked() {
	if b.onChange != nil && b.state != nil {
		b.onChange(b.state.Clone())
	}
}

// mutate applies edit to the view, then runs call. If call fails the edit
// is withdrawn: the view is rebuilt from the last server state with the
// remaining edits replayed. An edit made before the latest Refresh has
// nothing to withdraw.
func (b *Board) mutate(ctx context.Context, edit func(*models.BoardDetail) error, call func(context.Context) error) error {
	b.mu.Lock()
	if b.state == nil {
		b.mu.Unlock()
		return fmt.Errorf("client: board %s not loaded", b.id)
	}
	next := b.state.Clone()
	if err := edit(next); err != nil {
		b.mu.Unlock()
		return err
	}
	le := &localEdit{apply: edit}
	b.applied = append(b.applied, le)
	b.state = next
	b.changedLocked()
	b.mu.Unlock()

	if err := call(ctx); err != nil {
		b.mu.Lock()
		b.withdrawLocked(le)
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *Board) withdrawLocked(le *localEdit) {
	i := -1
	for j, a := range b.applied {
		if a == le {
			i = j
			break
		}
	}
	if i < 0 {
		return
	}
	b.applied = append(b.applied[:i:i], b.applied[i+1:]...)

	state := b.base.Clone()
	for _, a := range b.applied {
		next := state.Clone()
		if err := a.apply(next); err == nil {
			state = next
		}
	}
	b.state = state
	b.changedLocked()
}

// MoveCard moves a card to position to in listID. A list outside this board
// drops the card from the view.
func (b *Board) MoveCard(ctx context.Context, cardID, listID string, to int) error {
	if to < 0 {
		return fmt.Errorf("client: move card %s: %w: position must not be negative", cardID, apperr.ErrValidation)
	}
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		return moveCard(d, cardID, listID, to)
	}, func(ctx context.Context) error {
		_, err := b.api.MoveCard(ctx, cardID, listID, to)
		return err
	})
}

// MoveList moves a list to position to on this board.
func (b *Board) MoveList(ctx context.Context, listID string, to int) error {
	if to < 0 {
		return fmt.Errorf("client: move list %s: %w: position must not be negative", listID, apperr.ErrValidation)
	}
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		from := d.FindList(listID)
		if from < 0 {
			return fmt.Errorf("client: move list %s: %w", listID, apperr.ErrNotFound)
		}
		d.Lists = position.Within(d.Lists, from, to)
		renumberLists(d)
		return nil
	}, func(ctx context.Context) error {
		_, err := b.api.MoveList(ctx, listID, "", to)
		return err
	})
}

// UpdateCard applies patch to a card.
func (b *Board) UpdateCard(ctx context.Context, cardID string, patch models.CardPatch) error {
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		li, ci := d.FindCard(cardID)
		if li < 0 {
			return fmt.Errorf("client: update card %s: %w", cardID, apperr.ErrNotFound)
		}
		patchCard(&d.Lists[li].Cards[ci], patch)
		return nil
	}, func(ctx context.Context) error {
		_, err := b.api.UpdateCard(ctx, cardID, patch)
		return err
	})
}

// DeleteCard removes a card. Siblings keep their positions, as on the
// server.
func (b *Board) DeleteCard(ctx context.Context, cardID string) error {
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		li, ci := d.FindCard(cardID)
		if li < 0 {
			return fmt.Errorf("client: delete card %s: %w", cardID, apperr.ErrNotFound)
		}
		l := &d.Lists[li]
		l.Cards = append(l.Cards[:ci:ci], l.Cards[ci+1:]...)
		l.OverWIPLimit = l.OverLimit()
		return nil
	}, func(ctx context.Context) error {
		return b.api.DeleteCard(ctx, cardID)
	})
}

// DeleteList removes a list and its cards.
func (b *Board) DeleteList(ctx context.Context, listID string) error {
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		i := d.FindList(listID)
		if i < 0 {
			return fmt.Errorf("client: delete list %s: %w", listID, apperr.ErrNotFound)
		}
		d.Lists = append(d.Lists[:i:i], d.Lists[i+1:]...)
		return nil
	}, func(ctx context.Context) error {
		return b.api.DeleteList(ctx, listID)
	})
}

// SetWIPLimit sets or, with nil, clears a list's WIP limit.
func (b *Board) SetWIPLimit(ctx context.Context, listID string, limit *int) error {
	if limit != nil && *limit <= 0 {
		return fmt.Errorf("client: set wip limit %s: %w: limit must be positive", listID, apperr.ErrValidation)
	}
	return b.mutate(ctx, func(d *models.BoardDetail) error {
		i := d.FindList(listID)
		if i < 0 {
			return fmt.Errorf("client: set wip limit %s: %w", listID, apperr.ErrNotFound)
		}
		l := &d.Lists[i]
		if limit == nil {
			l.WIPLimit = nil
		} else {
			v := *limit
			l.WIPLimit = &v
		}
		l.OverWIPLimit = l.OverLimit()
		return nil
	}, func(ctx context.Context) error {
		_, err := b.api.SetWIPLimit(ctx, listID, limit)
		return err
	})
}

// moveCard mirrors the server's move on a local view.
func moveCard(d *models.BoardDetail, cardID, listID string, to int) error {
	li, ci := d.FindCard(cardID)
	if li < 0 {
		return fmt.Errorf("client: move card %s: %w", cardID, apperr.ErrNotFound)
	}
	src := &d.Lists[li]
	target := d.FindList(listID)

	switch {
	case target == li:
		src.Cards = position.Within(src.Cards, ci, to)
	case target < 0:
		src.Cards, _ = position.Across(src.Cards, ci, nil, 0)
	default:
		dst := &d.Lists[target]
		src.Cards, dst.Cards = position.Across(src.Cards, ci, dst.Cards, to)
		renumberCards(dst)
	}
	renumberCards(src)
	return nil
}

// renumberCards assigns dense positions and parent IDs to a list's cards.
func renumberCards(l *models.ListDetail) {
	for i := range l.Cards {
		l.Cards[i].Position = i
		l.Cards[i].ListID = l.ID
		l.Cards[i].BoardID = l.BoardID
	}
	l.OverWIPLimit = l.OverLimit()
}

func renumberLists(d *models.BoardDetail) {
	for i := range d.Lists {
		d.Lists[i].Position = i
	}
}

func patchCard(c *models.Card, p models.CardPatch) {
	if p.Title.Set && p.Title.Value != nil {
		c.Title = *p.Title.Value
	}
	if p.Description.Set {
		c.Description = ""
		if p.Description.Value != nil {
			c.Description = *p.Description.Value
		}
	}
	if p.Priority.Set && p.Priority.Value != nil {
		c.Priority = *p.Priority.Value
	}
	if p.Tag.Set {
		c.Tag = clearable(p.Tag, models.NoTag)
	}
	if p.AssigneeID.Set {
		c.AssigneeID = clearable(p.AssigneeID, models.Unassigned)
	}
}

// clearable returns nil for a null, empty or sentinel value.
func clearable(f models.Field[string], sentinel string) *string {
	if f.Value == nil || *f.Value == "" || *f.Value == sentinel {
		return nil
	}
	v := *f.Value
	return &v
}
