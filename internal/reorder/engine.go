// Package reorder moves, creates and deletes positioned items while keeping
// every container's positions unique and ordered. Each operation runs as one
// transaction and holds a per-container lock for its duration.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/position"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxAttempts bounds how often a move is retried when the item changes
// container between resolving and locking it.
const maxAttempts = 3

var errParentChanged = errors.New("reorder: parent changed while locking")

// Engine is the move/reorder engine. It is safe for concurrent use.
type Engine struct {
	db              *gorm.DB
	locks           *KeyedMutex
	compactOnDelete bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompactOnDelete closes the gap a deleted item leaves in its container.
func WithCompactOnDelete(on bool) Option {
	return func(e *Engine) { e.compactOnDelete = on }
}

// WithLocks shares a KeyedMutex between engines.
func WithLocks(k *KeyedMutex) Option {
	return func(e *Engine) { e.locks = k }
}

// New returns an Engine over db.
func New(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{db: db, locks: NewKeyedMutex()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Placement is where an item sat before a move.
type Placement struct {
	ContainerID string
	BoardID     string
	Position    int
}

// CardMove is the outcome of MoveCard.
type CardMove struct {
	Card  models.Card
	From  Placement
	Moved bool
}

// ListMove is the outcome of MoveList.
type ListMove struct {
	List  models.List
	From  Placement
	Moved bool
}

// kind describes one positioned item type and the table of its containers.
type kind struct {
	scope      position.Scope
	containers string
	item       string
	container  string
}

var (
	cardKind = kind{scope: position.Cards, containers: "lists", item: "card", container: "list"}
	listKind = kind{scope: position.Lists, containers: "boards", item: "list", container: "board"}
)

func (k kind) key(containerID string) string {
	return k.containers + "/" + containerID
}

func (k kind) parentOf(tx *gorm.DB, itemID string) (string, error) {
	var parents []string
	err := tx.Table(k.scope.Table).Where("id = ?", itemID).Limit(1).Pluck(k.scope.Parent, &parents).Error
	if err != nil {
		return "", err
	}
	if len(parents) == 0 {
		return "", fmt.Errorf("%w: %s %s", apperr.ErrNotFound, k.item, itemID)
	}
	return parents[0], nil
}

// lockContainers takes row locks on the given containers in id order and
// fails with ErrNotFound if any required container is missing.
func (k kind) lockContainers(tx *gorm.DB, ids []string, required ...string) error {
	var found []string
	err := tx.Table(k.containers).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", uniqueSorted(ids)).
		Order("id").
		Pluck("id", &found).Error
	if err != nil {
		return err
	}
	for _, id := range required {
		if !containsString(found, id) {
			return fmt.Errorf("%w: %s %s", apperr.ErrNotFound, k.container, id)
		}
	}
	return nil
}

// inContainers runs fn in a transaction while holding the locks of itemID's
// current container and of target (when set). If the item changes container
// before the locks are held, the whole attempt is retried.
func (e *Engine) inContainers(ctx context.Context, k kind, itemID, target string, fn func(tx *gorm.DB) error) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		parent, err := k.parentOf(e.db.WithContext(ctx), itemID)
		if err != nil {
			return apperr.Transaction(err)
		}

		keys := []string{k.key(parent)}
		var required []string
		if target != "" {
			keys = append(keys, k.key(target))
			required = append(required, target)
		}
		unlock := e.locks.Lock(keys...)
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cur, err := k.parentOf(tx, itemID)
			if err != nil {
				return err
			}
			if cur != parent {
				return errParentChanged
			}
			if err := k.lockContainers(tx, []string{parent, target}, required...); err != nil {
				return err
			}
			return fn(tx)
		})
		unlock()

		if errors.Is(err, errParentChanged) {
			continue
		}
		return apperr.Transaction(err)
	}
	return fmt.Errorf("%w: %s %s kept changing container", apperr.ErrTransaction, k.item, itemID)
}

// inContainer runs fn in a transaction while holding containerID's lock. The
// container must exist.
func (e *Engine) inContainer(ctx context.Context, k kind, containerID string, fn func(tx *gorm.DB) error) error {
	unlock := e.locks.Lock(k.key(containerID))
	defer unlock()
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := k.lockContainers(tx, []string{containerID}, containerID); err != nil {
			return err
		}
		return fn(tx)
	})
	return apperr.Transaction(err)
}

// relocate moves itemID from (source, from) to index to of target's ordering
// inside tx. The index is counted with the item removed and is mapped onto
// stored positions, so gaps left by deletes don't skew the result. It
// returns the final position and whether anything was written.
func relocate(tx *gorm.DB, k kind, itemID, source string, from int, target string, to int) (int, bool, error) {
	same := source == target
	others, err := position.Others(tx, k.scope, target, itemID)
	if err != nil {
		return 0, false, err
	}
	to, changed := position.Resolve(others, to, same, from)
	if !changed {
		return from, false, nil
	}

	for i, step := range position.Plan(same, from, to) {
		parent := target
		if !same && i == 0 {
			parent = source
		}
		if err := position.Renumber(tx, k.scope, parent, step.Range, step.Delta, itemID); err != nil {
			return 0, false, err
		}
	}

	err = tx.Table(k.scope.Table).Where("id = ?", itemID).UpdateColumns(map[string]interface{}{
		k.scope.Parent: target,
		"position":     to,
		"updated_at":   time.Now().UTC(),
	}).Error
	if err != nil {
		return 0, false, fmt.Errorf("reorder: place %s %s: %w", k.item, itemID, err)
	}
	return to, true, nil
}

func validTarget(to int) error {
	if to < 0 {
		return fmt.Errorf("%w: position %d is negative", apperr.ErrValidation, to)
	}
	return nil
}

// MoveCard moves a card to position to of list listID. A position past the
// end of the list appends. Moving a card to another board's list rewrites its
// board.
func (e *Engine) MoveCard(ctx context.Context, cardID, listID string, to int) (*CardMove, error) {
	if err := validTarget(to); err != nil {
		return nil, fmt.Errorf("reorder: move card %s: %w", cardID, err)
	}
	var res CardMove
	err := e.inContainers(ctx, cardKind, cardID, listID, func(tx *gorm.DB) error {
		var card models.Card
		if err := first(tx, &card, "card", cardID); err != nil {
			return err
		}
		res.From = Placement{ContainerID: card.ListID, BoardID: card.BoardID, Position: card.Position}

		_, moved, err := relocate(tx, cardKind, cardID, card.ListID, card.Position, listID, to)
		if err != nil {
			return err
		}
		res.Moved = moved

		if moved && card.ListID != listID {
			var target models.List
			if err := tx.Select("id", "board_id").Where("id = ?", listID).First(&target).Error; err != nil {
				return err
			}
			if target.BoardID != card.BoardID {
				err := tx.Model(&models.Card{}).Where("id = ?", cardID).UpdateColumn("board_id", target.BoardID).Error
				if err != nil {
					return err
				}
			}
		}
		return tx.Where("id = ?", cardID).First(&res.Card).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reorder: move card %s: %w", cardID, err)
	}
	return &res, nil
}

// MoveList moves a list to position to of board boardID. The list's cards
// follow it to the new board.
func (e *Engine) MoveList(ctx context.Context, listID, boardID string, to int) (*ListMove, error) {
	if err := validTarget(to); err != nil {
		return nil, fmt.Errorf("reorder: move list %s: %w", listID, err)
	}
	var res ListMove
	err := e.inContainers(ctx, listKind, listID, boardID, func(tx *gorm.DB) error {
		var list models.List
		if err := first(tx, &list, "list", listID); err != nil {
			return err
		}
		res.From = Placement{ContainerID: list.BoardID, BoardID: list.BoardID, Position: list.Position}

		_, moved, err := relocate(tx, listKind, listID, list.BoardID, list.Position, boardID, to)
		if err != nil {
			return err
		}
		res.Moved = moved

		if moved && list.BoardID != boardID {
			err := tx.Model(&models.Card{}).Where("list_id = ?", listID).UpdateColumn("board_id", boardID).Error
			if err != nil {
				return err
			}
		}
		return tx.Where("id = ?", listID).First(&res.List).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reorder: move list %s: %w", listID, err)
	}
	return &res, nil
}

// CreateCard appends card to the list named by card.ListID, filling in its
// ID, board and position.
func (e *Engine) CreateCard(ctx context.Context, card *models.Card) error {
	err := e.inContainer(ctx, cardKind, card.ListID, func(tx *gorm.DB) error {
		var list models.List
		if err := tx.Select("id", "board_id").Where("id = ?", card.ListID).First(&list).Error; err != nil {
			return err
		}
		pos, err := position.Append(tx, position.Cards, list.ID)
		if err != nil {
			return err
		}
		if card.ID == "" {
			card.ID = uuid.NewString()
		}
		card.BoardID = list.BoardID
		card.Position = pos
		return tx.Create(card).Error
	})
	if err != nil {
		return fmt.Errorf("reorder: create card in list %s: %w", card.ListID, err)
	}
	return nil
}

// CreateList appends list to the board named by list.BoardID.
func (e *Engine) CreateList(ctx context.Context, list *models.List) error {
	err := e.inContainer(ctx, listKind, list.BoardID, func(tx *gorm.DB) error {
		pos, err := position.Append(tx, position.Lists, list.BoardID)
		if err != nil {
			return err
		}
		if list.ID == "" {
			list.ID = uuid.NewString()
		}
		list.Position = pos
		return tx.Create(list).Error
	})
	if err != nil {
		return fmt.Errorf("reorder: create list in board %s: %w", list.BoardID, err)
	}
	return nil
}

// DeleteCard removes a card and returns it as it was. Surviving siblings keep
// their positions unless the engine compacts on delete.
func (e *Engine) DeleteCard(ctx context.Context, cardID string) (*models.Card, error) {
	var card models.Card
	err := e.inContainers(ctx, cardKind, cardID, "", func(tx *gorm.DB) error {
		if err := first(tx, &card, "card", cardID); err != nil {
			return err
		}
		if err := tx.Where("id = ?", cardID).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		if e.compactOnDelete {
			return position.Renumber(tx, position.Cards, card.ListID, position.From(card.Position+1), -1, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder: delete card %s: %w", cardID, err)
	}
	return &card, nil
}

// DeleteList removes a list and all of its cards, cards first.
func (e *Engine) DeleteList(ctx context.Context, listID string) (*models.List, error) {
	var list models.List
	err := e.inContainers(ctx, listKind, listID, "", func(tx *gorm.DB) error {
		if err := first(tx, &list, "list", listID); err != nil {
			return err
		}
		if err := tx.Where("list_id = ?", listID).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", listID).Delete(&models.List{}).Error; err != nil {
			return err
		}
		if e.compactOnDelete {
			return position.Renumber(tx, position.Lists, list.BoardID, position.From(list.Position+1), -1, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder: delete list %s: %w", listID, err)
	}
	return &list, nil
}

func first(tx *gorm.DB, dest interface{}, what, id string) error {
	err := tx.Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", apperr.ErrNotFound, what, id)
	}
	return err
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
