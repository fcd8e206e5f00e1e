// Package list manages the lists of a board.
package list

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/notify"
	"github.com/zulandar/switchyard/internal/reorder"
	"gorm.io/gorm"
)

// Members checks board membership.
type Members interface {
	RequireMember(ctx context.Context, userID, boardID string) error
}

// Service manages lists.
type Service struct {
	db      *gorm.DB
	engine  *reorder.Engine
	members Members
	pub     notify.Publisher
}

// NewService returns a list service.
func NewService(db *gorm.DB, engine *reorder.Engine, members Members, pub notify.Publisher) *Service {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &Service{db: db, engine: engine, members: members, pub: pub}
}

// Get returns a list the caller can see.
func (s *Service) Get(ctx context.Context, userID, listID string) (*models.List, error) {
	l, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, userID, l.BoardID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) get(ctx context.Context, listID string) (*models.List, error) {
	var l models.List
	err := s.db.WithContext(ctx).Where("id = ?", listID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("list: %w: list %s", apperr.ErrNotFound, listID)
	}
	if err != nil {
		return nil, fmt.Errorf("list: get %s: %w", listID, err)
	}
	return &l, nil
}

// Create appends a list to a board.
func (s *Service) Create(ctx context.Context, userID, boardID, name string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("list: create: %w: name is required", apperr.ErrValidation)
	}
	if err := s.members.RequireMember(ctx, userID, boardID); err != nil {
		return nil, err
	}
	l := &models.List{BoardID: boardID, Name: name}
	if err := s.engine.CreateList(ctx, l); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	s.pub.Publish(ctx, boardID, "List created")
	return l, nil
}

// Rename changes a list's name.
func (s *Service) Rename(ctx context.Context, userID, listID, name string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("list: rename: %w: name is required", apperr.ErrValidation)
	}
	l, err := s.Get(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(l).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("list: rename %s: %w", listID, apperr.Transaction(err))
	}
	l.Name = name
	s.pub.Publish(ctx, l.BoardID, "List renamed")
	return l, nil
}

// SetWIPLimit sets or, with nil, clears a list's advisory card limit.
func (s *Service) SetWIPLimit(ctx context.Context, userID, listID string, limit *int) (*models.List, error) {
	if limit != nil && *limit <= 0 {
		return nil, fmt.Errorf("list: set wip limit: %w: limit must be a positive integer or null", apperr.ErrValidation)
	}
	l, err := s.Get(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(l).Update("wip_limit", limit).Error; err != nil {
		return nil, fmt.Errorf("list: set wip limit %s: %w", listID, apperr.Transaction(err))
	}
	l.WIPLimit = limit
	s.pub.Publish(ctx, l.BoardID, "WIP limit updated")
	return l, nil
}

// Delete removes a list and its cards.
func (s *Service) Delete(ctx context.Context, userID, listID string) error {
	l, err := s.Get(ctx, userID, listID)
	if err != nil {
		return err
	}
	if _, err := s.engine.DeleteList(ctx, l.ID); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	s.pub.Publish(ctx, l.BoardID, "List deleted")
	return nil
}

// Move places a list at position to of boardID, which may be another board
// the caller belongs to.
func (s *Service) Move(ctx context.Context, userID, listID, boardID string, to int) (*models.List, error) {
	l, err := s.Get(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if boardID == "" {
		boardID = l.BoardID
	}
	if boardID != l.BoardID {
		if err := s.members.RequireMember(ctx, userID, boardID); err != nil {
			return nil, err
		}
	}
	res, err := s.engine.MoveList(ctx, listID, boardID, to)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if res.Moved {
		s.pub.Publish(ctx, res.List.BoardID, "List moved")
		if res.From.BoardID != res.List.BoardID {
			s.pub.Publish(ctx, res.From.BoardID, "List moved")
		}
	}
	return &res.List, nil
}
