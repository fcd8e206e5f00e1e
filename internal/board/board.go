// Package board manages boards, their membership and the board read model.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/notify"
	"github.com/zulandar/switchyard/internal/position"
	"gorm.io/gorm"
)

// Service manages boards.
type Service struct {
	db           *gorm.DB
	pub          notify.Publisher
	defaultLists []string
}

// NewService returns a board service. New boards get defaultLists in order.
func NewService(db *gorm.DB, pub notify.Publisher, defaultLists []string) *Service {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &Service{db: db, pub: pub, defaultLists: append([]string(nil), defaultLists...)}
}

// Create makes a board owned by ownerID, with the owner as its first member
// and the default lists at positions 0..n-1.
func (s *Service) Create(ctx context.Context, ownerID, name string) (*models.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("board: create: %w: name is required", apperr.ErrValidation)
	}
	b := &models.Board{ID: uuid.NewString(), Name: name, OwnerID: ownerID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.BoardMember{BoardID: b.ID, UserID: ownerID}).Error; err != nil {
			return err
		}
		if len(s.defaultLists) == 0 {
			return nil
		}
		lists := make([]models.List, len(s.defaultLists))
		for i, n := range s.defaultLists {
			lists[i] = models.List{ID: uuid.NewString(), BoardID: b.ID, Name: n, Position: i}
		}
		return tx.Create(&lists).Error
	})
	if err != nil {
		return nil, fmt.Errorf("board: create %q: %w", name, apperr.Transaction(err))
	}
	return b, nil
}

// ListForUser returns every board userID is a member of, oldest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Board, error) {
	var boards []models.Board
	err := s.db.WithContext(ctx).
		Select("boards.*").
		Joins("JOIN board_members ON board_members.board_id = boards.id").
		Where("board_members.user_id = ?", userID).
		Order("boards.created_at ASC").Order("boards.id ASC").
		Find(&boards).Error
	if err != nil {
		return nil, fmt.Errorf("board: list for %s: %w", userID, err)
	}
	return boards, nil
}

func (s *Service) get(tx *gorm.DB, boardID string) (*models.Board, error) {
	var b models.Board
	err := tx.Where("id = ?", boardID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: board %s", apperr.ErrNotFound, boardID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func isMember(tx *gorm.DB, userID, boardID string) (bool, error) {
	var n int64
	err := tx.Model(&models.BoardMember{}).Where("board_id = ? AND user_id = ?", boardID, userID).Count(&n).Error
	return n > 0, err
}

// RequireMember fails with ErrNotFound if the board does not exist and with
// ErrUnauthorized if userID is not one of its members.
func (s *Service) RequireMember(ctx context.Context, userID, boardID string) error {
	tx := s.db.WithContext(ctx)
	if _, err := s.get(tx, boardID); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	ok, err := isMember(tx, userID, boardID)
	if err != nil {
		return fmt.Errorf("board: check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("board: %w: not a member of board %s", apperr.ErrUnauthorized, boardID)
	}
	return nil
}

// RequireOwner returns the board if userID owns it.
func (s *Service) RequireOwner(ctx context.Context, userID, boardID string) (*models.Board, error) {
	b, err := s.get(s.db.WithContext(ctx), boardID)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if b.OwnerID != userID {
		return nil, fmt.Errorf("board: %w: only the board owner can do that", apperr.ErrUnauthorized)
	}
	return b, nil
}

// Detail returns the board with its owner, members, and lists and cards in
// position order. The caller must be a member.
func (s *Service) Detail(ctx context.Context, userID, boardID string) (*models.BoardDetail, error) {
	if err := s.RequireMember(ctx, userID, boardID); err != nil {
		return nil, err
	}
	d, err := s.load(s.db.WithContext(ctx), boardID)
	if err != nil {
		return nil, fmt.Errorf("board: load %s: %w", boardID, err)
	}
	return d, nil
}

func (s *Service) load(tx *gorm.DB, boardID string) (*models.BoardDetail, error) {
	b, err := s.get(tx, boardID)
	if err != nil {
		return nil, err
	}
	d := &models.BoardDetail{ID: b.ID, Name: b.Name, Members: []models.UserSummary{}, Lists: []models.ListDetail{}}

	var owner models.User
	if err := tx.Where("id = ?", b.OwnerID).Limit(1).Find(&owner).Error; err != nil {
		return nil, err
	}
	d.Owner = owner.Summary()

	err = tx.Table("users").
		Select("users.id", "users.name", "users.email").
		Joins("JOIN board_members ON board_members.user_id = users.id").
		Where("board_members.board_id = ?", boardID).
		Order("board_members.created_at ASC").Order("users.id ASC").
		Scan(&d.Members).Error
	if err != nil {
		return nil, err
	}

	var lists []models.List
	if err := position.Ordering(tx, position.Lists, boardID).Find(&lists).Error; err != nil {
		return nil, err
	}
	var cards []models.Card
	if err := tx.Where("board_id = ?", boardID).Order("position ASC").Order("id ASC").Find(&cards).Error; err != nil {
		return nil, err
	}
	byList := make(map[string][]models.Card, len(lists))
	for _, c := range cards {
		byList[c.ListID] = append(byList[c.ListID], c)
	}
	for _, l := range lists {
		ld := models.ListDetail{List: l, Cards: byList[l.ID]}
		if ld.Cards == nil {
			ld.Cards = []models.Card{}
		}
		ld.OverWIPLimit = ld.OverLimit()
		d.Lists = append(d.Lists, ld)
	}
	return d, nil
}

// Rename changes a board's name. Any member may rename.
func (s *Service) Rename(ctx context.Context, userID, boardID, name string) (*models.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("board: rename: %w: name is required", apperr.ErrValidation)
	}
	if err := s.RequireMember(ctx, userID, boardID); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	if err := tx.Model(&models.Board{}).Where("id = ?", boardID).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("board: rename %s: %w", boardID, apperr.Transaction(err))
	}
	b, err := s.get(tx, boardID)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	s.pub.Publish(ctx, boardID, "Board renamed")
	return b, nil
}

// Delete removes a board and everything on it: cards, then lists, then
// memberships, then the board. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, userID, boardID string) error {
	if _, err := s.RequireOwner(ctx, userID, boardID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", boardID).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.List{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.BoardMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", boardID).Delete(&models.Board{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: board %s", apperr.ErrNotFound, boardID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("board: delete %s: %w", boardID, apperr.Transaction(err))
	}
	s.pub.Publish(ctx, boardID, "Board deleted")
	return nil
}

// AddMember adds the user registered under email to the board. Only the
// owner may add members.
func (s *Service) AddMember(ctx context.Context, userID, boardID, email string) (*models.BoardDetail, error) {
	if _, err := s.RequireOwner(ctx, userID, boardID); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var added models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&added).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no user with email %s", apperr.ErrNotFound, email)
		}
		if err != nil {
			return err
		}
		ok, err := isMember(tx, added.ID, boardID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s is already a member", apperr.ErrValidation, email)
		}
		return tx.Create(&models.BoardMember{BoardID: boardID, UserID: added.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("board: add member: %w", apperr.Transaction(err))
	}
	s.pub.Publish(ctx, boardID, fmt.Sprintf("User %s was added to the board", added.Name))

	d, err := s.load(s.db.WithContext(ctx), boardID)
	if err != nil {
		return nil, fmt.Errorf("board: load %s: %w", boardID, err)
	}
	return d, nil
}

// RemoveMember removes memberID from the board. The owner may remove anyone
// but themselves; any other member may only remove themselves. Cards
// assigned to the removed member become unassigned.
func (s *Service) RemoveMember(ctx context.Context, userID, boardID, memberID string) error {
	tx := s.db.WithContext(ctx)
	b, err := s.get(tx, boardID)
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if memberID == b.OwnerID {
		return fmt.Errorf("board: remove member: %w: the owner cannot be removed", apperr.ErrValidation)
	}
	if userID != b.OwnerID && userID != memberID {
		return fmt.Errorf("board: %w: only the board owner can remove other members", apperr.ErrUnauthorized)
	}

	var name string
	err = tx.Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("id = ?", memberID).Limit(1).Find(&u).Error; err != nil {
			return err
		}
		name = u.Name
		res := tx.Where("board_id = ? AND user_id = ?", boardID, memberID).Delete(&models.BoardMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s is not a member of board %s", apperr.ErrNotFound, memberID, boardID)
		}
		return tx.Model(&models.Card{}).
			Where("board_id = ? AND assignee_id = ?", boardID, memberID).
			Update("assignee_id", nil).Error
	})
	if err != nil {
		return fmt.Errorf("board: remove member: %w", apperr.Transaction(err))
	}
	s.pub.Publish(ctx, boardID, fmt.Sprintf("User %s was removed from the board", name))
	return nil
}
