// Package card manages cards: creation, field edits, moves and deletion.
package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// Service manages cards.
type Service struct {
	db      *gorm.DB
	engine  *reorder.Engine
	members Members
	pub     notify.Publisher
}

// NewService returns a card service.
func NewService(db *gorm.DB, engine *reorder.Engine, members Members, pub notify.Publisher) *Service {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &Service{db: db, engine: engine, members: members, pub: pub}
}

// NewCard holds the fields of a card to create. Title is required; the rest
// default to empty, with priority Medium.
type NewCard struct {
	ListID      string
	Title       string
	Description string
	Priority    string
	Tag         string
	AssigneeID  string
	DueDate     string
}

func (s *Service) get(ctx context.Context, cardID string) (*models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).Where("id = ?", cardID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("card: %w: card %s", apperr.ErrNotFound, cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("card: get %s: %w", cardID, err)
	}
	return &c, nil
}

func (s *Service) listBoard(ctx context.Context, listID string) (string, error) {
	var l models.List
	err := s.db.WithContext(ctx).Select("id", "board_id").Where("id = ?", listID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("card: %w: list %s", apperr.ErrNotFound, listID)
	}
	if err != nil {
		return "", fmt.Errorf("card: get list %s: %w", listID, err)
	}
	return l.BoardID, nil
}

// Get returns a card the caller can see.
func (s *Service) Get(ctx context.Context, userID, cardID string) (*models.Card, error) {
	c, err := s.get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, userID, c.BoardID); err != nil {
		return nil, err
	}
	return c, nil
}

// Create appends a card to the end of its list.
func (s *Service) Create(ctx context.Context, userID string, in NewCard) (*models.Card, error) {
	boardID, err := s.listBoard(ctx, in.ListID)
	if err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, userID, boardID); err != nil {
		return nil, err
	}

	c := &models.Card{ListID: in.ListID, Description: in.Description, Priority: models.PriorityMedium}
	patch := models.CardPatch{Title: models.SetField(in.Title)}
	if in.Priority != "" {
		patch.Priority = models.SetField(in.Priority)
	}
	if in.Tag != "" {
		patch.Tag = models.SetField(in.Tag)
	}
	if in.AssigneeID != "" {
		patch.AssigneeID = models.SetField(in.AssigneeID)
	}
	if in.DueDate != "" {
		patch.DueDate = models.SetField(in.DueDate)
	}
	if _, err := s.apply(ctx, boardID, c, patch); err != nil {
		return nil, fmt.Errorf("card: create: %w", err)
	}

	if err := s.engine.CreateCard(ctx, c); err != nil {
		return nil, fmt.Errorf("card: %w", err)
	}
	s.pub.Publish(ctx, c.BoardID, "New card created")
	return c, nil
}

// Update applies a partial edit. Fields not in the patch are untouched and
// the card's position never changes.
func (s *Service) Update(ctx context.Context, userID, cardID string, patch models.CardPatch) (*models.Card, error) {
	c, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return c, nil
	}
	changes, err := s.apply(ctx, c.BoardID, c, patch)
	if err != nil {
		return nil, fmt.Errorf("card: update %s: %w", cardID, err)
	}
	changes["updated_at"] = time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", cardID).UpdateColumns(changes).Error; err != nil {
		return nil, fmt.Errorf("card: update %s: %w", cardID, apperr.Transaction(err))
	}
	updated, err := s.get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, updated.BoardID, "Card updated")
	return updated, nil
}

// apply validates patch, writes it into c and returns the column changes.
func (s *Service) apply(ctx context.Context, boardID string, c *models.Card, patch models.CardPatch) (map[string]interface{}, error) {
	changes := map[string]interface{}{}
	var problems []string

	if patch.Title.Set {
		title := ""
		if patch.Title.Value != nil {
			title = strings.TrimSpace(*patch.Title.Value)
		}
		if title == "" {
			problems = append(problems, "title is required")
		} else {
			c.Title = title
			changes["title"] = title
		}
	}
	if patch.Description.Set {
		c.Description = ""
		if patch.Description.Value != nil {
			c.Description = *patch.Description.Value
		}
		changes["description"] = c.Description
	}
	if patch.DueDate.Set {
		due, err := parseDueDate(patch.DueDate.Value)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			c.DueDate = due
			changes["due_date"] = due
		}
	}
	if patch.Priority.Set {
		if patch.Priority.Value == nil || !models.ValidPriority(*patch.Priority.Value) {
			problems = append(problems, fmt.Sprintf("priority must be one of %s", strings.Join(models.Priorities, ", ")))
		} else {
			c.Priority = *patch.Priority.Value
			changes["priority"] = c.Priority
		}
	}
	if patch.Tag.Set {
		switch v := patch.Tag.Value; {
		case v == nil || *v == models.NoTag:
			c.Tag = nil
			changes["tag"] = nil
		case models.ValidTag(*v):
			tag := *v
			c.Tag = &tag
			changes["tag"] = tag
		default:
			problems = append(problems, fmt.Sprintf("tag must be one of %s or %q", strings.Join(models.Tags, ", "), models.NoTag))
		}
	}
	if patch.AssigneeID.Set {
		switch v := patch.AssigneeID.Value; {
		case v == nil || *v == models.Unassigned || *v == "":
			c.AssigneeID = nil
			changes["assignee_id"] = nil
		default:
			err := s.members.RequireMember(ctx, *v, boardID)
			if errors.Is(err, apperr.ErrUnauthorized) {
				problems = append(problems, fmt.Sprintf("assignee %s is not a member of the board", *v))
			} else if err != nil {
				return nil, err
			} else {
				assignee := *v
				c.AssigneeID = &assignee
				changes["assignee_id"] = assignee
			}
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, strings.Join(problems, "; "))
	}
	return changes, nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates. Null and the
// empty string clear the due date.
func parseDueDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("due date %q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

// Move places a card at position to of listID. An empty listID keeps the
// card in its list. The target list may belong to another board the caller
// is a member of.
func (s *Service) Move(ctx context.Context, userID, cardID, listID string, to int) (*models.Card, error) {
	c, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if listID == "" {
		listID = c.ListID
	}
	if listID != c.ListID {
		boardID, err := s.listBoard(ctx, listID)
		if err != nil {
			return nil, err
		}
		if boardID != c.BoardID {
			if err := s.members.RequireMember(ctx, userID, boardID); err != nil {
				return nil, err
			}
		}
	}

	res, err := s.engine.MoveCard(ctx, cardID, listID, to)
	if err != nil {
		return nil, fmt.Errorf("card: %w", err)
	}
	if res.Moved {
		s.pub.Publish(ctx, res.Card.BoardID, "Card moved")
		if res.From.BoardID != res.Card.BoardID {
			s.pub.Publish(ctx, res.From.BoardID, "Card moved")
		}
	}
	return &res.Card, nil
}

// Delete removes a card.
func (s *Service) Delete(ctx context.Context, userID, cardID string) error {
	c, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if _, err := s.engine.DeleteCard(ctx, c.ID); err != nil {
		return fmt.Errorf("card: %w", err)
	}
	s.pub.Publish(ctx, c.BoardID, "Card deleted")
	return nil
}
