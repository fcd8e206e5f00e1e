package position

import (
	"fmt"

	"gorm.io/gorm"
)

// Scope names the table holding positioned items and the column referencing
// their parent container.
type Scope struct {
	Table  string
	Parent string
}

// Scopes for the two kinds of positioned item.
var (
	Cards = Scope{Table: "cards", Parent: "list_id"}
	Lists = Scope{Table: "lists", Parent: "board_id"}
)

func (s Scope) members(tx *gorm.DB, parentID string) *gorm.DB {
	return tx.Table(s.Table).Where(s.Parent+" = ?", parentID)
}

// Append returns the position a new member of parentID takes: one past the
// highest position, or 0 for an empty container.
func Append(tx *gorm.DB, s Scope, parentID string) (int, error) {
	var next int
	err := s.members(tx, parentID).Select("COALESCE(MAX(position), -1) + 1").Row().Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("position: next %s in %s: %w", s.Table, parentID, err)
	}
	return next, nil
}

// Others returns the positions of parentID's members in order, leaving out
// exceptID.
func Others(tx *gorm.DB, s Scope, parentID, exceptID string) ([]int, error) {
	var out []int
	err := Ordering(tx, s, parentID).Where("id <> ?", exceptID).Pluck("position", &out).Error
	if err != nil {
		return nil, fmt.Errorf("position: read %s in %s: %w", s.Table, parentID, err)
	}
	return out, nil
}

// Renumber adds delta to the position of every member of parentID inside r,
// skipping exceptID when it is set. It is a single UPDATE statement.
func Renumber(tx *gorm.DB, s Scope, parentID string, r Range, delta int, exceptID string) error {
	if r.Empty() || delta == 0 {
		return nil
	}
	q := s.members(tx, parentID).Where("position >= ?", r.From)
	if r.To >= 0 {
		q = q.Where("position < ?", r.To)
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.UpdateColumn("position", gorm.Expr("position + ?", delta)).Error; err != nil {
		return fmt.Errorf("position: renumber %s in %s: %w", s.Table, parentID, err)
	}
	return nil
}

// Ordering scopes a query to the members of parentID in their only
// sanctioned read order.
func Ordering(tx *gorm.DB, s Scope, parentID string) *gorm.DB {
	return s.members(tx, parentID).Order("position ASC").Order("id ASC")
}

// Positions returns the positions of parentID's members in order.
func Positions(tx *gorm.DB, s Scope, parentID string) ([]int, error) {
	var out []int
	if err := Ordering(tx, s, parentID).Pluck("position", &out).Error; err != nil {
		return nil, fmt.Errorf("position: read %s in %s: %w", s.Table, parentID, err)
	}
	return out, nil
}

// Compact rewrites the members of parentID to positions 0..n-1, preserving
// their relative order. Only members whose position changes are written.
// It returns the number of rows renumbered.
func Compact(tx *gorm.DB, s Scope, parentID string) (int, error) {
	var rows []struct {
		ID       string
		Position int
	}
	if err := Ordering(tx, s, parentID).Select("id", "position").Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("position: compact %s in %s: %w", s.Table, parentID, err)
	}
	changed := 0
	for i, r := range rows {
		if r.Position == i {
			continue
		}
		err := tx.Table(s.Table).Where("id = ?", r.ID).UpdateColumn("position", i).Error
		if err != nil {
			return changed, fmt.Errorf("position: compact %s %s: %w", s.Table, r.ID, err)
		}
		changed++
	}
	return changed, nil
}

// Parents returns every distinct parent ID that has members in s.
func Parents(tx *gorm.DB, s Scope) ([]string, error) {
	var ids []string
	if err := tx.Table(s.Table).Distinct(s.Parent).Pluck(s.Parent, &ids).Error; err != nil {
		return nil, fmt.Errorf("position: list %s parents: %w", s.Table, err)
	}
	return ids, nil
}
