package models

import "time"

// List is a positioned item inside a Board and the container for Cards.
// WIPLimit is advisory: moves that exceed it are accepted.
type List struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index:idx_lists_board_position,priority:1" json:"board_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Position  int       `gorm:"not null;index:idx_lists_board_position,priority:2" json:"position"`
	WIPLimit  *int      `gorm:"column:wip_limit" json:"wip_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
