package models

import "time"

// Board is the top-level container. It holds an ordered sequence of Lists.
type Board struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	OwnerID   string    `gorm:"size:36;not null;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoardMember grants a user access to a board. The owner always has a row.
type BoardMember struct {
	BoardID   string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}
