package models

import "time"

// Card priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Priorities lists the accepted card priorities in ascending order.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Tags lists the accepted card tags.
var Tags = []string{"Frontend", "Backend", "Bug", "UI/UX", "Feature", "Refactor", "DevOps"}

// Card is a positioned item inside a List. BoardID is denormalized from the
// list so board-wide queries and cascades don't need a join.
type Card struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	BoardID     string     `gorm:"size:36;not null;index" json:"board_id"`
	ListID      string     `gorm:"size:36;not null;index:idx_cards_list_position,priority:1" json:"list_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Position    int        `gorm:"not null;index:idx_cards_list_position,priority:2" json:"position"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `gorm:"size:8;default:Medium" json:"priority"`
	AssigneeID  *string    `gorm:"size:36" json:"assignee_id"`
	Tag         *string    `gorm:"size:16" json:"tag"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ValidPriority reports whether p is one of Priorities.
func ValidPriority(p string) bool {
	return contains(Priorities, p)
}

// ValidTag reports whether t is one of Tags.
func ValidTag(t string) bool {
	return contains(Tags, t)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
