package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zulandar/switchyard/internal/models"
)

// printBoard renders a board as one block per list, cards in order.
func printBoard(w io.Writer, d *models.BoardDetail) {
	fmt.Fprintf(w, "%s  (%s)\n", d.Name, d.ID)
	fmt.Fprintf(w, "Owner: %s", d.Owner.Name)
	if len(d.Members) > 1 {
		names := make([]string, 0, len(d.Members))
		for _, m := range d.Members {
			if m.ID != d.Owner.ID {
				names = append(names, m.Name)
			}
		}
		fmt.Fprintf(w, "   Members: %s", strings.Join(names, ", "))
	}
	fmt.Fprintln(w)

	for _, l := range d.Lists {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d] %s  %s\n", l.Position, l.Name, wipLabel(l))
		if len(l.Cards) == 0 {
			fmt.Fprintln(w, "    (empty)")
			continue
		}
		for _, c := range l.Cards {
			fmt.Fprintf(w, "    %d. %s  %s%s\n", c.Position, c.Title, c.ID, cardMeta(c, d.Members))
		}
	}
}

// wipLabel shows the card count against the list's WIP limit.
func wipLabel(l models.ListDetail) string {
	if l.WIPLimit == nil {
		return fmt.Sprintf("(%d)", len(l.Cards))
	}
	label := fmt.Sprintf("(%d/%d)", len(l.Cards), *l.WIPLimit)
	if l.OverWIPLimit {
		label += " OVER WIP LIMIT"
	}
	return label
}

func cardMeta(c models.Card, members []models.UserSummary) string {
	var parts []string
	if c.Priority != "" && c.Priority != models.PriorityMedium {
		parts = append(parts, c.Priority)
	}
	if c.Tag != nil {
		parts = append(parts, "#"+*c.Tag)
	}
	if c.AssigneeID != nil {
		parts = append(parts, "@"+memberName(*c.AssigneeID, members))
	}
	if c.DueDate != nil {
		parts = append(parts, "due "+c.DueDate.UTC().Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, " ") + "]"
}

func memberName(id string, members []models.UserSummary) string {
	for _, m := range members {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}

// formatAge returns a compact relative age like "5m" or "3d".
func formatAge(since time.Duration) string {
	switch {
	case since < time.Minute:
		return "now"
	case since < time.Hour:
		return fmt.Sprintf("%dm", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh", int(since.Hours()))
	}
	return fmt.Sprintf("%dd", int(since.Hours()/24))
}
