package models

// BoardDetail is the authoritative read model of a board: lists ordered by
// position, each with its cards ordered by position. Clients re-fetch it on
// every board-changed signal.
type BoardDetail struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Owner   UserSummary   `json:"owner"`
	Members []UserSummary `json:"members"`
	Lists   []ListDetail  `json:"lists"`
}

// ListDetail is a list together with its ordered cards.
type ListDetail struct {
	List
	Cards        []Card `json:"cards"`
	OverWIPLimit bool   `json:"over_wip_limit"`
}

// OverLimit reports whether the list holds more cards than its WIP limit.
func (l ListDetail) OverLimit() bool {
	return l.WIPLimit != nil && len(l.Cards) > *l.WIPLimit
}

// Clone returns a deep copy of the board's member, list and card slices.
// Pointer fields are shared; callers replace them rather than writing
// through them.
func (b *BoardDetail) Clone() *BoardDetail {
	if b == nil {
		return nil
	}
	c := *b
	c.Members = append([]UserSummary(nil), b.Members...)
	c.Lists = make([]ListDetail, len(b.Lists))
	for i, l := range b.Lists {
		l.Cards = append([]Card(nil), l.Cards...)
		c.Lists[i] = l
	}
	return &c
}

// FindCard returns the list index and card index of cardID, or -1, -1.
func (b *BoardDetail) FindCard(cardID string) (int, int) {
	for li, l := range b.Lists {
		for ci, c := range l.Cards {
			if c.ID == cardID {
				return li, ci
			}
		}
	}
	return -1, -1
}

// FindList returns the index of listID in b.Lists, or -1.
func (b *BoardDetail) FindList(listID string) int {
	for i, l := range b.Lists {
		if l.ID == listID {
			return i
		}
	}
	return -1
}
