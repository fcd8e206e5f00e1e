package board

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

type published struct {
	boardID, message string
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, boardID, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{boardID, message})
}

func (p *recordingPublisher) boards() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, s := range p.sent {
		out[i] = s.boardID
	}
	return out
}

func setup(t *testing.T) (*Service, *gorm.DB, *recordingPublisher) {
	t.Helper()
	gormDB, err := db.OpenTestDB()
	if err != nil {
		t.Fatalf("OpenTestDB: %v", err)
	}
	for _, u := range []models.User{
		{ID: "owner", Name: "Olive", Email: "olive@example.com", PasswordHash: "x"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com", PasswordHash: "x"},
		{ID: "carol", Name: "Carol", Email: "carol@example.com", PasswordHash: "x"},
	} {
		if err := gormDB.Create(&u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	pub := &recordingPublisher{}
	return NewService(gormDB, pub, config.DefaultLists), gormDB, pub
}

func TestCreate_DefaultLists(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "owner", "Roadmap")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.OwnerID != "owner" || b.ID == "" {
		t.Errorf("board = %+v", b)
	}

	d, err := s.Detail(ctx, "owner", b.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if len(d.Lists) != len(config.DefaultLists) {
		t.Fatalf("lists = %d, want %d", len(d.Lists), len(config.DefaultLists))
	}
	for i, l := range d.Lists {
		if l.Name != config.DefaultLists[i] || l.Position != i {
			t.Errorf("list %d = %s@%d, want %s@%d", i, l.Name, l.Position, config.DefaultLists[i], i)
		}
		if l.Cards == nil {
			t.Errorf("list %d cards is nil, want empty slice", i)
		}
	}
	if d.Owner.ID != "owner" || d.Owner.Email != "olive@example.com" {
		t.Errorf("owner = %+v", d.Owner)
	}
	if len(d.Members) != 1 || d.Members[0].ID != "owner" {
		t.Errorf("members = %+v", d.Members)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	s, _, _ := setup(t)
	if _, err := s.Create(context.Background(), "owner", "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreate_NoDefaultLists(t *testing.T) {
	s, gormDB, _ := setup(t)
	s = NewService(gormDB, nil, nil)
	b, err := s.Create(context.Background(), "owner", "Blank")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var n int64
	gormDB.Model(&models.List{}).Where("board_id = ?", b.ID).Count(&n)
	if n != 0 {
		t.Errorf("lists = %d, want 0", n)
	}
}

func TestListForUser(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, "owner", "A")
	s.Create(ctx, "bob", "B")
	if _, err := s.AddMember(ctx, "owner", a.ID, "bob@example.com"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	tests := []struct {
		user string
		want int
	}{
		{"owner", 1},
		{"bob", 2},
		{"carol", 0},
	}
	for _, tt := range tests {
		boards, err := s.ListForUser(ctx, tt.user)
		if err != nil {
			t.Fatalf("ListForUser(%s): %v", tt.user, err)
		}
		if len(boards) != tt.want {
			t.Errorf("ListForUser(%s) = %d boards, want %d", tt.user, len(boards), tt.want)
		}
	}
}

func TestDetail_Access(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")

	_, err := s.Detail(ctx, "carol", b.ID)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("non-member err = %v, want ErrUnauthorized", err)
	}
	if errors.Is(err, apperr.ErrUnauthenticated) {
		t.Error("non-member error must map to 403, not 401")
	}
	if _, err := s.Detail(ctx, "owner", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing board err = %v, want ErrNotFound", err)
	}
}

func TestDetail_CardsOrderedWithWIPFlag(t *testing.T) {
	s, gormDB, _ := setup(t)
	s = NewService(gormDB, nil, []string{"Doing"})
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")
	var list models.List
	gormDB.Where("board_id = ?", b.ID).First(&list)
	limit := 1
	gormDB.Model(&list).Update("wip_limit", &limit)
	for i, id := range []string{"z", "y"} {
		gormDB.Create(&models.Card{ID: id, BoardID: b.ID, ListID: list.ID, Title: id, Position: 1 - i})
	}

	d, err := s.Detail(ctx, "owner", b.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	cards := d.Lists[0].Cards
	if len(cards) != 2 || cards[0].ID != "y" || cards[1].ID != "z" {
		t.Errorf("cards = %+v", cards)
	}
	if !d.Lists[0].OverWIPLimit {
		t.Error("OverWIPLimit = false with 2 cards and limit 1")
	}
}

func TestAddMember(t *testing.T) {
	s, _, pub := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")

	d, err := s.AddMember(ctx, "owner", b.ID, " Bob@Example.com ")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if len(d.Members) != 2 {
		t.Errorf("members = %+v", d.Members)
	}
	if got := pub.boards(); len(got) != 1 || got[0] != b.ID {
		t.Errorf("published = %v, want one signal for %s", got, b.ID)
	}

	tests := []struct {
		name  string
		actor string
		email string
		want  error
	}{
		{"already member", "owner", "bob@example.com", apperr.ErrValidation},
		{"no such user", "owner", "nobody@example.com", apperr.ErrNotFound},
		{"not owner", "bob", "carol@example.com", apperr.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddMember(ctx, tt.actor, b.ID, tt.email); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(pub.boards()); n != 1 {
		t.Errorf("failed adds published %d extra signals", n-1)
	}
}

func TestRemoveMember(t *testing.T) {
	s, gormDB, pub := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")
	s.AddMember(ctx, "owner", b.ID, "bob@example.com")
	s.AddMember(ctx, "owner", b.ID, "carol@example.com")
	var list models.List
	gormDB.Where("board_id = ?", b.ID).First(&list)
	bob := "bob"
	gormDB.Create(&models.Card{ID: "c1", BoardID: b.ID, ListID: list.ID, Title: "t", AssigneeID: &bob})

	if err := s.RemoveMember(ctx, "carol", b.ID, "bob"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("member removing another: err = %v, want ErrUnauthorized", err)
	}
	if err := s.RemoveMember(ctx, "owner", b.ID, "owner"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("removing owner: err = %v, want ErrValidation", err)
	}

	before := len(pub.boards())
	if err := s.RemoveMember(ctx, "owner", b.ID, "bob"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if len(pub.boards()) != before+1 {
		t.Error("removal did not publish")
	}
	var card models.Card
	gormDB.First(&card, "id = ?", "c1")
	if card.AssigneeID != nil {
		t.Errorf("assignee = %v, want cleared", *card.AssigneeID)
	}

	if err := s.RemoveMember(ctx, "carol", b.ID, "carol"); err != nil {
		t.Errorf("leaving: %v", err)
	}
	if err := s.RemoveMember(ctx, "owner", b.ID, "carol"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("removing non-member: err = %v, want ErrNotFound", err)
	}
}

func TestRename(t *testing.T) {
	s, _, pub := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")

	got, err := s.Rename(ctx, "owner", b.ID, "Renamed")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(pub.boards()) != 1 {
		t.Error("rename did not publish")
	}
	if _, err := s.Rename(ctx, "carol", b.ID, "x"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestDelete_Cascades(t *testing.T) {
	s, gormDB, pub := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")
	keep, _ := s.Create(ctx, "owner", "B")
	s.AddMember(ctx, "owner", b.ID, "bob@example.com")
	var list models.List
	gormDB.Where("board_id = ?", b.ID).First(&list)
	gormDB.Create(&models.Card{ID: "c1", BoardID: b.ID, ListID: list.ID, Title: "t"})

	if err := s.Delete(ctx, "bob", b.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("member delete err = %v, want ErrUnauthorized", err)
	}
	if err := s.Delete(ctx, "owner", b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, tc := range []struct {
		model interface{}
		where string
	}{
		{&models.Card{}, "board_id = ?"},
		{&models.List{}, "board_id = ?"},
		{&models.BoardMember{}, "board_id = ?"},
		{&models.Board{}, "id = ?"},
	} {
		var n int64
		gormDB.Model(tc.model).Where(tc.where, b.ID).Count(&n)
		if n != 0 {
			t.Errorf("%T rows left: %d", tc.model, n)
		}
	}
	var n int64
	gormDB.Model(&models.List{}).Where("board_id = ?", keep.ID).Count(&n)
	if n != int64(len(config.DefaultLists)) {
		t.Errorf("other board lost lists: %d", n)
	}
	last := pub.boards()
	if last[len(last)-1] != b.ID {
		t.Error("delete did not publish")
	}
	if err := s.Delete(ctx, "owner", b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDelete_RollsBack(t *testing.T) {
	s, gormDB, pub := setup(t)
	ctx := context.Background()
	b, _ := s.Create(ctx, "owner", "A")

	var deletes int
	gormDB.Callback().Delete().Before("gorm:delete").Register("test:fail", func(tx *gorm.DB) {
		deletes++
		if deletes == 3 {
			tx.AddError(errors.New("injected delete failure"))
		}
	})

	err := s.Delete(ctx, "owner", b.ID)
	if !errors.Is(err, apperr.ErrTransaction) {
		t.Fatalf("err = %v, want ErrTransaction", err)
	}
	gormDB.Callback().Delete().Remove("test:fail")

	var n int64
	gormDB.Model(&models.List{}).Where("board_id = ?", b.ID).Count(&n)
	if n != int64(len(config.DefaultLists)) {
		t.Errorf("lists after failed delete = %d, want %d", n, len(config.DefaultLists))
	}
	if len(pub.boards()) != 0 {
		t.Error("failed delete published a signal")
	}
}
