package main

import (
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/api"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/notify"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg, err := config.Parse([]byte("auth:\n  jwt_secret: test\nboards:\n  default_lists: [Backlog, Done]\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	gormDB, err := db.OpenTestDB()
	if err != nil {
		t.Fatalf("OpenTestDB: %v", err)
	}
	hub := notify.NewHub(nil)
	svc := newServices(cfg, gormDB, hub)
	s := &api.Server{
		Users:  svc.users,
		Tokens: auth.NewTokens(cfg.Auth.JWTSecret, time.Hour),
		Boards: svc.boards,
		Lists:  svc.lists,
		Cards:  svc.cards,
		Hub:    hub,
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

var (
	tokenRe = regexp.MustCompile(envToken + `=(\S+)`)
	idRe    = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)
)

func mustMatch(t *testing.T, re *regexp.Regexp, out string) string {
	t.Helper()
	m := re.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no match for %s in:\n%s", re, out)
	}
	return m[1]
}

func TestRemote_NoToken(t *testing.T) {
	t.Setenv(envToken, "")
	_, err := runCmd(t, "", "board", "list", "--server", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "no token") {
		t.Fatalf("err = %v, want no token", err)
	}
}

func TestRemote_Workflow(t *testing.T) {
	url := startTestServer(t)
	t.Setenv(envServer, url)
	t.Setenv(envToken, "")

	out, err := runCmd(t, "secret123\n", "register", "--name", "Alice", "--email", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Logged in as Alice <alice@example.com>") {
		t.Errorf("register output = %s", out)
	}

	_, err = runCmd(t, "wrong-password\n", "login", "--email", "alice@example.com")
	if err == nil {
		t.Fatal("expected login failure with wrong password")
	}
	out, err = runCmd(t, "secret123\n", "login", "--email", "alice@example.com")
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	token := mustMatch(t, tokenRe, out)
	t.Setenv(envToken, token)

	out, err = runCmd(t, "", "board", "create", "Sprint")
	if err != nil {
		t.Fatalf("board create: %v\n%s", err, out)
	}
	boardID := mustMatch(t, idRe, out)

	out, err = runCmd(t, "", "board", "list")
	if err != nil || !strings.Contains(out, boardID) || !strings.Contains(out, "Sprint") {
		t.Fatalf("board list: %v\n%s", err, out)
	}

	out, err = runCmd(t, "", "board", "show", boardID)
	if err != nil {
		t.Fatalf("board show: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[0] Backlog") || !strings.Contains(out, "[1] Done") {
		t.Errorf("board show = %s", out)
	}

	out, err = runCmd(t, "", "list", "create", boardID, "Blocked")
	if err != nil || !strings.Contains(out, "at position 2") {
		t.Fatalf("list create: %v\n%s", err, out)
	}
	listID := mustMatch(t, idRe, out)

	var cardIDs []string
	for _, title := range []string{"first", "second", "third"} {
		out, err = runCmd(t, "", "card", "create", listID, title, "--priority", "High")
		if err != nil {
			t.Fatalf("card create: %v\n%s", err, out)
		}
		cardIDs = append(cardIDs, mustMatch(t, idRe, out))
	}

	out, err = runCmd(t, "", "card", "move", cardIDs[2], listID, "0")
	if err != nil || !strings.Contains(out, "Moved card third to position 0") {
		t.Fatalf("card move: %v\n%s", err, out)
	}

	out, err = runCmd(t, "", "card", "edit", cardIDs[0], "--tag", "Bug", "--title", "first!")
	if err != nil || !strings.Contains(out, "Updated card first!") {
		t.Fatalf("card edit: %v\n%s", err, out)
	}
	if _, err := runCmd(t, "", "card", "edit", cardIDs[0]); err == nil {
		t.Error("expected error for edit without flags")
	}

	out, err = runCmd(t, "", "list", "wip", listID, "2")
	if err != nil || !strings.Contains(out, "Set WIP limit on Blocked to 2") {
		t.Fatalf("list wip: %v\n%s", err, out)
	}

	out, err = runCmd(t, "", "board", "show", boardID)
	if err != nil {
		t.Fatalf("board show: %v\n%s", err, out)
	}
	third := strings.Index(out, "0. third")
	first := strings.Index(out, "1. first!")
	second := strings.Index(out, "2. second")
	if third < 0 || first < third || second < first {
		t.Errorf("cards out of order:\n%s", out)
	}
	if !strings.Contains(out, "(3/2) OVER WIP LIMIT") {
		t.Errorf("missing WIP warning:\n%s", out)
	}

	out, err = runCmd(t, "", "list", "move", listID, "0")
	if err != nil || !strings.Contains(out, "Moved list Blocked to position 0") {
		t.Fatalf("list move: %v\n%s", err, out)
	}

	if out, err = runCmd(t, "", "card", "delete", cardIDs[1]); err != nil {
		t.Fatalf("card delete: %v\n%s", err, out)
	}
	if out, err = runCmd(t, "", "list", "wip", listID, "none"); err != nil || !strings.Contains(out, "Cleared") {
		t.Fatalf("list wip none: %v\n%s", err, out)
	}

	if _, err := runCmd(t, "", "card", "move", "missing", listID, "0"); err == nil {
		t.Error("expected not found error")
	}
	if _, err := runCmd(t, "", "list", "wip", listID, "0"); err == nil {
		t.Error("expected error for zero WIP limit")
	}

	if out, err = runCmd(t, "", "board", "delete", boardID); err != nil {
		t.Fatalf("board delete: %v\n%s", err, out)
	}
	if _, err := runCmd(t, "", "board", "show", boardID); err == nil {
		t.Error("expected error showing a deleted board")
	}
}
