package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/models"
)

// writeConfig writes a sqlite config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "switchyard.db")
	path := filepath.Join(dir, "switchyard.yaml")
	data := "database:\n  driver: sqlite\n  path: " + dbPath + "\nauth:\n  jwt_secret: test\n" + extra
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dbPath
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "", "db", "init", "--config", "/nonexistent/switchyard.yaml")
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain 'load config'", err.Error())
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	cfgPath, dbPath := writeConfig(t, "")
	out, err := runCmd(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Migrated 5 tables") {
		t.Errorf("output = %s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDBResetCmd_Aborted(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	out, err := runCmd(t, "no\n", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("output = %s", out)
	}
}

func TestDBResetCmd_SQLite(t *testing.T) {
	cfgPath, dbPath := writeConfig(t, "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gormDB, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	gormDB.Create(&models.User{ID: "u1", Name: "A", Email: "a@example.com", PasswordHash: "x"})
	sqlDB, _ := gormDB.DB()
	sqlDB.Close()

	out, err := runCmd(t, "yes\n", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Dropped database "+dbPath) {
		t.Errorf("output = %s", out)
	}

	gormDB, err = openStore(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var n int64
	gormDB.Model(&models.User{}).Count(&n)
	if n != 0 {
		t.Errorf("users after reset = %d, want 0", n)
	}
}

func TestDBCompactCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gormDB, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	gormDB.Create(&models.Board{ID: "b1", Name: "B", OwnerID: "u1"})
	gormDB.Create(&models.List{ID: "L1", BoardID: "b1", Name: "To Do", Position: 3})
	gormDB.Create(&models.Card{ID: "C1", BoardID: "b1", ListID: "L1", Title: "a", Position: 1})
	gormDB.Create(&models.Card{ID: "C2", BoardID: "b1", ListID: "L1", Title: "b", Position: 4})
	sqlDB, _ := gormDB.DB()
	sqlDB.Close()

	out, err := runCmd(t, "", "db", "compact", "--config", cfgPath, "--board", "b1")
	if err != nil {
		t.Fatalf("db compact: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Compacted 2 containers, renumbered 3 items") {
		t.Errorf("output = %s", out)
	}

	out, err = runCmd(t, "", "db", "compact", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db compact: %v\n%s", err, out)
	}
	if !strings.Contains(out, "renumbered 0 items") {
		t.Errorf("output = %s", out)
	}
}
