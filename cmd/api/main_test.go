package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	want := [][]string{
		{"serve"},
		{"migrate"},
		{"export"},
		{"operator"},
		{"operator", "create"},
		{"operator", "link-telegram"},
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(path)
		name := path[len(path)-1]
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %v not registered (err %v)", path, err)
		}
	}
}

func TestOperatorLinkTelegramNeedsDatabase(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"operator", "link-telegram", "--email", "ops@example.com", "--telegram-id", "42"})
	if err := rootCmd.Execute(); !errors.Is(err, errOperatorsNeedDatabase) {
		t.Errorf("err = %v, want %v", err, errOperatorsNeedDatabase)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"export", "--format", "pdf"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestExportWritesHeaderOnlyCSVForEmptyStore(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")
	out := filepath.Join(t.TempDir(), "tickets.csv")

	rootCmd.SetArgs([]string{"export", "--format", "csv", "-o", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}
	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("\ufeff")) {
		t.Errorf("missing BOM: %q", body)
	}
	if strings.Contains(string(body), "\n") {
		t.Errorf("expected only the header row, got %q", body)
	}
}

func TestMigrateNeedsDatabase(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"migrate", "up"})
	if err := rootCmd.Execute(); !errors.Is(err, errNoDatabase) {
		t.Errorf("err = %v, want %v", err, errNoDatabase)
	}
}
