package cards

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuiltinConnectPrompt(t *testing.T) {
	library := NewLibrary("", testLogger())
	card := library.ConnectPrompt()
	if len(card) == 0 {
		t.Fatal("expected builtin connect prompt")
	}
	if !json.Valid(card) {
		t.Fatalf("invalid card json: %s", card)
	}
}

func TestIssueCardEscapesContent(t *testing.T) {
	library := NewLibrary("", testLogger())
	card, err := library.Issue(IssueCardData{
		Key:      "DEMO-1",
		Summary:  `Fix "login" page <script>`,
		Status:   "In Progress",
		Type:     "Bug",
		Priority: "High",
		Assignee: "Dana",
		URL:      "https://example.atlassian.net/browse/DEMO-1",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !json.Valid(card) {
		t.Fatalf("invalid card json: %s", card)
	}
	if !strings.Contains(string(card), `Fix \"login\" page`) {
		t.Fatalf("expected escaped summary, got %s", card)
	}
}

func TestDirectoryOverrideWins(t *testing.T) {
	dir := t.TempDir()
	override := `{"type":"AdaptiveCard","body":[{"type":"TextBlock","text":"custom prompt"}]}`
	if err := os.WriteFile(filepath.Join(dir, "connect_prompt.json.tmpl"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	library := NewLibrary(dir, testLogger())
	card := library.ConnectPrompt()
	if !strings.Contains(string(card), "custom prompt") {
		t.Fatalf("expected override, got %s", card)
	}
}

func TestBrokenOverrideKeepsBuiltin(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "connect_prompt.json.tmpl"), []byte(`{{.Broken`), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	library := NewLibrary(dir, testLogger())
	card := library.ConnectPrompt()
	if len(card) == 0 || !json.Valid(card) {
		t.Fatalf("expected builtin fallback, got %s", card)
	}
}
