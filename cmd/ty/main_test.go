package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/models"
)

// testConfig writes a config that uses the mock model and a throwaway
// sqlite file, and clears credentials the environment might carry.
func testConfig(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "TAVILY_API_KEY", "COMPOSIO_API_KEY",
		"COMPOSIO_USER_ID", "GITHUB_TOKEN", "SLACK_BOT_TOKEN", "DISCORD_BOT_TOKEN",
		"TRENDYARD_DB_DRIVER", "TRENDYARD_DB_PATH", "TRENDYARD_DB_PASSWORD",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "trendyard.yaml")
	cfg := "llm:\n  provider: mock\n" +
		"database:\n  path: " + filepath.Join(dir, "trendyard.db") + "\n" +
		"logging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeLines(t *testing.T, out string) []event.Event {
	t.Helper()
	var events []event.Event
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := event.Decode([]byte(line))
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "ty dev") {
		t.Errorf("expected output to contain 'ty dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"ty 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"version", "db", "serve", "run", "decide", "session"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestDBMigrate(t *testing.T) {
	cfg := testConfig(t)
	out, err := runCLI(t, "db", "migrate", "-c", cfg)
	if err != nil {
		t.Fatalf("db migrate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Migrated 4 tables (sqlite)") {
		t.Errorf("output = %q", out)
	}
}

func TestRunDecideShow(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI(t, "run", "-c", cfg, "-q", "Launch of an AI notebook app", "-p", "LinkedIn", "-p", "X", "-s", "s1", "-m", "deep")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	events := decodeLines(t, out)
	if len(events) == 0 {
		t.Fatal("run printed no events")
	}
	if last := events[len(events)-1].Type(); last != event.TypeApprovalRequired {
		t.Errorf("last event = %s, want approval_required", last)
	}

	out, err = runCLI(t, "decide", "-c", cfg, "s1", "approve")
	if err != nil {
		t.Fatalf("decide failed: %v\n%s", err, out)
	}
	events = decodeLines(t, out)
	var types []event.Type
	for _, ev := range events {
		types = append(types, ev.Type())
	}
	want := []event.Type{event.TypeIdeaStream, event.TypeIdeaStream, event.TypeComplete}
	if len(types) != len(want) {
		t.Fatalf("decide events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}

	out, err = runCLI(t, "session", "show", "-c", cfg, "s1")
	if err != nil {
		t.Fatalf("session show failed: %v\n%s", err, out)
	}
	var shown struct {
		Session  models.Session   `json:"session"`
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if shown.Session.Status != models.StatusComplete {
		t.Errorf("status = %s, want complete", shown.Session.Status)
	}
	if len(shown.Session.Ideas) != 2 {
		t.Errorf("ideas = %v, want 2 platforms", shown.Session.Ideas)
	}

	out, err = runCLI(t, "session", "reset", "-c", cfg, "s1")
	if err != nil {
		t.Fatalf("session reset failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"status":"researching"`) {
		t.Errorf("reset output = %s", out)
	}
}

func TestDecide_UnknownSession(t *testing.T) {
	cfg := testConfig(t)
	out, err := runCLI(t, "decide", "-c", cfg, "missing", "approve")
	if err == nil {
		t.Fatal("expected error for session without approval")
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("output = %q, want not found error", out)
	}
}

func TestDecide_InvalidAction(t *testing.T) {
	_, err := runCLI(t, "decide", "s1", "reject")
	if err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Fatalf("error = %v, want unknown action", err)
	}
}

func TestRun_RequiresQuery(t *testing.T) {
	_, err := runCLI(t, "run")
	if err == nil {
		t.Fatal("expected error without --query")
	}
}

func TestIdeasText(t *testing.T) {
	got := ideasText(map[string][]string{
		"X":        {"Thread on shipping notebooks"},
		"LinkedIn": {"Founder story about the launch"},
	})
	want := "\nLinkedIn\n  1. Founder story about the launch\n\nX\n  1. Thread on shipping notebooks\n"
	if got != want {
		t.Errorf("ideasText = %q, want %q", got, want)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("# Report\n\nbody"); got != "# Report ..." {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine = %q", got)
	}
}
