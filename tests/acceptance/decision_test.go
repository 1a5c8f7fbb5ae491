package acceptance

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// headelf runs the binary against root with git auditing off.
func headelf(t *testing.T, root string, args ...string) string {
	t.Helper()
	cmd := exec.Command(binary, append([]string{"--root", root, "--no-git", "--log-level", "error"}, args...)...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "HOME="+root, "NO_COLOR=1")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("headelf %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
	return string(output)
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()
	headelf(t, root, "init")

	for _, dir := range []string{
		"data/decisions/by-role",
		"data/decisions/by-date",
		"data/contexts/users",
		"data/analytics/snapshots",
		"data/analytics/trends",
		"data/extensions",
	} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "data", ".gitignore")); err != nil {
		t.Errorf("expected data/.gitignore: %v", err)
	}
}

func TestDecisionLifecycle(t *testing.T) {
	root := t.TempDir()

	output := headelf(t, root, "decision", "record",
		"--role", "CTO",
		"--type", "technology_strategy",
		"--query", "Evaluate cloud migration",
		"--confidence", "0.87",
		"--user", "demo_cto",
		"--context", "industry=retail")

	id := regexp.MustCompile(`\d+-[0-9a-f]{8}`).FindString(output)
	if id == "" {
		t.Fatalf("record output should contain the decision id. Got: %s", output)
	}

	var history []map[string]any
	if err := json.Unmarshal([]byte(headelf(t, root, "decision", "history", "--user", "demo_cto", "-o", "json")), &history); err != nil {
		t.Fatalf("history output is not JSON: %v", err)
	}
	if len(history) != 1 || history[0]["id"] != id {
		t.Fatalf("expected history to hold %s, got %v", id, history)
	}
	if history[0]["executive_role"] != "CTO" || history[0]["confidence"] != 0.87 {
		t.Errorf("unexpected decision: %v", history[0])
	}

	shown := headelf(t, root, "decision", "show", id, "-o", "yaml")
	if !strings.Contains(shown, "query: Evaluate cloud migration") {
		t.Errorf("show output should contain the query. Got: %s", shown)
	}

	ctxOut := headelf(t, root, "context", "show", "demo_cto", "-o", "json")
	var uc map[string]any
	if err := json.Unmarshal([]byte(ctxOut), &uc); err != nil {
		t.Fatalf("context output is not JSON: %v", err)
	}
	if uc["last_decision"] != id || uc["decision_count"] != float64(1) {
		t.Errorf("unexpected user context: %v", uc)
	}

	headelf(t, root, "context", "update", "demo_cto", "--set", `organization_profile={"industry":"retail"}`)
	ctxOut = headelf(t, root, "context", "show", "demo_cto", "-o", "yaml")
	if !strings.Contains(ctxOut, "industry: retail") {
		t.Errorf("context update should be visible. Got: %s", ctxOut)
	}
}

func TestAnalyticsCommand(t *testing.T) {
	root := t.TempDir()
	for _, role := range []string{"CTO", "CFO", "CFO"} {
		headelf(t, root, "decision", "record", "--role", role, "--type", "budget", "--query", "Q3 plan", "--confidence", "0.5")
	}

	var snapshot map[string]any
	if err := json.Unmarshal([]byte(headelf(t, root, "analytics", "-o", "json")), &snapshot); err != nil {
		t.Fatalf("analytics output is not JSON: %v", err)
	}
	if snapshot["total_decisions"] != float64(3) {
		t.Errorf("expected 3 decisions, got %v", snapshot["total_decisions"])
	}

	entries, err := os.ReadDir(filepath.Join(root, "data", "analytics", "snapshots"))
	if err != nil || len(entries) != 1 {
		t.Errorf("expected one snapshot file, got %v (%v)", entries, err)
	}
}

func TestDecisionShowUnknown(t *testing.T) {
	root := t.TempDir()
	cmd := exec.Command(binary, "--root", root, "--no-git", "decision", "show", "0-00000000")
	cmd.Env = append(os.Environ(), "HOME="+root, "NO_COLOR=1")
	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected show of unknown decision to fail. Got: %s", output)
	}
	if !strings.Contains(string(output), "decision not found") {
		t.Errorf("expected a not found message. Got: %s", output)
	}
}
