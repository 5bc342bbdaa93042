package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newClone creates a bare origin with one commit on main and returns a
// working clone of it plus the origin path.
func newClone(t *testing.T) (clone, origin string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	origin = t.TempDir()
	gitIn(t, origin, "init", "--bare", "--initial-branch=main")

	clone = filepath.Join(t.TempDir(), "exports")
	gitIn(t, filepath.Dir(clone), "clone", origin, clone)
	gitIn(t, clone, "config", "user.email", "relay@example.com")
	gitIn(t, clone, "config", "user.name", "Relay")
	gitIn(t, clone, "checkout", "-B", "main")
	gitIn(t, clone, "commit", "--allow-empty", "-m", "init")
	gitIn(t, clone, "push", "origin", "main")
	return clone, origin
}

func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestGitDestination(t *testing.T) {
	clone, origin := newClone(t)
	dest := NewGitDestination(clone, "readings.jsonl", "main")
	ctx := context.Background()

	first := []byte(`{"version":"1","type":"header","reading_count":2}` + "\n")
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(clone, "readings.jsonl"))
	if err != nil || string(got) != string(first) {
		t.Fatalf("export = %q, %v", got, err)
	}
	if msg := gitIn(t, origin, "log", "-1", "--format=%s", "main"); msg != "motion: export 2 readings" {
		t.Errorf("pushed commit message = %q", msg)
	}

	// Same export again makes no commit.
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("unchanged write: %v", err)
	}
	if n := gitIn(t, origin, "rev-list", "--count", "main"); n != "2" {
		t.Errorf("commits on origin = %s, want 2", n)
	}

	second := []byte(`{"version":"1","type":"header","reading_count":1}` + "\n")
	if err := dest.Write(ctx, second); err != nil {
		t.Fatalf("changed write: %v", err)
	}
	if n := gitIn(t, origin, "rev-list", "--count", "main"); n != "3" {
		t.Errorf("commits on origin = %s, want 3", n)
	}
	if msg := gitIn(t, origin, "log", "-1", "--format=%s", "main"); msg != "motion: export 1 reading" {
		t.Errorf("pushed commit message = %q", msg)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	clone, _ := newClone(t)
	dest := NewGitDestination(clone, "devices/lab/readings.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(clone, "devices", "lab", "readings.jsonl"))
	if err != nil || string(got) != string(data) {
		t.Fatalf("export = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Join(clone, "devices", "lab"))
	if len(entries) != 1 {
		t.Errorf("expected only the export in the directory, got %d entries", len(entries))
	}
}

func TestGitDestination_ErrorCarriesStderr(t *testing.T) {
	clone, _ := newClone(t)
	dest := NewGitDestination(clone, "readings.jsonl", "no-such-branch")

	err := dest.Write(context.Background(), []byte("{}\n"))
	if err == nil {
		t.Fatal("expected checkout of a missing branch to fail")
	}
	if !strings.Contains(err.Error(), "git checkout") || !strings.Contains(err.Error(), "no-such-branch") {
		t.Errorf("error = %v, want git stderr included", err)
	}
}

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"type":"header","reading_count":0}`, "motion: export 0 readings"},
		{`{"type":"header","reading_count":1}` + "\n" + `{"type":"reading"}`, "motion: export 1 reading"},
		{`{"type":"header","reading_count":37}`, "motion: export 37 readings"},
		{`{"type":"reading"}`, "motion: update readings export"},
		{`garbage`, "motion: update readings export"},
		{``, "motion: update readings export"},
	}
	for _, tt := range tests {
		if got := commitMessage([]byte(tt.data)); got != tt.want {
			t.Errorf("commitMessage(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
