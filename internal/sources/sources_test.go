package sources

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/goccy/go-json"

	"github.com/raoulx24/snapkeeper/internal/logging"
)

func TestGradYearVariants(t *testing.T) {
	tests := []struct {
		in     string
		want   GradYear
		render string
	}{
		{`2026`, GradYear{Year: 2026}, "2026"},
		{`"2026"`, GradYear{Text: "2026", IsText: true}, "2026"},
		{`"graduated"`, GradYear{Text: "graduated", IsText: true}, "graduated"},
	}
	for _, tt := range tests {
		var g GradYear
		if err := json.Unmarshal([]byte(tt.in), &g); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if g != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, g, tt.want)
		}
		if g.String() != tt.render {
			t.Errorf("String() = %q", g.String())
		}
		out, err := json.Marshal(g)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != tt.in {
			t.Errorf("Marshal = %s, want %s", out, tt.in)
		}
	}

	for _, bad := range []string{`true`, `-1`, `70000`, `[]`} {
		var g GradYear
		if err := json.Unmarshal([]byte(bad), &g); err == nil {
			t.Errorf("Unmarshal(%s) accepted", bad)
		}
	}
}

func TestDirSourceFetchAll(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.json", `[{"email":"a@example.org","grad_year":2027,"cad_skills":[{"check":true,"level":3,"name":"onshape"}]}]`)
	write("b.json", `[{"email":"b@example.org","grad_year":"2028"},{"email":"c@example.org","grad_year":2029}]`)
	write("broken.json", `{"not":"an array"}`)
	write("notes.txt", `ignored`)

	src := NewDirSource(dir, logging.Nop())
	recs, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Email != "a@example.org" || recs[0].GradYear.Year != 2027 {
		t.Errorf("first record = %+v", recs[0])
	}
	if len(recs[0].CADSkills) != 1 || recs[0].CADSkills[0].Level != 3 {
		t.Errorf("skills = %+v", recs[0].CADSkills)
	}
	if !recs[1].GradYear.IsText || recs[1].GradYear.Text != "2028" {
		t.Errorf("second grad year = %+v", recs[1].GradYear)
	}
}

func TestDirSourceMissingDir(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "absent"), logging.Nop())
	if _, err := src.FetchAll(context.Background()); err == nil {
		t.Fatal("missing directory accepted")
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, msg string, when time.Time) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(msg), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "backup", Email: "backup@example.org", When: when}
	h, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestGitSourceNewestFirst(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := commitFile(t, repo, dir, "a.json", "week 1", base)
	second := commitFile(t, repo, dir, "b.json", "week 2", base.Add(time.Hour))

	commits, err := NewGitSource(dir, logging.Nop()).FetchCommits(context.Background())
	if err != nil {
		t.Fatalf("FetchCommits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits", len(commits))
	}
	if !bytes.Equal(commits[0].ID, second[:]) || commits[0].Message != "week 2" {
		t.Errorf("newest = %x %q", commits[0].ID, commits[0].Message)
	}
	if !bytes.Equal(commits[1].ID, first[:]) || commits[1].Message != "week 1" {
		t.Errorf("oldest = %x %q", commits[1].ID, commits[1].Message)
	}
}

func TestGitSourceEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}
	commits, err := NewGitSource(dir, logging.Nop()).FetchCommits(context.Background())
	if err != nil {
		t.Fatalf("FetchCommits: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("commits = %v", commits)
	}
}

func TestGitSourceNotARepo(t *testing.T) {
	if _, err := NewGitSource(t.TempDir(), logging.Nop()).FetchCommits(context.Background()); err == nil {
		t.Fatal("plain directory accepted as repository")
	}
}
