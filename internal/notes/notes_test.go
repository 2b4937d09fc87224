package notes

import (
	"path/filepath"
	"testing"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
)

func TestParseFrontmatter(t *testing.T) {
	t.Parallel()

	content := "---\ntitle: ops notes\ntags: [oncall, release]\n---\nRemember the deploy freeze.\n"
	fm, body, ok := ParseFrontmatter(content)
	if !ok {
		t.Fatalf("ParseFrontmatter() ok = false, want true")
	}
	if fm.Title != "ops notes" {
		t.Fatalf("ParseFrontmatter() title = %q, want %q", fm.Title, "ops notes")
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "oncall" {
		t.Fatalf("ParseFrontmatter() tags = %v, want [oncall release]", fm.Tags)
	}
	if body != "Remember the deploy freeze." {
		t.Fatalf("ParseFrontmatter() body = %q", body)
	}
}

func TestParseFrontmatterAbsent(t *testing.T) {
	t.Parallel()

	content := "just a body\nno front matter\n"
	_, body, ok := ParseFrontmatter(content)
	if ok {
		t.Fatalf("ParseFrontmatter() ok = true, want false")
	}
	if body != content {
		t.Fatalf("ParseFrontmatter() body = %q, want original content", body)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NOTES.md")
	if err := fsstore.WriteTextAtomic(path, "---\ntitle: t\n---\n  body text  \n"); err != nil {
		t.Fatalf("WriteTextAtomic() error = %v", err)
	}
	snap, ok, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatalf("Load() ok = false, want true")
	}
	if snap.Body != "body text" {
		t.Fatalf("Load() body = %q, want %q", snap.Body, "body text")
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, ok, err := Load(filepath.Join(t.TempDir(), "NOTES.md"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ok {
		t.Fatalf("Load() ok = true for missing file, want false")
	}
}
