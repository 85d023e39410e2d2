package walker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeCorpus creates a small documentation tree under a temp dir.
func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"README.md":               "# Project\n\nOverview.",
		"guides/deploy.md":        "# Deploying\n\nRun make deploy.",
		"guides/rollback.txt":     "Rolling back a release.",
		"notes/meeting-2024.txt":  "Decisions from the planning meeting.",
		"design/architecture.rst": "Architecture\n============",
		"scripts/build.sh":        "#!/bin/sh\nmake",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	sort.Strings(out)
	return out
}

func TestWalk_BasicTraversal(t *testing.T) {
	dir := writeCorpus(t)

	files, err := Walk(WalkerConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("expected 5 documents, got %d: %v", len(files), relPaths(files))
	}

	found := make(map[string]bool)
	for _, f := range files {
		found[f.RelPath] = true
	}
	for _, want := range []string{"README.md", "guides/deploy.md", "design/architecture.rst"} {
		if !found[want] {
			t.Errorf("expected file %q not found in walk results", want)
		}
	}
	if found["scripts/build.sh"] {
		t.Error("shell scripts are not documents and should be skipped")
	}
}

func TestWalk_Formats(t *testing.T) {
	dir := writeCorpus(t)

	files, err := Walk(WalkerConfig{RootDir: dir, Formats: []Format{FormatOther}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := relPaths(files); len(got) != 1 || got[0] != "scripts/build.sh" {
		t.Errorf("got %v, want only scripts/build.sh", got)
	}

	files, err = Walk(WalkerConfig{RootDir: dir, Formats: []Format{FormatMarkdown}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := relPaths(files); len(got) != 2 {
		t.Errorf("markdown only: got %v", got)
	}
}

func TestWalk_FileInfoFields(t *testing.T) {
	dir := writeCorpus(t)

	files, err := Walk(WalkerConfig{RootDir: dir, Include: []string{"guides/deploy.md"}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	f := files[0]
	if !filepath.IsAbs(f.Path) {
		t.Errorf("Path should be absolute, got %q", f.Path)
	}
	if f.Size == 0 || f.ContentHash == "" || f.ModTime.IsZero() {
		t.Errorf("incomplete FileInfo: %+v", f)
	}
	if f.Format != FormatMarkdown {
		t.Errorf("Format = %q, want markdown", f.Format)
	}
	root, _ := filepath.Abs(dir)
	if want := PathKey(root, "guides/deploy.md"); f.Key != want {
		t.Errorf("Key = %q, want %q", f.Key, want)
	}
}

func TestPathKey(t *testing.T) {
	if got := PathKey("/srv/docs/", "a/b.md"); got != "/srv/docs/a/b.md" {
		t.Errorf("PathKey = %q", got)
	}
	if PathKey("/srv/a", "README.md") == PathKey("/srv/b", "README.md") {
		t.Error("keys from different roots must differ")
	}
}

func TestWalk_IncludeFilter(t *testing.T) {
	dir := writeCorpus(t)

	files, err := Walk(WalkerConfig{RootDir: dir, Include: []string{"**/*.md"}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got := relPaths(files)
	want := []string{"README.md", "guides/deploy.md"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalk_ExcludeFilter(t *testing.T) {
	dir := writeCorpus(t)

	files, err := Walk(WalkerConfig{RootDir: dir, Exclude: []string{"notes/**", "*.sh"}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	for _, f := range files {
		if f.RelPath == "notes/meeting-2024.txt" || f.RelPath == "scripts/build.sh" {
			t.Errorf("%s should have been excluded", f.RelPath)
		}
	}
	if len(files) != 4 {
		t.Errorf("expected 4 files, got %v", relPaths(files))
	}
}

func TestWalk_SkipsBinaryFiles(t *testing.T) {
	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, "readme.md"), []byte("# Hello"), 0644)

	// NUL bytes mark binary content even behind a document extension.
	binary := []byte("export\x00\x01\x02 data")
	os.WriteFile(filepath.Join(tmpDir, "dump.txt"), binary, 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "readme.md" {
		t.Errorf("expected only readme.md, got %v", relPaths(files))
	}
}

func TestWalk_SkipsLargeFiles(t *testing.T) {
	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, "small.txt"), []byte("small"), 0644)
	big := make([]byte, 200)
	for i := range big {
		big[i] = 'A'
	}
	os.WriteFile(filepath.Join(tmpDir, "big.txt"), big, 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir, MaxFileSize: 100})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	for _, f := range files {
		if f.RelPath == "big.txt" {
			t.Error("big.txt should have been skipped (exceeds MaxFileSize)")
		}
	}
}

func TestWalk_DefaultExcludeDirs(t *testing.T) {
	tmpDir := t.TempDir()

	for _, dir := range []string{"node_modules", ".git", "vendor", ".ctxpack"} {
		dirPath := filepath.Join(tmpDir, dir)
		os.MkdirAll(dirPath, 0755)
		os.WriteFile(filepath.Join(dirPath, "notes.md"), []byte("content"), 0644)
	}
	os.WriteFile(filepath.Join(tmpDir, "guide.md"), []byte("# Guide"), 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %v", relPaths(files))
	}
}

func TestWalk_Gitignore(t *testing.T) {
	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("*.log\ndrafts/\nsecret.md\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "guide.md"), []byte("# Guide"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "debug.log"), []byte("log data"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "secret.md"), []byte("password"), 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	paths := relPaths(files)
	for _, rp := range paths {
		if rp == "debug.log" || rp == "secret.md" {
			t.Errorf("file %q should be excluded by .gitignore", rp)
		}
	}
	foundGuide := false
	for _, rp := range paths {
		if rp == "guide.md" {
			foundGuide = true
		}
	}
	if !foundGuide {
		t.Error("guide.md should not be excluded")
	}
}

func TestWalk_GitignoreDirectoriesAndNegation(t *testing.T) {
	tmpDir := t.TempDir()

	rules := "drafts/\n*.txt\n!keep.txt\n/archive/*.md\n"
	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(rules), 0644)
	for _, rel := range []string{
		"guide.md",
		"drafts/wip.md",
		"notes/scratch.txt",
		"notes/keep.txt",
		"archive/old.md",
		"guides/archive/current.md",
	} {
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		os.MkdirAll(filepath.Dir(path), 0755)
		os.WriteFile(path, []byte("# "+rel), 0644)
	}

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got := relPaths(files)
	want := []string{"guide.md", "guides/archive/current.md", "notes/keep.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestWalk_ContentHashConsistency(t *testing.T) {
	dir := writeCorpus(t)

	files1, err := Walk(WalkerConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	files2, err := Walk(WalkerConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	hash1 := make(map[string]string)
	for _, f := range files1 {
		hash1[f.RelPath] = f.ContentHash
	}
	for _, f := range files2 {
		if hash1[f.RelPath] != f.ContentHash {
			t.Errorf("hash mismatch for %s", f.RelPath)
		}
	}

	// Editing a file changes its hash.
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Project\n\nChanged."), 0o644)
	files3, _ := Walk(WalkerConfig{RootDir: dir, Include: []string{"README.md"}})
	if len(files3) != 1 || files3[0].ContentHash == hash1["README.md"] {
		t.Error("expected README.md hash to change after edit")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"README.md", FormatMarkdown},
		{"docs/Guide.MARKDOWN", FormatMarkdown},
		{"page.mdx", FormatMarkdown},
		{"notes.txt", FormatText},
		{"design.rst", FormatText},
		{"manual.adoc", FormatText},
		{"main.go", FormatOther},
		{"noextension", FormatOther},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.name); got != tc.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestMatchesInclude(t *testing.T) {
	if !MatchesInclude("anything.md", nil) {
		t.Error("empty include should match everything")
	}
	if !MatchesInclude("docs/a/b/guide.md", []string{"docs/**/*.md"}) {
		t.Error("doublestar include should match nested file")
	}
	if !MatchesInclude("deep/path/notes.txt", []string{"*.txt"}) {
		t.Error("basename pattern should match nested file")
	}
	if MatchesInclude("guide.md", []string{"*.txt"}) {
		t.Error("guide.md should not match *.txt")
	}
}

func TestMatchesExclude(t *testing.T) {
	if MatchesExclude("anything.md", nil) {
		t.Error("empty exclude should match nothing")
	}
	if !MatchesExclude("archive/2020/old.md", []string{"archive/**"}) {
		t.Error("archive/** should exclude nested file")
	}
}
