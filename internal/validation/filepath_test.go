package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathValidator_ValidateAndSanitize(t *testing.T) {
	v := NewPathValidator()
	home, _ := os.UserHomeDir()

	tests := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
	}{
		{name: "empty", input: "", shouldError: true},
		{name: "null byte", input: "/tmp/a\x00b", shouldError: true},
		{name: "control char", input: "/tmp/a\nb", shouldError: true},
		{name: "dot-dot cleaned", input: "/tmp/casedesk/../cases.db", expected: "/tmp/cases.db"},
		{name: "bad tilde", input: "~root/.ssh", shouldError: true},
		{name: "home expansion", input: "~/.casedesk/cases.db", expected: filepath.Join(home, ".casedesk", "cases.db")},
		{name: "absolute cleaned", input: "/tmp//casedesk/./cases.db", expected: "/tmp/casedesk/cases.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateAndSanitize(tt.input)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPathValidator_RelativeBecomesAbsolute(t *testing.T) {
	got, err := NewPathValidator().ValidateAndSanitize("fixtures.toml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}
}

func TestPathValidator_ParentRelativeFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewPathValidator().ValidateFile("../x.toml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(filepath.Dir(wd), "x.toml"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	fixtures := filepath.Join("..", "storage", "testdata", "applications.toml")
	if _, err := NewPathValidator().ValidateFile(fixtures); err != nil {
		t.Errorf("fixture path rejected: %v", err)
	}
}

func TestPathValidator_ValidateFile(t *testing.T) {
	dir := t.TempDir()
	v := NewPathValidator()

	if _, err := v.ValidateFile(dir); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("expected directory error, got %v", err)
	}

	file := filepath.Join(dir, "cases.db")
	got, err := v.ValidateFile(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != file {
		t.Errorf("got %q, want %q", got, file)
	}
}

func TestPathValidator_EnsureDirectory(t *testing.T) {
	dir := t.TempDir()
	v := NewPathValidator()

	target := filepath.Join(dir, "index", "cases.bleve")
	got, err := v.EnsureDirectory(target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Fatalf("directory was not created: %v", err)
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.EnsureDirectory(file); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}
