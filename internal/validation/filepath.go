package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator validates local paths for the database, the search index and
// fixture files. Relative paths, including ones that climb with "..", are
// resolved against the working directory.
type PathValidator struct {
	MaxPathLength int
}

func NewPathValidator() *PathValidator {
	return &PathValidator{MaxPathLength: 4096}
}

// DataDir holds the bbolt database, the search index and the log.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".casedesk")
}

// ConfigDir holds config.toml.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "casedesk")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ValidateAndSanitize returns path expanded, absolute and cleaned.
func (v *PathValidator) ValidateAndSanitize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if v.MaxPathLength > 0 && len(path) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	for _, r := range path {
		if r == 0 {
			return "", fmt.Errorf("path contains null bytes")
		}
		if r < 32 && r != '\t' {
			return "", fmt.Errorf("path contains control characters")
		}
	}
	if strings.HasPrefix(path, "~") && !strings.HasPrefix(path, "~/") {
		return "", fmt.Errorf("invalid tilde usage")
	}

	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

// ValidateFile validates path and rejects existing directories.
func (v *PathValidator) ValidateFile(path string) (string, error) {
	clean, err := v.ValidateAndSanitize(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(clean); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", clean)
	}
	return clean, nil
}

// EnsureDirectory validates path and creates it when missing.
func (v *PathValidator) EnsureDirectory(path string) (string, error) {
	clean, err := v.ValidateAndSanitize(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(clean)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(clean, 0o755); err != nil {
			return "", fmt.Errorf("creating directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("checking directory: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("path exists but is not a directory: %s", clean)
	}
	return clean, nil
}
