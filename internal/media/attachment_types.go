package media

import (
	_ "embed"
	"net/url"
	"path"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed attachment_types.toml
var attachmentTypesTOML []byte

type Kind int

const (
	KindImage Kind = iota
	KindPDF
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

type KindConfig struct {
	Extensions  []string `toml:"extensions"`
	URLPatterns []string `toml:"url_patterns"`
}

type TypesConfig struct {
	Image     KindConfig                `toml:"image"`
	PDF       KindConfig                `toml:"pdf"`
	Platforms map[string]PlatformConfig `toml:"platforms"`
}

type PlatformConfig struct {
	DefaultOpener string `toml:"default_opener"`
}

type TypeDetector struct {
	config *TypesConfig
	goos   string
}

func NewTypeDetector() (*TypeDetector, error) {
	var config TypesConfig
	if _, err := toml.Decode(string(attachmentTypesTOML), &config); err != nil {
		return nil, err
	}
	return &TypeDetector{config: &config, goos: runtime.GOOS}, nil
}

// DetectKind classifies an attachment URL by the extension of its path,
// falling back to known URL fragments.
func (d *TypeDetector) DetectKind(rawURL string) Kind {
	lower := strings.ToLower(rawURL)

	p := lower
	if u, err := url.Parse(lower); err == nil {
		p = u.Path
	}
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		if slices.Contains(d.config.Image.Extensions, ext) {
			return KindImage
		}
		if slices.Contains(d.config.PDF.Extensions, ext) {
			return KindPDF
		}
	}

	if matchesPattern(lower, d.config.Image.URLPatterns) {
		return KindImage
	}
	if matchesPattern(lower, d.config.PDF.URLPatterns) {
		return KindPDF
	}
	return KindUnknown
}

func (d *TypeDetector) DefaultOpener() string {
	if pc, ok := d.config.Platforms[d.goos]; ok {
		return pc.DefaultOpener
	}
	if fallback, ok := d.config.Platforms["fallback"]; ok {
		return fallback.DefaultOpener
	}
	return "open"
}

func matchesPattern(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
