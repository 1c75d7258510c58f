// Package media opens application attachments in an external viewer.
package media

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/casedesk/internal/config"
	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/validation"
)

type Launcher struct {
	imageViewer   string
	pdfViewer     string
	defaultOpener string
	registry      *OpenerRegistry
	detector      *TypeDetector
	validator     *validation.URLValidator
	start         func(*exec.Cmd) error
}

func NewLauncher(cfg config.AttachmentConfig) *Launcher {
	registry, err := NewOpenerRegistry()
	if err != nil {
		debuglog.Warnf("opener table unavailable: %v", err)
		registry = &OpenerRegistry{openers: map[string]OpenerDefinition{}, goos: runtime.GOOS}
	}

	detector, err := NewTypeDetector()
	if err != nil {
		debuglog.Warnf("attachment type table unavailable: %v", err)
		detector = &TypeDetector{config: &TypesConfig{}, goos: runtime.GOOS}
	}

	defaultOpener := cfg.DefaultOpener
	if defaultOpener == "" {
		defaultOpener = detector.DefaultOpener()
	}

	var openers config.AttachmentOpeners
	switch runtime.GOOS {
	case "darwin":
		openers = cfg.Darwin
	case "linux":
		openers = cfg.Linux
	case "windows":
		openers = cfg.Windows
	default:
		openers = cfg.Linux
	}

	validator := validation.NewAttachmentURLValidator()
	if cfg.PublicHostsOnly {
		validator = validation.NewStrictURLValidator()
	}

	l := &Launcher{
		imageViewer:   registry.FirstAvailable(openers.Image),
		pdfViewer:     registry.FirstAvailable(openers.PDF),
		defaultOpener: defaultOpener,
		registry:      registry,
		detector:      detector,
		validator:     validator,
		start:         startDetached,
	}
	if l.imageViewer == "" {
		l.imageViewer = defaultOpener
	}
	if l.pdfViewer == "" {
		l.pdfViewer = defaultOpener
	}
	return l
}

// Open validates rawURL and hands it to the viewer for its kind.
func (l *Launcher) Open(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("application has no attachment")
	}
	clean, err := l.validator.ValidateAndNormalize(rawURL)
	if err != nil {
		return fmt.Errorf("attachment url: %w", err)
	}

	cmd, opener, err := l.Command(clean)
	if err != nil {
		return err
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", opener, err)
	}
	debuglog.Infof("opened %s with %s", clean, opener)
	return nil
}

// Command resolves the viewer and arguments for a validated URL without
// starting anything.
func (l *Launcher) Command(url string) (*exec.Cmd, string, error) {
	kind := l.detector.DetectKind(url)

	var opener string
	switch kind {
	case KindImage:
		opener = l.imageViewer
	case KindPDF:
		opener = l.pdfViewer
	default:
		opener = l.defaultOpener
	}
	if opener == "" {
		return nil, "", fmt.Errorf("no application found to open %s attachments", kind)
	}

	cmd, err := l.registry.Command(opener, kind, url)
	if err != nil {
		// Unknown kinds and openers without a matching entry get the URL only.
		cmd = exec.Command(opener, url)
	}
	return cmd, opener, nil
}

// startDetached starts a GUI viewer without waiting for it to exit.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
