package media

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/casedesk/internal/validation"
)

//go:embed openers.toml
var openersTOML []byte

// OpenerDefinition describes how a viewer is invoked for each kind.
type OpenerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	// Command replaces the opener name as the executable, for shell
	// builtins such as the Windows start command.
	Command string      `toml:"command,omitempty"`
	Image   *OpenerArgs `toml:"image,omitempty"`
	PDF     *OpenerArgs `toml:"pdf,omitempty"`
}

type OpenerArgs struct {
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type OpenersConfig struct {
	Openers map[string]OpenerDefinition `toml:"openers"`
}

type OpenerRegistry struct {
	openers map[string]OpenerDefinition
	goos    string
}

// NewOpenerRegistry loads the built-in table and merges
// ~/.config/casedesk/openers.toml over it when present.
func NewOpenerRegistry() (*OpenerRegistry, error) {
	var config OpenersConfig
	if err := toml.Unmarshal(openersTOML, &config); err != nil {
		return nil, fmt.Errorf("parsing openers.toml: %w", err)
	}

	r := &OpenerRegistry{openers: config.Openers, goos: runtime.GOOS}
	r.loadUserConfig(filepath.Join(validation.ConfigDir(), "openers.toml"))
	return r, nil
}

func (r *OpenerRegistry) loadUserConfig(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var user OpenersConfig
	if err := toml.Unmarshal(data, &user); err != nil {
		return
	}
	for name, def := range user.Openers {
		r.openers[name] = def
	}
}

// Command builds the invocation of opener for an attachment of kind k.
// Openers missing from the table are run with the URL as their only
// argument.
func (r *OpenerRegistry) Command(opener string, k Kind, url string) (*exec.Cmd, error) {
	def, ok := r.openers[opener]
	if !ok {
		return exec.Command(opener, url), nil
	}
	if !slices.Contains(def.Platforms, r.goos) {
		return nil, fmt.Errorf("%s not supported on %s", opener, r.goos)
	}

	var args *OpenerArgs
	switch k {
	case KindImage:
		args = def.Image
	case KindPDF:
		args = def.PDF
	}
	if args == nil {
		return nil, fmt.Errorf("%s cannot open %s attachments", opener, k)
	}

	name := opener
	if def.Command != "" {
		name = def.Command
	}
	argv := append(slices.Clone(r.platformArgs(args)), url)
	return exec.Command(name, argv...), nil
}

func (r *OpenerRegistry) platformArgs(a *OpenerArgs) []string {
	switch r.goos {
	case "darwin":
		if len(a.ArgsDarwin) > 0 {
			return a.ArgsDarwin
		}
	case "linux":
		if len(a.ArgsLinux) > 0 {
			return a.ArgsLinux
		}
	case "windows":
		if len(a.ArgsWindows) > 0 {
			return a.ArgsWindows
		}
	}
	return a.Args
}

// Available reports whether the opener's executable is on PATH.
func (r *OpenerRegistry) Available(opener string) bool {
	name := opener
	if def, ok := r.openers[opener]; ok && def.Command != "" {
		name = def.Command
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// FirstAvailable returns the first installed opener from candidates.
func (r *OpenerRegistry) FirstAvailable(candidates []string) string {
	for _, c := range candidates {
		if r.Available(c) {
			return c
		}
	}
	return ""
}
