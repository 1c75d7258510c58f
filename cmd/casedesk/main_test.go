package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pders01/casedesk/internal/api"
	"github.com/pders01/casedesk/internal/config"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()

	w.Close()
	os.Stdout = old
	return <-outC
}

func TestVersionCommand(t *testing.T) {
	out := captureStdout(t, func() { versionCmd.Run(nil, nil) })

	// Version is "dev" by default in tests
	if !strings.Contains(out, "casedesk dev") {
		t.Errorf("Expected version output to contain 'casedesk dev', got: %s", out)
	}
	if !strings.Contains(out, "Crisis Relief Case Desk") {
		t.Errorf("Expected version output to contain the tagline, got: %s", out)
	}
	if !strings.Contains(out, "github.com/pders01/casedesk") {
		t.Errorf("Expected version output to contain 'github.com/pders01/casedesk', got: %s", out)
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, ".config", "casedesk", "config.toml")
	t.Setenv("HOME", tmpDir)

	out := captureStdout(t, func() { configGenCmd.Run(nil, nil) })

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Errorf("Config file was not created at %s", configFile)
	}
	if !strings.Contains(out, "Generated default configuration at:") {
		t.Errorf("Expected output to contain 'Generated default configuration at:', got: %s", out)
	}

	cfg, err := config.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Feed.PerPage)
}

// writeTestConfig points the commands at a config with a temp store.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.TestConfig()
	cfg.Server.BaseURL = "http://127.0.0.1:8000/api"
	cfg.Database.Path = filepath.Join(dir, "cases.db")
	cfg.Database.SearchIndex = filepath.Join(dir, "index.bleve")
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))

	t.Cleanup(func() {
		configPath, logLevel, dbPath = "", "", ""
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
	})
	return path
}

func TestSeedCommand(t *testing.T) {
	path := writeTestConfig(t)
	fixtures := filepath.Join("..", "..", "internal", "storage", "testdata", "applications.toml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"seed", fixtures, "--config", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Imported 20 applications (20 in store)")

	// Fixture records carry no IDs, so a second import adds copies.
	out.Reset()
	rootCmd.SetArgs([]string{"seed", fixtures, "--config", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Imported 20 applications (40 in store)")
}

func TestSeedCommand_MissingFile(t *testing.T) {
	path := writeTestConfig(t)

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() { rootCmd.SetErr(nil) })
	rootCmd.SetArgs([]string{"seed", filepath.Join(t.TempDir(), "nope.toml"), "--config", path})
	assert.Error(t, rootCmd.Execute())
}

func TestHashPasswordCommand(t *testing.T) {
	writeTestConfig(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("secret123\n"))
	rootCmd.SetArgs([]string{"hash-password"})
	require.NoError(t, rootCmd.Execute())

	hash := strings.TrimSpace(out.String())
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter22\r\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)

	pw, err = readPassword(strings.NewReader("no-newline"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = readPassword(strings.NewReader("\n"), io.Discard)
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeTestConfig(t)
	configPath = path
	logLevel = "off"
	dbPath = filepath.Join(t.TempDir(), "other.db")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dbPath, cfg.Database.Path)
	assert.Equal(t, "off", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	cfg := config.TestConfig()
	cfg.Feed.PerPage = 500
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, path))
	t.Cleanup(func() { configPath = "" })

	configPath = path
	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.per_page")
}

func TestLoginSavesOnlyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LoginResponse{User: api.User{Gmail: "desk@gmail.com"}, Token: "tok-abc"})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \""+srv.URL+"/api\"\n"), 0o644))
	t.Cleanup(func() { configPath, dbPath, loginGmail = "", "", "" })

	configPath = path
	dbPath = filepath.Join(dir, "override.db")
	loginGmail = "desk@gmail.com"

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader("secret1\n"))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	require.NoError(t, runLogin(cmd, nil))
	assert.Contains(t, out.String(), "Signed in as desk@gmail.com")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tok-abc")
	assert.NotContains(t, string(raw), "override.db", "flag overrides stay out of the file")
	assert.NotContains(t, string(raw), "database")

	configPath = path
	dbPath = ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cfg.Server.Token)
	assert.Equal(t, srv.URL+"/api", cfg.Server.BaseURL)
}
