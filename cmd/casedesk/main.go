package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/pders01/casedesk/internal/api"
	"github.com/pders01/casedesk/internal/backend"
	"github.com/pders01/casedesk/internal/config"
	"github.com/pders01/casedesk/internal/debuglog"
	"github.com/pders01/casedesk/internal/media"
	"github.com/pders01/casedesk/internal/search"
	"github.com/pders01/casedesk/internal/server"
	"github.com/pders01/casedesk/internal/storage"
	"github.com/pders01/casedesk/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	logLevel   string
	dbPath     string
	quiet      bool
	useLocal   bool
	loginGmail string
)

var rootCmd = &cobra.Command{
	Use:   "casedesk",
	Short: "Browse crisis-relief applications in the terminal",
	Long: `casedesk lists, searches and manages crisis-relief applications.

By default it talks to the case API at server.base_url. With --local it reads
the bbolt store directly; "casedesk serve" exposes that store over HTTP.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("casedesk %s\n", Version)
		fmt.Println(tui.Tagline)
		fmt.Println("github.com/pders01/casedesk")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"generate"},
	Short:   "Write the default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.GenerateDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at: %s\n", path)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local store over the case API",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed FILE.toml",
	Short: "Import applications from a TOML fixture file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the case API and save the token",
	RunE:  runLogin,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for listen.password_hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		hash, err := server.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Skip startup banner")
	rootCmd.Flags().BoolVar(&useLocal, "local", false, "Read the local store instead of the case API")
	loginCmd.Flags().StringVar(&loginGmail, "gmail", "", "Account gmail")
	_ = loginCmd.MarkFlagRequired("gmail")

	rootCmd.Version = Version
	configCmd.AddCommand(configGenCmd)
	rootCmd.AddCommand(versionCmd, configCmd, serveCmd, seedCmd, loginCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads, overrides and validates the configuration and starts
// logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if level := debuglog.ParseLogLevel(cfg.Log.Level); level != debuglog.LevelOff {
		if err := debuglog.Setup(level, cfg.Log.File); err != nil {
			return nil, fmt.Errorf("setting up log: %w", err)
		}
	}
	return cfg, nil
}

// openLocal opens the store and its search index.
func openLocal(cfg *config.Config) (*backend.Local, func(), error) {
	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, err
	}
	searcher, closeIndex := search.Open(store, cfg.Database.SearchIndex)
	cleanup := func() {
		if err := closeIndex(); err != nil {
			debuglog.Warnf("closing search index: %v", err)
		}
		if err := store.Close(); err != nil {
			debuglog.Warnf("closing store: %v", err)
		}
	}
	return backend.NewLocal(store, searcher, cfg.Feed.PerPage), cleanup, nil
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Server.BaseURL, cfg.Server.Token,
		api.WithTimeout(cfg.Server.HTTPTimeout),
		api.WithUserAgent(cfg.Server.UserAgent),
	)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	if !quiet {
		tui.ShowBanner(Version)
	}
	tui.ApplyTheme(cfg.UI.Colors)

	var service tui.CaseService
	if useLocal {
		local, cleanup, err := openLocal(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		service = local
	} else {
		service = newClient(cfg)
	}

	app := tui.NewApp(service, media.NewLauncher(cfg.Attachments), cfg)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	local, cleanup, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	auth := server.NewAuth(cfg.Listen)
	srv := server.NewServer(cfg.Listen.Addr, local, auth)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	count, _ := local.Count()
	fmt.Printf("casedesk %s serving %d applications on http://%s/api\n", Version, count, srv.Addr())
	if auth == nil {
		fmt.Println("Login disabled: every route is open. Set listen.gmail to require a token.")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-srv.Err():
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")
		return srv.Stop()
	})
	return g.Wait()
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	local, cleanup, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := local.ImportFixtures(args[0])
	if err != nil {
		return err
	}
	total, err := local.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d applications (%d in store)\n", n, total)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.HTTPTimeout)
	defer cancel()
	resp, err := newClient(cfg).Login(ctx, loginGmail, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("login rejected: %w", err)
		}
		return fmt.Errorf("login: %w", err)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.SaveToken(path, resp.Token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s; token saved to %s\n", resp.User.Gmail, path)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
