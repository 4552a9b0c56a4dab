package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexahealth/nexa/internal/config"
	"github.com/nexahealth/nexa/internal/logger"
	"github.com/nexahealth/nexa/internal/session"
	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.ErrorNotice(err))
		os.Exit(1)
	}
}

// app is the per-invocation state shared by the commands.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfgPath   string
	apiURL    string
	principal string
	verbose   bool

	cfg     *config.Config
	log     *logger.ZapLogger
	durable tokenstore.Backend
	session *session.Manager
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexa",
		Short: "NexaHealth from the terminal",
		Long: `nexa signs you in to NexaHealth and keeps the session alive.

Tokens are kept for the current shell unless you log in with --remember,
in which case they are written to ~/.nexa and survive restarts.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipSetup(cmd) {
				return nil
			}
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath(), "Config file")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (overrides NEXA_API_URL)")
	root.PersistentFlags().StringVar(&a.principal, "as", "", "Account type: user or pharmacy")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.statusCmd(),
		a.whoamiCmd(),
		a.refreshCmd(),
		a.watchCmd(),
		a.referralCmd(),
		a.guestCmd(),
		a.statsCmd(),
		a.verifyCmd(),
		a.logsCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

// skipSetup reports whether cmd runs without a session.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// setup loads config and restores the session.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.principal != "" {
		cfg.API.Principal = a.principal
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.New(logger.Options{FilePath: cfg.LogPath(), Verbose: a.verbose})
	a.durable = tokenstore.NewFileBackend(cfg.StorePath())

	var ephemeral tokenstore.Backend = tokenstore.NewMemoryBackend()
	if strings.EqualFold(cfg.Session.EphemeralScope, config.ScopeShell) {
		ephemeral = tokenstore.NewFileBackend(tokenstore.ShellScopedPath())
	}

	mgr, err := session.New(session.Options{
		BaseURL:         cfg.API.BaseURL,
		Principal:       cfg.GetPrincipal(),
		Ephemeral:       ephemeral,
		Persistent:      a.durable,
		Timeout:         cfg.GetTimeout(),
		RefreshInterval: cfg.GetRefreshInterval(),
		Logger:          a.log,
	})
	if err != nil {
		return err
	}
	if err := mgr.Init(); err != nil {
		a.log.Warn("main", "session restore failed", map[string]any{"error": err})
	}
	a.session = mgr
	return nil
}

func (a *app) close() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn("main", "session close failed", map[string]any{"error": err})
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// requireLogin fails fast for commands that only make sense signed in.
func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

var errNotLoggedIn = errors.New("you are not logged in (run: nexa login)")

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "nexa "+version)
		},
	}
}
