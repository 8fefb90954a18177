// research-pulse is the terminal client for Research Pulse. It restores the
// stored session, loads the market dashboard and watchlist, and lets the
// user search subjects, chart their metrics and read research reports.
//
// Usage:
//
//	research-pulse [command] [flags]
//
// Commands:
//
//	tui      Interactive terminal UI (default when stdout is a terminal)
//	status   Restore the session, load the dashboard and print a JSON snapshot
//	login    Sign in and store the session
//	logout   Sign out and forget the stored session
//	version  Print version information
//
// Flags:
//
//	--config string        Path to a TOML or YAML config file
//	--use-mocks            Serve fixtures instead of calling the API
//	--metrics-addr string  Serve Prometheus metrics on this address
//	--verbose              Enable debug logging
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/screens"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
	"gitlab.com/tinyland/lab/research-pulse/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// errNotSignedIn is returned by headless commands that need a session.
var errNotSignedIn = errors.New("not signed in; run `research-pulse login`")

// options are the persistent flags.
type options struct {
	configPath  string
	useMocks    bool
	metricsAddr string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "research-pulse",
		Short: "Terminal client for Research Pulse market research",
		Long: `research-pulse restores your Research Pulse session, shows the market
dashboard and your watchlist, and lets you search subjects, chart their
metrics and read research reports.

Run without a command it starts the interactive UI when attached to a
terminal and prints a status snapshot otherwise.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return runTUI(cmd, opts)
			}
			return runStatus(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a TOML or YAML config file")
	pf.BoolVar(&opts.useMocks, "use-mocks", false, "serve fixtures instead of calling the API")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Start the interactive terminal UI",
			RunE:  func(cmd *cobra.Command, args []string) error { return runTUI(cmd, opts) },
		},
		&cobra.Command{
			Use:   "status",
			Short: "Restore the session, load the dashboard and print a JSON snapshot",
			RunE:  func(cmd *cobra.Command, args []string) error { return runStatus(cmd, opts) },
		},
		newLoginCmd(opts),
		&cobra.Command{
			Use:   "logout",
			Short: "Sign out and forget the stored session",
			RunE:  func(cmd *cobra.Command, args []string) error { return runLogout(cmd, opts) },
		},
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit and build date. Use --json for machine-readable output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    date,
				})
			}
			_, err := fmt.Fprintf(out, "research-pulse %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output version info as JSON")
	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	var email string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Signs in with an email and password and stores the session token.
The password is read from RPULSE_PASSWORD, or from the first line of
stdin with --password-stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("RPULSE_PASSWORD")
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			return runLogin(cmd, opts, email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runTUI(cmd *cobra.Command, opts *options) error {
	a, err := newApp(cmd.Context(), opts, true)
	if err != nil {
		return err
	}
	defer a.close()

	bridge := tui.NewBridge()
	root := a.newRoot(bridge)
	model := tui.New(cmd.Context(), a.deps(bridge, root))

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	bridge.Attach(p)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		a.log.Error("tui exited", zap.Error(err))
		return err
	}
	return nil
}

// statusReport is the JSON printed by the status command.
type statusReport struct {
	state.Snapshot
	Market *research.MarketSummary `json:"market,omitempty"`
	Movers *research.Movers        `json:"movers,omitempty"`
	Errors []string                `json:"errors,omitempty"`
}

func runStatus(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	l := loop.New(a.log)
	defer l.Close()
	root := a.newRoot(l)
	if err := restore(ctx, l, root); err != nil {
		return err
	}

	var report statusReport
	var authed bool
	l.Do(func() { authed = root.Status() == state.StatusAuthenticated })
	if authed {
		var dash *screens.Dashboard
		var header, list *task.Run
		l.Do(func() {
			dash = screens.NewDashboard(a.deps(l, root))
			header, list = dash.Load(false)
		})
		if err := waitRuns(ctx, header, list); err != nil {
			return err
		}
		l.Do(func() {
			if s, ok := dash.Summary(); ok {
				report.Market = &s
			}
			if mv, ok := dash.Movers(); ok {
				report.Movers = &mv
			}
			if msg := dash.ErrorMessage(); msg != "" {
				report.Errors = append(report.Errors, msg)
			}
		})
	}
	l.Do(func() { report.Snapshot = root.Snapshot() })

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !authed {
		return errNotSignedIn
	}
	return nil
}

func runLogin(cmd *cobra.Command, opts *options, email, password string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	l := loop.New(a.log)
	defer l.Close()
	root := a.newRoot(l)

	var signIn *screens.SignIn
	l.Do(func() { signIn = screens.NewSignIn(a.deps(l, root)) })
	if err := signIn.SubmitAndWait(ctx, email, password); err != nil {
		return err
	}

	var user research.User
	l.Do(func() { user, _ = root.User() })
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
	return nil
}

func runLogout(cmd *cobra.Command, opts *options) error {
	a, err := newApp(cmd.Context(), opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	l := loop.New(a.log)
	defer l.Close()
	root := a.newRoot(l)
	l.Do(root.SignOut)
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

// restore runs the startup restore on l and waits for it.
func restore(ctx context.Context, l *loop.Loop, root *state.Root) error {
	var done <-chan struct{}
	l.Do(func() { done = root.Restore(ctx) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitRuns(ctx context.Context, runs ...*task.Run) error {
	for _, r := range runs {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
